// Package postgresql provides PostgreSQL CREATE TABLE DDL rendering.
package postgresql

import (
	"fmt"
	"strings"

	"tablekeep/internal/core"
	"tablekeep/internal/dialect"
)

func init() {
	dialect.RegisterDialect(dialect.PostgreSQL, func() dialect.Dialect {
		return NewDialect()
	})
}

// Dialect represents the PostgreSQL dialect.
type Dialect struct {
	generator *Generator
}

// NewDialect initializes a new PostgreSQL dialect instance.
func NewDialect() *Dialect {
	return &Dialect{generator: NewGenerator()}
}

// Name returns the dialect type this instance was registered under.
func (d *Dialect) Name() dialect.Type { return dialect.PostgreSQL }

// Generator returns the DDL generator for PostgreSQL.
func (d *Dialect) Generator() dialect.Generator { return d.generator }

// Generator is a stateless struct for generating PostgreSQL CREATE TABLE DDL.
type Generator struct{}

// NewGenerator initializes a new PostgreSQL DDL generator instance.
func NewGenerator() *Generator { return &Generator{} }

// GenerateCreateTable renders the CREATE TABLE statement for t. Foreign key
// constraints come back separately as ALTER TABLE statements so callers can
// apply them after every referenced table exists.
func (g *Generator) GenerateCreateTable(t *core.Table) (string, []string) {
	name := g.QuoteIdentifier(t.Name)

	var lines []string
	for _, c := range t.Columns {
		if c == nil {
			continue
		}
		lines = append(lines, "  "+g.columnDefinition(c))
	}

	var fks []*core.Constraint
	for _, c := range t.Constraints {
		if c == nil {
			continue
		}
		if c.Type == core.ConstraintForeignKey {
			fks = append(fks, c)
			continue
		}
		if line := g.constraintDefinition(c); line != "" {
			lines = append(lines, "  "+line)
		}
	}

	unlogged := ""
	if t.Options.PostgreSQL != nil && t.Options.PostgreSQL.Unlogged {
		unlogged = "UNLOGGED "
	}

	create := fmt.Sprintf("CREATE %sTABLE %s (\n%s\n);", unlogged, name, strings.Join(lines, ",\n"))

	var fkStmts []string
	for _, fk := range fks {
		if stmt := g.addForeignKeyConstraint(name, fk); stmt != "" {
			fkStmts = append(fkStmts, stmt)
		}
	}

	return create, fkStmts
}

// GenerateDropTable generates the DROP TABLE statement for t.
func (g *Generator) GenerateDropTable(t *core.Table) string {
	return fmt.Sprintf("DROP TABLE %s;", g.QuoteIdentifier(t.Name))
}

// QuoteIdentifier quotes name using PostgreSQL's double-quote identifier syntax.
func (g *Generator) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(name), `"`, `""`) + `"`
}

// QuoteString quotes value using SQL's single-quote string syntax.
func (g *Generator) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (g *Generator) columnDefinition(c *core.Column) string {
	typeRaw := c.EffectiveType("postgresql")
	if c.AutoIncrement {
		typeRaw = serialFor(typeRaw)
	}

	parts := []string{g.QuoteIdentifier(c.Name), typeRaw}

	if c.Nullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if c.DefaultValue != nil {
		parts = append(parts, "DEFAULT", *c.DefaultValue)
	}
	if c.Check != "" {
		parts = append(parts, fmt.Sprintf("CHECK (%s)", c.Check))
	}

	return strings.Join(parts, " ")
}

// serialFor maps an integer raw type onto its SERIAL-family equivalent for
// an auto-incrementing column, leaving non-integer types untouched.
func serialFor(typeRaw string) string {
	switch strings.ToUpper(strings.TrimSpace(typeRaw)) {
	case "SMALLINT":
		return "SMALLSERIAL"
	case "BIGINT":
		return "BIGSERIAL"
	default:
		return "SERIAL"
	}
}

func (g *Generator) formatColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = g.QuoteIdentifier(c)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

func (g *Generator) constraintDefinition(c *core.Constraint) string {
	cols := g.formatColumns(c.Columns)

	switch c.Type {
	case core.ConstraintPrimaryKey:
		return fmt.Sprintf("PRIMARY KEY %s", cols)
	case core.ConstraintUnique:
		if name := strings.TrimSpace(c.Name); name != "" {
			return fmt.Sprintf("CONSTRAINT %s UNIQUE %s", g.QuoteIdentifier(name), cols)
		}
		return fmt.Sprintf("UNIQUE %s", cols)
	case core.ConstraintCheck:
		expr := strings.TrimSpace(c.CheckExpression)
		if expr == "" {
			return ""
		}
		if name := strings.TrimSpace(c.Name); name != "" {
			return fmt.Sprintf("CONSTRAINT %s CHECK (%s)", g.QuoteIdentifier(name), expr)
		}
		return fmt.Sprintf("CHECK (%s)", expr)
	default:
		return ""
	}
}

func (g *Generator) addForeignKeyConstraint(table string, c *core.Constraint) string {
	if len(c.Columns) == 0 || strings.TrimSpace(c.ReferencedTable) == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("ALTER TABLE ")
	sb.WriteString(table)
	sb.WriteString(" ADD ")
	if name := strings.TrimSpace(c.Name); name != "" {
		sb.WriteString("CONSTRAINT ")
		sb.WriteString(g.QuoteIdentifier(name))
		sb.WriteString(" ")
	}
	sb.WriteString("FOREIGN KEY ")
	sb.WriteString(g.formatColumns(c.Columns))
	sb.WriteString(" REFERENCES ")
	sb.WriteString(g.QuoteIdentifier(c.ReferencedTable))
	sb.WriteString(" ")
	sb.WriteString(g.formatColumns(c.ReferencedColumns))
	if del := strings.TrimSpace(string(c.OnDelete)); del != "" {
		sb.WriteString(" ON DELETE ")
		sb.WriteString(del)
	}
	if upd := strings.TrimSpace(string(c.OnUpdate)); upd != "" {
		sb.WriteString(" ON UPDATE ")
		sb.WriteString(upd)
	}
	sb.WriteString(";")
	return sb.String()
}
