// Package ansi provides a generic ISO-SQL CREATE TABLE renderer for dialects
// this module has no live driver for (Oracle, SQL Server, DB2, Snowflake,
// H2). It emits standard-conforming DDL using each column's EffectiveType
// rendering for the matching core.Dialect name, so generated statements stay
// close to what a native generator would produce without reaching for
// engine-specific option syntax this module cannot validate against a real
// connection.
package ansi

import (
	"fmt"
	"strings"

	"tablekeep/internal/core"
	"tablekeep/internal/dialect"
)

func init() {
	for _, d := range []dialect.Type{dialect.Oracle, dialect.MSSQL, dialect.DB2, dialect.Snowflake, dialect.H2} {
		target := d
		dialect.RegisterDialect(target, func() dialect.Dialect {
			return NewDialect(target)
		})
	}
}

// Dialect wraps the generic Generator under a specific registered Type.
type Dialect struct {
	name      dialect.Type
	generator *Generator
}

// NewDialect initializes a new ansi-family dialect instance for name.
func NewDialect(name dialect.Type) *Dialect {
	return &Dialect{name: name, generator: NewGenerator(string(name))}
}

// Name returns the dialect type this instance was registered under.
func (d *Dialect) Name() dialect.Type { return d.name }

// Generator returns the DDL generator for this dialect.
func (d *Dialect) Generator() dialect.Generator { return d.generator }

// Generator is a stateless ISO-SQL CREATE TABLE generator parameterized by
// the core.Column.EffectiveType dialect name it renders column types for.
type Generator struct {
	coreDialect string
}

// NewGenerator initializes a new generic generator rendering types for
// coreDialect (e.g. "oracle", "mssql", "db2", "snowflake", "h2").
func NewGenerator(coreDialect string) *Generator {
	return &Generator{coreDialect: coreDialect}
}

// GenerateCreateTable renders the CREATE TABLE statement for t. Foreign key
// constraints come back separately as ALTER TABLE statements.
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

	create := fmt.Sprintf("CREATE TABLE %s (\n%s\n);", name, strings.Join(lines, ",\n"))

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

// QuoteIdentifier quotes name using the ISO-SQL double-quote identifier syntax.
func (g *Generator) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(name), `"`, `""`) + `"`
}

// QuoteString quotes value using SQL's single-quote string syntax.
func (g *Generator) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (g *Generator) columnDefinition(c *core.Column) string {
	parts := []string{g.QuoteIdentifier(c.Name), c.EffectiveType(g.coreDialect)}

	if c.Nullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if c.DefaultValue != nil {
		parts = append(parts, "DEFAULT", *c.DefaultValue)
	}

	return strings.Join(parts, " ")
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
		return fmt.Sprintf("UNIQUE %s", cols)
	case core.ConstraintCheck:
		expr := strings.TrimSpace(c.CheckExpression)
		if expr == "" {
			return ""
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
	stmt := fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY %s REFERENCES %s %s", table,
		g.formatColumns(c.Columns), g.QuoteIdentifier(c.ReferencedTable), g.formatColumns(c.ReferencedColumns))
	if del := strings.TrimSpace(string(c.OnDelete)); del != "" {
		stmt += " ON DELETE " + del
	}
	if upd := strings.TrimSpace(string(c.OnUpdate)); upd != "" {
		stmt += " ON UPDATE " + upd
	}
	return stmt + ";"
}
