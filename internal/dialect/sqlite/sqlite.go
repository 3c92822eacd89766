// Package sqlite provides SQLite CREATE TABLE DDL rendering.
package sqlite

import (
	"fmt"
	"strings"

	"tablekeep/internal/core"
	"tablekeep/internal/dialect"
)

func init() {
	dialect.RegisterDialect(dialect.SQLite, func() dialect.Dialect {
		return NewDialect()
	})
}

// Dialect represents the SQLite dialect.
type Dialect struct {
	generator *Generator
}

// NewDialect initializes a new SQLite dialect instance.
func NewDialect() *Dialect {
	return &Dialect{generator: NewGenerator()}
}

// Name returns the dialect type this instance was registered under.
func (d *Dialect) Name() dialect.Type { return dialect.SQLite }

// Generator returns the DDL generator for SQLite.
func (d *Dialect) Generator() dialect.Generator { return d.generator }

// Generator is a stateless struct for generating SQLite CREATE TABLE DDL.
//
// SQLite has no ALTER TABLE ADD CONSTRAINT for foreign keys, so every
// constraint — primary key, unique, check, and foreign key alike — is
// emitted inline in the CREATE TABLE statement. GenerateCreateTable's second
// return value is always empty; callers that split CREATE vs. FK statements
// for other dialects should fold both into the same file for SQLite.
type Generator struct{}

// NewGenerator initializes a new SQLite DDL generator instance.
func NewGenerator() *Generator { return &Generator{} }

// GenerateCreateTable generates the CREATE TABLE statement for t.
func (g *Generator) GenerateCreateTable(t *core.Table) (string, []string) {
	name := g.QuoteIdentifier(t.Name)

	autoIncrementCol := ""
	for _, c := range t.Columns {
		if c != nil && c.AutoIncrement {
			autoIncrementCol = c.Name
			break
		}
	}

	var lines []string
	for _, c := range t.Columns {
		if c == nil {
			continue
		}
		lines = append(lines, "  "+g.columnDefinition(c, autoIncrementCol != "" && c.Name == autoIncrementCol))
	}

	for _, c := range t.Constraints {
		if c == nil {
			continue
		}
		if c.Type == core.ConstraintPrimaryKey && autoIncrementCol != "" {
			// Already declared inline on the AUTOINCREMENT column.
			continue
		}
		if line := g.constraintDefinition(c); line != "" {
			lines = append(lines, "  "+line)
		}
	}

	without := ""
	if t.Options.SQLite != nil && t.Options.SQLite.WithoutRowid {
		without = " WITHOUT ROWID"
	}

	create := fmt.Sprintf("CREATE TABLE %s (\n%s\n)%s;", name, strings.Join(lines, ",\n"), without)
	return create, nil
}

// GenerateDropTable generates the DROP TABLE statement for t.
func (g *Generator) GenerateDropTable(t *core.Table) string {
	return fmt.Sprintf("DROP TABLE %s;", g.QuoteIdentifier(t.Name))
}

// QuoteIdentifier quotes name using SQLite's double-quote identifier syntax.
func (g *Generator) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(name), `"`, `""`) + `"`
}

// QuoteString quotes value using SQL's single-quote string syntax.
func (g *Generator) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (g *Generator) columnDefinition(c *core.Column, inlinePK bool) string {
	parts := []string{g.QuoteIdentifier(c.Name), c.EffectiveType("sqlite")}

	if inlinePK {
		parts = append(parts, "PRIMARY KEY AUTOINCREMENT")
	}
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
		return fmt.Sprintf("CHECK (%s)", expr)
	case core.ConstraintForeignKey:
		if len(c.Columns) == 0 || strings.TrimSpace(c.ReferencedTable) == "" {
			return ""
		}
		stmt := fmt.Sprintf("FOREIGN KEY %s REFERENCES %s %s", cols,
			g.QuoteIdentifier(c.ReferencedTable), g.formatColumns(c.ReferencedColumns))
		if del := strings.TrimSpace(string(c.OnDelete)); del != "" {
			stmt += " ON DELETE " + del
		}
		if upd := strings.TrimSpace(string(c.OnUpdate)); upd != "" {
			stmt += " ON UPDATE " + upd
		}
		return stmt
	default:
		return ""
	}
}
