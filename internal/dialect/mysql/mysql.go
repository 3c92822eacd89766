// Package mysql provides MySQL/MariaDB/TiDB CREATE TABLE DDL rendering.
package mysql

import (
	"fmt"
	"strings"

	"tablekeep/internal/core"
	"tablekeep/internal/dialect"
)

func init() {
	dialect.RegisterDialect(dialect.MySQL, func() dialect.Dialect {
		return NewMySQLDialect(dialect.MySQL)
	})
	dialect.RegisterDialect(dialect.MariaDB, func() dialect.Dialect {
		return NewMySQLDialect(dialect.MariaDB)
	})
	dialect.RegisterDialect(dialect.TiDB, func() dialect.Dialect {
		return NewMySQLDialect(dialect.TiDB)
	})
}

// Dialect represents the MySQL-family dialect (MySQL, MariaDB, TiDB share a
// generator since they accept the same CREATE TABLE grammar).
type Dialect struct {
	name      dialect.Type
	generator *Generator
}

// NewMySQLDialect initializes a new MySQL-family dialect instance.
func NewMySQLDialect(name dialect.Type) *Dialect {
	return &Dialect{name: name, generator: NewMySQLGenerator()}
}

// Name returns the dialect type this instance was registered under.
func (d *Dialect) Name() dialect.Type {
	return d.name
}

// Generator returns the DDL generator for the MySQL-family dialect.
func (d *Dialect) Generator() dialect.Generator {
	return d.generator
}

// Generator is a stateless struct for generating MySQL CREATE TABLE DDL.
type Generator struct{}

// NewMySQLGenerator initializes a new MySQL DDL generator instance.
func NewMySQLGenerator() *Generator {
	return &Generator{}
}

// GenerateCreateTable generate an SQL statement to create a table, depending on Table struct representation.
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

	for _, idx := range t.Indexes {
		if idx == nil {
			continue
		}
		if line := g.indexDefinitionInline(idx); line != "" {
			lines = append(lines, "  "+line)
		}
	}

	options := g.tableOptions(t)
	create := fmt.Sprintf("CREATE TABLE %s (\n%s\n)%s;", name, strings.Join(lines, ",\n"), options)

	var fkStmts []string
	for _, fk := range fks {
		stmt := g.addConstraint(name, fk)
		if stmt != "" {
			fkStmts = append(fkStmts, stmt)
		}
	}

	return create, fkStmts
}

// GenerateDropTable generate an SQL statement to drop a table.
func (g *Generator) GenerateDropTable(t *core.Table) string {
	return fmt.Sprintf("DROP TABLE %s;", g.QuoteIdentifier(t.Name))
}

// QuoteIdentifier is a function used for quote identification inside an SQL dialect.
func (g *Generator) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "`", "``")
	return "`" + name + "`"
}

// QuoteString is a function used for quote string inside an SQL dialect.
func (g *Generator) QuoteString(value string) string {
	var b strings.Builder
	b.Grow(len(value) + len(value)/10 + 2)

	b.WriteByte('\'')
	for _, char := range value {
		switch char {
		case '\'':
			b.WriteString("''")
		case '\\': // Backslash escaped
			b.WriteString(`\\`)
		case '\x00': // NUL byte
			b.WriteString(`\0`)
		case '\n': // Newline
			b.WriteString(`\n`)
		case '\r': // Carriage return
			b.WriteString(`\r`)
		case '\x1A': // Ctrl+Z
			b.WriteString(`\Z`)
		default:
			b.WriteRune(char)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
