package sqlite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekeep/internal/core"
)

func TestGenerateCreateTableInlinesForeignKeys(t *testing.T) {
	gen := NewGenerator()
	table := &core.Table{
		Name: "orders",
		Columns: []*core.Column{
			{Name: "id", TypeRaw: "INTEGER", Nullable: false, PrimaryKey: true},
			{Name: "user_id", TypeRaw: "INTEGER", Nullable: false},
		},
		Constraints: []*core.Constraint{
			{Type: core.ConstraintPrimaryKey, Columns: []string{"id"}},
			{
				Type: core.ConstraintForeignKey, Columns: []string{"user_id"},
				ReferencedTable: "users", ReferencedColumns: []string{"id"},
			},
		},
	}

	create, fks := gen.GenerateCreateTable(table)

	assert.Empty(t, fks)
	assert.Contains(t, create, `CREATE TABLE "orders"`)
	assert.Contains(t, create, `FOREIGN KEY ("user_id") REFERENCES "users" ("id")`)
	assert.Contains(t, create, `PRIMARY KEY ("id")`)
}

func TestGenerateCreateTableAutoIncrementSkipsTablePK(t *testing.T) {
	gen := NewGenerator()
	table := &core.Table{
		Name: "items",
		Columns: []*core.Column{
			{Name: "id", TypeRaw: "INTEGER", PrimaryKey: true, AutoIncrement: true},
		},
		Constraints: []*core.Constraint{
			{Type: core.ConstraintPrimaryKey, Columns: []string{"id"}},
		},
	}

	create, _ := gen.GenerateCreateTable(table)
	assert.Contains(t, create, "PRIMARY KEY AUTOINCREMENT")
	assert.Equal(t, 1, strings.Count(create, "PRIMARY KEY"))
}

func TestQuoteIdentifierUsesDoubleQuotes(t *testing.T) {
	gen := NewGenerator()
	require.Equal(t, `"users"`, gen.QuoteIdentifier("users"))
	require.Equal(t, `"a""b"`, gen.QuoteIdentifier(`a"b`))
}
