package ansi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekeep/internal/core"
	"tablekeep/internal/dialect"
)

func TestRegistersAllFallbackDialects(t *testing.T) {
	for _, d := range []dialect.Type{dialect.Oracle, dialect.MSSQL, dialect.DB2, dialect.Snowflake, dialect.H2} {
		got, err := dialect.GetDialect(d)
		require.NoError(t, err)
		assert.Equal(t, d, got.Name())
	}
}

func TestGenerateCreateTableRendersForeignKeysAsAlter(t *testing.T) {
	gen := NewGenerator("oracle")
	table := &core.Table{
		Name: "orders",
		Columns: []*core.Column{
			{Name: "id", TypeRaw: "NUMBER", PrimaryKey: true},
			{Name: "user_id", TypeRaw: "NUMBER"},
		},
		Constraints: []*core.Constraint{
			{Type: core.ConstraintPrimaryKey, Columns: []string{"id"}},
			{Type: core.ConstraintForeignKey, Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}},
		},
	}

	create, fks := gen.GenerateCreateTable(table)
	assert.Contains(t, create, `CREATE TABLE "orders"`)
	require.Len(t, fks, 1)
	assert.Contains(t, fks[0], `ALTER TABLE "orders" ADD FOREIGN KEY ("user_id") REFERENCES "users" ("id")`)
}
