package datapkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekeep/internal/core"
)

func TestBuildTablesRendersColumnsAndKeys(t *testing.T) {
	pkg := NewPackage("archive")
	pkg.AddResource(Resource{
		Name: "users",
		Schema: Schema{
			PrimaryKey: []string{"id"},
			Fields: []Field{
				{Name: "id", Type: "integer", JDBCType: "4", Constraints: &Constraints{Required: true}},
				{Name: "email", Type: "string", JDBCType: "12", Constraints: &Constraints{Required: true, MaxLength: 100}},
			},
		},
	})
	pkg.AddResource(Resource{
		Name: "orders",
		Schema: Schema{
			PrimaryKey: []string{"id"},
			Fields: []Field{
				{Name: "id", Type: "integer", JDBCType: "4", Constraints: &Constraints{Required: true}},
				{Name: "user_id", Type: "integer", JDBCType: "4", Constraints: &Constraints{Required: true}},
			},
			ForeignKeys: []ForeignKey{
				{Fields: []string{"user_id"}, Reference: ForeignKeyReference{Resource: "users", Fields: []string{"id"}}},
			},
		},
	})

	tables, err := BuildTables(pkg, "mysql")
	require.NoError(t, err)
	require.Len(t, tables, 2)

	users := tables[0]
	assert.Equal(t, "users", users.Name)
	require.Len(t, users.Columns, 2)
	assert.Equal(t, "INT", users.Columns[0].TypeRaw)
	assert.Equal(t, "VARCHAR(100)", users.Columns[1].TypeRaw)
	assert.True(t, users.Columns[0].PrimaryKey)

	orders := tables[1]
	require.Len(t, orders.Constraints, 2)
	found := false
	for _, c := range orders.Constraints {
		if c.Type == core.ConstraintForeignKey {
			assert.Equal(t, "users", c.ReferencedTable)
			assert.Equal(t, []string{"id"}, c.ReferencedColumns)
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildTablesFallsBackForDB2AndRejectsBadJDBCType(t *testing.T) {
	pkg := NewPackage("archive")
	pkg.AddResource(Resource{
		Name: "t",
		Schema: Schema{
			Fields: []Field{{Name: "x", Type: "string", JDBCType: "12"}},
		},
	})

	_, err := BuildTables(pkg, "db2")
	require.NoError(t, err) // db2 falls back to the registry's ISO rendering

	pkg.Resources[0].Schema.Fields[0].JDBCType = "not-a-number"
	_, err = BuildTables(pkg, "mysql")
	assert.Error(t, err)
}
