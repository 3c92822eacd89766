package copyplan

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekeep/internal/datapkg"
)

func samplePackage() *datapkg.Package {
	pkg := datapkg.NewPackage("archive")
	pkg.AddResource(datapkg.Resource{
		Name:        "users",
		DBTableName: "Users",
		Schema: datapkg.Schema{
			Fields: []datapkg.Field{
				{Name: "id", DBColumnName: "id", JDBCType: "4"},
				{Name: "photo", DBColumnName: "photo", JDBCType: "2004"},
				{Name: "created_at", DBColumnName: "created_at", JDBCType: "93"},
			},
		},
	})
	return pkg
}

func TestBuildSimpleColumnPassthrough(t *testing.T) {
	pkg := samplePackage()
	plan, err := Build(pkg, Options{SourceDialect: "mysql", TargetDialect: "mysql"})
	require.NoError(t, err)

	require.Len(t, plan.Statements, 1)
	stmt := plan.Statements[0]
	assert.Equal(t, "Users", stmt.SourceTable)
	assert.Equal(t, "users", stmt.TargetTable)
	assert.Contains(t, stmt.SourceQuery, "SELECT")
	assert.Contains(t, stmt.SourceQuery, "FROM Users")
}

func TestBuildNoBlobsSuppressesBlobColumn(t *testing.T) {
	pkg := samplePackage()
	plan, err := Build(pkg, Options{SourceDialect: "mysql", TargetDialect: "mysql", NoBlobs: true})
	require.NoError(t, err)

	photoCol := plan.Statements[0].Columns[1]
	assert.Contains(t, photoCol.Expr, "NULL AS")
}

func TestBuildTimestampToSQLiteFromPostgres(t *testing.T) {
	pkg := samplePackage()
	plan, err := Build(pkg, Options{SourceDialect: "postgresql", TargetDialect: "sqlite"})
	require.NoError(t, err)

	createdAt := plan.Statements[0].Columns[2]
	assert.Contains(t, createdAt.Expr, "FORMATDATETIME")
}

func TestBuildSQLiteTargetAddsPreStatements(t *testing.T) {
	pkg := samplePackage()
	plan, err := Build(pkg, Options{SourceDialect: "sqlite", TargetDialect: "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, SQLitePreStatements, plan.PreStatements)
}

func TestBuildRejectsUnsupportedDatetimeSource(t *testing.T) {
	pkg := samplePackage()
	_, err := Build(pkg, Options{SourceDialect: "mssql", TargetDialect: "sqlite"})
	assert.Error(t, err)
}

func TestBuildSchemaQualifiesSourceTable(t *testing.T) {
	pkg := samplePackage()
	plan, err := Build(pkg, Options{SourceDialect: "mysql", TargetDialect: "mysql", Schema: "prod"})
	require.NoError(t, err)
	assert.Equal(t, "prod.Users", plan.Statements[0].SourceTable)
}

func TestPlanWriteAndReadFileRoundTrip(t *testing.T) {
	pkg := samplePackage()
	plan, err := Build(pkg, Options{SourceDialect: "mysql", TargetDialect: "mysql"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "copy.json")
	require.NoError(t, plan.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, plan.Statements[0].TargetTable, got.Statements[0].TargetTable)
}
