package rowvalidate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekeep/internal/datapkg"
)

func writeTSV(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name+".tsv")
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidatePassesCleanData(t *testing.T) {
	dir := t.TempDir()
	pkg := datapkg.NewPackage("archive")
	pkg.AddResource(datapkg.Resource{
		Name: "users",
		Schema: datapkg.Schema{
			PrimaryKey: []string{"id"},
			Fields: []datapkg.Field{
				{Name: "id", Type: "integer", Constraints: &datapkg.Constraints{Required: true}},
				{Name: "email", Type: "string", Constraints: &datapkg.Constraints{Required: true, MaxLength: 20}},
			},
		},
	})
	writeTSV(t, dir, "users", []string{"id\temail", "1\ta@example.com", "2\tb@example.com"})

	report, err := Validate(pkg, func(r string) string { return filepath.Join(dir, r+".tsv") })
	require.NoError(t, err)
	assert.True(t, report.Passed())
	require.Len(t, report.Tables, 1)
	assert.Equal(t, 2, report.Tables[0].RowCount)
}

func TestValidateCatchesDuplicatePrimaryKey(t *testing.T) {
	dir := t.TempDir()
	pkg := datapkg.NewPackage("archive")
	pkg.AddResource(datapkg.Resource{
		Name: "users",
		Schema: datapkg.Schema{
			PrimaryKey: []string{"id"},
			Fields:     []datapkg.Field{{Name: "id", Type: "integer"}},
		},
	})
	writeTSV(t, dir, "users", []string{"id", "1", "1"})

	report, err := Validate(pkg, func(r string) string { return filepath.Join(dir, r+".tsv") })
	require.NoError(t, err)
	assert.False(t, report.Passed())
	assert.Contains(t, report.Tables[0].Failures[0].Reason, "duplicate primary key")
}

func TestValidateCatchesDanglingForeignKey(t *testing.T) {
	dir := t.TempDir()
	pkg := datapkg.NewPackage("archive")
	pkg.AddResource(datapkg.Resource{
		Name:   "a",
		Schema: datapkg.Schema{PrimaryKey: []string{"id"}, Fields: []datapkg.Field{{Name: "id", Type: "integer"}}},
	})
	pkg.AddResource(datapkg.Resource{
		Name: "b",
		Schema: datapkg.Schema{
			PrimaryKey: []string{"id"},
			Fields: []datapkg.Field{
				{Name: "id", Type: "integer"},
				{Name: "a_id", Type: "integer"},
			},
			ForeignKeys: []datapkg.ForeignKey{
				{Fields: []string{"a_id"}, Reference: datapkg.ForeignKeyReference{Resource: "a", Fields: []string{"id"}}},
			},
		},
	})
	writeTSV(t, dir, "a", []string{"id", "1"})
	writeTSV(t, dir, "b", []string{"id\ta_id", "10\t99"})

	report, err := Validate(pkg, func(r string) string { return filepath.Join(dir, r+".tsv") })
	require.NoError(t, err)
	assert.False(t, report.Passed())
	names := report.FailedResources()
	assert.Equal(t, []string{"b"}, names)
}

func TestCheckFieldEnforcesConstraints(t *testing.T) {
	f := datapkg.Field{Name: "status", Type: "string", Constraints: &datapkg.Constraints{Enum: []string{"open", "closed"}}}
	assert.Equal(t, "", checkField(f, "open"))
	assert.Contains(t, checkField(f, "pending"), "not in enum")

	intField := datapkg.Field{Name: "n", Type: "integer"}
	assert.Equal(t, "", checkField(intField, "42"))
	assert.Contains(t, checkField(intField, "abc"), "not an integer")
}
