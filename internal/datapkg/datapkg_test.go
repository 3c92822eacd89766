package datapkg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekeep/internal/store"
)

func TestBuildSimpleTable(t *testing.T) {
	tables := []TableInfo{
		{
			SourceName: "Users", NormName: "users", SourcePK: "id", RowCount: 3,
			Columns: []store.Column{
				{SourceColumn: "id", NormColumn: "id", JDBCDataType: 4},
				{SourceColumn: "email", NormColumn: "email", JDBCDataType: 12, SourceColumnSize: 255},
			},
		},
	}

	pkg := Build("archive", tables, false)

	require.Len(t, pkg.Resources, 1)
	res := pkg.Resources[0]
	assert.Equal(t, "users", res.Name)
	assert.Equal(t, []string{"id"}, res.Schema.PrimaryKey)
	require.Len(t, res.Schema.Fields, 2)
	assert.True(t, res.Schema.Fields[0].Constraints.Required)
	assert.Equal(t, 255, res.Schema.Fields[1].Constraints.MaxLength)
}

func TestBuildSuppressesOracleLongVarCharMaxLength(t *testing.T) {
	tables := []TableInfo{
		{
			SourceName: "docs", NormName: "docs",
			Columns: []store.Column{
				{SourceColumn: "body", NormColumn: "body", JDBCDataType: -1, SourceColumnSize: 999999},
			},
		},
	}

	pkg := Build("archive", tables, true)
	assert.Nil(t, pkg.Resources[0].Schema.Fields[0].Constraints)
}

func TestBuildWithForeignKeys(t *testing.T) {
	tables := []TableInfo{
		{
			SourceName: "orders", NormName: "orders",
			Columns: []store.Column{
				{SourceColumn: "user_id", NormColumn: "user_id", JDBCDataType: 4},
			},
			ForeignKeys: []ResolvedForeignKey{
				{NormColumn: "user_id", RefResource: "users", RefNormColumn: "id"},
			},
		},
	}

	pkg := Build("archive", tables, false)
	require.Len(t, pkg.Resources[0].Schema.ForeignKeys, 1)
	fk := pkg.Resources[0].Schema.ForeignKeys[0]
	assert.Equal(t, []string{"user_id"}, fk.Fields)
	assert.Equal(t, "users", fk.Reference.Resource)
}

func TestWriteIsIdempotentWhenUnchanged(t *testing.T) {
	pkg := Build("archive", []TableInfo{{SourceName: "t", NormName: "t"}}, false)
	path := filepath.Join(t.TempDir(), "datapackage.json")

	written, err := pkg.Write(path)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = pkg.Write(path)
	require.NoError(t, err)
	assert.False(t, written, "unchanged descriptor should not be rewritten")
}

func TestWriteRewritesWhenChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datapackage.json")

	pkg := Build("archive", []TableInfo{{SourceName: "t", NormName: "t"}}, false)
	_, err := pkg.Write(path)
	require.NoError(t, err)

	pkg2 := Build("archive", []TableInfo{{SourceName: "t2", NormName: "t2"}}, false)
	written, err := pkg2.Write(path)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestReadPackageRoundTrip(t *testing.T) {
	pkg := Build("archive", []TableInfo{{SourceName: "t", NormName: "t"}}, false)
	path := filepath.Join(t.TempDir(), "datapackage.json")
	_, err := pkg.Write(path)
	require.NoError(t, err)

	got, err := ReadPackage(path)
	require.NoError(t, err)
	assert.Equal(t, pkg.Name, got.Name)
	assert.Len(t, got.Resources, 1)
}

func TestValidateAcceptsBuiltPackage(t *testing.T) {
	tables := []TableInfo{
		{
			SourceName: "users", NormName: "users", SourcePK: "id",
			Columns: []store.Column{
				{SourceColumn: "id", NormColumn: "id", JDBCDataType: 4},
			},
		},
	}
	pkg := Build("archive", tables, false)
	assert.NoError(t, Validate(pkg))
}

func TestValidateRejectsMissingProfile(t *testing.T) {
	pkg := &Package{Name: "archive"}
	assert.Error(t, Validate(pkg))
}
