package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutComputesExpectedPaths(t *testing.T) {
	l := New("/srv/runs", "orders")

	assert.Equal(t, "/srv/runs/content/orders/datapackage.json", l.DatapackagePath())
	assert.Equal(t, "/srv/runs/content/orders/mysql-ddl.sql", l.DDLPath("mysql"))
	assert.Equal(t, "/srv/runs/content/orders/mysql-fk-ddl.sql", l.FKDDLPath("mysql"))
	assert.Equal(t, "/srv/runs/content/orders/data/customers.tsv", l.TSVPath("customers"))
	assert.Equal(t, "/srv/runs/content/orders/documents/f_blob1.data", l.DocumentPath("f", "blob", 1))
	assert.Equal(t, "/srv/runs/tmp/orders-config.db", l.ConfigStorePath())
	assert.Equal(t, "/srv/runs/tmp/orders-tables.txt", l.TablesPath())
	assert.Equal(t, "/srv/runs/tmp/orders-copy.sql", l.CopyPlanPath())
	assert.Equal(t, "/srv/runs/tmp/orders-deps.json", l.DepsPath())
}

func TestEnsureDirsCreatesContentAndTmp(t *testing.T) {
	root := t.TempDir()
	l := New(root, "orders")
	require.NoError(t, l.EnsureDirs())

	assert.DirExists(t, l.DataDir())
	assert.DirExists(t, l.DocumentsDir())
	assert.DirExists(t, l.TmpDir())

	require.NoError(t, l.EnsureDirs())
}

func TestScratchPathIsUniquePerCall(t *testing.T) {
	l := New(t.TempDir(), "orders")
	a := l.ScratchPath("draft")
	b := l.ScratchPath("draft")
	assert.NotEqual(t, a, b)
	assert.Equal(t, filepath.Dir(a), l.TmpDir())
}

func TestScratchPathUnderTmpAfterEnsureDirs(t *testing.T) {
	root := t.TempDir()
	l := New(root, "orders")
	require.NoError(t, l.EnsureDirs())

	path := l.ScratchPath("draft")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.FileExists(t, path)
}
