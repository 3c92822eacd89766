package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"tablekeep/internal/sqltype"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "src.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestListTablesExcludesInternalTables(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)`)
	require.NoError(t, err)

	r := New()
	names, err := r.ListTables(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, names)
}

func TestPrimaryKeyOrdersByKeyPosition(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE memberships (org_id INTEGER, user_id INTEGER, PRIMARY KEY (user_id, org_id))`)
	require.NoError(t, err)

	r := New()
	pk, err := r.PrimaryKey(ctx, db, "memberships")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "org_id"}, pk)
}

func TestColumnsReportsTypeAndNullability(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE docs (id INTEGER PRIMARY KEY, body TEXT NOT NULL, size REAL)`)
	require.NoError(t, err)

	r := New()
	cols, err := r.Columns(ctx, db, "docs")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, sqltype.Integer, cols[0].JDBCType)
	assert.Equal(t, sqltype.VarChar, cols[1].JDBCType)
	assert.False(t, cols[1].Nullable)
	assert.Equal(t, sqltype.Double, cols[2].JDBCType)
}

func TestForeignKeysListsReferencedTableAndColumn(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id))`)
	require.NoError(t, err)

	r := New()
	fks, err := r.ForeignKeys(ctx, db, "orders")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "user_id", fks[0].Column)
	assert.Equal(t, "users", fks[0].RefTable)
	assert.Equal(t, "id", fks[0].RefColumn)
}

func TestSqliteToJDBCParsesEmbeddedSize(t *testing.T) {
	jdbc, size := sqliteToJDBC("VARCHAR(120)")
	assert.Equal(t, sqltype.VarChar, jdbc)
	assert.Equal(t, 120, size)

	jdbc, _ = sqliteToJDBC("")
	assert.Equal(t, sqltype.VarChar, jdbc)
}
