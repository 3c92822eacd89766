package postgresql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekeep/internal/sqltype"
)

func TestListTablesQueriesInformationSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT table_name").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders").AddRow("users"))

	r := New()
	names, err := r.ListTables(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrimaryKeyOrdersByOrdinalPosition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT kcu.column_name").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("user_id").AddRow("org_id"))

	r := New()
	pk, err := r.PrimaryKey(context.Background(), db, "memberships")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "org_id"}, pk)
}

func TestColumnsMapsDataTypesAndAutoIncrement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"column_name", "data_type", "udt_name", "is_nullable", "column_default",
		"ordinal_position", "character_maximum_length", "numeric_precision",
	}).
		AddRow("id", "integer", "int4", "NO", "nextval('users_id_seq'::regclass)", 1, nil, nil).
		AddRow("email", "character varying", "varchar", "YES", nil, 2, 255, nil)

	mock.ExpectQuery("SELECT(.|\n)*FROM information_schema.columns").WillReturnRows(rows)

	r := New()
	cols, err := r.Columns(context.Background(), db, "users")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, sqltype.Integer, cols[0].JDBCType)
	assert.True(t, cols[0].AutoIncrement)
	assert.Equal(t, sqltype.VarChar, cols[1].JDBCType)
	assert.Equal(t, 255, cols[1].Size)
	assert.True(t, cols[1].Nullable)
}

func TestForeignKeysReadsReferencedColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT kcu.column_name, ccu.table_name").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "table_name", "column_name"}).
			AddRow("user_id", "users", "id"))

	r := New()
	fks, err := r.ForeignKeys(context.Background(), db, "orders")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "user_id", fks[0].Column)
	assert.Equal(t, "users", fks[0].RefTable)
	assert.Equal(t, "id", fks[0].RefColumn)
}

func TestPostgresToJDBCCoversCommonTypes(t *testing.T) {
	assert.Equal(t, sqltype.BigInt, postgresToJDBC("bigint", ""))
	assert.Equal(t, sqltype.Blob, postgresToJDBC("bytea", ""))
	assert.Equal(t, sqltype.LongVarChar, postgresToJDBC("text", ""))
	assert.Equal(t, sqltype.Timestamp, postgresToJDBC("timestamp without time zone", ""))
	assert.Equal(t, sqltype.VarChar, postgresToJDBC("USER-DEFINED", "uuid"))
	assert.Equal(t, sqltype.LongVarChar, postgresToJDBC("USER-DEFINED", "jsonb"))
}
