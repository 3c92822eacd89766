package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.db")

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, s2.UpsertTable(ctx, Table{SourceName: "users"}))
}

func TestUpsertTableThenListIncluded(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertTable(ctx, Table{
		SourceName: "users", NormName: "users", SourceRowCount: 10, Include: true, DepsOrder: 1,
	}))
	require.NoError(t, s.UpsertTable(ctx, Table{
		SourceName: "orders", NormName: "orders", SourceRowCount: 5, Include: true, DepsOrder: 2,
	}))
	require.NoError(t, s.UpsertTable(ctx, Table{
		SourceName: "excluded", NormName: "excluded", SourceRowCount: 1, Include: false, DepsOrder: 3,
	}))

	names, err := s.ListIncludedTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders"}, names)
}

func TestUpsertTableOverwritesOnConflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertTable(ctx, Table{SourceName: "users", SourceRowCount: 10, Include: true}))
	require.NoError(t, s.UpsertTable(ctx, Table{SourceName: "users", SourceRowCount: 20, Include: true}))

	diff, err := s.DataDiff(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), diff["users"])
}

func TestUpdateRowCountMarksCreated(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertTable(ctx, Table{SourceName: "users", SourceRowCount: 10, Include: true, DepsOrder: 1}))
	require.NoError(t, s.UpdateRowCount(ctx, "users", 10, true))

	missing, err := s.TableDiff(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestTableDiffReportsUncreatedIncludedTables(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertTable(ctx, Table{SourceName: "users", SourceRowCount: 10, Include: true, DepsOrder: 1}))

	missing, err := s.TableDiff(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, missing)
}

func TestDataDiffIgnoresNonIncludedTables(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertTable(ctx, Table{SourceName: "users", SourceRowCount: 10, TargetRowCount: 0, Include: false}))

	diff, err := s.DataDiff(ctx)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestSetCopyErrorAndListErrorTables(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertTable(ctx, Table{SourceName: "users"}))
	require.NoError(t, s.SetCopyError(ctx, "users", true))

	errored, err := s.ListErrorTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, errored)

	require.NoError(t, s.SetCopyError(ctx, "users", false))
	errored, err = s.ListErrorTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, errored)
}

func TestUpsertColumnAndForeignKey(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertTable(ctx, Table{SourceName: "orders"}))
	require.NoError(t, s.UpsertTable(ctx, Table{SourceName: "users"}))

	require.NoError(t, s.UpsertColumn(ctx, Column{
		TblColPos: "orders.1", SourceTable: "orders", SourceColumn: "user_id",
	}))
	require.NoError(t, s.UpsertColumn(ctx, Column{
		TblColPos: "users.1", SourceTable: "users", SourceColumn: "id",
	}))

	require.NoError(t, s.UpsertForeignKey(ctx, ForeignKey{
		SourceName: "fk_orders_user", SourceTable: "orders", TblColPos: "orders.1",
		RefTblColPos: "users.1", SourceRefTable: "users",
	}))
}

func TestSetValidatedAndListValidatedTables(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertTable(ctx, Table{SourceName: "users", NormName: "users", SourceRowCount: 5, DepsOrder: 1}))
	require.NoError(t, s.SetValidated(ctx, "users", true))

	validated, err := s.ListValidatedTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, validated)
}
