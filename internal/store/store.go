// Package store is the config store: a small embedded database tracking
// every table, column, and foreign key discovered by a copy or archive run,
// plus per-table progress flags that let a run resume after a crash. It is
// backed by modernc.org/sqlite so the engine itself never depends on CGO.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Table mirrors the "tables" entity: one row per table discovered in the
// source, carrying copy progress and dependency-ordering state.
type Table struct {
	SourceName     string
	NormName       string
	TargetName     string
	SourceRowCount int64
	TargetRowCount int64
	SourcePK       string
	TargetPK       string
	Deps           string
	DepsOrder      int
	CPError        bool
	DelError       bool
	Include        bool
	Created        bool
	Validated      bool
	// EmptyRows counts source rows whose every cell is NULL: they are
	// excluded from the exported TSV but still accounted for, so
	// (TSV row count) + EmptyRows == SourceRowCount.
	EmptyRows int64
}

// Column mirrors the "columns" entity, keyed by "<table>.<position>".
type Column struct {
	TblColPos                string
	SourceTable               string
	SourceColumn              string
	NormColumn                string
	TargetColumn              string
	JDBCDataType              int
	SourceDataType            string
	TargetDataType            string
	SourceColumnSize          int
	TargetColumnSize          int
	FixedSize                 bool
	SourceColumnNullable      bool
	TargetColumnNullable      bool
	SourceColumnPosition      int
	TargetColumnPosition      int
	SourceColumnAutoincrement string
	TargetColumnAutoincrement string
}

// ForeignKey mirrors the "foreign_keys" entity.
type ForeignKey struct {
	SourceName     string
	TargetName     string
	TblColPos      string
	RefTblColPos   string
	SourceTable    string
	TargetTable    string
	SourceColumn   string
	TargetColumn   string
	SourceRefTable string
	TargetRefTable string
	SourceRefCol   string
	TargetRefCol   string
}

// File mirrors the "files" entity tracking archived TSV/sidecar files.
type File struct {
	SourcePath  string
	TarPath     string
	TarChecksum string
	TarMtime    string
	TarStatus   string
}

// Store wraps the config database for one subsystem run.
type Store struct {
	db *sql.DB
}

// Open creates (idempotently) and returns the config store at path. WAL mode
// is enabled so a concurrent reader (e.g. a progress dashboard) does not
// block the single writer.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tables (
			source_name TEXT PRIMARY KEY,
			norm_name TEXT,
			target_name TEXT,
			source_row_count INTEGER NOT NULL DEFAULT 0,
			target_row_count INTEGER NOT NULL DEFAULT 0,
			source_pk TEXT,
			target_pk TEXT,
			deps TEXT,
			deps_order INTEGER,
			cp_error INTEGER NOT NULL DEFAULT 0,
			del_error INTEGER NOT NULL DEFAULT 0,
			include INTEGER NOT NULL DEFAULT 0,
			created INTEGER NOT NULL DEFAULT 0,
			validated INTEGER NOT NULL DEFAULT 0,
			empty_rows INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS columns (
			tbl_col_pos TEXT PRIMARY KEY,
			source_table TEXT NOT NULL REFERENCES tables(source_name),
			source_column TEXT,
			norm_column TEXT,
			target_column TEXT,
			jdbc_data_type INTEGER,
			source_data_type TEXT,
			target_data_type TEXT,
			source_column_size INTEGER,
			target_column_size INTEGER,
			fixed_size INTEGER NOT NULL DEFAULT 0,
			source_column_nullable INTEGER,
			target_column_nullable INTEGER,
			source_column_position INTEGER,
			target_column_position INTEGER,
			source_column_autoincrement TEXT,
			target_column_autoincrement TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS foreign_keys (
			source_name TEXT PRIMARY KEY,
			target_name TEXT,
			tbl_col_pos TEXT REFERENCES columns(tbl_col_pos),
			ref_tbl_col_pos TEXT REFERENCES columns(tbl_col_pos),
			source_table TEXT NOT NULL REFERENCES tables(source_name),
			target_table TEXT,
			source_column TEXT,
			target_column TEXT,
			source_ref_table TEXT,
			target_ref_table TEXT,
			source_ref_column TEXT,
			target_ref_column TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			source_path TEXT PRIMARY KEY,
			tar_path TEXT,
			tar_checksum TEXT,
			tar_mtime TEXT,
			tar_status TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// UpsertTable inserts t or replaces its mutable columns if it already
// exists, keyed on SourceName. Each call commits immediately so the store
// can resume cleanly after a crash mid-run.
func (s *Store) UpsertTable(ctx context.Context, t Table) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tables (
			source_name, norm_name, target_name, source_row_count, target_row_count,
			source_pk, target_pk, deps, deps_order, cp_error, del_error, include, created, validated, empty_rows
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_name) DO UPDATE SET
			norm_name=excluded.norm_name, target_name=excluded.target_name,
			source_row_count=excluded.source_row_count, target_row_count=excluded.target_row_count,
			source_pk=excluded.source_pk, target_pk=excluded.target_pk,
			deps=excluded.deps, deps_order=excluded.deps_order,
			cp_error=excluded.cp_error, del_error=excluded.del_error,
			include=excluded.include, created=excluded.created, validated=excluded.validated,
			empty_rows=excluded.empty_rows
		`,
		t.SourceName, t.NormName, t.TargetName, t.SourceRowCount, t.TargetRowCount,
		t.SourcePK, t.TargetPK, t.Deps, t.DepsOrder, boolToInt(t.CPError), boolToInt(t.DelError),
		boolToInt(t.Include), boolToInt(t.Created), boolToInt(t.Validated), t.EmptyRows,
	)
	if err != nil {
		return fmt.Errorf("store: upsert table %s: %w", t.SourceName, err)
	}
	return nil
}

// UpsertColumn inserts or replaces a column row, keyed on TblColPos.
func (s *Store) UpsertColumn(ctx context.Context, c Column) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO columns (
			tbl_col_pos, source_table, source_column, norm_column, target_column,
			jdbc_data_type, source_data_type, target_data_type,
			source_column_size, target_column_size, fixed_size,
			source_column_nullable, target_column_nullable,
			source_column_position, target_column_position,
			source_column_autoincrement, target_column_autoincrement
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tbl_col_pos) DO UPDATE SET
			source_column=excluded.source_column, norm_column=excluded.norm_column,
			target_column=excluded.target_column, jdbc_data_type=excluded.jdbc_data_type,
			source_data_type=excluded.source_data_type, target_data_type=excluded.target_data_type,
			source_column_size=excluded.source_column_size, target_column_size=excluded.target_column_size,
			fixed_size=excluded.fixed_size,
			source_column_nullable=excluded.source_column_nullable, target_column_nullable=excluded.target_column_nullable,
			source_column_position=excluded.source_column_position, target_column_position=excluded.target_column_position,
			source_column_autoincrement=excluded.source_column_autoincrement,
			target_column_autoincrement=excluded.target_column_autoincrement
		`,
		c.TblColPos, c.SourceTable, c.SourceColumn, c.NormColumn, c.TargetColumn,
		c.JDBCDataType, c.SourceDataType, c.TargetDataType,
		c.SourceColumnSize, c.TargetColumnSize, boolToInt(c.FixedSize),
		boolToInt(c.SourceColumnNullable), boolToInt(c.TargetColumnNullable),
		c.SourceColumnPosition, c.TargetColumnPosition,
		c.SourceColumnAutoincrement, c.TargetColumnAutoincrement,
	)
	if err != nil {
		return fmt.Errorf("store: upsert column %s: %w", c.TblColPos, err)
	}
	return nil
}

// UpsertForeignKey inserts or replaces a foreign key row, keyed on SourceName.
func (s *Store) UpsertForeignKey(ctx context.Context, f ForeignKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO foreign_keys (
			source_name, target_name, tbl_col_pos, ref_tbl_col_pos,
			source_table, target_table, source_column, target_column,
			source_ref_table, target_ref_table, source_ref_column, target_ref_column
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_name) DO UPDATE SET
			target_name=excluded.target_name, tbl_col_pos=excluded.tbl_col_pos,
			ref_tbl_col_pos=excluded.ref_tbl_col_pos, source_table=excluded.source_table,
			target_table=excluded.target_table, source_column=excluded.source_column,
			target_column=excluded.target_column, source_ref_table=excluded.source_ref_table,
			target_ref_table=excluded.target_ref_table, source_ref_column=excluded.source_ref_column,
			target_ref_column=excluded.target_ref_column
		`,
		f.SourceName, f.TargetName, f.TblColPos, f.RefTblColPos,
		f.SourceTable, f.TargetTable, f.SourceColumn, f.TargetColumn,
		f.SourceRefTable, f.TargetRefTable, f.SourceRefCol, f.TargetRefCol,
	)
	if err != nil {
		return fmt.Errorf("store: upsert foreign key %s: %w", f.SourceName, err)
	}
	return nil
}

// UpdateRowCount sets a table's target_row_count and, when created is true,
// marks it created.
func (s *Store) UpdateRowCount(ctx context.Context, sourceName string, targetRowCount int64, created bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tables SET target_row_count = ?, created = ? WHERE source_name = ?`,
		targetRowCount, boolToInt(created), sourceName)
	if err != nil {
		return fmt.Errorf("store: update row count for %s: %w", sourceName, err)
	}
	return nil
}

// SetCopyError marks or clears a table's cp_error flag.
func (s *Store) SetCopyError(ctx context.Context, sourceName string, failed bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tables SET cp_error = ? WHERE source_name = ?`, boolToInt(failed), sourceName)
	if err != nil {
		return fmt.Errorf("store: set copy error for %s: %w", sourceName, err)
	}
	return nil
}

// SetCreated marks or clears a table's created flag, used once its DDL has
// been applied against the target, ahead of and independent from any row
// ever being copied into it.
func (s *Store) SetCreated(ctx context.Context, sourceName string, created bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tables SET created = ? WHERE source_name = ?`, boolToInt(created), sourceName)
	if err != nil {
		return fmt.Errorf("store: set created for %s: %w", sourceName, err)
	}
	return nil
}

// SetValidated marks or clears a table's validated flag.
func (s *Store) SetValidated(ctx context.Context, sourceName string, validated bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tables SET validated = ? WHERE source_name = ?`, boolToInt(validated), sourceName)
	if err != nil {
		return fmt.Errorf("store: set validated for %s: %w", sourceName, err)
	}
	return nil
}

// SetEmptyRows records the number of all-NULL rows excluded from the
// exported TSV for sourceName, so (TSV row count) + EmptyRows ==
// source_row_count.
func (s *Store) SetEmptyRows(ctx context.Context, sourceName string, emptyRows int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tables SET empty_rows = ? WHERE source_name = ?`, emptyRows, sourceName)
	if err != nil {
		return fmt.Errorf("store: set empty rows for %s: %w", sourceName, err)
	}
	return nil
}

// ListIncludedTables returns source_name for every table with rows and
// include=1, in deps_order.
func (s *Store) ListIncludedTables(ctx context.Context) ([]string, error) {
	return s.queryNames(ctx, `
		SELECT source_name FROM tables
		WHERE source_row_count > 0 AND include = 1
		ORDER BY deps_order ASC`)
}

// ListValidatedTables returns norm_name for every table with rows and
// validated=1, in deps_order.
func (s *Store) ListValidatedTables(ctx context.Context) ([]string, error) {
	return s.queryNames(ctx, `
		SELECT norm_name FROM tables
		WHERE source_row_count > 0 AND validated = 1
		ORDER BY deps_order ASC`)
}

// ListErrorTables returns source_name for every table with cp_error=1.
func (s *Store) ListErrorTables(ctx context.Context) ([]string, error) {
	return s.queryNames(ctx, `SELECT source_name FROM tables WHERE cp_error = 1`)
}

func (s *Store) queryNames(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableDiff reports included tables that have not yet been created in the
// target (i.e. missing relative to the source's plan).
func (s *Store) TableDiff(ctx context.Context) ([]string, error) {
	included, err := s.ListIncludedTables(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.queryNames(ctx, `SELECT source_name FROM tables WHERE created = 1`)
	if err != nil {
		return nil, err
	}
	createdSet := make(map[string]bool, len(created))
	for _, name := range created {
		createdSet[name] = true
	}

	var missing []string
	for _, name := range included {
		if !createdSet[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// DataDiff reports, for every included table whose source and target row
// counts disagree, the source row count.
func (s *Store) DataDiff(ctx context.Context) (map[string]int64, error) {
	included, err := s.ListIncludedTables(ctx)
	if err != nil {
		return nil, err
	}
	includedSet := make(map[string]bool, len(included))
	for _, name := range included {
		includedSet[name] = true
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name, source_row_count FROM tables
		WHERE source_row_count != target_row_count`)
	if err != nil {
		return nil, fmt.Errorf("store: data diff: %w", err)
	}
	defer rows.Close()

	diff := map[string]int64{}
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		if includedSet[name] {
			diff[name] = count
		}
	}
	return diff, rows.Err()
}

// Tables returns every included table with rows, in deps_order.
func (s *Store) Tables(ctx context.Context) ([]Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name, norm_name, target_name, source_row_count, target_row_count,
			source_pk, target_pk, deps, deps_order, cp_error, del_error, include, created, validated, empty_rows
		FROM tables
		WHERE source_row_count > 0 AND include = 1
		ORDER BY deps_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: tables: %w", err)
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		var t Table
		var cpErr, delErr, include, created, validated int
		if err := rows.Scan(&t.SourceName, &t.NormName, &t.TargetName, &t.SourceRowCount, &t.TargetRowCount,
			&t.SourcePK, &t.TargetPK, &t.Deps, &t.DepsOrder, &cpErr, &delErr, &include, &created, &validated, &t.EmptyRows); err != nil {
			return nil, fmt.Errorf("store: scan table: %w", err)
		}
		t.CPError, t.DelError, t.Include, t.Created, t.Validated = cpErr != 0, delErr != 0, include != 0, created != 0, validated != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// ColumnsForTable returns sourceTable's columns in source column position
// order.
func (s *Store) ColumnsForTable(ctx context.Context, sourceTable string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tbl_col_pos, source_table, source_column, norm_column, target_column,
			jdbc_data_type, source_data_type, target_data_type,
			source_column_size, target_column_size, fixed_size,
			source_column_nullable, target_column_nullable,
			source_column_position, target_column_position,
			source_column_autoincrement, target_column_autoincrement
		FROM columns WHERE source_table = ?
		ORDER BY source_column_position ASC`, sourceTable)
	if err != nil {
		return nil, fmt.Errorf("store: columns for %s: %w", sourceTable, err)
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		var c Column
		var fixed, srcNull, tgtNull int
		if err := rows.Scan(&c.TblColPos, &c.SourceTable, &c.SourceColumn, &c.NormColumn, &c.TargetColumn,
			&c.JDBCDataType, &c.SourceDataType, &c.TargetDataType,
			&c.SourceColumnSize, &c.TargetColumnSize, &fixed,
			&srcNull, &tgtNull, &c.SourceColumnPosition, &c.TargetColumnPosition,
			&c.SourceColumnAutoincrement, &c.TargetColumnAutoincrement); err != nil {
			return nil, fmt.Errorf("store: scan column: %w", err)
		}
		c.FixedSize, c.SourceColumnNullable, c.TargetColumnNullable = fixed != 0, srcNull != 0, tgtNull != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// ForeignKeysForTable returns sourceTable's outbound foreign keys.
func (s *Store) ForeignKeysForTable(ctx context.Context, sourceTable string) ([]ForeignKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name, target_name, tbl_col_pos, ref_tbl_col_pos,
			source_table, target_table, source_column, target_column,
			source_ref_table, target_ref_table, source_ref_column, target_ref_column
		FROM foreign_keys WHERE source_table = ?`, sourceTable)
	if err != nil {
		return nil, fmt.Errorf("store: foreign keys for %s: %w", sourceTable, err)
	}
	defer rows.Close()

	var out []ForeignKey
	for rows.Next() {
		var f ForeignKey
		if err := rows.Scan(&f.SourceName, &f.TargetName, &f.TblColPos, &f.RefTblColPos,
			&f.SourceTable, &f.TargetTable, &f.SourceColumn, &f.TargetColumn,
			&f.SourceRefTable, &f.TargetRefTable, &f.SourceRefCol, &f.TargetRefCol); err != nil {
			return nil, fmt.Errorf("store: scan foreign key: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetDepsOrder records a table's 1-indexed topological position, as
// produced by the dependency resolver.
func (s *Store) SetDepsOrder(ctx context.Context, sourceName string, order int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tables SET deps_order = ? WHERE source_name = ?`, order, sourceName)
	if err != nil {
		return fmt.Errorf("store: set deps order for %s: %w", sourceName, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
