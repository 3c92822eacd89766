package tsvexport

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tablekeep/internal/project"
	"tablekeep/internal/sqltype"
)

// DefaultBatchThreshold is the number of dependency-closed, unvalidated
// tables that accumulate before a validation batch runs, grounded on the
// original engine's archive loop's idx > 10 check.
const DefaultBatchThreshold = 10

// lobThreshold is the declared size above which a CLOB/LONGVARCHAR-family
// column is treated as a large object and spilled to a sidecar file instead
// of inlined.
const lobThreshold = 4000

// ColumnSpec is one exported column.
type ColumnSpec struct {
	SourceColumn string
	TargetColumn string
	JDBCType     int
	// MaxLength is the declared size for character/binary types, 0 when
	// unknown or unbounded (a CLOB/LONGVARCHAR-family column of size 0 is
	// treated as LOB-sized).
	MaxLength int
}

// IsBlobLike reports whether this column's values should be spilled to a
// sidecar file under documents/ instead of inlined in the TSV cell.
func (c ColumnSpec) IsBlobLike() bool {
	switch sqltype.JDBCType(c.JDBCType) {
	case sqltype.Blob, sqltype.LongVarBinary, sqltype.VarBinary, sqltype.Binary:
		return true
	case sqltype.Clob, sqltype.NClob, sqltype.LongVarChar, sqltype.LongNVarChar, sqltype.SQLXML:
		return c.MaxLength == 0 || c.MaxLength > lobThreshold
	default:
		return false
	}
}

// isTextLike reports whether this column is a candidate for the NUL-byte
// pre-clean UPDATE.
func (c ColumnSpec) isTextLike() bool {
	switch sqltype.JDBCType(c.JDBCType) {
	case sqltype.Char, sqltype.VarChar, sqltype.NChar, sqltype.NVarChar,
		sqltype.LongVarChar, sqltype.LongNVarChar, sqltype.Clob, sqltype.NClob:
		return true
	default:
		return false
	}
}

// TableSpec is one table's export instructions.
type TableSpec struct {
	SourceTable  string
	TargetTable  string // normalized name; used for the TSV filename and sidecar prefix
	RowIDColumn  string // source column read back as the sidecar filename's rowid
	Columns      []ColumnSpec
	SourceSchema string // optional schema/owner qualifier for SourceTable
}

// Options configures an export run.
type Options struct {
	// StripNULBytes issues a pre-clean UPDATE removing embedded NUL bytes
	// from every text column before export, matching the original engine's
	// unconditional mutation. Made an explicit flag here: it defaults to
	// true only when SourceDialect is "sqlite", since mutating a
	// non-SQLite production source as a side effect of an export is a
	// surprise this module declines to impose silently (see DESIGN.md).
	StripNULBytes bool
	// SourceDialect selects identifier quoting and the pre-clean
	// expression's syntax ("mysql"/"mariadb"/"tidb" use backticks,
	// everything else ANSI double-quotes).
	SourceDialect string
	// BatchThreshold is not read by the Exporter; validation batches are
	// sized by the threshold passed to NewBatchTracker.
	BatchThreshold int
}

// Result reports what ExportTable wrote.
type Result struct {
	RowsWritten int64
	EmptyRows   int64
	Documents   []string
}

// Exporter streams tables from a source connection to TSV files under a
// project Layout, one table at a time, in the dependency order callers
// supply.
type Exporter struct {
	db     *sql.DB
	layout project.Layout
	opts   Options
}

// NewExporter builds an Exporter over db, writing under layout.
func NewExporter(db *sql.DB, layout project.Layout, opts Options) *Exporter {
	return &Exporter{db: db, layout: layout, opts: opts}
}

func (e *Exporter) quote(name string) string {
	if e.opts.SourceDialect == "mysql" || e.opts.SourceDialect == "mariadb" || e.opts.SourceDialect == "tidb" {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// preClean strips embedded NUL bytes from every text-like column of spec,
// committed as a single UPDATE per column.
func (e *Exporter) preClean(ctx context.Context, spec TableSpec) error {
	if !e.opts.StripNULBytes {
		return nil
	}
	table := e.quote(spec.SourceTable)
	for _, c := range spec.Columns {
		if !c.isTextLike() {
			continue
		}
		col := e.quote(c.SourceColumn)
		stmt := fmt.Sprintf(
			`UPDATE %s SET %s = REPLACE(%s, CHAR(0), '') WHERE %s LIKE '%%' || CHAR(0) || '%%'`,
			table, col, col, col)
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("tsvexport: pre-clean %s.%s: %w", spec.SourceTable, c.SourceColumn, err)
		}
	}
	return nil
}

// ExportTable streams spec's rows to layout.TSVPath(spec.TargetTable),
// spilling blob/LOB columns to layout.DocumentPath sidecar files, and
// reports the row and empty-row counts for store reconciliation.
func (e *Exporter) ExportTable(ctx context.Context, spec TableSpec) (Result, error) {
	if err := e.preClean(ctx, spec); err != nil {
		return Result{}, err
	}

	query, rowidIdx := e.buildQuery(spec)

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("tsvexport: query %s: %w", spec.SourceTable, err)
	}
	defer rows.Close()

	if err := os.MkdirAll(e.layout.DataDir(), 0o755); err != nil {
		return Result{}, fmt.Errorf("tsvexport: mkdir: %w", err)
	}
	if err := os.MkdirAll(e.layout.DocumentsDir(), 0o755); err != nil {
		return Result{}, fmt.Errorf("tsvexport: mkdir: %w", err)
	}

	f, err := os.Create(e.layout.TSVPath(spec.TargetTable))
	if err != nil {
		return Result{}, fmt.Errorf("tsvexport: create %s: %w", spec.TargetTable, err)
	}
	defer f.Close()

	tw := NewWriter(f)
	header := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		header[i] = c.TargetColumn
	}
	if err := tw.WriteRow(header); err != nil {
		return Result{}, fmt.Errorf("tsvexport: write header for %s: %w", spec.TargetTable, err)
	}

	colCount := len(spec.Columns)
	if rowidIdx >= colCount {
		colCount++
	}
	values := make([]any, colCount)
	ptrs := make([]any, colCount)
	for i := range values {
		ptrs[i] = &values[i]
	}

	var result Result
	var fallbackRowID int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return result, fmt.Errorf("tsvexport: scan %s: %w", spec.SourceTable, err)
		}

		if allNull(values[:len(spec.Columns)]) {
			result.EmptyRows++
			continue
		}

		fallbackRowID++
		rowid := rowIDOf(values, rowidIdx, fallbackRowID)

		cells := make([]string, len(spec.Columns))
		for i, c := range spec.Columns {
			v := values[i]
			if c.IsBlobLike() {
				cell, err := e.spillDocument(spec.TargetTable, c.TargetColumn, rowid, v)
				if err != nil {
					return result, err
				}
				if cell != "" {
					result.Documents = append(result.Documents, cell)
				}
				cells[i] = cell
				continue
			}
			cells[i] = FormatValue(v)
		}

		if err := tw.WriteRow(cells); err != nil {
			return result, fmt.Errorf("tsvexport: write row for %s: %w", spec.TargetTable, err)
		}
		result.RowsWritten++
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("tsvexport: iterate %s: %w", spec.SourceTable, err)
	}
	if err := tw.Flush(); err != nil {
		return result, fmt.Errorf("tsvexport: flush %s: %w", spec.TargetTable, err)
	}

	return result, nil
}

// buildQuery returns the source SELECT for spec, plus the index of the
// row-id column within the returned row (or -1 when spec has none — a
// monotonic counter is used as the sidecar rowid instead).
func (e *Exporter) buildQuery(spec TableSpec) (string, int) {
	table := e.quote(spec.SourceTable)
	if spec.SourceSchema != "" {
		table = e.quote(spec.SourceSchema) + "." + table
	}

	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = e.quote(c.SourceColumn)
	}

	rowidIdx := -1
	if spec.RowIDColumn != "" {
		for i, c := range spec.Columns {
			if c.SourceColumn == spec.RowIDColumn {
				rowidIdx = i
				break
			}
		}
		if rowidIdx == -1 {
			cols = append(cols, e.quote(spec.RowIDColumn))
			rowidIdx = len(cols) - 1
		}
	}

	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table), rowidIdx
}

// allNull reports whether every exported (non-rowid) column of a row is
// NULL; such rows are excluded from the TSV and counted into empty_rows.
func allNull(values []any) bool {
	for _, v := range values {
		if v != nil {
			if b, ok := v.([]byte); ok && b == nil {
				continue
			}
			return false
		}
	}
	return true
}

func rowIDOf(values []any, rowidIdx int, fallback int64) int64 {
	if rowidIdx < 0 || rowidIdx >= len(values) {
		return fallback
	}
	switch v := values[rowidIdx].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case []byte:
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// spillDocument writes v's bytes to the sidecar document file for
// (table, column, rowid) and returns the bare filename the TSV cell should
// carry. A NULL or empty value produces an empty cell and no file.
func (e *Exporter) spillDocument(table, column string, rowid int64, v any) (string, error) {
	var data []byte
	switch val := v.(type) {
	case nil:
		return "", nil
	case []byte:
		if len(val) == 0 {
			return "", nil
		}
		data = val
	case string:
		if val == "" {
			return "", nil
		}
		data = []byte(val)
	default:
		return "", nil
	}

	path := e.layout.DocumentPath(table, column, rowid)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("tsvexport: write document %s: %w", path, err)
	}
	return filepath.Base(path), nil
}
