package copyexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tablekeep/internal/copyplan"
	"tablekeep/internal/store"
)

// DefaultBatchSize is the number of rows copied and committed per batch
// when Options.BatchSize is not set.
const DefaultBatchSize = 100000

func defaultQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Executor copies tables described by a copyplan.Plan from source to
// target, verifying row counts and recording progress in a Store so a
// crashed run can resume without recopying finished tables.
type Executor struct {
	source *sql.DB
	target *sql.DB
	store  *store.Store
	opts   Options
}

// NewExecutor builds an Executor over the given connections and store.
func NewExecutor(source, target *sql.DB, st *store.Store, opts Options) *Executor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.QuoteIdentifier == nil {
		opts.QuoteIdentifier = defaultQuote
	}
	return &Executor{source: source, target: target, store: st, opts: opts}
}

// TableResult is the outcome of copying one table.
type TableResult struct {
	SourceTable string
	TargetTable string
	RowsCopied  int64
	Err         error
}

// Run copies every statement in plan, in order, verifying row counts after
// each table and recording progress in the store. It returns one
// TableResult per attempted table; when opts.Stop is set and a table fails,
// Run stops before attempting the remaining statements.
func (e *Executor) Run(ctx context.Context, plan *copyplan.Plan) ([]TableResult, error) {
	for _, stmt := range plan.PreStatements {
		if _, err := e.target.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("copyexec: pre-statement %q: %w", stmt, err)
		}
	}

	var results []TableResult
	for _, stmt := range plan.Statements {
		copied, err := e.copyTable(ctx, stmt)
		result := TableResult{SourceTable: stmt.SourceTable, TargetTable: stmt.TargetTable, RowsCopied: copied, Err: err}
		results = append(results, result)

		if serr := e.store.SetCopyError(ctx, stmt.SourceTable, err != nil); serr != nil {
			return results, serr
		}
		if err != nil && e.opts.Stop {
			return results, nil
		}
	}
	return results, nil
}

// copyTable streams rows from the source query into the target table,
// truncating the target and resetting its row count on any mismatch or
// execution error so a failed table never leaves partially-committed
// batches behind (spec.md §4.8 step 3).
func (e *Executor) copyTable(ctx context.Context, stmt copyplan.Statement) (int64, error) {
	copied, err := e.doCopyTable(ctx, stmt)
	if err == nil {
		return copied, nil
	}

	if terr := e.truncate(ctx, stmt.TargetTable); terr != nil {
		return copied, fmt.Errorf("%w (truncate after failure also failed: %v)", err, terr)
	}
	if serr := e.store.UpdateRowCount(ctx, stmt.SourceTable, 0, false); serr != nil {
		return 0, fmt.Errorf("%w (resetting row count after truncate also failed: %v)", err, serr)
	}
	return 0, err
}

// doCopyTable streams rows from the source query into the target table in
// batches, then verifies the copied count matches what the source query
// actually produced.
func (e *Executor) doCopyTable(ctx context.Context, stmt copyplan.Statement) (int64, error) {
	rows, err := e.source.QueryContext(ctx, stmt.SourceQuery)
	if err != nil {
		return 0, fmt.Errorf("copyexec: query %s: %w", stmt.SourceTable, err)
	}
	defer rows.Close()

	cols := make([]string, len(stmt.Columns))
	for i, c := range stmt.Columns {
		cols[i] = c.TargetColumn
	}
	insertSQL := e.buildInsert(stmt.TargetTable, cols)

	tx, insertStmt, err := e.beginBatch(ctx, insertSQL)
	if err != nil {
		return 0, err
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var copied int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			insertStmt.Close()
			tx.Rollback()
			return copied, fmt.Errorf("copyexec: scan %s: %w", stmt.SourceTable, err)
		}
		if _, err := insertStmt.ExecContext(ctx, values...); err != nil {
			insertStmt.Close()
			tx.Rollback()
			return copied, fmt.Errorf("copyexec: insert into %s: %w", stmt.TargetTable, err)
		}
		copied++

		if copied%int64(e.opts.BatchSize) == 0 {
			insertStmt.Close()
			if err := tx.Commit(); err != nil {
				return copied, fmt.Errorf("copyexec: commit batch for %s: %w", stmt.TargetTable, err)
			}
			tx, insertStmt, err = e.beginBatch(ctx, insertSQL)
			if err != nil {
				return copied, err
			}
		}
	}
	insertStmt.Close()
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return copied, fmt.Errorf("copyexec: iterate %s: %w", stmt.SourceTable, err)
	}
	if err := tx.Commit(); err != nil {
		return copied, fmt.Errorf("copyexec: commit %s: %w", stmt.TargetTable, err)
	}

	targetCount, err := e.countRows(ctx, stmt.TargetTable)
	if err != nil {
		return copied, err
	}
	if targetCount != copied {
		return copied, fmt.Errorf("copyexec: %s: copied %d rows but target holds %d", stmt.TargetTable, copied, targetCount)
	}

	if err := e.store.UpdateRowCount(ctx, stmt.SourceTable, copied, true); err != nil {
		return copied, err
	}

	if e.opts.Test {
		if err := e.truncate(ctx, stmt.TargetTable); err != nil {
			return copied, fmt.Errorf("copyexec: test-mode truncate %s: %w", stmt.TargetTable, err)
		}
	}

	return copied, nil
}

func (e *Executor) beginBatch(ctx context.Context, insertSQL string) (*sql.Tx, *sql.Stmt, error) {
	tx, err := e.target.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("copyexec: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("copyexec: prepare %q: %w", insertSQL, err)
	}
	return tx, stmt, nil
}

func (e *Executor) buildInsert(table string, cols []string) string {
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = e.opts.QuoteIdentifier(c)
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		e.opts.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

func (e *Executor) countRows(ctx context.Context, table string) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + e.opts.QuoteIdentifier(table)
	if err := e.target.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("copyexec: count %s: %w", table, err)
	}
	return n, nil
}

func (e *Executor) truncate(ctx context.Context, table string) error {
	_, err := e.target.ExecContext(ctx, "DELETE FROM "+e.opts.QuoteIdentifier(table))
	return err
}

// TruncateDependents deletes all rows from every table in dependents,
// called after a table fails mid-run so that rows already copied into
// tables depending on the failed one (via foreign keys) don't leave the
// target in a half-populated, referentially inconsistent state.
func (e *Executor) TruncateDependents(ctx context.Context, dependents []string) error {
	for _, table := range dependents {
		if err := e.truncate(ctx, table); err != nil {
			return fmt.Errorf("copyexec: truncate dependent %s: %w", table, err)
		}
	}
	return nil
}
