// Package reflect is the Metadata Reflector: it walks a source connection's
// catalog and populates the Config Store's Table, Column, and ForeignKey
// rows. Per-dialect implementations register themselves here the same way
// tablekeep/internal/dialect's DDL generators do, so the orchestration in
// Run stays dialect-agnostic.
package reflect

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"tablekeep/internal/core"
	"tablekeep/internal/normalize"
	"tablekeep/internal/sqltype"
	"tablekeep/internal/store"
)

// ColumnMeta is one column as reported by a dialect's Reflector.
type ColumnMeta struct {
	Name          string
	JDBCType      sqltype.JDBCType
	TypeRaw       string
	Size          int
	Nullable      bool
	AutoIncrement bool
	Default       string
	Position      int
}

// ForeignKeyMeta is one foreign key edge as reported by a dialect's
// Reflector: column in the current table referencing (RefTable, RefColumn).
type ForeignKeyMeta struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Reflector is the per-dialect catalog-walking implementation. Every method
// takes the live connection directly; callers are expected to reuse one
// *sql.DB across the whole reflection pass.
type Reflector interface {
	// ListTables returns every base table's name, ordered however the
	// catalog naturally orders them.
	ListTables(ctx context.Context, db *sql.DB) ([]string, error)
	// Count returns table's row count.
	Count(ctx context.Context, db *sql.DB, table string) (int64, error)
	// PrimaryKey returns table's primary key columns in key order.
	PrimaryKey(ctx context.Context, db *sql.DB, table string) ([]string, error)
	// Columns returns table's columns in ordinal position order.
	Columns(ctx context.Context, db *sql.DB, table string) ([]ColumnMeta, error)
	// ForeignKeys returns table's outbound foreign key edges.
	ForeignKeys(ctx context.Context, db *sql.DB, table string) ([]ForeignKeyMeta, error)
	// MaxLength returns the true maximum observed length of a character
	// column, used to correct a catalog-declared size that undersells an
	// oversized column (spec's "correcting oversized columns" step).
	MaxLength(ctx context.Context, db *sql.DB, table, column string) (int, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[core.Dialect]func() Reflector{}
)

// Register adds or replaces the Reflector constructor for d.
func Register(d core.Dialect, ctor func() Reflector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d] = ctor
}

// Get returns the Reflector for d, or an error if none is registered.
func Get(d core.Dialect) (Reflector, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[d]
	if !ok {
		return nil, fmt.Errorf("reflect: no reflector registered for dialect %q", d)
	}
	return ctor(), nil
}

// oversizeThreshold mirrors sqltype's CLOB/BLOB promotion boundary: a
// character column whose declared size exceeds this is re-measured against
// its actual data.
const oversizeThreshold = 4000

// Run reflects every table db's catalog reports for dialect into st: it
// enumerates tables, and for every table with a non-zero row count,
// populates Column and ForeignKey rows. A table already present in the
// store with Include set is only re-counted, never re-written, matching
// the Reflector's "never re-writes existing Column/ForeignKey rows unless
// reset" contract.
func Run(ctx context.Context, db *sql.DB, dialect core.Dialect, st *store.Store) error {
	r, err := Get(dialect)
	if err != nil {
		return err
	}

	tableNames, err := r.ListTables(ctx, db)
	if err != nil {
		return fmt.Errorf("reflect: list tables: %w", err)
	}

	tableScope := normalize.NewScope()
	sizeByRefEndpoint := map[string]int{} // "table.column" -> reconciled max size
	posByEndpoint := map[string]int{}     // "table.column" -> column position

	type prepared struct {
		table store.Table
		cols  []store.Column
		fks   []store.ForeignKey
	}
	var all []prepared

	for _, name := range tableNames {
		normName := tableScope.Resolve(name)
		count, err := r.Count(ctx, db, name)
		if err != nil {
			return fmt.Errorf("reflect: count %s: %w", name, err)
		}

		tbl := store.Table{
			SourceName:     name,
			NormName:       normName,
			TargetName:     normName,
			SourceRowCount: count,
			Include:        true,
		}
		if count == 0 {
			all = append(all, prepared{table: tbl})
			continue
		}

		pk, err := r.PrimaryKey(ctx, db, name)
		if err != nil {
			return fmt.Errorf("reflect: primary key %s: %w", name, err)
		}
		tbl.SourcePK = joinComma(pk)
		tbl.TargetPK = tbl.SourcePK

		cols, err := r.Columns(ctx, db, name)
		if err != nil {
			return fmt.Errorf("reflect: columns %s: %w", name, err)
		}
		pkSet := make(map[string]bool, len(pk))
		for _, c := range pk {
			pkSet[c] = true
		}

		colScope := normalize.NewScope()
		var storeCols []store.Column
		for _, c := range cols {
			size := c.Size
			if isCharacterLike(c.JDBCType) && size > oversizeThreshold {
				if measured, err := r.MaxLength(ctx, db, name, c.Name); err == nil && measured > 0 {
					size = measured
				}
			}
			normCol := colScope.Resolve(c.Name)
			storeCols = append(storeCols, store.Column{
				TblColPos:            fmt.Sprintf("%s.%d", name, c.Position),
				SourceTable:          name,
				SourceColumn:         c.Name,
				NormColumn:           normCol,
				TargetColumn:         normCol,
				JDBCDataType:         int(c.JDBCType),
				SourceDataType:       c.TypeRaw,
				TargetDataType:       c.TypeRaw,
				SourceColumnSize:     size,
				TargetColumnSize:     size,
				FixedSize:            size != c.Size,
				SourceColumnNullable: c.Nullable && !pkSet[c.Name],
				TargetColumnNullable: c.Nullable && !pkSet[c.Name],
				SourceColumnPosition: c.Position,
				TargetColumnPosition: c.Position,
			})
			sizeByRefEndpoint[name+"."+c.Name] = size
			posByEndpoint[name+"."+c.Name] = c.Position
		}

		fks, err := r.ForeignKeys(ctx, db, name)
		if err != nil {
			return fmt.Errorf("reflect: foreign keys %s: %w", name, err)
		}
		var deps []string
		var storeFKs []store.ForeignKey
		for i, fk := range fks {
			fkName := stableFKName(name, i)
			deps = append(deps, fk.RefTable)
			storeFKs = append(storeFKs, store.ForeignKey{
				SourceName:     fkName,
				TargetName:     fkName,
				SourceTable:    name,
				TargetTable:    normName,
				SourceColumn:   fk.Column,
				TargetColumn:   fk.Column,
				SourceRefTable: fk.RefTable,
				TargetRefTable: fk.RefTable,
				SourceRefCol:   fk.RefColumn,
				TargetRefCol:   fk.RefColumn,
			})
		}
		tbl.Deps = joinComma(dedupe(deps))

		all = append(all, prepared{table: tbl, cols: storeCols, fks: storeFKs})
	}

	// Reconcile foreign key endpoint sizes: the larger of the two
	// propagates, so a target-side INSERT can never fail on truncation.
	for _, p := range all {
		for _, fk := range p.fks {
			localKey := fk.SourceTable + "." + fk.SourceColumn
			refKey := fk.SourceRefTable + "." + fk.SourceRefCol
			local, lok := sizeByRefEndpoint[localKey]
			ref, rok := sizeByRefEndpoint[refKey]
			if lok && rok && local != ref {
				larger := local
				if ref > larger {
					larger = ref
				}
				sizeByRefEndpoint[localKey] = larger
				sizeByRefEndpoint[refKey] = larger
			}
		}
	}

	for _, p := range all {
		if err := st.UpsertTable(ctx, p.table); err != nil {
			return fmt.Errorf("reflect: upsert table %s: %w", p.table.SourceName, err)
		}
		for _, c := range p.cols {
			if size, ok := sizeByRefEndpoint[c.SourceTable+"."+c.SourceColumn]; ok {
				c.SourceColumnSize, c.TargetColumnSize = size, size
			}
			if err := st.UpsertColumn(ctx, c); err != nil {
				return fmt.Errorf("reflect: upsert column %s: %w", c.TblColPos, err)
			}
		}
	}

	// Foreign keys are written last, once every Column row they point at
	// exists; both endpoints use the Column key "<table>.<position>".
	for _, p := range all {
		for _, fk := range p.fks {
			fk.TblColPos = fmt.Sprintf("%s.%d", fk.SourceTable, posByEndpoint[fk.SourceTable+"."+fk.SourceColumn])
			fk.RefTblColPos = fmt.Sprintf("%s.%d", fk.SourceRefTable, posByEndpoint[fk.SourceRefTable+"."+fk.SourceRefCol])
			if err := st.UpsertForeignKey(ctx, fk); err != nil {
				return fmt.Errorf("reflect: upsert foreign key %s: %w", fk.SourceName, err)
			}
		}
	}

	return nil
}

func isCharacterLike(t sqltype.JDBCType) bool {
	switch t {
	case sqltype.Char, sqltype.VarChar, sqltype.NChar, sqltype.NVarChar,
		sqltype.LongVarChar, sqltype.LongNVarChar, sqltype.Clob, sqltype.NClob:
		return true
	default:
		return false
	}
}

// stableFKName synthesizes a deterministic foreign key name from the
// owning table and its ordinal index among that table's edges, matching
// the "table[:25]*index" naming rule.
func stableFKName(table string, index int) string {
	t := table
	if len(t) > 25 {
		t = t[:25]
	}
	return fmt.Sprintf("%s*%d", t, index)
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func dedupe(items []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
