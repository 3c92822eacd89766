// Package sqlite reflects a SQLite catalog via sqlite_master and its PRAGMA
// introspection statements (table_info, foreign_key_list) — SQLite has no
// information_schema, so these are the only portable way to read a live
// connection's schema back out.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"tablekeep/internal/core"
	"tablekeep/internal/reflect"
	"tablekeep/internal/sqltype"
)

func init() {
	reflect.Register(core.DialectSQLite, New)
}

type reflector struct{}

// New returns the Reflector for SQLite.
func New() reflect.Reflector { return &reflector{} }

func (reflector) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (reflector) Count(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var n int64
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quote(table))
	err := db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

func (reflector) PrimaryKey(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pkCol struct {
		name string
		seq  int
	}
	var pks []pkCol
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			pks = append(pks, pkCol{name: name, seq: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// table_info's pk column is the 1-indexed position within the key, not
	// declaration order, so sort by it to get key order.
	for i := 1; i < len(pks); i++ {
		for j := i; j > 0 && pks[j].seq < pks[j-1].seq; j-- {
			pks[j], pks[j-1] = pks[j-1], pks[j]
		}
	}

	cols := make([]string, len(pks))
	for i, p := range pks {
		cols[i] = p.name
	}
	return cols, nil
}

func (reflector) Columns(ctx context.Context, db *sql.DB, table string) ([]reflect.ColumnMeta, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []reflect.ColumnMeta
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}

		jdbcType, size := sqliteToJDBC(colType)
		cols = append(cols, reflect.ColumnMeta{
			Name:     name,
			JDBCType: jdbcType,
			TypeRaw:  colType,
			Size:     size,
			Nullable: notNull == 0,
			Default:  dflt.String,
			Position: cid + 1,
		})
	}
	return cols, rows.Err()
}

func (reflector) ForeignKeys(ctx context.Context, db *sql.DB, table string) ([]reflect.ForeignKeyMeta, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []reflect.ForeignKeyMeta
	for rows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fks = append(fks, reflect.ForeignKeyMeta{Column: from, RefTable: refTable, RefColumn: to})
	}
	return fks, rows.Err()
}

// MaxLength measures a text column stored in a BLOB-affinity column, the
// SQLite text-in-BLOB case the Reflector's oversize check needs to cast for.
func (reflector) MaxLength(ctx context.Context, db *sql.DB, table, column string) (int, error) {
	q := fmt.Sprintf(`SELECT MAX(LENGTH(CAST(%s AS TEXT))) FROM %s`, quote(column), quote(table))
	var n sql.NullInt64
	if err := db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return int(n.Int64), nil
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// sqliteToJDBC maps a SQLite declared type (loose, as SQLite applies only
// type affinity, not enforcement) onto the abstract JDBC registry plus any
// embedded size, e.g. "VARCHAR(255)" -> (VarChar, 255).
func sqliteToJDBC(declared string) (sqltype.JDBCType, int) {
	upper := strings.ToUpper(strings.TrimSpace(declared))
	size := 0
	if open := strings.Index(upper, "("); open >= 0 {
		if close := strings.Index(upper[open:], ")"); close >= 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(upper[open+1 : open+close])); err == nil {
				size = n
			}
		}
		upper = upper[:open]
	}
	upper = strings.TrimSpace(upper)

	switch {
	case upper == "":
		return sqltype.VarChar, size
	case strings.Contains(upper, "INT"):
		return sqltype.Integer, size
	case strings.Contains(upper, "CHAR") || strings.Contains(upper, "CLOB") || strings.Contains(upper, "TEXT"):
		return sqltype.VarChar, size
	case strings.Contains(upper, "BLOB"):
		return sqltype.Blob, size
	case strings.Contains(upper, "REAL") || strings.Contains(upper, "FLOA") || strings.Contains(upper, "DOUB"):
		return sqltype.Double, size
	case strings.Contains(upper, "NUMERIC") || strings.Contains(upper, "DECIMAL"):
		return sqltype.Decimal, size
	case strings.Contains(upper, "BOOL"):
		return sqltype.Boolean, size
	case strings.Contains(upper, "DATE"):
		return sqltype.Date, size
	default:
		return sqltype.VarChar, size
	}
}
