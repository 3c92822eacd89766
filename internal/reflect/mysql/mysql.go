// Package mysql reflects MySQL, MariaDB, and TiDB catalogs via
// information_schema, adapted from the original engine's MySQL introspection
// queries (table/column/index listing against information_schema.tables,
// .columns, and .statistics) but wired to Metadata Reflector semantics
// instead of building a core.Database tree.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tablekeep/internal/core"
	"tablekeep/internal/reflect"
	"tablekeep/internal/sqltype"
)

func init() {
	reflect.Register(core.DialectMySQL, New)
	reflect.Register(core.DialectMariaDB, New)
	reflect.Register(core.DialectTiDB, New)
}

type reflector struct{}

// New returns the Reflector for MySQL-family dialects.
func New() reflect.Reflector { return &reflector{} }

func (reflector) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name
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
	q := fmt.Sprintf("SELECT COUNT(*) FROM `%s`", escapeBacktick(table))
	err := db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

func (reflector) PrimaryKey(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (reflector) Columns(ctx context.Context, db *sql.DB, table string) ([]reflect.ColumnMeta, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			column_name, data_type, column_type, is_nullable, column_default, extra,
			ordinal_position, character_maximum_length, numeric_precision
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []reflect.ColumnMeta
	for rows.Next() {
		var name, dataType, columnType, nullable, extra string
		var defaultVal sql.NullString
		var position int
		var charLen, numPrecision sql.NullInt64
		if err := rows.Scan(&name, &dataType, &columnType, &nullable, &defaultVal, &extra, &position, &charLen, &numPrecision); err != nil {
			return nil, err
		}

		size := 0
		if charLen.Valid {
			size = int(charLen.Int64)
		} else if numPrecision.Valid {
			size = int(numPrecision.Int64)
		}

		cols = append(cols, reflect.ColumnMeta{
			Name:          name,
			JDBCType:      mysqlToJDBC(dataType),
			TypeRaw:       columnType,
			Size:          size,
			Nullable:      nullable == "YES",
			AutoIncrement: strings.Contains(extra, "auto_increment"),
			Default:       defaultVal.String,
			Position:      position,
		})
	}
	return cols, rows.Err()
}

func (reflector) ForeignKeys(ctx context.Context, db *sql.DB, table string) ([]reflect.ForeignKeyMeta, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []reflect.ForeignKeyMeta
	for rows.Next() {
		var col, refTable, refCol string
		if err := rows.Scan(&col, &refTable, &refCol); err != nil {
			return nil, err
		}
		fks = append(fks, reflect.ForeignKeyMeta{Column: col, RefTable: refTable, RefColumn: refCol})
	}
	return fks, rows.Err()
}

func (reflector) MaxLength(ctx context.Context, db *sql.DB, table, column string) (int, error) {
	q := fmt.Sprintf("SELECT MAX(LENGTH(`%s`)) FROM `%s`", escapeBacktick(column), escapeBacktick(table))
	var n sql.NullInt64
	if err := db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return int(n.Int64), nil
}

func escapeBacktick(name string) string {
	return strings.ReplaceAll(name, "`", "``")
}

// mysqlToJDBC maps information_schema.columns.data_type onto the abstract
// JDBC type registry, matching the subset of types the original engine's
// column introspection distinguished.
func mysqlToJDBC(dataType string) sqltype.JDBCType {
	switch strings.ToLower(dataType) {
	case "tinyint":
		return sqltype.TinyInt
	case "smallint":
		return sqltype.SmallInt
	case "mediumint", "int", "integer":
		return sqltype.Integer
	case "bigint":
		return sqltype.BigInt
	case "decimal":
		return sqltype.Decimal
	case "numeric":
		return sqltype.Numeric
	case "float":
		return sqltype.Float
	case "double", "double precision":
		return sqltype.Double
	case "bit":
		return sqltype.Bit
	case "char":
		return sqltype.Char
	case "varchar":
		return sqltype.VarChar
	case "tinytext", "text", "mediumtext":
		return sqltype.LongVarChar
	case "longtext":
		return sqltype.LongVarChar
	case "binary":
		return sqltype.Binary
	case "varbinary":
		return sqltype.VarBinary
	case "tinyblob", "blob", "mediumblob", "longblob":
		return sqltype.Blob
	case "date":
		return sqltype.Date
	case "time":
		return sqltype.Time
	case "datetime", "timestamp":
		return sqltype.Timestamp
	default:
		return sqltype.VarChar
	}
}
