// Package postgresql reflects a PostgreSQL catalog via information_schema,
// mirroring the MySQL reflector's shape but joining table_constraints for
// primary keys and foreign keys (Postgres
// exposes key_column_usage too, but constraint_type has to be joined in from
// table_constraints to tell primary keys from foreign keys apart).
package postgresql

import (
	"context"
	"database/sql"
	"strings"

	"tablekeep/internal/core"
	"tablekeep/internal/reflect"
	"tablekeep/internal/sqltype"
)

func init() {
	reflect.Register(core.DialectPostgreSQL, New)
}

type reflector struct{}

// New returns the Reflector for PostgreSQL.
func New() reflect.Reflector { return &reflector{} }

func (reflector) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
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
	q := `SELECT COUNT(*) FROM ` + quote(table)
	err := db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

func (reflector) PrimaryKey(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE tc.table_schema = current_schema()
			AND tc.table_name = $1
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
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
			column_name, data_type, udt_name, is_nullable, column_default,
			ordinal_position, character_maximum_length, numeric_precision
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []reflect.ColumnMeta
	for rows.Next() {
		var name, dataType, udtName, nullable string
		var defaultVal sql.NullString
		var position int
		var charLen, numPrecision sql.NullInt64
		if err := rows.Scan(&name, &dataType, &udtName, &nullable, &defaultVal, &position, &charLen, &numPrecision); err != nil {
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
			JDBCType:      postgresToJDBC(dataType, udtName),
			TypeRaw:       dataType,
			Size:          size,
			Nullable:      nullable == "YES",
			AutoIncrement: defaultVal.Valid && strings.HasPrefix(defaultVal.String, "nextval("),
			Default:       defaultVal.String,
			Position:      position,
		})
	}
	return cols, rows.Err()
}

func (reflector) ForeignKeys(ctx context.Context, db *sql.DB, table string) ([]reflect.ForeignKeyMeta, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.table_schema = current_schema()
			AND tc.table_name = $1
			AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY kcu.ordinal_position
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
	q := `SELECT MAX(LENGTH(` + quote(column) + `::text)) FROM ` + quote(table)
	var n sql.NullInt64
	if err := db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return int(n.Int64), nil
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// postgresToJDBC maps information_schema.columns.data_type (falling back to
// udt_name for the types Postgres reports as "USER-DEFINED" or "ARRAY") onto
// the abstract JDBC type registry.
func postgresToJDBC(dataType, udtName string) sqltype.JDBCType {
	switch strings.ToLower(dataType) {
	case "smallint":
		return sqltype.SmallInt
	case "integer":
		return sqltype.Integer
	case "bigint":
		return sqltype.BigInt
	case "numeric":
		return sqltype.Numeric
	case "real":
		return sqltype.Float
	case "double precision":
		return sqltype.Double
	case "boolean":
		return sqltype.Boolean
	case "character":
		return sqltype.Char
	case "character varying":
		return sqltype.VarChar
	case "text":
		return sqltype.LongVarChar
	case "bytea":
		return sqltype.Blob
	case "date":
		return sqltype.Date
	case "time without time zone", "time with time zone":
		return sqltype.Time
	case "timestamp without time zone", "timestamp with time zone":
		return sqltype.Timestamp
	default:
		switch strings.ToLower(udtName) {
		case "uuid":
			return sqltype.VarChar
		case "jsonb", "json":
			return sqltype.LongVarChar
		default:
			return sqltype.VarChar
		}
	}
}
