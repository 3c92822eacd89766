package datapkg

import (
	"fmt"
	"strconv"
	"strings"

	"tablekeep/internal/core"
	"tablekeep/internal/sqltype"
)

// sqltypeDialect maps a DDL target dialect string onto the sqltype rendering
// column closest to it: MariaDB and TiDB share MySQL's type table since they
// accept the same CREATE TABLE grammar.
func sqltypeDialect(target string) (sqltype.Dialect, bool) {
	switch target {
	case "mysql", "mariadb", "tidb":
		return sqltype.DialectMySQL, true
	case "postgresql":
		return sqltype.DialectPostgreSQL, true
	case "sqlite":
		return sqltype.DialectSQLite, true
	case "oracle":
		return sqltype.DialectOracle, true
	case "mssql":
		return sqltype.DialectMSSQL, true
	case "h2":
		return sqltype.DialectH2, true
	default:
		return "", false
	}
}

// rawType renders the SQL type string for one field under target, filling
// any "()" placeholder with the field's maxLength constraint (or a
// conservative default when none was recorded). Dialects with no dedicated
// column in the sqltype registry (db2, snowflake) fall back to the
// registry's ISO-SQL rendering.
func rawType(f Field, target string) (string, error) {
	code, err := strconv.Atoi(f.JDBCType)
	if err != nil {
		return "", fmt.Errorf("datapkg: field %s: invalid jdbc_type %q", f.Name, f.JDBCType)
	}

	var raw string
	if d, ok := sqltypeDialect(target); ok {
		r, err := sqltype.ForDialect(sqltype.JDBCType(code), d)
		if err != nil {
			return "", fmt.Errorf("datapkg: field %s: %w", f.Name, err)
		}
		raw = r
	} else if info, ok := sqltype.Lookup(sqltype.JDBCType(code)); ok {
		raw = info.ISO
	} else {
		return "", fmt.Errorf("datapkg: field %s: unknown jdbc_type %d", f.Name, code)
	}

	if !strings.Contains(raw, "()") {
		return strings.ToUpper(raw), nil
	}

	size := 255
	if f.Constraints != nil && f.Constraints.MaxLength > 0 {
		size = f.Constraints.MaxLength
	}
	filled := strings.Replace(raw, "()", fmt.Sprintf("(%d)", size), 1)
	return strings.ToUpper(filled), nil
}

// BuildTables converts pkg's resources into core.Table values rendered for
// targetDialect, ready to hand to a dialect.Generator. Resources come back in
// the same order as pkg.Resources, so callers should pass a package whose
// resources are already in deps_order.
func BuildTables(pkg *Package, targetDialect string) ([]*core.Table, error) {
	tables := make([]*core.Table, 0, len(pkg.Resources))
	for _, res := range pkg.Resources {
		t, err := buildTable(res, targetDialect)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func buildTable(res Resource, targetDialect string) (*core.Table, error) {
	table := &core.Table{Name: res.Name}

	pk := make(map[string]bool, len(res.Schema.PrimaryKey))
	for _, n := range res.Schema.PrimaryKey {
		pk[n] = true
	}

	for _, f := range res.Schema.Fields {
		raw, err := rawType(f, targetDialect)
		if err != nil {
			return nil, err
		}
		required := f.Constraints != nil && f.Constraints.Required
		table.Columns = append(table.Columns, &core.Column{
			Name:       f.Name,
			TypeRaw:    raw,
			Type:       core.NormalizeDataType(raw),
			Nullable:   !required && !pk[f.Name],
			PrimaryKey: pk[f.Name],
		})
	}

	if len(res.Schema.PrimaryKey) > 0 {
		table.Constraints = append(table.Constraints, &core.Constraint{
			Name:    core.AutoGenerateConstraintName(core.ConstraintPrimaryKey, res.Name, res.Schema.PrimaryKey, ""),
			Type:    core.ConstraintPrimaryKey,
			Columns: res.Schema.PrimaryKey,
		})
	}

	for _, fk := range res.Schema.ForeignKeys {
		table.Constraints = append(table.Constraints, &core.Constraint{
			Name:              core.AutoGenerateConstraintName(core.ConstraintForeignKey, res.Name, fk.Fields, fk.Reference.Resource),
			Type:              core.ConstraintForeignKey,
			Columns:           fk.Fields,
			ReferencedTable:   fk.Reference.Resource,
			ReferencedColumns: fk.Reference.Fields,
		})
	}

	return table, nil
}
