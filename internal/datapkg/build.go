package datapkg

import (
	"path/filepath"
	"strconv"

	"tablekeep/internal/sqltype"
	"tablekeep/internal/store"
)

// maxLengthTypes are the JDBC types whose datapackage field carries a
// maxLength constraint, matching the original engine's field population.
var maxLengthTypes = map[int]bool{
	int(sqltype.LongNVarChar): true, int(sqltype.NChar): true, int(sqltype.NVarChar): true,
	int(sqltype.RowID): true, int(sqltype.LongVarChar): true, int(sqltype.Char): true,
	int(sqltype.VarChar): true, int(sqltype.Clob): true, int(sqltype.SQLXML): true,
	int(sqltype.NClob): true,
}

// TableInfo is the subset of a store.Table plus its columns and foreign
// keys needed to build one resource.
type TableInfo struct {
	SourceName string
	NormName   string
	SourcePK   string
	RowCount   int64
	Deps       string
	Columns    []store.Column
	// ForeignKeys lists this table's foreign keys, each pairing a column
	// with the (resource, column) it references, already resolved to
	// normalized names.
	ForeignKeys []ResolvedForeignKey
}

// ResolvedForeignKey is a foreign key with both endpoints already mapped to
// their normalized resource/field names.
type ResolvedForeignKey struct {
	NormColumn     string
	RefResource    string
	RefNormColumn  string
}

// Build constructs a Package named target from the given tables, in the
// order supplied (callers are expected to pass them in deps_order).
func Build(target string, tables []TableInfo, sourceOracle bool) *Package {
	pkg := NewPackage(target)

	for _, t := range tables {
		var fields []Field
		var pk []string

		for _, c := range t.Columns {
			info, ok := sqltype.Lookup(sqltype.JDBCType(c.JDBCDataType))
			dbType := "string"
			if ok {
				dbType = info.Datapackage
			}

			field := Field{
				Name:         c.NormColumn,
				Type:         dbType,
				JDBCType:     strconv.Itoa(c.JDBCDataType),
				DBColumnName: c.SourceColumn,
			}

			var constraints Constraints
			hasConstraints := false

			if maxLengthTypes[c.JDBCDataType] && c.SourceColumnSize > 0 {
				suppressOracleLong := sourceOracle && c.JDBCDataType == int(sqltype.LongVarChar)
				if !suppressOracleLong {
					constraints.MaxLength = c.SourceColumnSize
					hasConstraints = true
				}
			}

			if c.SourceColumn == t.SourcePK {
				constraints.Required = true
				hasConstraints = true
				pk = append(pk, c.NormColumn)
			}

			if hasConstraints {
				field.Constraints = &constraints
			}
			fields = append(fields, field)
		}

		schema := Schema{Fields: fields}
		if len(pk) > 0 {
			schema.PrimaryKey = pk
		}

		for _, fk := range t.ForeignKeys {
			schema.ForeignKeys = append(schema.ForeignKeys, ForeignKey{
				Fields: []string{fk.NormColumn},
				Reference: ForeignKeyReference{
					Resource: fk.RefResource,
					Fields:   []string{fk.RefNormColumn},
				},
			})
		}

		pkg.AddResource(Resource{
			Name:        t.NormName,
			Profile:     "tabular-data-resource",
			Path:        filepath.Join("data", t.NormName+".tsv"),
			Encoding:    "UTF-8",
			DBTableName: t.SourceName,
			DBTableDeps: t.Deps,
			CountOfRows: strconv.FormatInt(t.RowCount, 10),
			Schema:      schema,
			Dialect:     DefaultDialect,
		})
	}

	return pkg
}

// LoadTableInfos assembles every included table with its columns/foreign
// keys from the given store rows, resolving FK targets to normalized resource/field names via
// normTables/normColumns (table/"table:column" -> normalized name).
func LoadTableInfos(tables []store.Table,
	columnsByTable map[string][]store.Column, fksByTable map[string][]store.ForeignKey,
	normTables map[string]string, normColumns map[string]string) []TableInfo {

	infos := make([]TableInfo, 0, len(tables))
	for _, t := range tables {
		cols := columnsByTable[t.SourceName]

		var resolved []ResolvedForeignKey
		for _, fk := range fksByTable[t.SourceName] {
			refResource, ok := normTables[fk.SourceRefTable]
			if !ok {
				continue
			}
			refCol := normColumns[fk.SourceRefTable+":"+fk.SourceRefCol]
			var normCol string
			for _, c := range cols {
				if c.SourceColumn == fk.SourceColumn {
					normCol = c.NormColumn
					break
				}
			}
			if normCol == "" || refCol == "" {
				continue
			}
			resolved = append(resolved, ResolvedForeignKey{
				NormColumn:    normCol,
				RefResource:   refResource,
				RefNormColumn: refCol,
			})
		}

		infos = append(infos, TableInfo{
			SourceName:  t.SourceName,
			NormName:    t.NormName,
			SourcePK:    t.SourcePK,
			RowCount:    t.SourceRowCount,
			Deps:        t.Deps,
			Columns:     cols,
			ForeignKeys: resolved,
		})
	}
	return infos
}
