// Package copyplan turns a datapackage descriptor into a per-table copy
// plan: the source SELECT (with per-cell adapters for blob suppression and
// date/time reformatting) and the target table/column coordinates the copy
// executor needs, in dependency order.
package copyplan

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tablekeep/internal/datapkg"
	"tablekeep/internal/sqltype"
)

// SQLitePreStatements are issued once against the target connection before
// any table is copied, trading durability for throughput during a bulk
// load — matching the original engine's WbCopy -preTableStatement pragmas.
var SQLitePreStatements = []string{
	"PRAGMA foreign_keys=0",
	"PRAGMA journal_mode=0",
	"PRAGMA synchronous=0",
	"PRAGMA temp_store=MEMORY",
}

// Options configures plan generation.
type Options struct {
	// NoBlobs replaces blob/binary/long-raw columns with NULL in the
	// source SELECT instead of reading their bytes.
	NoBlobs bool
	// SourceDialect and TargetDialect drive per-cell adapters and
	// identifier quoting. "h2" is treated as postgresql, matching the
	// original engine's substitution.
	SourceDialect string
	TargetDialect string
	// Schema, if set, qualifies the source table name.
	Schema string
}

// Column is one SELECT column: the adapted source expression aliased to the
// target column name.
type Column struct {
	SourceColumn string
	TargetColumn string
	// Expr is the full SQL expression to place in the SELECT list,
	// already quoted/aliased — e.g. `"created_at"` or
	// `DATETIME(SUBSTR("created_at",1,10), 'unixepoch') AS "created_at"`.
	Expr string
}

// Statement is one table's copy instructions.
type Statement struct {
	SourceTable  string
	TargetTable  string
	Columns      []Column
	SourceQuery  string
	IdentityCols []string
}

// Plan is an ordered list of per-table copy Statements, ready to execute or
// to serialize for manual review between planning and execution.
type Plan struct {
	PreStatements []string
	Statements    []Statement
}

func normalizeDialect(d string) string {
	if d == "h2" {
		return "postgresql"
	}
	return d
}

func quoteIdentifier(dialect, name string) string {
	if dialect == "mysql" || dialect == "mariadb" || dialect == "tidb" {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// blobTypes are the JDBC type codes suppressed under Options.NoBlobs.
var blobTypes = map[int]bool{
	int(sqltype.LongVarBinary): true,
	int(sqltype.VarBinary):     true,
	int(sqltype.Binary):        true,
	int(sqltype.Blob):          true,
}

// cellExpr computes the adapted SELECT expression for one field, following
// get_copy_statements's jdbc_db_type branches.
func cellExpr(opts Options, sourceCol, targetCol string, jdbcType int) (string, error) {
	source := normalizeDialect(opts.SourceDialect)
	target := normalizeDialect(opts.TargetDialect)
	sq := func(name string) string { return quoteIdentifier(opts.SourceDialect, name) }
	alias := quoteIdentifier(opts.SourceDialect, targetCol)

	if opts.NoBlobs && blobTypes[jdbcType] {
		return "NULL AS " + alias, nil
	}

	if (jdbcType == int(sqltype.Date) || jdbcType == int(sqltype.Timestamp)) && target == "sqlite" {
		switch source {
		case "h2", "postgresql":
			return fmt.Sprintf("FORMATDATETIME(%s,'YYYY-MM-DD HH:mm:ss') AS %s", sq(sourceCol), alias), nil
		case "sqlite":
			return fmt.Sprintf("DATETIME(SUBSTR(%s,1,10), 'unixepoch') AS %s", sq(sourceCol), alias), nil
		case "oracle":
			return fmt.Sprintf("TO_CHAR(%s,'YYYY-MM-DD HH24:MI:SS') AS %s", sq(sourceCol), alias), nil
		default:
			return "", fmt.Errorf("copyplan: datetime to formatted string in sqlite not implemented for %q", opts.SourceDialect)
		}
	}

	if jdbcType == int(sqltype.Time) && target == "sqlite" {
		switch source {
		case "h2", "postgresql":
			return fmt.Sprintf("FORMATDATETIME(%s,'HH:mm:ss') AS %s", sq(sourceCol), alias), nil
		case "sqlite":
			return fmt.Sprintf("TIME(%s) AS %s", sq(sourceCol), alias), nil
		case "oracle":
			return fmt.Sprintf("TO_CHAR(%s,'HH24:MI:SS') AS %s", sq(sourceCol), alias), nil
		default:
			return "", fmt.Errorf("copyplan: time to formatted string in sqlite not implemented for %q", opts.SourceDialect)
		}
	}

	if strings.EqualFold(sourceCol, targetCol) {
		return sq(sourceCol) + ",", nil
	}
	return sq(sourceCol) + " AS " + alias, nil
}

// Build constructs a Plan from pkg's resources, in the order they appear
// (callers pass them already in deps_order).
func Build(pkg *datapkg.Package, opts Options) (*Plan, error) {
	plan := &Plan{}
	if normalizeDialect(opts.TargetDialect) == "sqlite" {
		plan.PreStatements = append(plan.PreStatements, SQLitePreStatements...)
	}

	for _, res := range pkg.Resources {
		sourceTable := res.DBTableName
		if opts.Schema != "" {
			sourceTable = opts.Schema + "." + sourceTable
		}

		var cols []Column
		var selectParts []string
		for _, f := range res.Schema.Fields {
			jdbcType, err := strconv.Atoi(f.JDBCType)
			if err != nil {
				return nil, fmt.Errorf("copyplan: table %s column %s: invalid jdbc_type %q", res.DBTableName, f.Name, f.JDBCType)
			}

			expr, err := cellExpr(opts, f.DBColumnName, f.Name, jdbcType)
			if err != nil {
				return nil, fmt.Errorf("copyplan: table %s column %s: %w", res.DBTableName, f.Name, err)
			}
			expr = strings.TrimSuffix(expr, ",")
			cols = append(cols, Column{SourceColumn: f.DBColumnName, TargetColumn: f.Name, Expr: expr})
			selectParts = append(selectParts, expr)
		}

		query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectParts, ", "), sourceTable)

		plan.Statements = append(plan.Statements, Statement{
			SourceTable: sourceTable,
			TargetTable: res.Name,
			Columns:     cols,
			SourceQuery: query,
		})
	}

	return plan, nil
}

type planFile struct {
	PreStatements []string    `json:"pre_statements"`
	Statements    []Statement `json:"statements"`
}

// WriteFile serializes the plan as JSON so a human can review or hand-edit
// it between planning and execution.
func (p *Plan) WriteFile(path string) error {
	data, err := json.MarshalIndent(planFile{PreStatements: p.PreStatements, Statements: p.Statements}, "", "  ")
	if err != nil {
		return fmt.Errorf("copyplan: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("copyplan: write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a plan previously written by WriteFile.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("copyplan: read %s: %w", path, err)
	}
	var pf planFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("copyplan: unmarshal %s: %w", path, err)
	}
	return &Plan{PreStatements: pf.PreStatements, Statements: pf.Statements}, nil
}
