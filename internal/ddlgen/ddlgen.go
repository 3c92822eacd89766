// Package ddlgen orchestrates DDL generation: it turns a datapackage
// descriptor into the per-dialect CREATE TABLE and foreign-key-ALTER
// statement files a copy or archive run leaves under its content directory.
package ddlgen

import (
	"fmt"
	"os"
	"strings"

	"tablekeep/internal/datapkg"
	"tablekeep/internal/dialect"
	"tablekeep/internal/project"

	_ "tablekeep/internal/dialect/ansi"
	_ "tablekeep/internal/dialect/mysql"
	_ "tablekeep/internal/dialect/postgresql"
	_ "tablekeep/internal/dialect/sqlite"
)

// Result is what Generate produced for one dialect.
type Result struct {
	DDLPath   string
	FKDDLPath string
	// TableCount is the number of CREATE TABLE statements written.
	TableCount int
	// FKCount is the number of ALTER TABLE ... ADD FOREIGN KEY statements
	// written. Zero for dialects (SQLite) that inline foreign keys instead.
	FKCount int
}

// Generate renders pkg's resources (already in dependency order) as DDL for
// targetDialect and writes content/<subsystem>/<dialect>-ddl.sql and
// <dialect>-fk-ddl.sql under layout. SQLite inlines foreign keys into the
// CREATE TABLE statement itself, so its fk-ddl file carries only an
// explanatory header and no statements.
func Generate(pkg *datapkg.Package, targetDialect string, layout project.Layout) (Result, error) {
	tables, err := datapkg.BuildTables(pkg, targetDialect)
	if err != nil {
		return Result{}, fmt.Errorf("ddlgen: %w", err)
	}

	d, err := dialect.GetDialect(dialect.Type(targetDialect))
	if err != nil {
		return Result{}, fmt.Errorf("ddlgen: %w", err)
	}
	gen := d.Generator()

	var creates, fks []string
	for _, t := range tables {
		create, tableFKs := gen.GenerateCreateTable(t)
		creates = append(creates, create)
		fks = append(fks, tableFKs...)
	}

	res := Result{
		DDLPath:    layout.DDLPath(targetDialect),
		FKDDLPath:  layout.FKDDLPath(targetDialect),
		TableCount: len(creates),
		FKCount:    len(fks),
	}

	if err := os.WriteFile(res.DDLPath, []byte(strings.Join(creates, "\n\n")+"\n"), 0o644); err != nil {
		return Result{}, fmt.Errorf("ddlgen: write %s: %w", res.DDLPath, err)
	}

	fkContent := strings.Join(fks, "\n")
	if len(fks) == 0 {
		fkContent = "-- foreign keys for this dialect are declared inline in " + targetDialect + "-ddl.sql"
	}
	if err := os.WriteFile(res.FKDDLPath, []byte(fkContent+"\n"), 0o644); err != nil {
		return Result{}, fmt.Errorf("ddlgen: write %s: %w", res.FKDDLPath, err)
	}

	return res, nil
}
