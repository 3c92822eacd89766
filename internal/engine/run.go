package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"tablekeep/internal/copyexec"
	"tablekeep/internal/copyplan"
	"tablekeep/internal/datapkg"
	"tablekeep/internal/ddlgen"
	"tablekeep/internal/project"
	"tablekeep/internal/rowvalidate"
	"tablekeep/internal/store"
	"tablekeep/internal/tsvexport"
)

// targetDialectOf maps a parsed connection dialect onto the DDL-generation
// dialect name, folding h2 into postgresql per the original engine's
// substitution (spec.md §9, sqltype.Lookup).
func targetDialectOf(d string) string {
	if d == "h2" {
		return "postgresql"
	}
	return d
}

// writeTablesFile persists the editable tmp/<subsystem>-tables.txt
// intermediate: one included source table name per line, in deps_order.
func writeTablesFile(layout project.Layout, tables []store.Table) error {
	var sb strings.Builder
	for _, t := range tables {
		sb.WriteString(t.SourceName)
		sb.WriteByte('\n')
	}
	return os.WriteFile(layout.TablesPath(), []byte(sb.String()), 0o644)
}

// shouldStop reports whether opts.Stop names phase, pausing the run after
// that artefact is written.
func shouldStop(opts Options, phase string) bool {
	return opts.Stop == phase
}

// Copy drives the copy run mode: reflect, resolve dependencies, emit the
// datapackage and DDL, build and execute the copy plan against the target,
// verifying row counts per table.
func Copy(ctx context.Context, opts Options) (ExitCode, error) {
	source, sourceDB, layout, st, err := prepare(ctx, opts)
	if err != nil {
		return ExitError, err
	}
	defer sourceDB.Close()
	defer st.Close()

	if err := resolveDependencies(ctx, sourceDB, source.Dialect, layout, st); err != nil {
		var cycle *CycleDetected
		if errors.As(err, &cycle) {
			opts.printf("dependency cycle detected across %d edges; edit %s and re-run\n", len(cycle.Edges), layout.DepsPath())
			return ExitCycle, err
		}
		return ExitError, err
	}

	tables, err := st.Tables(ctx)
	if err != nil {
		return ExitError, &ConfigurationError{Msg: "listing tables", Cause: err}
	}
	if err := writeTablesFile(layout, tables); err != nil {
		return ExitError, &ConfigurationError{Msg: "writing tables file", Cause: err}
	}
	if shouldStop(opts, "tables") {
		opts.printf("stopped after tables phase: edit %s and re-run without --stop to continue\n", layout.TablesPath())
		return ExitOK, nil
	}

	pkg, tables, err := buildDescriptor(ctx, st, opts.Subsystem, source.Dialect == "oracle")
	if err != nil {
		return ExitError, err
	}
	if _, err := pkg.Write(layout.DatapackagePath()); err != nil {
		return ExitError, &ConfigurationError{Msg: "writing datapackage descriptor", Cause: err}
	}
	if shouldStop(opts, "json") {
		opts.printf("stopped after json phase: edit %s and re-run without --stop to continue\n", layout.DatapackagePath())
		return ExitOK, nil
	}

	target, err := resolveConnection(opts, opts.Target)
	if err != nil {
		return ExitError, err
	}
	targetDB, err := openConnection(target)
	if err != nil {
		return ExitError, err
	}
	defer targetDB.Close()

	targetDialect := targetDialectOf(target.Dialect)

	ddlRes, err := ddlgen.Generate(pkg, targetDialect, layout)
	if err != nil {
		return ExitError, &DDLError{Cause: err}
	}
	if err := applyDDLFile(ctx, targetDB, ddlRes.DDLPath, opts); err != nil {
		return ExitError, &DDLError{Cause: err}
	}
	if ddlRes.FKCount > 0 {
		if err := applyDDLFile(ctx, targetDB, ddlRes.FKDDLPath, opts); err != nil {
			return ExitError, &DDLError{Cause: err}
		}
	}
	for _, t := range tables {
		if err := st.SetCreated(ctx, t.SourceName, true); err != nil {
			return ExitError, &ConfigurationError{Msg: "recording created table " + t.SourceName, Cause: err}
		}
	}
	if shouldStop(opts, "ddl") {
		opts.printf("stopped after ddl phase: edit %s / %s and re-run without --stop to continue\n", ddlRes.DDLPath, ddlRes.FKDDLPath)
		return ExitOK, nil
	}

	plan, err := copyplan.Build(pkg, copyplan.Options{
		NoBlobs:       opts.NoBlobs,
		SourceDialect: source.Dialect,
		TargetDialect: targetDialect,
		Schema:        source.Schema,
	})
	if err != nil {
		return ExitError, err
	}
	if err := plan.WriteFile(layout.CopyPlanPath()); err != nil {
		return ExitError, &ConfigurationError{Msg: "writing copy plan", Cause: err}
	}
	if shouldStop(opts, "copy") {
		opts.printf("stopped after copy phase: edit %s and re-run without --stop to continue\n", layout.CopyPlanPath())
		return ExitOK, nil
	}

	diff, err := st.DataDiff(ctx)
	if err != nil {
		return ExitError, &ConfigurationError{Msg: "computing data diff", Cause: err}
	}
	for _, t := range tables {
		if _, mismatched := diff[t.SourceName]; !mismatched {
			opts.printf("skipped %s: target already holds %d rows\n", t.NormName, t.TargetRowCount)
		}
	}
	pending := filterPendingStatements(tables, diff, plan)

	executor := copyexec.NewExecutor(sourceDB, targetDB, st, copyexec.Options{
		Test:            opts.Test,
		QuoteIdentifier: quoterFor(targetDialect),
	})

	results, err := executor.Run(ctx, pending)
	if err != nil {
		return ExitError, &CopyError{Cause: err}
	}

	sourceBySourceName := map[string]string{}
	for _, t := range tables {
		sourceBySourceName[t.NormName] = t.SourceName
	}

	failed := map[string]bool{}
	for _, r := range results {
		if r.Err != nil {
			opts.printf("failed %s: %v\n", r.TargetTable, r.Err)
			failed[sourceBySourceName[r.TargetTable]] = true
		} else {
			opts.printf("copied %s: %d rows\n", r.TargetTable, r.RowsCopied)
		}
	}

	if len(failed) > 0 {
		// Each failed table has already truncated itself inside
		// executor.Run (copyexec.copyTable's own mismatch/error path); this
		// only needs to cascade the cleanup to its dependents.
		dependents := dependentTargetNames(tables, failed)
		if len(dependents) > 0 {
			if err := executor.TruncateDependents(ctx, dependents); err != nil {
				return ExitError, &CopyError{Cause: err}
			}
		}
		names := make([]string, 0, len(failed))
		for n := range failed {
			names = append(names, n)
		}
		sort.Strings(names)
		return ExitError, &CopyError{Table: strings.Join(names, ", "), Cause: fmt.Errorf("%d table(s) failed to copy", len(failed))}
	}

	return ExitOK, nil
}

// filterPendingStatements returns a plan containing only the statements for
// tables whose source and target row counts still disagree, per spec.md
// §4.8's "if the table is not in the data-diff, skip" rule. tables and
// plan.Statements share the same deps_order-derived index alignment because
// both were built from the same pkg.Resources sequence.
func filterPendingStatements(tables []store.Table, diff map[string]int64, plan *copyplan.Plan) *copyplan.Plan {
	pending := &copyplan.Plan{PreStatements: plan.PreStatements}
	for i, stmt := range plan.Statements {
		if i >= len(tables) {
			break
		}
		if _, mismatched := diff[tables[i].SourceName]; !mismatched {
			continue
		}
		pending.Statements = append(pending.Statements, stmt)
	}
	return pending
}

// dependentTargetNames computes the target-table names of every table that
// transitively depends (directly or indirectly, via foreign keys) on a table
// in failed, in reverse dependency order so the deepest dependents are
// truncated first.
func dependentTargetNames(tables []store.Table, failed map[string]bool) []string {
	depsOf := map[string][]string{}
	order := map[string]int{}
	targetName := map[string]string{}
	for _, t := range tables {
		depsOf[t.SourceName] = splitComma(t.Deps)
		order[t.SourceName] = t.DepsOrder
		targetName[t.SourceName] = t.TargetName
	}

	reverse := map[string][]string{}
	for name, deps := range depsOf {
		for _, d := range deps {
			reverse[d] = append(reverse[d], name)
		}
	}

	seen := map[string]bool{}
	queue := make([]string, 0, len(failed))
	for name := range failed {
		queue = append(queue, name)
	}
	var affected []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range reverse[cur] {
			if seen[dep] || failed[dep] {
				continue
			}
			seen[dep] = true
			affected = append(affected, dep)
			queue = append(queue, dep)
		}
	}

	sort.Slice(affected, func(i, j int) bool { return order[affected[i]] > order[affected[j]] })

	names := make([]string, 0, len(affected))
	for _, a := range affected {
		names = append(names, targetName[a])
	}
	return names
}

func quoterFor(targetDialect string) func(string) string {
	if targetDialect == "mysql" || targetDialect == "mariadb" || targetDialect == "tidb" {
		return func(name string) string { return "`" + strings.ReplaceAll(name, "`", "``") + "`" }
	}
	return func(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }
}

// applyDDLFile parses and applies the statements in path against db,
// running each through copyexec's tidb-parser preflight analysis before
// execution (spec.md §4.8's domain-stack wiring), logged at --debug. A
// SQLite fk-ddl placeholder file (a comment with no statements) is a no-op.
func applyDDLFile(ctx context.Context, db *sql.DB, path string, opts Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var out io.Writer = io.Discard
	if opts.Debug {
		out = opts.out()
	}

	applier := copyexec.NewApplier(copyexec.Options{
		Transaction:           false,
		AllowNonTransactional: true,
		SkipConfirmation:      true,
		Out:                   out,
	})
	applier.Attach(db)

	statements := applier.ParseStatements(string(data))
	if len(statements) == 0 {
		return nil
	}
	preflight := applier.PreflightChecks(statements, true)
	return applier.Apply(ctx, statements, preflight)
}

// Archive drives the archive run mode: reflect, resolve dependencies, emit
// the datapackage and DDL, then stream each table to a TSV under the
// project layout, validating batches of tables once their full dependency
// closure has exported.
func Archive(ctx context.Context, opts Options) (ExitCode, error) {
	source, sourceDB, layout, st, err := prepare(ctx, opts)
	if err != nil {
		return ExitError, err
	}
	defer sourceDB.Close()
	defer st.Close()

	if err := resolveDependencies(ctx, sourceDB, source.Dialect, layout, st); err != nil {
		var cycle *CycleDetected
		if errors.As(err, &cycle) {
			opts.printf("dependency cycle detected across %d edges; edit %s and re-run\n", len(cycle.Edges), layout.DepsPath())
			return ExitCycle, err
		}
		return ExitError, err
	}

	tables, err := st.Tables(ctx)
	if err != nil {
		return ExitError, &ConfigurationError{Msg: "listing tables", Cause: err}
	}
	if err := writeTablesFile(layout, tables); err != nil {
		return ExitError, &ConfigurationError{Msg: "writing tables file", Cause: err}
	}
	if shouldStop(opts, "tables") {
		opts.printf("stopped after tables phase: edit %s and re-run without --stop to continue\n", layout.TablesPath())
		return ExitOK, nil
	}

	pkg, tables, err := buildDescriptor(ctx, st, opts.Subsystem, source.Dialect == "oracle")
	if err != nil {
		return ExitError, err
	}
	if _, err := pkg.Write(layout.DatapackagePath()); err != nil {
		return ExitError, &ConfigurationError{Msg: "writing datapackage descriptor", Cause: err}
	}
	if shouldStop(opts, "json") {
		opts.printf("stopped after json phase: edit %s and re-run without --stop to continue\n", layout.DatapackagePath())
		return ExitOK, nil
	}

	archiveDialect := targetDialectOf(source.Dialect)
	if opts.Target != "" && opts.Target != opts.Source {
		if target, terr := resolveConnection(opts, opts.Target); terr == nil {
			archiveDialect = targetDialectOf(target.Dialect)
		}
	}
	if _, err := ddlgen.Generate(pkg, archiveDialect, layout); err != nil {
		return ExitError, &DDLError{Cause: err}
	}
	if shouldStop(opts, "ddl") {
		return ExitOK, nil
	}

	exporter := tsvexport.NewExporter(sourceDB, layout, tsvexport.Options{
		StripNULBytes: source.Dialect == "sqlite",
		SourceDialect: source.Dialect,
	})

	tracker := tsvexport.NewBatchTracker(tsvexport.DefaultBatchThreshold)
	report := rowvalidate.Report{}
	anyValidationFailure := false

	for i, t := range tables {
		spec, err := tableSpec(ctx, st, t)
		if err != nil {
			return ExitError, &ConfigurationError{Msg: "building export spec for " + t.SourceName, Cause: err}
		}

		result, err := exporter.ExportTable(ctx, spec)
		if err != nil {
			opts.printf("failed %s: %v\n", t.NormName, err)
			return ExitError, &ValidationError{Table: t.NormName, Cause: err}
		}
		if err := st.SetEmptyRows(ctx, t.SourceName, result.EmptyRows); err != nil {
			return ExitError, &ConfigurationError{Msg: "recording empty rows for " + t.SourceName, Cause: err}
		}
		opts.printf("exported %s: %d rows (%d empty)\n", t.NormName, result.RowsWritten, result.EmptyRows)

		due := tracker.Add(pkg.Resources[i].Name)
		if due == nil && i < len(tables)-1 {
			continue
		}
		if due == nil {
			due = tracker.Flush()
		}
		if len(due) == 0 {
			continue
		}
		if failed := validateBatch(ctx, st, layout, pkg, due, &report); failed {
			anyValidationFailure = true
		}
	}

	if len(report.Tables) > 0 {
		if err := writeValidationReport(layout.ValidationReportPath(), report); err != nil {
			return ExitError, &ConfigurationError{Msg: "writing validation report", Cause: err}
		}
	}

	if anyValidationFailure {
		opts.printf("validation failed: see %s\n", layout.ValidationReportPath())
		return ExitError, &ValidationError{Table: strings.Join(report.FailedResources(), ", ")}
	}
	return ExitOK, nil
}

// tableSpec builds the export instructions for one table from its reflected
// columns, choosing the single-column primary key (if any) as the sidecar
// rowid source.
func tableSpec(ctx context.Context, st *store.Store, t store.Table) (tsvexport.TableSpec, error) {
	cols, err := st.ColumnsForTable(ctx, t.SourceName)
	if err != nil {
		return tsvexport.TableSpec{}, err
	}

	spec := tsvexport.TableSpec{
		SourceTable: t.SourceName,
		TargetTable: t.NormName,
	}
	if t.SourcePK != "" && !strings.Contains(t.SourcePK, ",") {
		spec.RowIDColumn = t.SourcePK
	}
	for _, c := range cols {
		spec.Columns = append(spec.Columns, tsvexport.ColumnSpec{
			SourceColumn: c.SourceColumn,
			TargetColumn: c.NormColumn,
			JDBCType:     c.JDBCDataType,
			MaxLength:    c.SourceColumnSize,
		})
	}
	return spec, nil
}

// validateBatch runs the Schema Validator against the subset of pkg named by
// resourceNames, merging its per-table results into report and flagging
// validated/unvalidated tables in st. It returns true if any table in the
// batch failed.
func validateBatch(ctx context.Context, st *store.Store, layout project.Layout, pkg *datapkg.Package, resourceNames []string, report *rowvalidate.Report) bool {
	wanted := make(map[string]bool, len(resourceNames))
	for _, n := range resourceNames {
		wanted[n] = true
	}

	subset := datapkg.NewPackage(pkg.Name)
	for _, r := range pkg.Resources {
		if wanted[r.Name] {
			subset.AddResource(r)
		}
	}

	batchReport, err := rowvalidate.Validate(subset, layout.TSVPath)
	failed := err != nil
	if err == nil {
		report.Tables = append(report.Tables, batchReport.Tables...)
		failed = !batchReport.Passed()
	}

	for _, r := range subset.Resources {
		validated := !failed
		if err == nil {
			for _, tr := range batchReport.Tables {
				if tr.Resource == r.Name {
					validated = tr.Passed()
				}
			}
		}
		sourceName := r.DBTableName
		if serr := st.SetValidated(ctx, sourceName, validated); serr != nil {
			failed = true
		}
	}
	return failed
}

func writeValidationReport(path string, report rowvalidate.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling validation report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
