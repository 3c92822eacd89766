// Package engine is the plain record-and-dispatch core the CLI calls into:
// it wires the Metadata Reflector, Config Store, Dependency Resolver,
// Schema Emitter, DDL Generator, Copy Planner/Executor, TSV Exporter, and
// Schema Validator into the two run modes (copy, archive) spec.md names,
// and reports the three-valued exit code the CLI translates to os.Exit.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"tablekeep/internal/copyexec"
	"tablekeep/internal/copyplan"
	"tablekeep/internal/core"
	"tablekeep/internal/datapkg"
	"tablekeep/internal/ddlgen"
	"tablekeep/internal/depgraph"
	"tablekeep/internal/dialect"
	"tablekeep/internal/dsn"
	"tablekeep/internal/project"
	"tablekeep/internal/reflect"
	"tablekeep/internal/rowvalidate"
	"tablekeep/internal/runconfig"
	"tablekeep/internal/store"
	"tablekeep/internal/tsvexport"

	_ "tablekeep/internal/reflect/mysql"
	_ "tablekeep/internal/reflect/postgresql"
	_ "tablekeep/internal/reflect/sqlite"
)

// ExitCode is the three-valued outcome spec.md §6/§7 assigns to a run.
type ExitCode int

const (
	// ExitOK means every table completed without error.
	ExitOK ExitCode = 0
	// ExitError means at least one table failed reflection, DDL, copy, or
	// validation, but the run otherwise completed.
	ExitError ExitCode = 1
	// ExitCycle means the dependency graph was not a DAG; no table was
	// touched past reflection.
	ExitCycle ExitCode = 2
)

// Options configures one run. It is the CLI's entire coupling to the core:
// cmd/tablekeep parses flags into this struct and calls Run.
type Options struct {
	// Source and Target are connection names: either a literal jdbc: URL,
	// or an alias resolved through ConfigPath's runconfig. Target is
	// unused for archive runs.
	Source string
	Target string
	// ConfigPath is an optional connections.yaml; EnvPath an optional
	// sibling .env for credential interpolation.
	ConfigPath string
	EnvPath    string
	// ProjectRoot and Subsystem locate the persisted layout (spec.md §6).
	ProjectRoot string
	Subsystem   string
	// Stop pauses the run after a given phase for manual editing of the
	// intermediate artefact, per spec.md §6's --stop flag: one of "tables",
	// "json", "ddl", "copy" (copy mode only), or "" to run to completion.
	Stop string
	// Test truncates each target table immediately after its row-count
	// verification succeeds, rehearsing a copy run without keeping data.
	Test bool
	// Debug enables verbose per-statement logging.
	Debug bool
	// NoBlobs suppresses blob/binary columns during copy (replaced with
	// NULL) and spill-to-sidecar during archive (replaced with empty).
	NoBlobs bool
	// Out receives progress and per-table status lines; defaults to
	// io.Discard if nil.
	Out io.Writer
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return io.Discard
	}
	return o.Out
}

func (o Options) printf(format string, args ...any) {
	fmt.Fprintf(o.out(), format, args...)
}

func (o Options) println(args ...any) {
	fmt.Fprintln(o.out(), args...)
}

// resolveConnection expands name through ConfigPath's aliases (if set) and
// parses the resulting jdbc: URL.
func resolveConnection(opts Options, name string) (*dsn.Info, error) {
	login := name
	if opts.ConfigPath != "" {
		if opts.EnvPath != "" {
			if err := runconfig.LoadEnv(opts.EnvPath); err != nil {
				return nil, &ConfigurationError{Msg: "loading .env overlay", Cause: err}
			}
		}
		cfg, err := runconfig.Load(opts.ConfigPath)
		if err != nil {
			return nil, &ConfigurationError{Msg: "loading connections config", Cause: err}
		}
		login, err = cfg.Resolve(name)
		if err != nil {
			return nil, &ConfigurationError{Msg: "resolving connection alias " + name, Cause: err}
		}
	}

	info, err := dsn.Parse(login)
	if err != nil {
		return nil, &ConfigurationError{Msg: "parsing connection URL", Cause: err}
	}
	return info, nil
}

// driverFor maps a parsed dialect onto the database/sql driver name this
// module links: only mysql, postgresql, and sqlite carry a
// live driver here, the rest being DDL-only dialects with no corresponding
// connection support in this build.
func driverFor(info *dsn.Info) (string, error) {
	switch info.Dialect {
	case "mysql":
		return "mysql", nil
	case "postgresql":
		return "postgres", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", &ConfigurationError{Msg: fmt.Sprintf("no live driver registered for dialect %q", info.Dialect)}
	}
}

func openConnection(info *dsn.Info) (*sql.DB, error) {
	driverName, err := driverFor(info)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, info.DriverDSN)
	if err != nil {
		return nil, &ConfigurationError{Msg: "opening connection to " + info.ShortURL, Cause: err}
	}
	return db, nil
}

// prepare resolves and opens the source connection, builds the project
// layout, and opens the config store shared by both run modes.
func prepare(ctx context.Context, opts Options) (*dsn.Info, *sql.DB, project.Layout, *store.Store, error) {
	source, err := resolveConnection(opts, opts.Source)
	if err != nil {
		return nil, nil, project.Layout{}, nil, err
	}
	sourceDB, err := openConnection(source)
	if err != nil {
		return nil, nil, project.Layout{}, nil, err
	}

	layout := project.New(opts.ProjectRoot, opts.Subsystem)
	if err := layout.EnsureDirs(); err != nil {
		_ = sourceDB.Close()
		return nil, nil, project.Layout{}, nil, &ConfigurationError{Msg: "creating project layout", Cause: err}
	}

	st, err := store.Open(ctx, layout.ConfigStorePath())
	if err != nil {
		_ = sourceDB.Close()
		return nil, nil, project.Layout{}, nil, &ConfigurationError{Msg: "opening config store", Cause: err}
	}

	return source, sourceDB, layout, st, nil
}

// resolveDependencies runs the Metadata Reflector, then the Dependency
// Resolver, persisting each included table's deps_order back into st. On a
// cycle, the cycle paths ("a -> b -> a") are written to layout's deps file
// and a *CycleDetected is returned; the file does not list the graph's edges.
func resolveDependencies(ctx context.Context, sourceDB *sql.DB, sourceDialect string, layout project.Layout, st *store.Store) error {
	if err := reflect.Run(ctx, sourceDB, core.Dialect(sourceDialect), st); err != nil {
		return &ReflectionError{Table: "", Cause: err}
	}

	tables, err := st.Tables(ctx)
	if err != nil {
		return &ConfigurationError{Msg: "listing reflected tables", Cause: err}
	}

	included := make(map[string]bool, len(tables))
	for _, t := range tables {
		included[t.SourceName] = true
	}

	graph := depgraph.Graph{}
	for _, t := range tables {
		var deps []string
		for _, d := range splitComma(t.Deps) {
			if included[d] {
				deps = append(deps, d)
			}
		}
		graph[t.SourceName] = deps
	}

	_, order, err := depgraph.Resolve(graph)
	if err != nil {
		var cycleErr *depgraph.CycleError
		if errors.As(err, &cycleErr) {
			_ = cycleErr.WriteJSON(layout.DepsPath())
			return &CycleDetected{Edges: cycleEdges(graph, cycleErr.Cycles)}
		}
		return err
	}

	for name, pos := range order {
		if err := st.SetDepsOrder(ctx, name, pos); err != nil {
			return &ConfigurationError{Msg: "persisting deps_order for " + name, Cause: err}
		}
	}
	return nil
}

// cycleEdges turns depgraph's human-readable cycle strings ("a -> b -> a")
// back into the edge-pair form CycleDetected carries.
func cycleEdges(g depgraph.Graph, cycles []string) [][2]string {
	var edges [][2]string
	for _, c := range cycles {
		nodes := strings.Split(c, " -> ")
		for i := 0; i+1 < len(nodes); i++ {
			edges = append(edges, [2]string{nodes[i], nodes[i+1]})
		}
	}
	return edges
}

// buildDescriptor assembles the datapackage descriptor from everything the
// reflector and resolver recorded in st, in deps_order.
func buildDescriptor(ctx context.Context, st *store.Store, pkgName string, sourceOracle bool) (*datapkg.Package, []store.Table, error) {
	tables, err := st.Tables(ctx)
	if err != nil {
		return nil, nil, &ConfigurationError{Msg: "listing tables for descriptor", Cause: err}
	}

	columnsByTable := map[string][]store.Column{}
	fksByTable := map[string][]store.ForeignKey{}
	normTables := map[string]string{}
	normColumns := map[string]string{}

	for _, t := range tables {
		cols, err := st.ColumnsForTable(ctx, t.SourceName)
		if err != nil {
			return nil, nil, &ConfigurationError{Msg: "listing columns for " + t.SourceName, Cause: err}
		}
		columnsByTable[t.SourceName] = cols
		normTables[t.SourceName] = t.NormName
		for _, c := range cols {
			normColumns[t.SourceName+":"+c.SourceColumn] = c.NormColumn
		}

		fks, err := st.ForeignKeysForTable(ctx, t.SourceName)
		if err != nil {
			return nil, nil, &ConfigurationError{Msg: "listing foreign keys for " + t.SourceName, Cause: err}
		}
		fksByTable[t.SourceName] = fks
	}

	infos := datapkg.LoadTableInfos(tables, columnsByTable, fksByTable, normTables, normColumns)
	pkg := datapkg.Build(pkgName, infos, sourceOracle)
	if err := datapkg.Validate(pkg); err != nil {
		return nil, nil, &ConfigurationError{Msg: "validating datapackage descriptor", Cause: err}
	}
	return pkg, tables, nil
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

