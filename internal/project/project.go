// Package project computes the persisted on-disk layout a run uses: the
// content directory a copy/archive leaves behind, and the tmp directory
// holding re-entrant intermediates.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Layout is the set of paths one subsystem (one named project run) uses,
// rooted at a project directory.
type Layout struct {
	Root      string
	Subsystem string
}

// New returns the Layout for subsystem under root. It does not touch disk.
func New(root, subsystem string) Layout {
	return Layout{Root: root, Subsystem: subsystem}
}

// ContentDir is content/<subsystem>/.
func (l Layout) ContentDir() string {
	return filepath.Join(l.Root, "content", l.Subsystem)
}

// DataDir is content/<subsystem>/data/, holding exported TSVs.
func (l Layout) DataDir() string {
	return filepath.Join(l.ContentDir(), "data")
}

// DocumentsDir is content/<subsystem>/documents/, holding blob/clob spill
// files.
func (l Layout) DocumentsDir() string {
	return filepath.Join(l.ContentDir(), "documents")
}

// TmpDir is tmp/, holding the config store and editable intermediates.
func (l Layout) TmpDir() string {
	return filepath.Join(l.Root, "tmp")
}

// DatapackagePath is content/<subsystem>/datapackage.json.
func (l Layout) DatapackagePath() string {
	return filepath.Join(l.ContentDir(), "datapackage.json")
}

// DDLPath is content/<subsystem>/<dialect>-ddl.sql.
func (l Layout) DDLPath(dialect string) string {
	return filepath.Join(l.ContentDir(), dialect+"-ddl.sql")
}

// FKDDLPath is content/<subsystem>/<dialect>-fk-ddl.sql.
func (l Layout) FKDDLPath(dialect string) string {
	return filepath.Join(l.ContentDir(), dialect+"-fk-ddl.sql")
}

// TSVPath is content/<subsystem>/data/<table>.tsv.
func (l Layout) TSVPath(table string) string {
	return filepath.Join(l.DataDir(), table+".tsv")
}

// DocumentPath is content/<subsystem>/documents/<table>_<column><rowid>.data.
func (l Layout) DocumentPath(table, column string, rowid int64) string {
	return filepath.Join(l.DocumentsDir(), fmt.Sprintf("%s_%s%d.data", table, column, rowid))
}

// ConfigStorePath is tmp/<subsystem>-config.db.
func (l Layout) ConfigStorePath() string {
	return filepath.Join(l.TmpDir(), l.Subsystem+"-config.db")
}

// TablesPath is tmp/<subsystem>-tables.txt, an editable include-list.
func (l Layout) TablesPath() string {
	return filepath.Join(l.TmpDir(), l.Subsystem+"-tables.txt")
}

// CopyPlanPath is tmp/<subsystem>-copy.sql, the editable copy plan
// intermediate (serialized copyplan.Plan JSON despite the .sql suffix,
// matching the original engine's -copy.sql naming for a reviewable file).
func (l Layout) CopyPlanPath() string {
	return filepath.Join(l.TmpDir(), l.Subsystem+"-copy.sql")
}

// DepsPath is tmp/<subsystem>-deps.json, written only on cycle detection.
func (l Layout) DepsPath() string {
	return filepath.Join(l.TmpDir(), l.Subsystem+"-deps.json")
}

// ValidationReportPath is tmp/<subsystem>-validation.json, written only when
// the Schema Validator rejects one or more tables.
func (l Layout) ValidationReportPath() string {
	return filepath.Join(l.TmpDir(), l.Subsystem+"-validation.json")
}

// EnsureDirs creates content/<subsystem>/{data,documents} and tmp/,
// idempotently.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.DataDir(), l.DocumentsDir(), l.TmpDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("project: create %s: %w", dir, err)
		}
	}
	return nil
}

// ScratchPath returns a unique path under tmp/ for a temporary file (e.g. a
// partial datapackage draft written during batch validation), avoiding
// collisions between concurrent runs against the same project.
func (l Layout) ScratchPath(prefix string) string {
	return filepath.Join(l.TmpDir(), fmt.Sprintf("%s-%s-%s.tmp", l.Subsystem, prefix, uuid.NewString()))
}
