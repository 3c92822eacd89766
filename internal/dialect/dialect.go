// Package dialect provides a unified interface for rendering CREATE TABLE DDL
// across SQL dialects. Each registered dialect turns a core.Table into the
// exact statement text its target engine accepts, including dialect-specific
// quoting, table options, and foreign key placement.
package dialect

import (
	"fmt"
	"maps"
	"sync"

	"tablekeep/internal/core"
)

// Type identifies a supported DDL-generation dialect. It mirrors core.Dialect
// but stays independent of it so generator registration doesn't require
// importing the full schema package graph.
type Type string

const (
	MySQL      Type = "mysql"
	MariaDB    Type = "mariadb"
	TiDB       Type = "tidb"
	PostgreSQL Type = "postgresql"
	SQLite     Type = "sqlite"
	MSSQL      Type = "mssql"
	Oracle     Type = "oracle"
	DB2        Type = "db2"
	Snowflake  Type = "snowflake"
	H2         Type = "h2"
)

// FromCoreDialect maps a core.Dialect value onto the Type used by this
// package's registry.
func FromCoreDialect(d core.Dialect) Type {
	return Type(d)
}

// Generator creates CREATE TABLE / DROP TABLE statements for a single
// dialect, along with the identifier and string quoting rules that the rest
// of the pipeline (copy planner, copy executor) needs to stay consistent
// with the generated schema.
type Generator interface {
	// GenerateCreateTable renders the CREATE TABLE statement for t. Foreign
	// key constraints are returned separately so callers can apply them only
	// after every referenced table exists, in dependency order.
	GenerateCreateTable(t *core.Table) (statement string, fkStatements []string)
	GenerateDropTable(t *core.Table) string
	QuoteIdentifier(name string) string
	QuoteString(value string) string
}

var (
	registryMu sync.RWMutex
	registry   = map[Type]func() Dialect{}
)

// Dialect binds a Type to its Generator implementation.
type Dialect interface {
	Name() Type
	Generator() Generator
}

// RegisterDialect adds or replaces the constructor for d.
func RegisterDialect(d Type, ctor func() Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d] = ctor
}

// GetDialect returns the dialect for d, or an error if none is registered.
func GetDialect(d Type) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ctor, ok := registry[d]
	if !ok {
		return nil, fmt.Errorf("dialect %q is not registered", d)
	}
	return ctor(), nil
}

// resetRegistry replaces the registry with the given map. Intended for testing only.
func resetRegistry(r map[Type]func() Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = r
}

// snapshotRegistry returns a shallow copy of the current registry. Intended for testing only.
func snapshotRegistry() map[Type]func() Dialect {
	registryMu.RLock()
	defer registryMu.RUnlock()
	snap := make(map[Type]func() Dialect, len(registry))
	maps.Copy(snap, registry)
	return snap
}
