// Package datapkg builds and validates the tabular-data-package descriptor
// (datapackage.json) that accompanies a TSV export: one resource per
// exported table, with a frictionless-compatible schema of fields, a
// primary key, and foreign key references.
package datapkg

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"
)

// Dialect is the fixed TSV reading dialect every resource declares.
type Dialect struct {
	Delimiter        string `json:"delimiter"`
	QuoteChar        string `json:"quoteChar"`
	EscapeChar       string `json:"escapeChar"`
	DoubleQuote      bool   `json:"doubleQuote"`
	SkipInitialSpace bool   `json:"skipInitialSpace"`
}

// DefaultDialect is the TSV dialect used by every resource this package
// emits, matching the tab-delimited, unquoted export format.
var DefaultDialect = Dialect{
	Delimiter:        "\t",
	QuoteChar:        "\x00",
	EscapeChar:       "\x00",
	DoubleQuote:      false,
	SkipInitialSpace: false,
}

// Constraints mirrors a frictionless field's "constraints" object.
type Constraints struct {
	Required  bool     `json:"required,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
	Enum      []string `json:"enum,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Unique    bool     `json:"unique,omitempty"`
}

// Field is one column in a resource's schema.
type Field struct {
	Name          string       `json:"name"`
	Type          string       `json:"type"`
	JDBCType      string       `json:"jdbc_type"`
	DBColumnName  string       `json:"db_column_name"`
	Constraints   *Constraints `json:"constraints,omitempty"`
}

// ForeignKeyReference points a field at a column in another resource.
type ForeignKeyReference struct {
	Resource string   `json:"resource"`
	Fields   []string `json:"fields"`
}

// ForeignKey is one entry in a schema's "foreignKeys" list.
type ForeignKey struct {
	Fields    []string            `json:"fields"`
	Reference ForeignKeyReference `json:"reference"`
}

// Schema is a resource's "schema" object: fields plus key constraints.
type Schema struct {
	Fields      []Field      `json:"fields"`
	PrimaryKey  []string     `json:"primaryKey,omitempty"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
}

// Resource describes one exported table.
type Resource struct {
	Name         string  `json:"name"`
	Profile      string  `json:"profile"`
	Path         string  `json:"path"`
	Encoding     string  `json:"encoding"`
	DBTableName  string  `json:"db_table_name"`
	DBTableDeps  string  `json:"db_table_deps"`
	CountOfRows  string  `json:"count_of_rows"`
	Schema       Schema  `json:"schema"`
	Dialect      Dialect `json:"dialect"`
}

// Package is the full datapackage.json descriptor.
type Package struct {
	Name      string     `json:"name"`
	Profile   string     `json:"profile"`
	Resources []Resource `json:"resources"`
}

// NewPackage initializes an empty descriptor for the named target.
func NewPackage(name string) *Package {
	return &Package{Name: name, Profile: "tabular-data-package", Resources: []Resource{}}
}

// AddResource appends r to the package's resource list.
func (p *Package) AddResource(r Resource) {
	p.Resources = append(p.Resources, r)
}

// Hash returns a content hash of the marshaled package, used to decide
// whether a previously written descriptor is still current.
func (p *Package) Hash() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("datapkg: hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Write marshals p to path as indented JSON, skipping the write (and
// returning false) if a descriptor already exists at path with the same
// content hash, matching the "not rewritten if unchanged" idempotency rule.
func (p *Package) Write(path string) (written bool, err error) {
	hash, err := p.Hash()
	if err != nil {
		return false, err
	}
	hashPath := path + ".sha256"

	if existing, readErr := os.ReadFile(hashPath); readErr == nil {
		if string(existing) == hash {
			if _, statErr := os.Stat(path); statErr == nil {
				return false, nil
			}
		}
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return false, fmt.Errorf("datapkg: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("datapkg: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("datapkg: write %s: %w", path, err)
	}
	if err := os.WriteFile(hashPath, []byte(hash), 0o644); err != nil {
		return false, fmt.Errorf("datapkg: write hash: %w", err)
	}
	return true, nil
}

// ReadPackage loads a previously written descriptor from path.
func ReadPackage(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("datapkg: read %s: %w", path, err)
	}
	var p Package
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("datapkg: unmarshal %s: %w", path, err)
	}
	return &p, nil
}

//go:embed schema/datapackage.schema.json
var descriptorSchema string

// Validate structurally checks p's marshaled JSON against the embedded
// tabular-data-package JSON Schema, catching an emitter bug before any row
// data is exported and run through the row-level validator.
func Validate(p *Package) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("datapkg: marshal for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(descriptorSchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("datapkg: schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("datapkg: descriptor invalid: %v", msgs)
	}
	return nil
}
