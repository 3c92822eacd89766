// Package rowvalidate is the Schema Validator: given a datapackage
// descriptor and the TSV files it describes, it checks every declared
// field's type, required, maxLength, and enum constraints row-by-row,
// primary-key uniqueness and non-nullity, and foreign-key resolution
// against the referenced resource's own exported rows. It is side-effect
// free on success; on failure it returns a structured Report the caller is
// expected to persist and use to flag the offending tables back to
// unvalidated.
package rowvalidate

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"tablekeep/internal/datapkg"
)

// FieldFailure is one row's violation of one field's constraint.
type FieldFailure struct {
	Resource string `json:"resource"`
	Field    string `json:"field"`
	Row      int    `json:"row"` // 1-indexed data row, header excluded
	Reason   string `json:"reason"`
}

// TableReport is the outcome of validating one resource.
type TableReport struct {
	Resource string         `json:"resource"`
	RowCount int            `json:"row_count"`
	Failures []FieldFailure `json:"failures,omitempty"`
}

// Passed reports whether this resource's TSV satisfied every constraint.
func (r TableReport) Passed() bool {
	return len(r.Failures) == 0
}

// Report is the full structured validation result, one TableReport per
// resource checked.
type Report struct {
	Tables []TableReport `json:"tables"`
}

// Passed reports whether every resource in the report passed.
func (r Report) Passed() bool {
	for _, t := range r.Tables {
		if !t.Passed() {
			return false
		}
	}
	return true
}

// FailedResources lists the resource names that failed validation.
func (r Report) FailedResources() []string {
	var names []string
	for _, t := range r.Tables {
		if !t.Passed() {
			names = append(names, t.Resource)
		}
	}
	return names
}

// rowKey is a primary-key tuple, joined for use as a map key.
type rowKey string

func joinKey(parts []string) rowKey {
	return rowKey(strings.Join(parts, "\x1f"))
}

// pkIndex maps a resource name to the set of primary-key tuples its TSV
// contains, built once per resource so foreign keys from other resources
// can resolve against it without rereading the file.
type pkIndex map[string]map[rowKey]bool

// Validate checks every resource in pkg whose TSV is reachable via
// tsvPath(resourceName), returning a Report that names every row-level
// violation found. tsvPath lets callers supply their own layout (e.g.
// project.Layout.TSVPath) without this package importing it directly.
func Validate(pkg *datapkg.Package, tsvPath func(resource string) string) (Report, error) {
	index := make(pkIndex, len(pkg.Resources))
	rows := make(map[string][][]string, len(pkg.Resources))

	for _, res := range pkg.Resources {
		data, err := readTSV(tsvPath(res.Name))
		if err != nil {
			return Report{}, fmt.Errorf("rowvalidate: %s: %w", res.Name, err)
		}
		rows[res.Name] = data
		index[res.Name] = buildPKIndex(res, data)
	}

	report := Report{Tables: make([]TableReport, 0, len(pkg.Resources))}
	for _, res := range pkg.Resources {
		report.Tables = append(report.Tables, validateResource(res, rows[res.Name], index, pkg))
	}
	return report, nil
}

// readTSV reads path's header-plus-data rows, tab-split. Unlike
// encoding/csv this never interprets quote characters, matching the
// unquoted format the exporter writes.
func readTSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rows [][]string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue // header, already known from the schema
		}
		rows = append(rows, strings.Split(scanner.Text(), "\t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return rows, nil
}

func fieldIndex(schema datapkg.Schema) map[string]int {
	idx := make(map[string]int, len(schema.Fields))
	for i, f := range schema.Fields {
		idx[f.Name] = i
	}
	return idx
}

func buildPKIndex(res datapkg.Resource, rows [][]string) map[rowKey]bool {
	if len(res.Schema.PrimaryKey) == 0 {
		return nil
	}
	idx := fieldIndex(res.Schema)
	pkCols := make([]int, len(res.Schema.PrimaryKey))
	for i, name := range res.Schema.PrimaryKey {
		pkCols[i] = idx[name]
	}

	keys := make(map[rowKey]bool, len(rows))
	for _, row := range rows {
		parts := make([]string, len(pkCols))
		for i, col := range pkCols {
			if col < len(row) {
				parts[i] = row[col]
			}
		}
		keys[joinKey(parts)] = true
	}
	return keys
}

func validateResource(res datapkg.Resource, rows [][]string, index pkIndex, pkg *datapkg.Package) TableReport {
	report := TableReport{Resource: res.Name, RowCount: len(rows)}
	idx := fieldIndex(res.Schema)

	pkCols := make([]int, len(res.Schema.PrimaryKey))
	for i, name := range res.Schema.PrimaryKey {
		pkCols[i] = idx[name]
	}
	seenPK := make(map[rowKey]bool, len(rows))

	for rowNum, row := range rows {
		for _, f := range res.Schema.Fields {
			col, ok := idx[f.Name]
			var cell string
			if ok && col < len(row) {
				cell = row[col]
			}
			if reason := checkField(f, cell); reason != "" {
				report.Failures = append(report.Failures, FieldFailure{
					Resource: res.Name, Field: f.Name, Row: rowNum + 1, Reason: reason,
				})
			}
		}

		if len(pkCols) > 0 {
			parts := make([]string, len(pkCols))
			empty := true
			for i, col := range pkCols {
				if col < len(row) {
					parts[i] = row[col]
				}
				if parts[i] != "" {
					empty = false
				}
			}
			if empty {
				report.Failures = append(report.Failures, FieldFailure{
					Resource: res.Name, Row: rowNum + 1, Field: strings.Join(res.Schema.PrimaryKey, ","),
					Reason: "primary key is null",
				})
			} else {
				key := joinKey(parts)
				if seenPK[key] {
					report.Failures = append(report.Failures, FieldFailure{
						Resource: res.Name, Row: rowNum + 1, Field: strings.Join(res.Schema.PrimaryKey, ","),
						Reason: "duplicate primary key",
					})
				}
				seenPK[key] = true
			}
		}

		for _, fk := range res.Schema.ForeignKeys {
			if reason := checkForeignKey(fk, idx, row, index); reason != "" {
				report.Failures = append(report.Failures, FieldFailure{
					Resource: res.Name, Row: rowNum + 1, Field: strings.Join(fk.Fields, ","), Reason: reason,
				})
			}
		}
	}

	return report
}

func checkForeignKey(fk datapkg.ForeignKey, idx map[string]int, row []string, index pkIndex) string {
	parts := make([]string, len(fk.Fields))
	allNull := true
	for i, name := range fk.Fields {
		col, ok := idx[name]
		if ok && col < len(row) {
			parts[i] = row[col]
		}
		if parts[i] != "" {
			allNull = false
		}
	}
	if allNull {
		return "" // a nullable FK with no value is not a violation
	}

	refKeys, ok := index[fk.Reference.Resource]
	if !ok {
		return fmt.Sprintf("references unknown resource %q", fk.Reference.Resource)
	}
	if !refKeys[joinKey(parts)] {
		return fmt.Sprintf("references missing row in %q", fk.Reference.Resource)
	}
	return ""
}

var (
	integerRe = regexp.MustCompile(`^-?[0-9]+$`)
	numberRe  = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

// checkField returns a non-empty reason string when cell violates f's
// constraints, or "" when it's valid. An empty cell satisfies every type
// check but fails "required".
func checkField(f datapkg.Field, cell string) string {
	if cell == "" {
		if f.Constraints != nil && f.Constraints.Required {
			return "required field is empty"
		}
		return ""
	}

	if f.Constraints != nil {
		if f.Constraints.MaxLength > 0 && len(cell) > f.Constraints.MaxLength {
			return fmt.Sprintf("exceeds maxLength %d", f.Constraints.MaxLength)
		}
		if len(f.Constraints.Enum) > 0 && !containsString(f.Constraints.Enum, cell) {
			return fmt.Sprintf("value %q not in enum", cell)
		}
	}

	switch f.Type {
	case "integer":
		if !integerRe.MatchString(cell) {
			return fmt.Sprintf("value %q is not an integer", cell)
		}
	case "number":
		if !numberRe.MatchString(cell) {
			return fmt.Sprintf("value %q is not a number", cell)
		}
	case "boolean":
		if cell != "0" && cell != "1" {
			return fmt.Sprintf("value %q is not boolean", cell)
		}
	case "date", "datetime", "time":
		// Exported via the exporter's fixed formats; presence and length
		// checks above already cover the common corruption cases. Deeper
		// calendar validation is left to the target database's own DDL
		// constraints once copied.
	}

	return ""
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
