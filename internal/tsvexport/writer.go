// Package tsvexport streams one table's rows to a UTF-8 TSV file, spilling
// blob/CLOB columns to sidecar files under documents/, and reconciling the
// exported row count against the source so all-NULL rows are accounted for
// in empty_rows instead of silently vanishing.
package tsvexport

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Writer streams rows as an unquoted, tab-delimited, LF-terminated text
// export: no CSV-style quoting, embedded TAB/CR/LF collapsed to a single
// space, NULL rendered as an empty cell, UTF-8 without a BOM.
// encoding/csv cannot produce this shape — it always quotes any field
// containing its own delimiter — so this writer is hand-rolled instead.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w for TSV output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteRow writes one row of already-stringified cells, tab-separated and
// LF-terminated.
func (tw *Writer) WriteRow(cells []string) error {
	for i, c := range cells {
		if i > 0 {
			if err := tw.w.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := tw.w.WriteString(sanitizeCell(c)); err != nil {
			return err
		}
	}
	return tw.w.WriteByte('\n')
}

// Flush flushes buffered output to the underlying writer.
func (tw *Writer) Flush() error {
	return tw.w.Flush()
}

var cellReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// sanitizeCell collapses embedded TAB/CR/LF to a single space and trims
// trailing whitespace, matching the TSV format's no-quoting, single-line
// cell guarantee.
func sanitizeCell(s string) string {
	return strings.TrimRight(cellReplacer.Replace(s), " ")
}

// FormatValue renders a scanned column value (via sql.Rows.Scan into `any`)
// as its TSV cell text: NULL becomes empty, floats use '.' as the decimal
// separator, byte slices are copied through as text (callers handling
// blob/LOB columns should spill those to a sidecar file before reaching
// here instead).
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		if val == nil {
			return ""
		}
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return val.UTC().Format("2006-01-02 15:04:05")
	case sql.NullString:
		if !val.Valid {
			return ""
		}
		return val.String
	case sql.NullInt64:
		if !val.Valid {
			return ""
		}
		return strconv.FormatInt(val.Int64, 10)
	case sql.NullFloat64:
		if !val.Valid {
			return ""
		}
		return strconv.FormatFloat(val.Float64, 'f', -1, 64)
	case sql.NullBool:
		if !val.Valid {
			return ""
		}
		if val.Bool {
			return "1"
		}
		return "0"
	case sql.NullTime:
		if !val.Valid {
			return ""
		}
		return val.Time.UTC().Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", val)
	}
}
