package engine

import "fmt"

// ConfigurationError is fatal at start: a missing driver, an unparseable
// connection URL, or an invalid source/target combination.
type ConfigurationError struct {
	Msg   string
	Cause error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ReflectionError means the driver failed to enumerate metadata for Table;
// the affected subsystem is not entered.
type ReflectionError struct {
	Table string
	Cause error
}

func (e *ReflectionError) Error() string {
	return fmt.Sprintf("reflection error on %s: %v", e.Table, e.Cause)
}

func (e *ReflectionError) Unwrap() error { return e.Cause }

// CycleDetected means the foreign-key dependency graph is not a DAG. The
// caller has already written the detected cycle paths to the project's deps
// file before this error is returned; the edge list is not written there.
type CycleDetected struct {
	Edges [][2]string
}

func (e *CycleDetected) Error() string {
	return fmt.Sprintf("dependency cycle detected across %d edges", len(e.Edges))
}

// DDLError means the target refused to create Table; it is marked
// created=0, cp_error=1 and the run continues for independent tables.
type DDLError struct {
	Table string
	Cause error
}

func (e *DDLError) Error() string {
	return fmt.Sprintf("ddl error on %s: %v", e.Table, e.Cause)
}

func (e *DDLError) Unwrap() error { return e.Cause }

// CopyError means a row count mismatch or execution exception occurred
// while copying Table; the table and its dependents are truncated and
// cp_error=1.
type CopyError struct {
	Table string
	Cause error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy error on %s: %v", e.Table, e.Cause)
}

func (e *CopyError) Unwrap() error { return e.Cause }

// ValidationError means the datapackage validator rejected Table's TSV;
// the table's validated flag is cleared and the structured report, if any,
// is attached as Cause.
type ValidationError struct {
	Table string
	Cause error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %v", e.Table, e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }
