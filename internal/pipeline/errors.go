package pipeline

import "fmt"

// SnapshotError means the pre-write snapshot could not be created. It is
// always returned before anything has been mutated.
type SnapshotError struct {
	Path string // snapshot destination
	Err  error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Path, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// WriteError means a mutation failed partway through a fix. Writes that
// already happened stand; the snapshot holds the pre-run bibliography.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
