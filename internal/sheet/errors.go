package sheet

import "fmt"

// BoundsError is returned when a write targets a cell outside the document or
// carries unresolved coordinates. The document is left untouched.
type BoundsError struct {
	Row     int
	Column  int
	Rows    int
	Columns int
}

func (e *BoundsError) Error() string {
	if e.Row < 0 || e.Column < 0 {
		return fmt.Sprintf("unresolved cell (row %d, column %d)", e.Row, e.Column)
	}
	return fmt.Sprintf("cell (row %d, column %d) is outside of the document (%d rows, %d columns)",
		e.Row, e.Column, e.Rows, e.Columns)
}

// StorageError is returned when the document could not be persisted. The
// in-memory and on-disk states have diverged when it is seen.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("flush tracking document %q: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
