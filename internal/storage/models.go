package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Import records one replacement of the stored taxonomy.
type Import struct {
	ID         int64
	Source     string
	Categories int
	Keywords   int
	ImportedAt time.Time
}
