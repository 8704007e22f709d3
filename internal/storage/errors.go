// Package storage defines the persistence errors shared by store
// implementations and their callers.
package storage

import "errors"

// ErrNotFound signals that a referenced document does not exist.
var ErrNotFound = errors.New("not found")
