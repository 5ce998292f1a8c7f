package store

import (
	"errors"

	"folio/internal/caps"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidOrder = errors.New("invalid order")
	ErrStaleCommit  = errors.New("stale commit")
	ErrCapExceeded  = caps.ErrCapExceeded
)
