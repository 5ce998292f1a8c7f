package optimistic

import (
	"errors"
	"fmt"

	"folio/internal/caps"
)

// ErrLocalCapExceeded matches toggles rejected before any mutation or remote call.
var ErrLocalCapExceeded = caps.ErrCapExceeded

// ErrAborted marks queued commits dropped because an earlier commit in the same lane
// failed and its rollback already undid their local effect.
var ErrAborted = errors.New("aborted after earlier commit failed")

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// CommitFailedError reports a commit the collaborator did not accept. Local state for the
// commit's lane has already been rolled back when this error is surfaced.
type CommitFailedError struct {
	CommitID uint64
	Lane     string
	Err      error
}

func (e *CommitFailedError) Error() string {
	return fmt.Sprintf("commit %d (%s) failed: %v", e.CommitID, e.Lane, e.Err)
}

func (e *CommitFailedError) Unwrap() error { return e.Err }
