package optimistic

import (
	"fmt"

	"folio/internal/model"
)

type Kind int

const (
	KindOrder Kind = iota
	KindToggle
)

func (k Kind) String() string {
	if k == KindOrder {
		return "order"
	}
	return "toggle"
}

// State is the lifecycle of one optimistic mutation: pending until the collaborator
// answers, then committed or rolled back.
type State int

const (
	StatePending State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Commit is an in-flight (or queued) remote persistence request together with the
// snapshot needed to undo its local effect.
//
// Kind, Lane, Order and Toggle never change after creation, so Send may read them from
// any goroutine. State and Err are only written by the owning event loop.
type Commit struct {
	ID   uint64
	Kind Kind
	Lane string

	Order  model.OrderCommit
	Toggle model.ToggleCommit

	State State
	Err   error

	prevOrder []string
	prevValue bool
	sent      bool
}

func (c *Commit) Seq() uint64 {
	if c.Kind == KindOrder {
		return c.Order.Seq
	}
	return c.Toggle.Seq
}

func (c *Commit) describe() string {
	if c.Kind == KindOrder {
		return fmt.Sprintf("order of %s/%s", c.Order.Collection, c.Order.Group)
	}
	state := "off"
	if c.Toggle.Value {
		state = "on"
	}
	return fmt.Sprintf("%s %s for %s", c.Toggle.Flag, state, c.Toggle.ItemID)
}

// Result is the outcome of sending a commit. Err nil means the collaborator accepted it.
type Result struct {
	CommitID uint64
	Ack      model.Ack
	Err      error
}

type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notification is a transient message for the presentation layer.
type Notification struct {
	Kind     NoticeKind
	CommitID uint64
	Message  string
	Err      error
}
