package reorder

import (
	"fmt"

	"folio/internal/model"
)

// Op describes a requested move within one group.
//
// Ops are resolved against whatever sequence is passed to Apply, so callers should
// build them from current state right before applying, never from a cached index.
type Op interface {
	Apply(seq []model.Item) ([]model.Item, bool)
	String() string
}

// ByIndex is a drag-and-drop style move.
type ByIndex struct {
	From, To int
}

func (o ByIndex) Apply(seq []model.Item) ([]model.Item, bool) {
	return MoveByIndex(seq, o.From, o.To)
}

func (o ByIndex) String() string { return fmt.Sprintf("move %d->%d", o.From, o.To) }

// Adjacent is a move-up / move-down button press.
type Adjacent struct {
	Index int
	Dir   Direction
}

func (o Adjacent) Apply(seq []model.Item) ([]model.Item, bool) {
	return MoveAdjacent(seq, o.Index, o.Dir)
}

func (o Adjacent) String() string { return fmt.Sprintf("move %d %s", o.Index, o.Dir) }

// ByID moves the item with the given id to index To.
type ByID struct {
	ID string
	To int
}

func (o ByID) Apply(seq []model.Item) ([]model.Item, bool) {
	return MoveByIndex(seq, IndexOf(seq, o.ID), o.To)
}

func (o ByID) String() string { return fmt.Sprintf("move %s->%d", o.ID, o.To) }

// AdjacentID moves the item with the given id one slot up or down.
type AdjacentID struct {
	ID  string
	Dir Direction
}

func (o AdjacentID) Apply(seq []model.Item) ([]model.Item, bool) {
	idx := IndexOf(seq, o.ID)
	if idx < 0 {
		return seq, false
	}
	return MoveAdjacent(seq, idx, o.Dir)
}

func (o AdjacentID) String() string { return fmt.Sprintf("move %s %s", o.ID, o.Dir) }
