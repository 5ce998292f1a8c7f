// Package reorder computes new orderings for a single group of items.
//
// Every function here is pure: inputs are never modified and the returned
// sequence always carries positions 0..n-1 in iteration order.
package reorder

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"folio/internal/model"
)

type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return Up, fmt.Errorf("unknown direction: %q (expected up|down)", s)
	}
}

// MoveByIndex removes the item at from and reinserts it at to.
// ok is false (and seq is returned as-is) when from == to or either index is out of range.
func MoveByIndex(seq []model.Item, from, to int) ([]model.Item, bool) {
	n := len(seq)
	if from == to || from < 0 || from >= n || to < 0 || to >= n {
		return seq, false
	}

	moved := seq[from]
	rest := make([]model.Item, 0, n-1)
	rest = append(rest, seq[:from]...)
	rest = append(rest, seq[from+1:]...)

	out := make([]model.Item, 0, n)
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	renumber(out)
	return out, true
}

// MoveAdjacent moves the item at index one slot up or down.
// Moving the first item up or the last item down is a no-op.
func MoveAdjacent(seq []model.Item, index int, dir Direction) ([]model.Item, bool) {
	if dir == Up {
		return MoveByIndex(seq, index, index-1)
	}
	return MoveByIndex(seq, index, index+1)
}

// Renumber returns a copy of seq with positions re-derived from slice order.
func Renumber(seq []model.Item) []model.Item {
	out := append([]model.Item(nil), seq...)
	renumber(out)
	return out
}

func renumber(seq []model.Item) {
	for i := range seq {
		seq[i].Position = i
	}
}

// IDs projects the ids of seq in order.
func IDs(seq []model.Item) []string {
	ids := make([]string, len(seq))
	for i := range seq {
		ids[i] = seq[i].ID
	}
	return ids
}

// IndexOf returns the index of id in seq, or -1.
func IndexOf(seq []model.Item, id string) int {
	id = strings.TrimSpace(id)
	for i := range seq {
		if seq[i].ID == id {
			return i
		}
	}
	return -1
}

var ErrOrderMismatch = errors.New("order does not match group members")

// ApplyOrder reorders seq to follow ids exactly. ids must be a permutation of the ids in seq.
func ApplyOrder(seq []model.Item, ids []string) ([]model.Item, error) {
	if len(ids) != len(seq) {
		return nil, fmt.Errorf("%w: got %d ids for %d items", ErrOrderMismatch, len(ids), len(seq))
	}
	byID := make(map[string]model.Item, len(seq))
	for _, it := range seq {
		byID[it.ID] = it
	}
	out := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown or duplicate id %q", ErrOrderMismatch, id)
		}
		delete(byID, id)
		out = append(out, it)
	}
	renumber(out)
	return out, nil
}

// Normalize sorts a group the way it is displayed (position, then created time, then id)
// and renumbers it. Stored data with gaps or duplicate positions becomes contiguous.
func Normalize(seq []model.Item) []model.Item {
	out := append([]model.Item(nil), seq...)
	sort.SliceStable(out, func(i, j int) bool {
		return compareItems(out[i], out[j]) < 0
	})
	renumber(out)
	return out
}

func compareItems(a, b model.Item) int {
	if a.Position != b.Position {
		if a.Position < b.Position {
			return -1
		}
		return 1
	}
	if a.CreatedAt.Before(b.CreatedAt) {
		return -1
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}
