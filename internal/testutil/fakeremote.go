// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"sync"

	"folio/internal/model"
	"folio/internal/reorder"
)

// ErrNotFound is returned when a collection or item is unknown to the fake.
var ErrNotFound = errors.New("not found")

// ErrRejected is a canned "the server said no" error for failure injection.
var ErrRejected = errors.New("rejected by remote")

// FakeRemote is an in-memory record service for controller tests.
type FakeRemote struct {
	mu          sync.Mutex
	collections map[string]model.Collection

	OrderCalls  []model.OrderCommit
	ToggleCalls []model.ToggleCommit

	// Error injection for testing
	LoadErr   error
	OrderErr  error
	ToggleErr error
	// FailNext fails this many upcoming submits (order or toggle) with ErrRejected.
	FailNext int

	// Gate, when set, blocks each submit until a value is received (or ctx ends).
	Gate chan struct{}
}

func NewFakeRemote(cols ...model.Collection) *FakeRemote {
	f := &FakeRemote{collections: map[string]model.Collection{}}
	for _, c := range cols {
		f.collections[c.Key] = c
	}
	return f
}

// Stored returns the ids of a group as the fake currently stores them.
func (f *FakeRemote) Stored(collection, group string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.collections[collection].Groups {
		if g.Key == group {
			return reorder.IDs(g.Items)
		}
	}
	return nil
}

// StoredItem returns an item as the fake currently stores it.
func (f *FakeRemote) StoredItem(collection, id string) (model.Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.collections[collection].Groups {
		for _, it := range g.Items {
			if it.ID == id {
				return it, true
			}
		}
	}
	return model.Item{}, false
}

// LoadCollection implements optimistic.Remote.
func (f *FakeRemote) LoadCollection(ctx context.Context, key string) (model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadErr != nil {
		return model.Collection{}, f.LoadErr
	}
	c, ok := f.collections[key]
	if !ok {
		return model.Collection{}, ErrNotFound
	}
	out := model.Collection{Key: c.Key}
	for _, g := range c.Groups {
		out.Groups = append(out.Groups, model.Group{Key: g.Key, Items: append([]model.Item(nil), g.Items...)})
	}
	return out, nil
}

func (f *FakeRemote) wait(ctx context.Context) error {
	if f.Gate == nil {
		return nil
	}
	select {
	case <-f.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// takeFailure must be called with f.mu held.
func (f *FakeRemote) takeFailure(injected error) error {
	if injected != nil {
		return injected
	}
	if f.FailNext > 0 {
		f.FailNext--
		return ErrRejected
	}
	return nil
}

// SubmitOrder implements optimistic.Remote.
func (f *FakeRemote) SubmitOrder(ctx context.Context, c model.OrderCommit) (model.Ack, error) {
	if err := f.wait(ctx); err != nil {
		return model.Ack{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OrderCalls = append(f.OrderCalls, c)
	if err := f.takeFailure(f.OrderErr); err != nil {
		return model.Ack{}, err
	}
	col, ok := f.collections[c.Collection]
	if !ok {
		return model.Ack{}, ErrNotFound
	}
	for i, g := range col.Groups {
		if g.Key != c.Group {
			continue
		}
		next, err := reorder.ApplyOrder(g.Items, c.IDs)
		if err != nil {
			return model.Ack{}, err
		}
		changed := !equalIDs(reorder.IDs(g.Items), c.IDs)
		col.Groups[i].Items = next
		return model.Ack{Seq: c.Seq, Changed: changed}, nil
	}
	return model.Ack{}, ErrNotFound
}

// SubmitToggle implements optimistic.Remote.
func (f *FakeRemote) SubmitToggle(ctx context.Context, c model.ToggleCommit) (model.Ack, error) {
	if err := f.wait(ctx); err != nil {
		return model.Ack{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ToggleCalls = append(f.ToggleCalls, c)
	if err := f.takeFailure(f.ToggleErr); err != nil {
		return model.Ack{}, err
	}
	col, ok := f.collections[c.Collection]
	if !ok {
		return model.Ack{}, ErrNotFound
	}
	for _, g := range col.Groups {
		for i := range g.Items {
			if g.Items[i].ID != c.ItemID {
				continue
			}
			changed := g.Items[i].Flag(c.Flag) != c.Value
			g.Items[i].SetFlag(c.Flag, c.Value)
			return model.Ack{Seq: c.Seq, Changed: changed}, nil
		}
	}
	return model.Ack{}, ErrNotFound
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Items builds a group of items with sequential positions.
func Items(collection, group string, ids ...string) []model.Item {
	out := make([]model.Item, len(ids))
	for i, id := range ids {
		out[i] = model.Item{ID: id, Collection: collection, Group: group, Position: i, Title: id}
	}
	return out
}
