// Package collection holds the in-memory grouped collection a screen works on.
//
// A Collection is owned by a single event loop. It hands out copies only, so the
// positions of every group stay contiguous no matter what callers do with the data.
package collection

import (
	"fmt"
	"strings"

	"folio/internal/model"
	"folio/internal/reorder"
)

type Collection struct {
	key    string
	order  []string // group keys in display order
	groups map[string][]model.Item
}

// New hydrates a Collection from its wire shape. Groups are normalized so positions
// are 0..n-1 regardless of what the source stored.
func New(c model.Collection) *Collection {
	out := &Collection{
		key:    strings.TrimSpace(c.Key),
		groups: map[string][]model.Item{},
	}
	for _, g := range c.Groups {
		key := strings.TrimSpace(g.Key)
		if _, ok := out.groups[key]; !ok {
			out.order = append(out.order, key)
		}
		items := append(out.groups[key], g.Items...)
		for i := range items {
			items[i].Group = key
			if items[i].Collection == "" {
				items[i].Collection = out.key
			}
		}
		out.groups[key] = items
	}
	for k, items := range out.groups {
		out.groups[k] = reorder.Normalize(items)
	}
	return out
}

func (c *Collection) Key() string { return c.key }

// GroupKeys returns group keys in display order.
func (c *Collection) GroupKeys() []string {
	return append([]string(nil), c.order...)
}

func (c *Collection) HasGroup(group string) bool {
	_, ok := c.groups[group]
	return ok
}

// Group returns a copy of the group's sequence.
func (c *Collection) Group(group string) []model.Item {
	return append([]model.Item(nil), c.groups[group]...)
}

func (c *Collection) Len(group string) int { return len(c.groups[group]) }

// Find returns a copy of the item with the given id along with its index in its group.
func (c *Collection) Find(id string) (model.Item, int, bool) {
	for _, g := range c.order {
		if idx := reorder.IndexOf(c.groups[g], id); idx >= 0 {
			return c.groups[g][idx], idx, true
		}
	}
	return model.Item{}, -1, false
}

// Replace swaps in a new sequence for a group. seq must hold exactly the group's
// current members; it is renumbered before being stored.
func (c *Collection) Replace(group string, seq []model.Item) error {
	cur, ok := c.groups[group]
	if !ok {
		return fmt.Errorf("unknown group: %s", group)
	}
	next, err := reorder.ApplyOrder(cur, reorder.IDs(seq))
	if err != nil {
		return err
	}
	// Take item contents from seq so callers may carry updated fields through.
	for i := range next {
		next[i] = seq[reorder.IndexOf(seq, next[i].ID)]
		next[i].Position = i
		next[i].Group = group
	}
	c.groups[group] = next
	return nil
}

// ApplyOrder reorders a group to follow ids without touching any other field.
func (c *Collection) ApplyOrder(group string, ids []string) error {
	cur, ok := c.groups[group]
	if !ok {
		return fmt.Errorf("unknown group: %s", group)
	}
	next, err := reorder.ApplyOrder(cur, ids)
	if err != nil {
		return err
	}
	c.groups[group] = next
	return nil
}

// SetFlag updates a single flag and returns the previous value.
func (c *Collection) SetFlag(id string, flag model.Flag, value bool) (bool, error) {
	for _, g := range c.order {
		items := c.groups[g]
		if idx := reorder.IndexOf(items, id); idx >= 0 {
			prev := items[idx].Flag(flag)
			items[idx].SetFlag(flag, value)
			return prev, nil
		}
	}
	return false, fmt.Errorf("unknown item: %s", id)
}

// CountFlag counts items with flag set. An empty group counts across the whole collection.
func (c *Collection) CountFlag(flag model.Flag, group string) int {
	n := 0
	for _, g := range c.order {
		if group != "" && g != group {
			continue
		}
		for _, it := range c.groups[g] {
			if it.Flag(flag) {
				n++
			}
		}
	}
	return n
}

// Snapshot returns the wire shape of the current state.
func (c *Collection) Snapshot() model.Collection {
	out := model.Collection{Key: c.key, Groups: make([]model.Group, 0, len(c.order))}
	for _, g := range c.order {
		out.Groups = append(out.Groups, model.Group{Key: g, Items: c.Group(g)})
	}
	return out
}

// Validate checks that every group's positions are 0..n-1 in order and that ids are unique.
func (c *Collection) Validate() error {
	seen := map[string]string{}
	for _, g := range c.order {
		for i, it := range c.groups[g] {
			if it.Position != i {
				return fmt.Errorf("group %s: item %s at index %d has position %d", g, it.ID, i, it.Position)
			}
			if it.Group != g {
				return fmt.Errorf("group %s: item %s claims group %s", g, it.ID, it.Group)
			}
			if other, dup := seen[it.ID]; dup {
				return fmt.Errorf("item %s appears in groups %s and %s", it.ID, other, g)
			}
			seen[it.ID] = g
		}
	}
	return nil
}
