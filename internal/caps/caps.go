// Package caps enforces "at most N items carry this flag" limits.
//
// The same rules run in two places: the admin screen checks them before it flips a flag
// locally, and the record service checks them again before it stores the change.
package caps

import (
	"errors"
	"fmt"
	"strings"

	"folio/internal/model"
)

var ErrCapExceeded = errors.New("limit reached")

// Rule limits how many items of Collection may have Flag set. An empty Group applies
// the limit across the whole collection; otherwise only items of that group count.
type Rule struct {
	Collection string     `json:"collection" yaml:"collection" mapstructure:"collection"`
	Flag       model.Flag `json:"flag" yaml:"flag" mapstructure:"flag"`
	Group      string     `json:"group,omitempty" yaml:"group,omitempty" mapstructure:"group"`
	Max        int        `json:"max" yaml:"max" mapstructure:"max"`
}

func (r Rule) String() string {
	scope := r.Collection
	if r.Group != "" {
		scope += "/" + r.Group
	}
	return fmt.Sprintf("%s %s <= %d", scope, r.Flag, r.Max)
}

func (r Rule) matches(collection, group string, flag model.Flag) bool {
	if r.Flag != flag || r.Collection != collection {
		return false
	}
	return r.Group == "" || r.Group == group
}

type ExceededError struct {
	Rule  Rule
	Count int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("limit reached: %s (currently %d)", e.Rule, e.Count)
}

func (e *ExceededError) Is(target error) bool { return target == ErrCapExceeded }

type Set []Rule

// Default returns the limits the portfolio site is designed around.
func Default() Set {
	return Set{
		{Collection: model.CollectionProjects, Flag: model.FlagFeatured, Max: 3},
		{Collection: model.CollectionTestimonials, Flag: model.FlagFeatured, Max: 3},
		{Collection: model.CollectionServices, Flag: model.FlagFeatured, Max: 3},
		{Collection: model.CollectionSkills, Flag: model.FlagVisible, Group: model.GroupProgress, Max: 5},
		{Collection: model.CollectionSkills, Flag: model.FlagVisible, Group: model.GroupCard, Max: 6},
	}
}

// Counter reports how many items carry flag within a scope ("" = whole collection).
type Counter interface {
	CountFlag(flag model.Flag, group string) int
}

// Check reports whether one more item of group may have flag set.
// Only the false->true transition is gated; callers skip Check when clearing a flag.
func (s Set) Check(counts Counter, collection, group string, flag model.Flag) error {
	collection = strings.TrimSpace(collection)
	for _, r := range s {
		if !r.matches(collection, group, flag) {
			continue
		}
		n := counts.CountFlag(flag, r.Group)
		if n >= r.Max {
			return &ExceededError{Rule: r, Count: n}
		}
	}
	return nil
}

// Validate rejects rules that can never be satisfied or reference unknown flags.
func (s Set) Validate() error {
	for _, r := range s {
		if _, err := model.ParseFlag(string(r.Flag)); err != nil {
			return err
		}
		if strings.TrimSpace(r.Collection) == "" {
			return fmt.Errorf("cap rule %s: missing collection", r)
		}
		if r.Max < 0 {
			return fmt.Errorf("cap rule %s: negative max", r)
		}
	}
	return nil
}
