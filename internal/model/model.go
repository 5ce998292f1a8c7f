package model

import (
	"fmt"
	"strings"
	"time"
)

// Collection keys for the portfolio admin surface.
const (
	CollectionSkills       = "skills"
	CollectionTestimonials = "testimonials"
	CollectionServices     = "services"
	CollectionProjects     = "projects"
)

// Group keys. Skills are split by display type; everything else has a single group.
const (
	GroupDefault  = "default"
	GroupProgress = "progress"
	GroupCard     = "card"
)

// Collections lists the known collection keys in display order.
func Collections() []string {
	return []string{CollectionSkills, CollectionTestimonials, CollectionServices, CollectionProjects}
}

// DefaultGroups returns the group keys a collection starts with.
func DefaultGroups(collection string) []string {
	if collection == CollectionSkills {
		return []string{GroupProgress, GroupCard}
	}
	return []string{GroupDefault}
}

type Flag string

const (
	FlagFeatured Flag = "featured"
	FlagVisible  Flag = "visible"
)

func ParseFlag(s string) (Flag, error) {
	switch Flag(strings.ToLower(strings.TrimSpace(s))) {
	case FlagFeatured:
		return FlagFeatured, nil
	case FlagVisible:
		return FlagVisible, nil
	default:
		return "", fmt.Errorf("unknown flag: %q (expected featured|visible)", s)
	}
}

// Item is one ordered content record (a skill, testimonial, service or project).
type Item struct {
	ID         string `json:"id" yaml:"id"`
	Collection string `json:"collection" yaml:"collection"`
	Group      string `json:"group" yaml:"group"`
	Position   int    `json:"position" yaml:"position"`

	Title    string `json:"title" yaml:"title"`
	Subtitle string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`

	Featured bool `json:"featured" yaml:"featured"`
	Visible  bool `json:"visible" yaml:"visible"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

func (it Item) Flag(f Flag) bool {
	switch f {
	case FlagFeatured:
		return it.Featured
	case FlagVisible:
		return it.Visible
	}
	return false
}

func (it *Item) SetFlag(f Flag, v bool) {
	switch f {
	case FlagFeatured:
		it.Featured = v
	case FlagVisible:
		it.Visible = v
	}
}

// Group is one independently ordered sub-list of a collection.
type Group struct {
	Key   string `json:"key" yaml:"key"`
	Items []Item `json:"items" yaml:"items"`
}

// Collection is the wire/storage shape of a grouped collection.
type Collection struct {
	Key    string  `json:"key" yaml:"key"`
	Groups []Group `json:"groups" yaml:"groups"`
}

type Event struct {
	ID       string    `json:"id" yaml:"id"`
	TS       time.Time `json:"ts" yaml:"ts"`
	Type     string    `json:"type" yaml:"type"`
	EntityID string    `json:"entityId" yaml:"entityId"`
	Payload  any       `json:"payload" yaml:"payload"`
}
