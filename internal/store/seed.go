package store

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"folio/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yml
var demoSeed []byte

// SeedItem is one item in a seed file. Order within a group is the list order.
type SeedItem struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle,omitempty"`
	Featured bool   `yaml:"featured,omitempty"`
	Visible  bool   `yaml:"visible,omitempty"`
}

// SeedFile maps collection -> group -> items.
type SeedFile struct {
	Collections map[string]map[string][]SeedItem `yaml:"collections"`
}

func ParseSeed(b []byte) (SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return SeedFile{}, fmt.Errorf("parse seed: %w", err)
	}
	for c := range f.Collections {
		if !knownCollection(c) {
			return SeedFile{}, fmt.Errorf("seed: collection %q: %w", c, ErrNotFound)
		}
	}
	return f, nil
}

// DemoSeed returns the built-in example content.
func DemoSeed() SeedFile {
	f, err := ParseSeed(demoSeed)
	if err != nil {
		panic(err)
	}
	return f
}

type seedCounts map[string]int

func (c seedCounts) CountFlag(flag model.Flag, group string) int {
	return c[string(flag)+"/"+group]
}

func (c seedCounts) add(flag model.Flag, group string) {
	c[string(flag)+"/"+group]++
	c[string(flag)+"/"]++
}

// Seed replaces every collection named in f with the seed's items. Collections not named
// in f are left alone. Caps are enforced as if the items were created one by one.
func (s *Service) Seed(ctx context.Context, f SeedFile) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[string]int{}
	cols := make([]string, 0, len(f.Collections))
	for c := range f.Collections {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UTC().Truncate(time.Millisecond)
		for _, c := range cols {
			if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE collection = ?`, c); err != nil {
				return err
			}
			groups := make([]string, 0, len(f.Collections[c]))
			for g := range f.Collections[c] {
				groups = append(groups, g)
			}
			sort.Strings(groups)

			flags := seedCounts{}
			for _, g := range groups {
				for i, si := range f.Collections[c][g] {
					it := model.Item{
						ID:         uuid.NewString(),
						Collection: c,
						Group:      strings.TrimSpace(g),
						Position:   i,
						Title:      strings.TrimSpace(si.Title),
						Subtitle:   strings.TrimSpace(si.Subtitle),
						Featured:   si.Featured,
						Visible:    si.Visible,
						CreatedAt:  now,
						UpdatedAt:  now,
					}
					for _, fl := range []model.Flag{model.FlagFeatured, model.FlagVisible} {
						if !it.Flag(fl) {
							continue
						}
						if err := s.caps.Check(flags, c, it.Group, fl); err != nil {
							return fmt.Errorf("seed %s/%s %q: %w", c, g, it.Title, err)
						}
						flags.add(fl, it.Group)
					}
					if err := insertItem(ctx, tx, it); err != nil {
						return err
					}
					counts[c]++
				}
			}
		}
		return s.appendEvent(ctx, tx, "seed", s.workspaceID, counts)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("seeded", zap.Any("counts", counts))
	return counts, nil
}
