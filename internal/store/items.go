package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"folio/internal/collection"
	"folio/internal/model"
	"folio/internal/reorder"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func knownCollection(key string) bool {
	return slices.Contains(model.Collections(), key)
}

func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

const itemColumns = `id, collection, grp, position, title, subtitle, featured, visible, created_at_unixms, updated_at_unixms`

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()
	var out []model.Item
	for rows.Next() {
		var it model.Item
		var featured, visible int
		var createdMs, updatedMs int64
		if err := rows.Scan(&it.ID, &it.Collection, &it.Group, &it.Position, &it.Title, &it.Subtitle,
			&featured, &visible, &createdMs, &updatedMs); err != nil {
			return nil, err
		}
		it.Featured = featured != 0
		it.Visible = visible != 0
		it.CreatedAt = time.UnixMilli(createdMs).UTC()
		it.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		out = append(out, it)
	}
	return out, rows.Err()
}

func queryGroup(ctx context.Context, q queryer, collectionKey, group string) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE collection = ? AND grp = ?`, collectionKey, group)
	if err != nil {
		return nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	return reorder.Normalize(items), nil
}

func loadCollection(ctx context.Context, q queryer, key string) (model.Collection, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE collection = ?`, key)
	if err != nil {
		return model.Collection{}, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return model.Collection{}, err
	}

	byGroup := map[string][]model.Item{}
	for _, it := range items {
		byGroup[it.Group] = append(byGroup[it.Group], it)
	}
	groups := model.DefaultGroups(key)
	var extra []string
	for g := range byGroup {
		if !slices.Contains(groups, g) {
			extra = append(extra, g)
		}
	}
	sort.Strings(extra)
	groups = append(groups, extra...)

	out := model.Collection{Key: key, Groups: make([]model.Group, 0, len(groups))}
	for _, g := range groups {
		out.Groups = append(out.Groups, model.Group{Key: g, Items: reorder.Normalize(byGroup[g])})
	}
	return out, nil
}

// LoadCollection returns the stored collection with contiguous positions per group.
func (s *Service) LoadCollection(ctx context.Context, key string) (model.Collection, error) {
	key = strings.TrimSpace(key)
	if !knownCollection(key) {
		return model.Collection{}, fmt.Errorf("collection %q: %w", key, ErrNotFound)
	}
	return loadCollection(ctx, s.db, key)
}

// CollectionCounts returns the number of items per known collection.
func (s *Service) CollectionCounts(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, c := range model.Collections() {
		out[c] = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT collection, COUNT(*) FROM items GROUP BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		out[c] = n
	}
	return out, rows.Err()
}

type NewItem struct {
	Collection string `json:"collection" yaml:"collection"`
	Group      string `json:"group,omitempty" yaml:"group,omitempty"`
	Title      string `json:"title" yaml:"title"`
	Subtitle   string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Featured   bool   `json:"featured,omitempty" yaml:"featured,omitempty"`
	Visible    bool   `json:"visible,omitempty" yaml:"visible,omitempty"`
}

// CreateItem appends a new item to the end of its group.
func (s *Service) CreateItem(ctx context.Context, in NewItem) (model.Item, error) {
	in.Collection = strings.TrimSpace(in.Collection)
	in.Group = strings.TrimSpace(in.Group)
	in.Title = strings.TrimSpace(in.Title)
	if !knownCollection(in.Collection) {
		return model.Item{}, fmt.Errorf("collection %q: %w", in.Collection, ErrNotFound)
	}
	if in.Group == "" {
		in.Group = model.DefaultGroups(in.Collection)[0]
	}
	if in.Title == "" {
		return model.Item{}, fmt.Errorf("missing title")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created model.Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := loadCollection(ctx, tx, in.Collection)
		if err != nil {
			return err
		}
		counts := collection.New(cur)
		for _, f := range []model.Flag{model.FlagFeatured, model.FlagVisible} {
			want := (f == model.FlagFeatured && in.Featured) || (f == model.FlagVisible && in.Visible)
			if !want {
				continue
			}
			if err := s.caps.Check(counts, in.Collection, in.Group, f); err != nil {
				return fmt.Errorf("create %q: %w", in.Title, err)
			}
		}

		now := s.now().UTC()
		created = model.Item{
			ID:         uuid.NewString(),
			Collection: in.Collection,
			Group:      in.Group,
			Position:   counts.Len(in.Group),
			Title:      in.Title,
			Subtitle:   strings.TrimSpace(in.Subtitle),
			Featured:   in.Featured,
			Visible:    in.Visible,
			CreatedAt:  now.Truncate(time.Millisecond),
			UpdatedAt:  now.Truncate(time.Millisecond),
		}
		if err := insertItem(ctx, tx, created); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, "item.create", created.ID, created)
	})
	if err != nil {
		return model.Item{}, err
	}
	s.log.Info("item created", zap.String("collection", created.Collection), zap.String("id", created.ID))
	return created, nil
}

func insertItem(ctx context.Context, tx *sql.Tx, it model.Item) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO items(`+itemColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Collection, it.Group, it.Position, it.Title, it.Subtitle,
		boolToInt(it.Featured), boolToInt(it.Visible), it.CreatedAt.UnixMilli(), it.UpdatedAt.UnixMilli())
	return err
}

func findItem(ctx context.Context, q queryer, collectionKey, id string) (model.Item, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE collection = ? AND id = ?`, collectionKey, id)
	if err != nil {
		return model.Item{}, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return model.Item{}, err
	}
	if len(items) == 0 {
		return model.Item{}, fmt.Errorf("item %s in %s: %w", id, collectionKey, ErrNotFound)
	}
	return items[0], nil
}

func writePositions(ctx context.Context, tx *sql.Tx, seq []model.Item, nowMs int64) error {
	for i, it := range seq {
		if _, err := tx.ExecContext(ctx, `UPDATE items SET position = ?, updated_at_unixms = ? WHERE id = ?`, i, nowMs, it.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteItem removes an item and closes the gap it leaves in its group.
func (s *Service) DeleteItem(ctx context.Context, collectionKey, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		it, err := findItem(ctx, tx, collectionKey, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return err
		}
		rest, err := queryGroup(ctx, tx, it.Collection, it.Group)
		if err != nil {
			return err
		}
		if err := writePositions(ctx, tx, rest, s.now().UTC().UnixMilli()); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, "item.delete", id, map[string]any{"collection": it.Collection, "group": it.Group})
	})
	if err != nil {
		return err
	}
	s.log.Info("item deleted", zap.String("collection", collectionKey), zap.String("id", id))
	return nil
}

// UpdateItemText changes an item's title and subtitle. Empty title leaves it unchanged.
func (s *Service) UpdateItemText(ctx context.Context, collectionKey, id, title, subtitle string) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out model.Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		it, err := findItem(ctx, tx, collectionKey, id)
		if err != nil {
			return err
		}
		if t := strings.TrimSpace(title); t != "" {
			it.Title = t
		}
		it.Subtitle = strings.TrimSpace(subtitle)
		it.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
		if _, err := tx.ExecContext(ctx, `UPDATE items SET title = ?, subtitle = ?, updated_at_unixms = ? WHERE id = ?`,
			it.Title, it.Subtitle, it.UpdatedAt.UnixMilli(), it.ID); err != nil {
			return err
		}
		out = it
		return s.appendEvent(ctx, tx, "item.update", it.ID, map[string]any{"title": it.Title, "subtitle": it.Subtitle})
	})
	return out, err
}
