package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"folio/internal/collection"
	"folio/internal/model"
	"folio/internal/reorder"

	"go.uber.org/zap"
)

// checkSeq applies the per-lane version guard. A zero seq opts out (direct CLI writes).
// It reports replay=true when seq equals the last applied one, in which case the commit
// is acknowledged without being applied again.
func checkSeq(ctx context.Context, tx *sql.Tx, lane string, seq uint64) (replay bool, err error) {
	if seq == 0 {
		return false, nil
	}
	var last int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM commit_seq WHERE lane = ?`, lane).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	switch {
	case err == nil && seq < uint64(last):
		return false, fmt.Errorf("%s seq %d < %d: %w", lane, seq, last, ErrStaleCommit)
	case err == nil && seq == uint64(last):
		return true, nil
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO commit_seq(lane, seq) VALUES(?, ?)`, lane, int64(seq))
	return false, err
}

// SubmitOrder replaces the stored order of a group with c.IDs. The ids must be exactly
// the group's current members. Submitting the order the group already has is a no-op.
func (s *Service) SubmitOrder(ctx context.Context, c model.OrderCommit) (model.Ack, error) {
	c.Collection = strings.TrimSpace(c.Collection)
	c.Group = strings.TrimSpace(c.Group)
	if !knownCollection(c.Collection) {
		return model.Ack{}, fmt.Errorf("collection %q: %w", c.Collection, ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ack := model.Ack{Seq: c.Seq}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		replay, err := checkSeq(ctx, tx, model.OrderLane(c.Collection, c.Group), c.Seq)
		if err != nil || replay {
			return err
		}
		cur, err := queryGroup(ctx, tx, c.Collection, c.Group)
		if err != nil {
			return err
		}
		if len(cur) == 0 && len(c.IDs) > 0 {
			return fmt.Errorf("group %s/%s: %w", c.Collection, c.Group, ErrNotFound)
		}
		next, err := reorder.ApplyOrder(cur, c.IDs)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
		}
		if slices.Equal(reorder.IDs(cur), c.IDs) {
			return nil
		}
		ack.Changed = true
		if err := writePositions(ctx, tx, next, s.now().UTC().UnixMilli()); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, "order.replace", c.Collection+"/"+c.Group, c)
	})
	if err != nil {
		s.log.Warn("order commit rejected", zap.String("collection", c.Collection), zap.String("group", c.Group), zap.Error(err))
		return model.Ack{}, err
	}
	s.log.Debug("order commit", zap.String("collection", c.Collection), zap.String("group", c.Group), zap.Bool("changed", ack.Changed))
	return ack, nil
}

// SubmitToggle sets one flag on one item, enforcing caps when the flag is turned on.
func (s *Service) SubmitToggle(ctx context.Context, c model.ToggleCommit) (model.Ack, error) {
	c.Collection = strings.TrimSpace(c.Collection)
	c.ItemID = strings.TrimSpace(c.ItemID)
	if _, err := model.ParseFlag(string(c.Flag)); err != nil {
		return model.Ack{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ack := model.Ack{Seq: c.Seq}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		it, err := findItem(ctx, tx, c.Collection, c.ItemID)
		if err != nil {
			return err
		}
		replay, err := checkSeq(ctx, tx, model.ToggleLane(c.Collection, c.ItemID, c.Flag), c.Seq)
		if err != nil || replay {
			return err
		}
		if it.Flag(c.Flag) == c.Value {
			return nil
		}
		if c.Value {
			cur, err := loadCollection(ctx, tx, c.Collection)
			if err != nil {
				return err
			}
			if err := s.caps.Check(collection.New(cur), c.Collection, it.Group, c.Flag); err != nil {
				return fmt.Errorf("%s on %s: %w", c.Flag, c.ItemID, err)
			}
		}
		ack.Changed = true
		col := "featured"
		if c.Flag == model.FlagVisible {
			col = "visible"
		}
		if _, err := tx.ExecContext(ctx, `UPDATE items SET `+col+` = ?, updated_at_unixms = ? WHERE id = ?`,
			boolToInt(c.Value), s.now().UTC().UnixMilli(), c.ItemID); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, "flag.set", c.ItemID, c)
	})
	if err != nil {
		s.log.Warn("toggle commit rejected", zap.String("item", c.ItemID), zap.String("flag", string(c.Flag)), zap.Error(err))
		return model.Ack{}, err
	}
	s.log.Debug("toggle commit", zap.String("item", c.ItemID), zap.String("flag", string(c.Flag)), zap.Bool("changed", ack.Changed))
	return ack, nil
}
