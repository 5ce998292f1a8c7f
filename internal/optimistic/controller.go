// Package optimistic applies reorder and flag mutations to a local collection right away
// and reconciles them with the remote record service afterwards.
//
// A Controller belongs to one event loop (the TUI update loop, or the goroutine running
// Drain). Request*, Dispatch and Resolve must all be called from that loop. Only Send
// may run elsewhere.
//
// Commits are serialized per lane: a lane is one group's order, or one flag of one item.
// The next commit of a lane is not sent until the previous one resolves, so the service
// sees every lane's commits in the order they were made. When a commit fails, the lane
// is rolled back to that commit's snapshot and the commits queued behind it are aborted.
// They were never sent, so local and remote state agree again.
package optimistic

import (
	"context"
	"time"

	"folio/internal/caps"
	"folio/internal/collection"
	"folio/internal/model"
	"folio/internal/reorder"

	"go.uber.org/zap"
)

// Remote is the record service the controller commits to.
type Remote interface {
	LoadCollection(ctx context.Context, key string) (model.Collection, error)
	SubmitOrder(ctx context.Context, c model.OrderCommit) (model.Ack, error)
	SubmitToggle(ctx context.Context, c model.ToggleCommit) (model.Ack, error)
}

const DefaultTimeout = 10 * time.Second

type Controller struct {
	coll    *collection.Collection
	remote  Remote
	caps    caps.Set
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time

	nextID  uint64
	commits map[uint64]*Commit
	lanes   map[string][]*Commit
	order   []string // lane keys with queued commits, in creation order
	seqs    map[string]uint64
	notes   []Notification
}

type Option func(*Controller)

func WithCaps(s caps.Set) Option { return func(c *Controller) { c.caps = s } }

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTimeout bounds each remote call made by Send.
func WithTimeout(d time.Duration) Option { return func(c *Controller) { c.timeout = d } }

func withClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func New(coll *collection.Collection, remote Remote, opts ...Option) *Controller {
	c := &Controller{
		coll:    coll,
		remote:  remote,
		caps:    caps.Default(),
		log:     zap.NewNop(),
		timeout: DefaultTimeout,
		now:     time.Now,
		commits: map[uint64]*Commit{},
		lanes:   map[string][]*Commit{},
		seqs:    map[string]uint64{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load hydrates a controller from the remote collaborator.
func Load(ctx context.Context, remote Remote, key string, opts ...Option) (*Controller, error) {
	mc, err := remote.LoadCollection(ctx, key)
	if err != nil {
		return nil, err
	}
	return New(collection.New(mc), remote, opts...), nil
}

// Collection gives read access to local state. Callers must not mutate it directly.
func (c *Controller) Collection() *collection.Collection { return c.coll }

// Commit looks up a commit by id.
func (c *Controller) Commit(id uint64) (*Commit, bool) {
	cm, ok := c.commits[id]
	return cm, ok
}

// Pending reports how many commits are queued or in flight.
func (c *Controller) Pending() int {
	n := 0
	for _, q := range c.lanes {
		n += len(q)
	}
	return n
}

// LanePending reports whether lane has a queued or in-flight commit.
func (c *Controller) LanePending(lane string) bool { return len(c.lanes[lane]) > 0 }

// Notifications returns and clears the queued notifications.
func (c *Controller) Notifications() []Notification {
	out := c.notes
	c.notes = nil
	return out
}

// RequestMove applies op to group immediately and queues a commit of the full new order.
// A move that changes nothing (same index, out of range, boundary) returns a nil commit.
func (c *Controller) RequestMove(group string, op reorder.Op) (*Commit, error) {
	if !c.coll.HasGroup(group) {
		return nil, NotFoundError{Kind: "group", ID: group}
	}
	cur := c.coll.Group(group)
	next, ok := op.Apply(cur)
	if !ok {
		c.log.Debug("move ignored", zap.String("group", group), zap.Stringer("op", op))
		return nil, nil
	}
	if err := c.coll.Replace(group, next); err != nil {
		return nil, err
	}

	lane := model.OrderLane(c.coll.Key(), group)
	cm := &Commit{
		Kind: KindOrder,
		Lane: lane,
		Order: model.OrderCommit{
			Collection: c.coll.Key(),
			Group:      group,
			IDs:        reorder.IDs(next),
			Seq:        c.nextSeq(lane),
		},
		prevOrder: reorder.IDs(cur),
	}
	c.enqueue(cm)
	c.log.Debug("move applied", zap.Uint64("commit", cm.ID), zap.String("lane", lane), zap.Stringer("op", op))
	return cm, nil
}

// RequestToggle flips flag on the item.
func (c *Controller) RequestToggle(itemID string, flag model.Flag) (*Commit, error) {
	it, _, ok := c.coll.Find(itemID)
	if !ok {
		return nil, NotFoundError{Kind: "item", ID: itemID}
	}
	return c.RequestSetFlag(itemID, flag, !it.Flag(flag))
}

// RequestSetFlag sets flag on the item immediately and queues a commit. Turning a flag on
// is refused with a *caps.ExceededError when it would break a cap; nothing is mutated or
// sent in that case. Setting a flag to its current value returns a nil commit.
func (c *Controller) RequestSetFlag(itemID string, flag model.Flag, value bool) (*Commit, error) {
	it, _, ok := c.coll.Find(itemID)
	if !ok {
		return nil, NotFoundError{Kind: "item", ID: itemID}
	}
	prev := it.Flag(flag)
	if prev == value {
		return nil, nil
	}
	if value {
		if err := c.caps.Check(c.coll, c.coll.Key(), it.Group, flag); err != nil {
			c.log.Debug("toggle refused", zap.String("item", itemID), zap.String("flag", string(flag)), zap.Error(err))
			return nil, err
		}
	}
	if _, err := c.coll.SetFlag(itemID, flag, value); err != nil {
		return nil, err
	}

	lane := model.ToggleLane(c.coll.Key(), itemID, flag)
	cm := &Commit{
		Kind: KindToggle,
		Lane: lane,
		Toggle: model.ToggleCommit{
			Collection: c.coll.Key(),
			ItemID:     itemID,
			Flag:       flag,
			Value:      value,
			Seq:        c.nextSeq(lane),
		},
		prevValue: prev,
	}
	c.enqueue(cm)
	c.log.Debug("toggle applied", zap.Uint64("commit", cm.ID), zap.String("lane", lane), zap.Bool("value", value))
	return cm, nil
}

// nextSeq hands out sequence numbers that increase per lane and across sessions
// (wall-clock based, bumped when the clock has not moved).
func (c *Controller) nextSeq(lane string) uint64 {
	seq := uint64(c.now().UnixNano())
	if last := c.seqs[lane]; seq <= last {
		seq = last + 1
	}
	c.seqs[lane] = seq
	return seq
}

func (c *Controller) enqueue(cm *Commit) {
	c.nextID++
	cm.ID = c.nextID
	cm.State = StatePending
	c.commits[cm.ID] = cm
	if _, ok := c.lanes[cm.Lane]; !ok {
		c.order = append(c.order, cm.Lane)
	}
	c.lanes[cm.Lane] = append(c.lanes[cm.Lane], cm)
}

// Dispatch returns the commits that may be sent now (the unsent head of every lane)
// and marks them as in flight.
func (c *Controller) Dispatch() []*Commit {
	var out []*Commit
	for _, lane := range c.order {
		q := c.lanes[lane]
		if len(q) == 0 || q[0].sent {
			continue
		}
		q[0].sent = true
		out = append(out, q[0])
	}
	return out
}

// Send performs the remote call for a dispatched commit. It does not touch controller
// state and may run on any goroutine.
func (c *Controller) Send(ctx context.Context, cm *Commit) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var (
		ack model.Ack
		err error
	)
	switch cm.Kind {
	case KindOrder:
		ack, err = c.remote.SubmitOrder(ctx, cm.Order)
	case KindToggle:
		ack, err = c.remote.SubmitToggle(ctx, cm.Toggle)
	}
	return Result{CommitID: cm.ID, Ack: ack, Err: err}
}

// Resolve reconciles a Result with local state and returns the commits that became
// ready to send.
func (c *Controller) Resolve(res Result) []*Commit {
	cm, ok := c.commits[res.CommitID]
	if !ok || cm.State != StatePending || !cm.sent {
		c.log.Warn("resolve for unknown or settled commit", zap.Uint64("commit", res.CommitID))
		return nil
	}

	if res.Err == nil {
		cm.State = StateCommitted
		c.popHead(cm.Lane)
		c.log.Debug("commit accepted", zap.Uint64("commit", cm.ID), zap.String("lane", cm.Lane), zap.Bool("changed", res.Ack.Changed))
		c.notes = append(c.notes, Notification{
			Kind:     NoticeSuccess,
			CommitID: cm.ID,
			Message:  "saved " + cm.describe(),
		})
		return c.Dispatch()
	}

	c.rollback(cm)
	cm.State = StateRolledBack
	cm.Err = &CommitFailedError{CommitID: cm.ID, Lane: cm.Lane, Err: res.Err}

	aborted := c.lanes[cm.Lane][1:]
	for _, q := range aborted {
		q.State = StateRolledBack
		q.Err = &CommitFailedError{CommitID: q.ID, Lane: q.Lane, Err: ErrAborted}
	}
	c.dropLane(cm.Lane)

	c.log.Warn("commit rejected; rolled back",
		zap.Uint64("commit", cm.ID),
		zap.String("lane", cm.Lane),
		zap.Int("aborted", len(aborted)),
		zap.Error(res.Err),
	)
	c.notes = append(c.notes, Notification{
		Kind:     NoticeError,
		CommitID: cm.ID,
		Message:  "could not save " + cm.describe() + "; changes reverted",
		Err:      cm.Err,
	})
	return c.Dispatch()
}

func (c *Controller) rollback(cm *Commit) {
	var err error
	switch cm.Kind {
	case KindOrder:
		err = c.coll.ApplyOrder(cm.Order.Group, cm.prevOrder)
	case KindToggle:
		_, err = c.coll.SetFlag(cm.Toggle.ItemID, cm.Toggle.Flag, cm.prevValue)
	}
	if err != nil {
		// Membership only changes on reload, so this means the snapshot no longer fits.
		c.log.Error("rollback failed", zap.Uint64("commit", cm.ID), zap.Error(err))
	}
}

func (c *Controller) popHead(lane string) {
	q := c.lanes[lane]
	if len(q) <= 1 {
		c.dropLane(lane)
		return
	}
	c.lanes[lane] = q[1:]
}

func (c *Controller) dropLane(lane string) {
	delete(c.lanes, lane)
	for i, l := range c.order {
		if l == lane {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
