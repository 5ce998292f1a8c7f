package optimistic

import (
	"context"
	"errors"
	"testing"
	"time"

	"folio/internal/caps"
	"folio/internal/collection"
	"folio/internal/model"
	"folio/internal/reorder"
	"folio/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skillsFixture() model.Collection {
	return model.Collection{
		Key: model.CollectionSkills,
		Groups: []model.Group{
			{Key: model.GroupProgress, Items: testutil.Items(model.CollectionSkills, model.GroupProgress, "A", "B", "C", "D", "E")},
			{Key: model.GroupCard, Items: testutil.Items(model.CollectionSkills, model.GroupCard, "x", "y", "z")},
		},
	}
}

func projectsFixture() model.Collection {
	items := testutil.Items(model.CollectionProjects, model.GroupDefault, "p1", "p2", "p3", "p4", "p5")
	items[0].Featured = true
	items[1].Featured = true
	items[2].Featured = true
	return model.Collection{
		Key:    model.CollectionProjects,
		Groups: []model.Group{{Key: model.GroupDefault, Items: items}},
	}
}

func newController(t *testing.T, fixture model.Collection) (*Controller, *testutil.FakeRemote) {
	t.Helper()
	remote := testutil.NewFakeRemote(fixture)
	ctrl, err := Load(context.Background(), remote, fixture.Key)
	require.NoError(t, err)
	return ctrl, remote
}

// sendAll sends every dispatched commit synchronously and resolves it.
func sendAll(t *testing.T, ctrl *Controller) {
	t.Helper()
	ready := ctrl.Dispatch()
	for len(ready) > 0 {
		cm := ready[0]
		ready = append(ready[1:], ctrl.Resolve(ctrl.Send(context.Background(), cm))...)
	}
	require.Equal(t, 0, ctrl.Pending())
}

func TestRequestMove_VisibleBeforeRemoteResolves(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())

	cm, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 1, To: 3})
	require.NoError(t, err)
	require.NotNil(t, cm)

	// Local state already reflects the move; nothing has reached the remote yet.
	got := ctrl.Collection().Group(model.GroupProgress)
	assert.Equal(t, []string{"A", "C", "D", "B", "E"}, reorder.IDs(got))
	for i, it := range got {
		assert.Equal(t, i, it.Position)
	}
	assert.Empty(t, remote.OrderCalls)
	assert.Equal(t, StatePending, cm.State)
	assert.Equal(t, []string{"A", "C", "D", "B", "E"}, cm.Order.IDs)

	sendAll(t, ctrl)

	assert.Equal(t, StateCommitted, cm.State)
	assert.Equal(t, []string{"A", "C", "D", "B", "E"}, remote.Stored(model.CollectionSkills, model.GroupProgress))
	assert.Equal(t, []string{"A", "C", "D", "B", "E"}, reorder.IDs(ctrl.Collection().Group(model.GroupProgress)))

	notes := ctrl.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, NoticeSuccess, notes[0].Kind)
	assert.Equal(t, cm.ID, notes[0].CommitID)
	assert.Empty(t, ctrl.Notifications(), "notifications are consumed once")
}

func TestRequestMove_RollbackRestoresSnapshotExactly(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())

	_, err := ctrl.RequestSetFlag("C", model.FlagVisible, true)
	require.NoError(t, err)
	sendAll(t, ctrl)
	require.Len(t, ctrl.Notifications(), 1)
	remote.FailNext = 1

	before := ctrl.Collection().Snapshot()

	cm, err := ctrl.RequestMove(model.GroupProgress, reorder.Adjacent{Index: 2, Dir: reorder.Up})
	require.NoError(t, err)
	require.NotNil(t, cm)
	assert.NotEqual(t, before, ctrl.Collection().Snapshot())

	sendAll(t, ctrl)

	assert.Equal(t, StateRolledBack, cm.State)
	if diff := cmp.Diff(before, ctrl.Collection().Snapshot()); diff != "" {
		t.Fatalf("rollback did not restore snapshot (-want +got):\n%s", diff)
	}
	require.NoError(t, ctrl.Collection().Validate())

	var cfe *CommitFailedError
	require.ErrorAs(t, cm.Err, &cfe)
	assert.ErrorIs(t, cm.Err, testutil.ErrRejected)

	notes := ctrl.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, NoticeError, notes[0].Kind)
	assert.ErrorIs(t, notes[0].Err, testutil.ErrRejected)

	// The screen stays usable: the same move can be retried right away.
	retry, err := ctrl.RequestMove(model.GroupProgress, reorder.Adjacent{Index: 2, Dir: reorder.Up})
	require.NoError(t, err)
	sendAll(t, ctrl)
	assert.Equal(t, StateCommitted, retry.State)
	assert.Equal(t, []string{"A", "C", "B", "D", "E"}, remote.Stored(model.CollectionSkills, model.GroupProgress))
}

func TestRequestMove_NoopsDoNotCommit(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())

	for _, op := range []reorder.Op{
		reorder.Adjacent{Index: 0, Dir: reorder.Up},
		reorder.Adjacent{Index: 4, Dir: reorder.Down},
		reorder.ByIndex{From: 2, To: 2},
		reorder.ByIndex{From: -1, To: 2},
		reorder.ByIndex{From: 0, To: 9},
		reorder.ByID{ID: "missing", To: 0},
	} {
		cm, err := ctrl.RequestMove(model.GroupProgress, op)
		require.NoError(t, err, op.String())
		assert.Nil(t, cm, op.String())
	}
	assert.Equal(t, 0, ctrl.Pending())
	assert.Empty(t, ctrl.Dispatch())
	assert.Empty(t, remote.OrderCalls)
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, reorder.IDs(ctrl.Collection().Group(model.GroupProgress)))

	_, err := ctrl.RequestMove("nope", reorder.ByIndex{From: 0, To: 1})
	var nf NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "group", nf.Kind)
}

func TestCommitsAreSerializedPerLane(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())

	first, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 4})
	require.NoError(t, err)
	second, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 1})
	require.NoError(t, err)
	other, err := ctrl.RequestMove(model.GroupCard, reorder.ByIndex{From: 2, To: 0})
	require.NoError(t, err)

	assert.Greater(t, second.Seq(), first.Seq())
	assert.Equal(t, []string{"C", "B", "D", "E", "A"}, reorder.IDs(ctrl.Collection().Group(model.GroupProgress)))

	// One commit per lane may be in flight.
	ready := ctrl.Dispatch()
	require.Len(t, ready, 2)
	assert.Equal(t, first.ID, ready[0].ID)
	assert.Equal(t, other.ID, ready[1].ID)
	assert.Empty(t, ctrl.Dispatch(), "in-flight heads are not dispatched twice")

	next := ctrl.Resolve(ctrl.Send(context.Background(), ready[0]))
	require.Len(t, next, 1)
	assert.Equal(t, second.ID, next[0].ID)

	assert.Empty(t, ctrl.Resolve(ctrl.Send(context.Background(), ready[1])))
	assert.Empty(t, ctrl.Resolve(ctrl.Send(context.Background(), next[0])))

	require.Len(t, remote.OrderCalls, 3)
	assert.Equal(t, first.Order.IDs, remote.OrderCalls[0].IDs)
	assert.Equal(t, second.Order.IDs, remote.OrderCalls[2].IDs)
	assert.Equal(t, reorder.IDs(ctrl.Collection().Group(model.GroupProgress)), remote.Stored(model.CollectionSkills, model.GroupProgress))
	assert.Equal(t, []string{"z", "x", "y"}, remote.Stored(model.CollectionSkills, model.GroupCard))
}

func TestFailureAbortsQueuedCommitsInLane(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())
	before := ctrl.Collection().Snapshot()

	first, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 4})
	require.NoError(t, err)
	second, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 1})
	require.NoError(t, err)

	remote.FailNext = 1
	sendAll(t, ctrl)

	assert.Equal(t, StateRolledBack, first.State)
	assert.Equal(t, StateRolledBack, second.State)
	assert.ErrorIs(t, second.Err, ErrAborted)
	assert.Len(t, remote.OrderCalls, 1, "aborted commits are never sent")
	if diff := cmp.Diff(before, ctrl.Collection().Snapshot()); diff != "" {
		t.Fatalf("lane not rolled back (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, remote.Stored(model.CollectionSkills, model.GroupProgress))
}

func TestToggleRollbackLeavesOrderAlone(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())
	remote.ToggleErr = errors.New("network down")

	mv, err := ctrl.RequestMove(model.GroupCard, reorder.ByIndex{From: 0, To: 2})
	require.NoError(t, err)
	tg, err := ctrl.RequestToggle("x", model.FlagVisible)
	require.NoError(t, err)

	it, _, _ := ctrl.Collection().Find("x")
	assert.True(t, it.Visible, "toggle is applied optimistically")

	sendAll(t, ctrl)

	assert.Equal(t, StateCommitted, mv.State)
	assert.Equal(t, StateRolledBack, tg.State)
	it, idx, _ := ctrl.Collection().Find("x")
	assert.False(t, it.Visible)
	assert.Equal(t, 2, idx)
	assert.Equal(t, []string{"y", "z", "x"}, reorder.IDs(ctrl.Collection().Group(model.GroupCard)))
}

func TestOrderRollbackKeepsAcceptedToggle(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())
	remote.OrderErr = errors.New("server error")

	mv, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 2})
	require.NoError(t, err)
	tg, err := ctrl.RequestSetFlag("A", model.FlagVisible, true)
	require.NoError(t, err)

	sendAll(t, ctrl)

	assert.Equal(t, StateRolledBack, mv.State)
	assert.Equal(t, StateCommitted, tg.State)
	it, idx, _ := ctrl.Collection().Find("A")
	assert.Equal(t, 0, idx)
	assert.True(t, it.Visible)
	require.NoError(t, ctrl.Collection().Validate())
}

func TestCapEnforcement(t *testing.T) {
	ctrl, remote := newController(t, projectsFixture())
	before := ctrl.Collection().Snapshot()

	cm, err := ctrl.RequestSetFlag("p4", model.FlagFeatured, true)
	assert.Nil(t, cm)
	require.ErrorIs(t, err, ErrLocalCapExceeded)
	var ee *caps.ExceededError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 3, ee.Rule.Max)
	assert.Equal(t, 0, ctrl.Pending())
	assert.Empty(t, remote.ToggleCalls)
	assert.Equal(t, before, ctrl.Collection().Snapshot())

	// Toggle is the same gate.
	_, err = ctrl.RequestToggle("p5", model.FlagFeatured)
	require.ErrorIs(t, err, ErrLocalCapExceeded)

	// Clearing is always allowed and frees capacity immediately.
	off, err := ctrl.RequestToggle("p2", model.FlagFeatured)
	require.NoError(t, err)
	require.NotNil(t, off)
	on, err := ctrl.RequestSetFlag("p4", model.FlagFeatured, true)
	require.NoError(t, err)
	require.NotNil(t, on)

	sendAll(t, ctrl)
	assert.Equal(t, StateCommitted, off.State)
	assert.Equal(t, StateCommitted, on.State)
	assert.Equal(t, 3, ctrl.Collection().CountFlag(model.FlagFeatured, ""))
	p4, ok := remote.StoredItem(model.CollectionProjects, "p4")
	require.True(t, ok)
	assert.True(t, p4.Featured)
}

func TestRemoteCapRejectionRollsBack(t *testing.T) {
	remote := testutil.NewFakeRemote(projectsFixture())
	// Local caps are looser than the remote's; the remote has the final say.
	ctrl, err := Load(context.Background(), remote, model.CollectionProjects, WithCaps(caps.Set{}))
	require.NoError(t, err)
	remote.ToggleErr = &caps.ExceededError{Rule: caps.Default()[0], Count: 3}

	cm, err := ctrl.RequestSetFlag("p4", model.FlagFeatured, true)
	require.NoError(t, err)
	sendAll(t, ctrl)

	assert.Equal(t, StateRolledBack, cm.State)
	assert.ErrorIs(t, cm.Err, caps.ErrCapExceeded)
	it, _, _ := ctrl.Collection().Find("p4")
	assert.False(t, it.Featured)
}

func TestSetFlagSameValueIsNoop(t *testing.T) {
	ctrl, _ := newController(t, projectsFixture())
	cm, err := ctrl.RequestSetFlag("p1", model.FlagFeatured, true)
	require.NoError(t, err)
	assert.Nil(t, cm)

	_, err = ctrl.RequestToggle("ghost", model.FlagFeatured)
	var nf NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "item", nf.Kind)
}

func TestSeqIncreasesWithFrozenClock(t *testing.T) {
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	remote := testutil.NewFakeRemote(skillsFixture())
	ctrl, err := Load(context.Background(), remote, model.CollectionSkills, withClock(func() time.Time { return frozen }))
	require.NoError(t, err)

	var last uint64
	for i := 0; i < 4; i++ {
		cm, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 1})
		require.NoError(t, err)
		assert.Greater(t, cm.Seq(), last)
		last = cm.Seq()
	}
}

func TestResolveIgnoresUnknownAndSettledCommits(t *testing.T) {
	ctrl, _ := newController(t, skillsFixture())
	assert.Nil(t, ctrl.Resolve(Result{CommitID: 42}))

	cm, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 1})
	require.NoError(t, err)
	// Not dispatched yet: a stray result must not settle it.
	assert.Nil(t, ctrl.Resolve(Result{CommitID: cm.ID}))
	assert.Equal(t, StatePending, cm.State)

	sendAll(t, ctrl)
	assert.Nil(t, ctrl.Resolve(Result{CommitID: cm.ID, Err: errors.New("late")}))
	assert.Equal(t, StateCommitted, cm.State)

	got, ok := ctrl.Commit(cm.ID)
	require.True(t, ok)
	assert.Same(t, cm, got)
}

func TestNewWithPrebuiltCollection(t *testing.T) {
	coll := collection.New(skillsFixture())
	ctrl := New(coll, testutil.NewFakeRemote(skillsFixture()))
	assert.Same(t, coll, ctrl.Collection())
}

func TestLanePending(t *testing.T) {
	ctrl, _ := newController(t, skillsFixture())
	lane := model.OrderLane(model.CollectionSkills, model.GroupCard)
	assert.False(t, ctrl.LanePending(lane))

	_, err := ctrl.RequestMove(model.GroupCard, reorder.ByIndex{From: 0, To: 2})
	require.NoError(t, err)
	assert.True(t, ctrl.LanePending(lane))
	assert.False(t, ctrl.LanePending(model.OrderLane(model.CollectionSkills, model.GroupProgress)))

	sendAll(t, ctrl)
	assert.False(t, ctrl.LanePending(lane))
}
