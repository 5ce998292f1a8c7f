package optimistic

import (
	"context"
	"errors"
	"testing"

	"folio/internal/model"
	"folio/internal/reorder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDrain_SettlesEverything(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())

	for i := 0; i < 5; i++ {
		_, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 4})
		require.NoError(t, err)
	}
	_, err := ctrl.RequestMove(model.GroupCard, reorder.Adjacent{Index: 0, Dir: reorder.Down})
	require.NoError(t, err)
	_, err = ctrl.RequestToggle("A", model.FlagVisible)
	require.NoError(t, err)

	require.NoError(t, ctrl.Drain(context.Background()))
	assert.Equal(t, 0, ctrl.Pending())

	// Serialized lanes mean the remote ends with exactly the local order.
	assert.Equal(t, reorder.IDs(ctrl.Collection().Group(model.GroupProgress)), remote.Stored(model.CollectionSkills, model.GroupProgress))
	assert.Equal(t, []string{"y", "x", "z"}, remote.Stored(model.CollectionSkills, model.GroupCard))
	a, _ := remote.StoredItem(model.CollectionSkills, "A")
	assert.True(t, a.Visible)

	var seqs []uint64
	for _, c := range remote.OrderCalls {
		if c.Group == model.GroupProgress {
			seqs = append(seqs, c.Seq)
		}
	}
	require.Len(t, seqs, 5)
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1], "commits reach the remote in mutation order")
	}
}

func TestDrain_ConcurrentLanesWithGate(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())
	remote.Gate = make(chan struct{})

	_, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 1})
	require.NoError(t, err)
	_, err = ctrl.RequestMove(model.GroupCard, reorder.ByIndex{From: 0, To: 1})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- ctrl.Drain(context.Background()) }()

	// Both lanes are in flight at once, so both submits are waiting on the gate.
	remote.Gate <- struct{}{}
	remote.Gate <- struct{}{}
	require.NoError(t, <-done)
	assert.Len(t, remote.OrderCalls, 2)
}

func TestDrain_ReportsRollbacks(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())
	remote.OrderErr = errors.New("boom")

	before := ctrl.Collection().Snapshot()
	_, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 1})
	require.NoError(t, err)
	_, err = ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 3, To: 1})
	require.NoError(t, err)

	err = ctrl.Drain(context.Background())
	require.Error(t, err)
	var cfe *CommitFailedError
	assert.ErrorAs(t, err, &cfe)
	assert.Equal(t, before, ctrl.Collection().Snapshot())
}

func TestDrain_CanceledContextRollsBack(t *testing.T) {
	ctrl, remote := newController(t, skillsFixture())
	remote.Gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cm, err := ctrl.RequestMove(model.GroupProgress, reorder.ByIndex{From: 0, To: 1})
	require.NoError(t, err)
	err = ctrl.Drain(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateRolledBack, cm.State)
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, reorder.IDs(ctrl.Collection().Group(model.GroupProgress)))
}
