package tui

import (
	"time"

	"folio/internal/optimistic"

	tea "github.com/charmbracelet/bubbletea"
)

type loadedMsg struct {
	key    string
	ctrl   *optimistic.Controller
	err    error
	reload bool
	// edits is appModel.edits for the collection when the load started.
	edits int
}

// commitDoneMsg carries the controller that sent the commit so a result arriving after
// a reload is not applied to the new controller.
type commitDoneMsg struct {
	key  string
	ctrl *optimistic.Controller
	res  optimistic.Result
}

type flashExpiredMsg struct{ seq int }

type remoteChangedMsg struct{}

func (m *appModel) controllerOptions() []optimistic.Option {
	opts := []optimistic.Option{
		optimistic.WithCaps(m.caps),
		optimistic.WithLogger(m.log.Named("commit")),
	}
	if m.opts.CommitTimeout > 0 {
		opts = append(opts, optimistic.WithTimeout(m.opts.CommitTimeout))
	}
	return opts
}

func (m *appModel) loadCmd(key string, reload bool) tea.Cmd {
	m.loading[key] = true
	delete(m.reloadDue, key)
	edits := m.edits[key]
	ctx := m.ctx
	remote := m.remote
	opts := m.controllerOptions()
	return func() tea.Msg {
		ctrl, err := optimistic.Load(ctx, remote, key, opts...)
		return loadedMsg{key: key, ctrl: ctrl, err: err, reload: reload, edits: edits}
	}
}

// sendCmds runs each ready commit on its own goroutine. Results come back as messages
// and are resolved in Update, which keeps the controller on the event loop.
func (m *appModel) sendCmds(key string, ctrl *optimistic.Controller, ready []*optimistic.Commit) tea.Cmd {
	if len(ready) == 0 {
		return nil
	}
	ctx := m.ctx
	cmds := make([]tea.Cmd, 0, len(ready))
	for _, cm := range ready {
		cmds = append(cmds, func() tea.Msg {
			return commitDoneMsg{key: key, ctrl: ctrl, res: ctrl.Send(ctx, cm)}
		})
	}
	return tea.Batch(cmds...)
}

func (m *appModel) waitForChange() tea.Cmd {
	ch := m.opts.Changes
	if ch == nil {
		return nil
	}
	done := m.ctx.Done()
	return func() tea.Msg {
		select {
		case <-ch:
			return remoteChangedMsg{}
		case <-done:
			return nil
		}
	}
}

func (m *appModel) setFlash(msg string, isErr bool) tea.Cmd {
	m.flash = msg
	m.flashErr = isErr
	m.flashSeq++
	if m.flashTTL <= 0 {
		return nil
	}
	seq := m.flashSeq
	return tea.Tick(m.flashTTL, func(time.Time) tea.Msg { return flashExpiredMsg{seq: seq} })
}
