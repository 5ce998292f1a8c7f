package tui

import (
	"errors"
	"fmt"

	"folio/internal/caps"
	"folio/internal/model"
	"folio/internal/optimistic"
	"folio/internal/reorder"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func (m *appModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(m.currentKey(), false), m.waitForChange())
}

func (m *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case loadedMsg:
		return m, m.handleLoaded(msg)

	case commitDoneMsg:
		return m, m.handleCommitDone(msg)

	case remoteChangedMsg:
		cmds := []tea.Cmd{m.waitForChange()}
		key := m.currentKey()
		if ctrl := m.current(); ctrl != nil && !m.loading[key] {
			if ctrl.Pending() > 0 {
				m.reloadDue[key] = true
			} else {
				cmds = append(cmds, m.loadCmd(key, true))
			}
		}
		return m, tea.Batch(cmds...)

	case flashExpiredMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
			m.flashErr = false
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *appModel) handleLoaded(msg loadedMsg) tea.Cmd {
	m.loading[msg.key] = false
	if msg.err != nil {
		m.log.Warn("load failed", zap.String("collection", msg.key), zap.Error(msg.err))
		if msg.reload && m.ctrls[msg.key] != nil {
			return m.setFlash("reload failed: "+msg.err.Error(), true)
		}
		m.loadErr[msg.key] = msg.err
		return nil
	}
	if old := m.ctrls[msg.key]; old != nil && (old.Pending() > 0 || msg.edits != m.edits[msg.key]) {
		// The snapshot was read before the latest local edit. Read again once every
		// commit has settled so the screen ends up on the stored state.
		if old.Pending() > 0 {
			m.reloadDue[msg.key] = true
			return nil
		}
		return m.loadCmd(msg.key, true)
	}
	delete(m.loadErr, msg.key)
	m.ctrls[msg.key] = msg.ctrl
	if msg.key == m.currentKey() {
		m.setCursor(m.cursorPos())
	}
	return nil
}

func (m *appModel) handleCommitDone(msg commitDoneMsg) tea.Cmd {
	if m.ctrls[msg.key] != msg.ctrl {
		m.log.Debug("result for a replaced controller ignored", zap.String("collection", msg.key))
		return nil
	}
	next := msg.ctrl.Resolve(msg.res)
	cmds := []tea.Cmd{m.sendCmds(msg.key, msg.ctrl, next)}

	for _, n := range msg.ctrl.Notifications() {
		if n.Kind == optimistic.NoticeError {
			cmds = append(cmds, m.setFlash(n.Message, true))
			continue
		}
		// Don't let a success hide an error that is still on screen.
		if m.flash == "" || !m.flashErr {
			cmds = append(cmds, m.setFlash(n.Message, false))
		}
	}
	if msg.key == m.currentKey() {
		m.setCursor(m.cursorPos())
	}
	if m.reloadDue[msg.key] && msg.ctrl.Pending() == 0 && !m.quitting {
		cmds = append(cmds, m.loadCmd(msg.key, true))
	}
	if m.quitting && m.pendingTotal() == 0 {
		cmds = append(cmds, tea.Quit)
	}
	return tea.Batch(cmds...)
}

func (m *appModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.ForceQuit) {
		return tea.Quit
	}
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Quit) || msg.Type == tea.KeyEsc {
			m.showHelp = false
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		n := m.pendingTotal()
		if n == 0 {
			return tea.Quit
		}
		m.quitting = true
		return m.setFlash(fmt.Sprintf("waiting for %d pending save(s)…", n), false)

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return nil

	case key.Matches(msg, m.keys.NextCollection):
		return m.switchCollection(1)
	case key.Matches(msg, m.keys.PrevCollection):
		return m.switchCollection(-1)

	case key.Matches(msg, m.keys.NextGroup):
		m.switchGroup(1)
		return nil
	case key.Matches(msg, m.keys.PrevGroup):
		m.switchGroup(-1)
		return nil

	case key.Matches(msg, m.keys.Up):
		m.setCursor(m.cursorPos() - 1)
		return nil
	case key.Matches(msg, m.keys.Down):
		m.setCursor(m.cursorPos() + 1)
		return nil

	case key.Matches(msg, m.keys.MoveUp):
		return m.move(reorder.Adjacent{Index: m.cursorPos(), Dir: reorder.Up})
	case key.Matches(msg, m.keys.MoveDown):
		return m.move(reorder.Adjacent{Index: m.cursorPos(), Dir: reorder.Down})
	case key.Matches(msg, m.keys.MoveTop):
		return m.move(reorder.ByIndex{From: m.cursorPos(), To: 0})
	case key.Matches(msg, m.keys.MoveBottom):
		return m.move(reorder.ByIndex{From: m.cursorPos(), To: len(m.currentItems()) - 1})

	case key.Matches(msg, m.keys.Feature):
		return m.toggle(model.FlagFeatured)
	case key.Matches(msg, m.keys.Visible):
		return m.toggle(model.FlagVisible)

	case key.Matches(msg, m.keys.Reload):
		k := m.currentKey()
		if ctrl := m.current(); ctrl != nil && ctrl.Pending() > 0 {
			return m.setFlash("wait for pending saves before reloading", true)
		}
		if m.loading[k] {
			return nil
		}
		return m.loadCmd(k, m.ctrls[k] != nil)
	}
	return nil
}

func (m *appModel) switchCollection(delta int) tea.Cmd {
	n := len(m.collections)
	m.colIdx = ((m.colIdx+delta)%n + n) % n
	k := m.currentKey()
	if m.ctrls[k] == nil && !m.loading[k] {
		return m.loadCmd(k, false)
	}
	return nil
}

func (m *appModel) switchGroup(delta int) {
	groups := m.currentGroups()
	if len(groups) == 0 {
		return
	}
	k := m.currentKey()
	n := len(groups)
	m.groupIdx[k] = ((m.groupIdx[k]+delta)%n + n) % n
}

func (m *appModel) move(op reorder.Op) tea.Cmd {
	ctrl := m.current()
	if ctrl == nil {
		return nil
	}
	it, ok := m.selected()
	if !ok {
		return nil
	}
	cm, err := ctrl.RequestMove(m.currentGroup(), op)
	if err != nil {
		return m.setFlash(err.Error(), true)
	}
	if cm == nil {
		return nil
	}
	m.edits[m.currentKey()]++
	// Keep the cursor on the moved item.
	m.setCursor(reorder.IndexOf(m.currentItems(), it.ID))
	return m.sendCmds(m.currentKey(), ctrl, ctrl.Dispatch())
}

func (m *appModel) toggle(flag model.Flag) tea.Cmd {
	ctrl := m.current()
	if ctrl == nil {
		return nil
	}
	it, ok := m.selected()
	if !ok {
		return nil
	}
	cm, err := ctrl.RequestToggle(it.ID, flag)
	if err != nil {
		var ee *caps.ExceededError
		if errors.As(err, &ee) {
			return m.setFlash(fmt.Sprintf("%s limit reached (%d of %d); clear one first", flag, ee.Count, ee.Rule.Max), true)
		}
		return m.setFlash(err.Error(), true)
	}
	if cm == nil {
		return nil
	}
	m.edits[m.currentKey()]++
	return m.sendCmds(m.currentKey(), ctrl, ctrl.Dispatch())
}
