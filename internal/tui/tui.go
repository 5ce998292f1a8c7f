// Package tui is the interactive admin screen: reorder items and toggle their flags
// with immediate feedback while commits reach the record service in the background.
package tui

import (
	"context"
	"time"

	"folio/internal/caps"
	"folio/internal/optimistic"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type Options struct {
	Remote optimistic.Remote
	// Collection is shown first; empty means the first known collection.
	Collection    string
	Caps          caps.Set
	Logger        *zap.Logger
	CommitTimeout time.Duration
	Glyphs        string
	// Changes, when set, signals that another session changed the record service. The
	// screen reloads the current collection when it has nothing pending.
	Changes <-chan struct{}
}

func Run(ctx context.Context, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference(opts.Glyphs)

	m := newAppModel(ctx, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
