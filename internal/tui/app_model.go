package tui

import (
	"context"
	"slices"
	"time"

	"folio/internal/caps"
	"folio/internal/model"
	"folio/internal/optimistic"

	"github.com/charmbracelet/bubbles/help"
	"go.uber.org/zap"
)

const defaultFlashTTL = 4 * time.Second

type appModel struct {
	ctx    context.Context
	remote optimistic.Remote
	caps   caps.Set
	log    *zap.Logger
	opts   Options

	collections []string
	colIdx      int

	ctrls    map[string]*optimistic.Controller
	loading  map[string]bool
	loadErr  map[string]error
	groupIdx map[string]int
	// cursor is keyed by collection/group so switching groups keeps each position.
	cursor map[string]int
	// edits counts local moves and toggles per collection. A load started before the
	// latest edit may predate an accepted commit and is not applied.
	edits     map[string]int
	reloadDue map[string]bool

	width  int
	height int

	keys     KeyMap
	help     help.Model
	showHelp bool

	flash    string
	flashErr bool
	flashSeq int
	flashTTL time.Duration

	// quitting waits for pending commits before exiting.
	quitting bool
}

func newAppModel(ctx context.Context, opts Options) *appModel {
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cs := opts.Caps
	if cs == nil {
		cs = caps.Default()
	}
	m := &appModel{
		ctx:         ctx,
		remote:      opts.Remote,
		caps:        cs,
		log:         log,
		opts:        opts,
		collections: model.Collections(),
		ctrls:       map[string]*optimistic.Controller{},
		loading:     map[string]bool{},
		loadErr:     map[string]error{},
		groupIdx:    map[string]int{},
		cursor:      map[string]int{},
		edits:       map[string]int{},
		reloadDue:   map[string]bool{},
		keys:        DefaultKeyMap(),
		help:        help.New(),
		flashTTL:    defaultFlashTTL,
	}
	if i := slices.Index(m.collections, opts.Collection); i >= 0 {
		m.colIdx = i
	}
	return m
}

func (m *appModel) currentKey() string {
	return m.collections[m.colIdx]
}

func (m *appModel) current() *optimistic.Controller {
	return m.ctrls[m.currentKey()]
}

func (m *appModel) currentGroups() []string {
	ctrl := m.current()
	if ctrl == nil {
		return model.DefaultGroups(m.currentKey())
	}
	return ctrl.Collection().GroupKeys()
}

func (m *appModel) currentGroup() string {
	groups := m.currentGroups()
	if len(groups) == 0 {
		return ""
	}
	i := m.groupIdx[m.currentKey()]
	if i < 0 || i >= len(groups) {
		i = 0
	}
	return groups[i]
}

func (m *appModel) currentItems() []model.Item {
	ctrl := m.current()
	if ctrl == nil {
		return nil
	}
	return ctrl.Collection().Group(m.currentGroup())
}

func (m *appModel) cursorKey() string {
	return m.currentKey() + "/" + m.currentGroup()
}

func (m *appModel) cursorPos() int {
	return m.cursor[m.cursorKey()]
}

func (m *appModel) setCursor(i int) {
	n := len(m.currentItems())
	switch {
	case n == 0:
		i = 0
	case i < 0:
		i = 0
	case i >= n:
		i = n - 1
	}
	m.cursor[m.cursorKey()] = i
}

func (m *appModel) selected() (model.Item, bool) {
	items := m.currentItems()
	i := m.cursorPos()
	if i < 0 || i >= len(items) {
		return model.Item{}, false
	}
	return items[i], true
}

func (m *appModel) pendingTotal() int {
	n := 0
	for _, c := range m.ctrls {
		n += c.Pending()
	}
	return n
}
