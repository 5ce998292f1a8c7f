package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"folio/internal/logging"
	"folio/internal/model"
	"folio/internal/store"
	"folio/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const watchDebounce = 250 * time.Millisecond

func newTUICmd(app *App) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive admin screen (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app, collection)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Collection to open first")
	return cmd
}

func runTUI(cmd *cobra.Command, app *App, collection string) error {
	if collection == "" {
		collection = app.cfg.TUI.Collection
	}
	if collection != "" && !slices.Contains(model.Collections(), collection) {
		return writeErr(cmd, fmt.Errorf("unknown collection %q (expected one of %v)", collection, model.Collections()))
	}

	// The screen owns the terminal, so logs go to a file.
	logFile := strings.TrimSpace(app.cfg.LogFile)
	if logFile == "" {
		logFile = logging.TUIFile(app.Dir)
	}
	log, err := logging.New(logging.Options{Level: app.cfg.LogLevel, Verbose: app.Verbose, File: logFile})
	if err != nil {
		return writeErr(cmd, err)
	}
	app.log = log

	ctx := cmd.Context()
	b, err := app.openBackend(ctx, log)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer b.Close()

	opts := tui.Options{
		Remote:        b.records,
		Collection:    collection,
		Caps:          app.cfg.CapSet(),
		Logger:        log.Named("tui"),
		CommitTimeout: app.cfg.CommitTimeout,
		Glyphs:        app.cfg.TUI.Glyphs,
	}

	// Pick up edits made by other processes on the same workspace.
	if b.local != nil {
		w, err := store.Store{Dir: app.Dir}.Watch(ctx, watchDebounce, log.Named("watch"))
		if err != nil {
			log.Warn("workspace watch unavailable", zap.Error(err))
		} else {
			defer w.Stop()
			opts.Changes = w.Changes()
		}
	}

	log.Info("tui start", zap.String("dir", app.Dir), zap.String("remote", app.Remote))
	if err := tui.Run(ctx, opts); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}
