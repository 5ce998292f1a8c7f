package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"folio/internal/config"
	"folio/internal/format"
	"folio/internal/logging"
	"folio/internal/optimistic"
	"folio/internal/store"
	"folio/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	Dir        string
	Remote     string
	ConfigPath string
	PrettyJSON bool
	Format     string
	Verbose    bool

	cfg config.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "folio",
		Short:        "Portfolio content admin (ordering, featured and visible flags)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive admin screen
  folio

  # Create a workspace with example content
  folio init --demo

  # Scriptable commands
  folio collections show projects
  folio items up projects <item-id>
  folio items feature projects <item-id>

  # Share one workspace over HTTP and point another shell at it
  folio serve
  folio --remote http://127.0.0.1:3335 tui
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app, "")
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app.log != nil {
			_ = app.log.Sync()
		}
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "Workspace directory (default: $FOLIO_DIR or ~/.folio)")
	cmd.PersistentFlags().StringVar(&app.Remote, "remote", "", "Base URL of a `folio serve` instance; commands use it instead of --dir")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("FOLIO_CONFIG", ""), "Config file (default: ~/.config/folio/config.yml)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("FOLIO_FORMAT", "json"), "Output format (json|yaml)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newCollectionsCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// setup loads config and applies flag overrides. Flags win over env and file.
func (app *App) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return writeErr(cmd, err)
	}
	if strings.TrimSpace(app.Dir) != "" {
		cfg.Dir = app.Dir
	}
	if strings.TrimSpace(app.Remote) != "" {
		cfg.Remote = app.Remote
	}
	app.cfg = cfg
	app.Dir = cfg.Dir
	app.Remote = cfg.Remote

	switch strings.ToLower(strings.TrimSpace(app.Format)) {
	case "json", "yaml", "yml":
	default:
		return writeErr(cmd, fmt.Errorf("unknown --format %q (expected json|yaml)", app.Format))
	}
	return nil
}

// logger returns the console logger for one-shot commands, creating it on first use.
func (app *App) logger() (*zap.Logger, error) {
	if app.log != nil {
		return app.log, nil
	}
	log, err := logging.New(logging.Options{
		Level:   app.cfg.LogLevel,
		Verbose: app.Verbose,
		File:    app.cfg.LogFile,
		Console: true,
	})
	if err != nil {
		return nil, err
	}
	app.log = log
	return log, nil
}

// backend is where records live for one command: the local database, or a remote
// `folio serve` over HTTP.
type backend struct {
	records web.RecordService
	local   *store.Service
	close   func() error
}

func (b backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func (app *App) openBackend(ctx context.Context, log *zap.Logger) (backend, error) {
	if app.Remote != "" {
		c, err := web.NewClient(app.Remote, web.WithClientLogger(log.Named("client")))
		if err != nil {
			return backend{}, err
		}
		return backend{records: c}, nil
	}
	svc, err := app.openLocal(ctx, log)
	if err != nil {
		return backend{}, err
	}
	return backend{records: svc, local: svc, close: svc.Close}, nil
}

func (app *App) openLocal(ctx context.Context, log *zap.Logger) (*store.Service, error) {
	return store.Store{Dir: app.Dir}.Open(ctx, store.Options{
		Caps:   app.cfg.CapSet(),
		Logger: log.Named("store"),
	})
}

// requireLocal rejects commands that only make sense against the database itself.
func (app *App) requireLocal(name string) error {
	if app.Remote != "" {
		return fmt.Errorf("%s works on a local workspace; drop --remote (or unset FOLIO_REMOTE)", name)
	}
	return nil
}

func (app *App) controllerOptions(log *zap.Logger) []optimistic.Option {
	opts := []optimistic.Option{
		optimistic.WithCaps(app.cfg.CapSet()),
		optimistic.WithLogger(log.Named("commit")),
	}
	if app.cfg.CommitTimeout > 0 {
		opts = append(opts, optimistic.WithTimeout(app.cfg.CommitTimeout))
	}
	return opts
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func isNotFound(err error) bool {
	var nf optimistic.NotFoundError
	return errors.Is(err, store.ErrNotFound) || errors.As(err, &nf)
}
