package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"folio/internal/logging"
	"folio/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace over HTTP so other sessions can share it",
		Long: strings.TrimSpace(`
Serve the local workspace as a JSON API.

Other shells (or machines) point at it with --remote; their edits go through the same
ordering and cap checks as local ones. See ` + "`folio docs serve`" + ` for the routes.
`),
		Example: strings.TrimSpace(`
# Serve on the configured address (default 127.0.0.1:3335)
folio serve

# Pick a port
folio serve --addr 127.0.0.1:8080
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLocal("serve"); err != nil {
				return writeErr(cmd, err)
			}
			listen := strings.TrimSpace(addr)
			if listen == "" {
				listen = app.cfg.Listen
			}

			// The server logs JSON lines; one-shot commands use the console encoder.
			log, err := logging.New(logging.Options{
				Level:   app.cfg.LogLevel,
				Verbose: app.Verbose,
				File:    app.cfg.LogFile,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			app.log = log

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := app.openLocal(ctx, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svc.Close()

			srv := web.NewServer(web.ServerConfig{Addr: listen, Logger: log.Named("http")}, svc)
			if err := srv.Start(); err != nil {
				return writeErr(cmd, err)
			}

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":        srv.Addr(),
					"url":         "http://" + srv.Addr() + "/api",
					"dir":         app.Dir,
					"workspaceId": svc.WorkspaceID(),
				},
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutting down")
				return srv.Stop()
			})
			if err := g.Wait(); err != nil {
				log.Warn("shutdown", zap.Error(err))
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: config listen)")
	return cmd
}
