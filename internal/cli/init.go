package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"folio/internal/store"

	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace database (optionally with example content)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLocal("init"); err != nil {
				return writeErr(cmd, err)
			}
			log, err := app.logger()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()
			svc, err := app.openLocal(ctx, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svc.Close()

			if demo {
				if _, err := svc.Seed(ctx, store.DemoSeed()); err != nil {
					return writeErr(cmd, err)
				}
			}
			counts, err := svc.CollectionCounts(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"dir":         app.Dir,
					"sqlitePath":  filepath.Join(app.Dir, "folio.sqlite"),
					"workspaceId": svc.WorkspaceID(),
					"counts":      counts,
				},
			})
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "Replace all collections with built-in example content")
	return cmd
}

func newSeedCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file.yml>",
		Short: "Replace collections with the items listed in a YAML file",
		Long: `Replace collections with the items listed in a YAML file.

Only collections named in the file are touched. List order becomes display order, and
caps are checked as if the items were added one by one; a violation aborts the whole
seed. See ` + "`folio docs caps`" + ` and the demo seed (` + "`folio init --demo`" + `).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLocal("seed"); err != nil {
				return writeErr(cmd, err)
			}
			b, err := os.ReadFile(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			f, err := store.ParseSeed(b)
			if err != nil {
				return writeErr(cmd, err)
			}
			log, err := app.logger()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()
			svc, err := app.openLocal(ctx, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svc.Close()

			counts, err := svc.Seed(ctx, f)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("seed %s: %w", args[0], err))
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"seeded": counts}})
		},
	}
	return cmd
}
