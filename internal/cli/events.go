package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newEventsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the change log, newest last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return writeErr(cmd, errors.New("--limit must not be negative"))
			}
			log, err := app.logger()
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := app.openBackend(cmd.Context(), log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.Close()

			evs, err := b.records.Events(cmd.Context(), limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": evs})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Most recent N events (0 = all)")
	return cmd
}
