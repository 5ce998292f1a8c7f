package cli

import (
	"fmt"

	"folio/internal/model"
	"folio/internal/web"

	"github.com/spf13/cobra"
)

func newCollectionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"collection", "c"},
		Short:   "Inspect collections",
	}
	cmd.AddCommand(newCollectionsListCmd(app))
	cmd.AddCommand(newCollectionsShowCmd(app))
	return cmd
}

func newCollectionsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections with their groups and item counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := app.logger()
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := app.openBackend(cmd.Context(), log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.Close()

			counts, err := b.records.CollectionCounts(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make([]web.CollectionSummary, 0, len(counts))
			for _, k := range model.Collections() {
				out = append(out, web.CollectionSummary{Key: k, Groups: model.DefaultGroups(k), Items: counts[k]})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
}

func newCollectionsShowCmd(app *App) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "show <collection>",
		Short: "Show a collection's items in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := app.logger()
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := app.openBackend(cmd.Context(), log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.Close()

			col, err := b.records.LoadCollection(cmd.Context(), args[0])
			if err != nil {
				if isNotFound(err) {
					return writeErr(cmd, fmt.Errorf("unknown collection %q (expected one of %v)", args[0], model.Collections()))
				}
				return writeErr(cmd, err)
			}
			if group == "" {
				return writeOut(cmd, app, map[string]any{"data": col})
			}
			for _, g := range col.Groups {
				if g.Key == group {
					return writeOut(cmd, app, map[string]any{"data": g})
				}
			}
			return writeErr(cmd, fmt.Errorf("collection %s has no group %q", col.Key, group))
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Only show one group")
	return cmd
}
