package cli

import (
	"errors"
	"fmt"
	"strings"

	"folio/internal/caps"
	"folio/internal/model"
	"folio/internal/optimistic"
	"folio/internal/reorder"
	"folio/internal/store"

	"github.com/spf13/cobra"
)

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item", "i"},
		Short:   "Reorder, flag and edit items",
	}

	cmd.AddCommand(newItemsMoveCmd(app))
	cmd.AddCommand(newItemsStepCmd(app, "up", reorder.Up))
	cmd.AddCommand(newItemsStepCmd(app, "down", reorder.Down))

	cmd.AddCommand(newItemsFlagCmd(app, "feature", "Mark an item as featured", model.FlagFeatured, true))
	cmd.AddCommand(newItemsFlagCmd(app, "unfeature", "Clear an item's featured flag", model.FlagFeatured, false))
	cmd.AddCommand(newItemsFlagCmd(app, "show", "Make an item visible", model.FlagVisible, true))
	cmd.AddCommand(newItemsFlagCmd(app, "hide", "Hide an item", model.FlagVisible, false))
	cmd.AddCommand(newItemsToggleCmd(app))

	cmd.AddCommand(newItemsAddCmd(app))
	cmd.AddCommand(newItemsRenameCmd(app))
	cmd.AddCommand(newItemsRmCmd(app))
	return cmd
}

// edit loads a controller for collection, applies one local change and drains the
// resulting commit. A rejected commit is reported after its local change was rolled back.
func (app *App) edit(cmd *cobra.Command, collection string, change func(*optimistic.Controller) (*optimistic.Commit, error)) (*optimistic.Controller, *optimistic.Commit, error) {
	log, err := app.logger()
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	b, err := app.openBackend(ctx, log)
	if err != nil {
		return nil, nil, err
	}
	defer b.Close()

	ctrl, err := optimistic.Load(ctx, b.records, collection, app.controllerOptions(log)...)
	if err != nil {
		return nil, nil, err
	}
	cm, err := change(ctrl)
	if err != nil {
		return nil, nil, describeRefusal(err)
	}
	if cm == nil {
		return ctrl, nil, nil
	}
	if err := ctrl.Drain(ctx); err != nil {
		return nil, nil, fmt.Errorf("not saved: %w", err)
	}
	return ctrl, cm, nil
}

func describeRefusal(err error) error {
	var ee *caps.ExceededError
	if errors.As(err, &ee) {
		scope := ee.Rule.Collection
		if ee.Rule.Group != "" {
			scope += "/" + ee.Rule.Group
		}
		return fmt.Errorf("%s limit reached for %s (%d of %d); clear one first: %w", ee.Rule.Flag, scope, ee.Count, ee.Rule.Max, err)
	}
	return err
}

func groupOf(ctrl *optimistic.Controller, id string) (string, error) {
	it, _, ok := ctrl.Collection().Find(id)
	if !ok {
		return "", fmt.Errorf("item not found in %s: %s", ctrl.Collection().Key(), id)
	}
	return it.Group, nil
}

func orderResult(ctrl *optimistic.Controller, group string, cm *optimistic.Commit) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"collection": ctrl.Collection().Key(),
			"group":      group,
			"changed":    cm != nil,
			"order":      reorder.IDs(ctrl.Collection().Group(group)),
		},
	}
}

func newItemsMoveCmd(app *App) *cobra.Command {
	var to int

	cmd := &cobra.Command{
		Use:   "move <collection> <item-id> --to <index>",
		Short: "Move an item to an index within its group (0 = first, -1 = last)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("to") {
				return writeErr(cmd, errors.New("missing --to"))
			}
			var group string
			ctrl, cm, err := app.edit(cmd, args[0], func(ctrl *optimistic.Controller) (*optimistic.Commit, error) {
				g, err := groupOf(ctrl, args[1])
				if err != nil {
					return nil, err
				}
				group = g
				target := to
				if target < 0 {
					target = ctrl.Collection().Len(g) + target
				}
				return ctrl.RequestMove(g, reorder.ByID{ID: args[1], To: target})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, orderResult(ctrl, group, cm))
		},
	}
	cmd.Flags().IntVar(&to, "to", 0, "Target index within the group")
	return cmd
}

func newItemsStepCmd(app *App, name string, dir reorder.Direction) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <collection> <item-id>",
		Short: "Move an item one slot " + name,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var group string
			ctrl, cm, err := app.edit(cmd, args[0], func(ctrl *optimistic.Controller) (*optimistic.Commit, error) {
				g, err := groupOf(ctrl, args[1])
				if err != nil {
					return nil, err
				}
				group = g
				return ctrl.RequestMove(g, reorder.AdjacentID{ID: args[1], Dir: dir})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, orderResult(ctrl, group, cm))
		},
	}
}

func flagResult(ctrl *optimistic.Controller, id string, cm *optimistic.Commit) map[string]any {
	it, _, _ := ctrl.Collection().Find(id)
	return map[string]any{"data": it, "meta": map[string]any{"changed": cm != nil}}
}

func newItemsFlagCmd(app *App, name, short string, flag model.Flag, value bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <collection> <item-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, cm, err := app.edit(cmd, args[0], func(ctrl *optimistic.Controller) (*optimistic.Commit, error) {
				return ctrl.RequestSetFlag(args[1], flag, value)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, flagResult(ctrl, args[1], cm))
		},
	}
}

func newItemsToggleCmd(app *App) *cobra.Command {
	var flagName string

	cmd := &cobra.Command{
		Use:   "toggle <collection> <item-id> --flag featured|visible",
		Short: "Flip a flag on an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flag, err := model.ParseFlag(flagName)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctrl, cm, err := app.edit(cmd, args[0], func(ctrl *optimistic.Controller) (*optimistic.Commit, error) {
				return ctrl.RequestToggle(args[1], flag)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, flagResult(ctrl, args[1], cm))
		},
	}
	cmd.Flags().StringVar(&flagName, "flag", string(model.FlagFeatured), "Flag to flip (featured|visible)")
	return cmd
}

func newItemsAddCmd(app *App) *cobra.Command {
	var in store.NewItem

	cmd := &cobra.Command{
		Use:   "add <collection> --title <title>",
		Short: "Append a new item to the end of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Collection = args[0]
			if strings.TrimSpace(in.Title) == "" {
				return writeErr(cmd, errors.New("missing --title"))
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

			it, err := b.records.CreateItem(cmd.Context(), in)
			if err != nil {
				return writeErr(cmd, describeRefusal(err))
			}
			return writeOut(cmd, app, map[string]any{"data": it})
		},
	}
	cmd.Flags().StringVar(&in.Group, "group", "", "Group (default: the collection's first group)")
	cmd.Flags().StringVar(&in.Title, "title", "", "Title")
	cmd.Flags().StringVar(&in.Subtitle, "subtitle", "", "Subtitle")
	cmd.Flags().BoolVar(&in.Featured, "featured", false, "Start featured")
	cmd.Flags().BoolVar(&in.Visible, "visible", false, "Start visible")
	return cmd
}

func newItemsRenameCmd(app *App) *cobra.Command {
	var title string
	var subtitle string

	cmd := &cobra.Command{
		Use:   "rename <collection> <item-id>",
		Short: "Change an item's title and/or subtitle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("title") && !cmd.Flags().Changed("subtitle") {
				return writeErr(cmd, errors.New("provide --title and/or --subtitle"))
			}
			log, err := app.logger()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()
			b, err := app.openBackend(ctx, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.Close()

			// Keep the field that wasn't given.
			if !cmd.Flags().Changed("title") || !cmd.Flags().Changed("subtitle") {
				col, err := b.records.LoadCollection(ctx, args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				cur, ok := findItem(col, args[1])
				if !ok {
					return writeErr(cmd, fmt.Errorf("item not found in %s: %s", args[0], args[1]))
				}
				if !cmd.Flags().Changed("title") {
					title = cur.Title
				}
				if !cmd.Flags().Changed("subtitle") {
					subtitle = cur.Subtitle
				}
			}

			it, err := b.records.UpdateItemText(ctx, args[0], args[1], title, subtitle)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": it})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&subtitle, "subtitle", "", "New subtitle (empty clears it)")
	return cmd
}

func newItemsRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <collection> <item-id>",
		Aliases: []string{"delete"},
		Short:   "Delete an item; the rest of its group closes the gap",
		Args:    cobra.ExactArgs(2),
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

			if err := b.records.DeleteItem(cmd.Context(), args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"deleted": args[1]}})
		},
	}
}

func findItem(col model.Collection, id string) (model.Item, bool) {
	for _, g := range col.Groups {
		for _, it := range g.Items {
			if it.ID == id {
				return it, true
			}
		}
	}
	return model.Item{}, false
}
