package cli

import (
	"fmt"
	"sort"

	"folio/internal/docs"

	"github.com/spf13/cobra"
)

func newDocsCmd(app *App) *cobra.Command {
	var raw bool
	var render bool
	var style string
	var width int

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Show on-demand documentation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				topics := docs.Topics()
				sort.Strings(topics)
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"topics": topics}})
			}

			topic := args[0]
			body, ok := docs.Get(topic)
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown docs topic: %q (run `folio docs` to list topics)", topic))
			}

			if render {
				var st docs.Style
				switch style {
				case "dark":
					st = docs.StyleDark
				case "light":
					st = docs.StyleLight
				case "notty", "":
					st = docs.StyleNoTTY
				default:
					return writeErr(cmd, fmt.Errorf("unknown --style %q (expected dark|light|notty)", style))
				}
				_, err := fmt.Fprint(cmd.OutOrStdout(), docs.Render(body, st, width))
				return err
			}
			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}

			return writeOut(cmd, app, map[string]any{"data": map[string]any{"topic": topic, "markdown": body}})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown (no JSON envelope)")
	cmd.Flags().BoolVar(&render, "render", false, "Render markdown for the terminal")
	cmd.Flags().StringVar(&style, "style", "notty", "Render style (dark|light|notty)")
	cmd.Flags().IntVar(&width, "width", 80, "Render wrap width")

	return cmd
}
