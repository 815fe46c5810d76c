package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dhamidi/graft/workspace"
)

func newWatchCmd() *cobra.Command {
	var sel languageSelection
	var debounce = workspace.DefaultDebounce

	cmd := &cobra.Command{
		Use:   "watch <file>...",
		Short: "Reparse files incrementally whenever they change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			ws := workspace.New(".")
			for _, arg := range args {
				path, err := filepath.Abs(arg)
				if err != nil {
					return err
				}
				lang, err := languageFor(path, &sel)
				if err != nil {
					return err
				}
				ws.Register(filepath.Ext(path), lang)
				doc, err := ws.OpenFile(ctx, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "watching %s (%d syntax errors)\n", arg, len(doc.Diagnostics()))
			}

			out := cmd.OutOrStdout()
			w, err := workspace.NewWatcher(ws, debounce, func(path string, doc *workspace.Document, err error) {
				switch {
				case err != nil:
					fmt.Fprintf(os.Stderr, "%s: %s\n", path, err)
				case doc == nil:
					fmt.Fprintf(out, "%s: removed\n", path)
				default:
					fmt.Fprintf(out, "%s: version %d\n", path, doc.Version)
					printChanges(out, doc)
					for _, d := range doc.Diagnostics() {
						fmt.Fprintf(out, "  %d:%d: %s\n", d.Range.StartPoint.Row+1, d.Range.StartPoint.Column+1, d.Message)
					}
				}
			})
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return w.Stop()
		},
	}

	addLanguageFlags(cmd, &sel)
	cmd.Flags().DurationVar(&debounce, "debounce", debounce, "wait this long for writes to settle")

	return cmd
}
