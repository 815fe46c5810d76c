package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhamidi/graft/format"
	"github.com/dhamidi/graft/syntax"
	"github.com/dhamidi/graft/workspace"
)

func newDiffCmd() *cobra.Command {
	var sel languageSelection
	var showTree bool

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Reparse a file incrementally and print the ranges whose syntax changed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldFile, newFile := args[0], args[1]
			lang, err := languageFor(newFile, &sel)
			if err != nil {
				return err
			}
			oldText, err := os.ReadFile(oldFile)
			if err != nil {
				return fmt.Errorf("read old file: %w", err)
			}
			newText, err := os.ReadFile(newFile)
			if err != nil {
				return fmt.Errorf("read new file: %w", err)
			}

			// Both versions are opened under one path so the second parse
			// reuses the first.
			path := "document" + filepath.Ext(newFile)
			ws := workspace.New(".")
			ws.Register(filepath.Ext(path), lang)
			if _, err := ws.Open(cmd.Context(), path, oldText); err != nil {
				return err
			}
			doc, err := ws.Update(cmd.Context(), path, newText)
			if err != nil {
				return err
			}

			printChanges(cmd.OutOrStdout(), doc)
			if !showTree {
				return nil
			}
			opts := []format.Option{format.WithSource(doc.Text), format.WithHighlight(doc.LastChanges)}
			if viper.GetBool("color") {
				opts = append(opts, format.WithColor())
			}
			enc, err := format.New(viper.GetString("format"), cmd.OutOrStdout(), opts...)
			if err != nil {
				return err
			}
			return enc.Encode(doc.Tree)
		},
	}

	addLanguageFlags(cmd, &sel)
	cmd.Flags().BoolVar(&showTree, "tree", false, "also print the new tree with changed nodes highlighted")

	return cmd
}

func printChanges(w io.Writer, doc *workspace.Document) {
	header := color.New(color.Bold)
	header.DisableColor()
	if viper.GetBool("color") {
		header.EnableColor()
	}
	if len(doc.LastChanges) == 0 {
		fmt.Fprintln(w, "no syntax changes")
		return
	}
	header.Fprintf(w, "%d changed ranges\n", len(doc.LastChanges))
	for _, r := range doc.LastChanges {
		fmt.Fprintf(w, "  %s %q\n", r, excerpt(doc.Text, r))
	}
}

func excerpt(text []byte, r syntax.Range) string {
	end := r.EndByte
	if int(end) > len(text) {
		end = uint32(len(text))
	}
	if r.StartByte >= end {
		return ""
	}
	s := string(text[r.StartByte:end])
	if len(s) > 60 {
		s = s[:60] + "..."
	}
	return s
}
