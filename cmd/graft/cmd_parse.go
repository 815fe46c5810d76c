package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/dhamidi/graft/format"
	"github.com/dhamidi/graft/syntax"
	"github.com/dhamidi/graft/workspace"
)

func newParseCmd() *cobra.Command {
	var sel languageSelection
	var ranges string
	var positions bool
	var trace bool

	cmd := &cobra.Command{
		Use:   "parse <file>...",
		Short: "Parse files and print their syntax trees",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]*bytes.Buffer, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, filename := range args {
				results[i] = new(bytes.Buffer)
				g.Go(func() error {
					return parseFile(ctx, filename, &sel, ranges, positions, trace, results[i])
				})
			}
			err := g.Wait()
			for _, out := range results {
				os.Stdout.Write(out.Bytes())
			}
			return err
		},
	}

	addLanguageFlags(cmd, &sel)
	cmd.Flags().StringVar(&ranges, "ranges", "", "only parse these byte ranges, e.g. 1:6,10:15")
	cmd.Flags().BoolVar(&positions, "positions", false, "include positions in json and yaml output")
	cmd.Flags().BoolVar(&trace, "trace", false, "print the parser's actions to stderr")

	return cmd
}

func parseFile(ctx context.Context, filename string, sel *languageSelection, ranges string, positions, trace bool, out *bytes.Buffer) error {
	lang, err := languageFor(filename, sel)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}

	opts := []syntax.Option{syntax.WithLanguage(lang)}
	if trace {
		opts = append(opts, syntax.WithLogger(func(t syntax.LogType, message string) {
			fmt.Fprintf(os.Stderr, "%s: %s %s\n", filename, t, message)
		}))
	}
	parser := syntax.NewParser(opts...)
	if ranges != "" {
		included, err := parseRanges(source, ranges)
		if err != nil {
			return err
		}
		if err := parser.SetIncludedRanges(included); err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
	}
	tree, err := parser.ParseBytes(ctx, source, nil)
	if err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}

	encOpts := []format.Option{format.WithSource(source)}
	if positions {
		encOpts = append(encOpts, format.WithPositions())
	}
	if viper.GetBool("color") {
		encOpts = append(encOpts, format.WithColor())
	}
	enc, err := format.New(viper.GetString("format"), out, encOpts...)
	if err != nil {
		return err
	}
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	if diags := (&workspace.Document{Path: filename, Text: source, Tree: tree}).Diagnostics(); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintf(os.Stderr, "%s:%d:%d: %s\n", filename, d.Range.StartPoint.Row+1, d.Range.StartPoint.Column+1, d.Message)
		}
	}
	return nil
}

// parseRanges reads a comma-separated list of start:end byte offsets.
func parseRanges(source []byte, list string) ([]syntax.Range, error) {
	var ranges []syntax.Range
	for _, part := range strings.Split(list, ",") {
		startText, endText, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("invalid range %q: want start:end", part)
		}
		start, err := strconv.ParseUint(startText, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", part, err)
		}
		end, err := strconv.ParseUint(endText, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", part, err)
		}
		ranges = append(ranges, syntax.Range{
			StartByte:  uint32(start),
			EndByte:    uint32(end),
			StartPoint: workspace.PointAt(source, uint32(start)),
			EndPoint:   workspace.PointAt(source, uint32(end)),
		})
	}
	return ranges, nil
}
