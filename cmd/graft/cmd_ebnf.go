package main

import (
	"fmt"
	"os"
	"reflect"

	"github.com/spf13/cobra"
	"golang.org/x/exp/ebnf"

	"github.com/dhamidi/graft/grammar"
)

func newEbnfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ebnf",
		Short:         "EBNF grammar tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newEbnfCheckCmd())
	cmd.AddCommand(newEbnfCompileCmd())

	return cmd
}

func newEbnfCheckCmd() *cobra.Command {
	var startProduction string

	cmd := &cobra.Command{
		Use:           "check <file>",
		Short:         "Parse and verify an EBNF grammar file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			f, err := os.Open(filename)
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			g, err := ebnf.Parse(filename, f)
			if err != nil {
				printErrors(err)
				return err
			}

			if startProduction == "" {
				return nil
			}
			if err := ebnf.Verify(g, startProduction); err != nil {
				printErrors(err)
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&startProduction, "start", "", "start production for verification (if empty, only checks syntax)")

	return cmd
}

func newEbnfCompileCmd() *cobra.Command {
	var opts grammar.EBNFOptions
	var describe bool

	cmd := &cobra.Command{
		Use:           "compile <file>",
		Short:         "Build parse tables for an EBNF grammar and report their size",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			g, err := grammar.LoadEBNF(filename, opts)
			if err != nil {
				printErrors(err)
				return err
			}

			out := cmd.OutOrStdout()
			if describe {
				text, err := grammar.Describe(g, grammar.WithStart(opts.Start))
				if err != nil {
					printErrors(err)
					return err
				}
				fmt.Fprint(out, text)
			}

			lang, err := grammar.Compile(g, grammar.WithStart(opts.Start))
			if err != nil {
				printErrors(err)
				return err
			}
			fmt.Fprintf(out, "%s: %d symbols, %d states\n", filename, lang.SymbolCount(), lang.StateCount())
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", "", "start production")
	cmd.Flags().StringSliceVar(&opts.Extras, "extras", nil, "lexical productions allowed between any two tokens")
	cmd.Flags().StringSliceVar(&opts.Skip, "skip", nil, "lexical productions skipped as separators (default: whitespace)")
	cmd.Flags().BoolVar(&describe, "describe", false, "print the expanded productions")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func printErrors(err error) {
	v := reflect.ValueOf(err)
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			fmt.Println(v.Index(i).Interface())
		}
	} else {
		fmt.Println(err)
	}
}
