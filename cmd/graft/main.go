package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/tliron/commonlog/simple"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "graft",
		Short:   "Incremental parsing toolkit",
		Version: version,
	}

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: "+defaultConfigFile+")")
	flags.CountP("verbose", "v", "log verbosity (repeat for more)")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.StringP("format", "f", "sexp", "output format (sexp, json, yaml)")
	flags.Bool("color", false, "color S-expression output")

	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("log_file", flags.Lookup("log-file"))
	_ = viper.BindPFlag("format", flags.Lookup("format"))
	_ = viper.BindPFlag("color", flags.Lookup("color"))

	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newDiffCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newEbnfCmd())
	rootCmd.AddCommand(newLSPCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
