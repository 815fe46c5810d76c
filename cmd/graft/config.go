package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tliron/commonlog"

	"github.com/dhamidi/graft/grammar"
	"github.com/dhamidi/graft/grammars"
	"github.com/dhamidi/graft/syntax"
)

const defaultConfigFile = ".graft.yaml"

// Config is the CLI configuration read from .graft.yaml, GRAFT_ variables
// and flags.
type Config struct {
	Format    string           `mapstructure:"format"`
	Color     bool             `mapstructure:"color"`
	Verbose   int              `mapstructure:"verbose"`
	LogFile   string           `mapstructure:"log_file"`
	Languages []LanguageConfig `mapstructure:"languages"`
}

// LanguageConfig maps file extensions to a built-in language or an EBNF
// grammar file.
type LanguageConfig struct {
	Extensions []string `mapstructure:"extensions"`
	Builtin    string   `mapstructure:"builtin"`
	Grammar    string   `mapstructure:"grammar"`
	Start      string   `mapstructure:"start"`
	Extras     []string `mapstructure:"extras"`
	Skip       []string `mapstructure:"skip"`
}

func defaultConfig() Config {
	return Config{
		Format: "sexp",
		Languages: []LanguageConfig{
			{Extensions: []string{".json"}, Builtin: "json"},
			{Extensions: []string{".calc"}, Builtin: "arithmetic"},
			{Extensions: []string{".sentence"}, Builtin: "sentence"},
		},
	}
}

var (
	cfgFile string
	cfg     = defaultConfig()
	// grammarCache keeps EBNF grammars compiled once per process.
	grammarCache = grammar.NewCache(grammar.DefaultCacheExpiration, grammar.DefaultCacheCleanupInterval)
	cliLog       = commonlog.GetLogger("graft.cli")
)

func initConfig() {
	defaults := defaultConfig()
	viper.SetDefault("format", defaults.Format)
	viper.SetDefault("color", defaults.Color)

	viper.SetEnvPrefix("graft")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigFile(defaultConfigFile)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			fmt.Fprintf(os.Stderr, "graft: reading config: %s\n", err)
		}
	}

	var loaded Config
	if err := viper.Unmarshal(&loaded); err != nil {
		fmt.Fprintf(os.Stderr, "graft: invalid config: %s\n", err)
	} else {
		// Configured languages take precedence over the defaults.
		loaded.Languages = append(loaded.Languages, defaults.Languages...)
		cfg = loaded
	}

	var logPath *string
	if cfg.LogFile != "" {
		logPath = &cfg.LogFile
	}
	commonlog.Configure(cfg.Verbose, logPath)
}

// loadLanguage resolves a language configuration. EBNF grammars are
// resolved relative to the config file.
func loadLanguage(lc LanguageConfig) (*syntax.Language, error) {
	if lc.Builtin != "" {
		load, ok := grammars.Lookup(lc.Builtin)
		if !ok {
			return nil, fmt.Errorf("unknown built-in language %q (available: %s)", lc.Builtin, strings.Join(grammars.Names(), ", "))
		}
		return load()
	}
	if lc.Grammar == "" {
		return nil, errors.New("language needs either builtin or grammar")
	}
	path := lc.Grammar
	if !filepath.IsAbs(path) {
		if used := viper.ConfigFileUsed(); used != "" {
			if _, err := os.Stat(used); err == nil {
				path = filepath.Join(filepath.Dir(used), path)
			}
		}
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}
	cliLog.Debugf("compiling grammar %s", path)
	return grammarCache.CompileEBNF(path, source, grammar.EBNFOptions{
		Start:  lc.Start,
		Extras: lc.Extras,
		Skip:   lc.Skip,
	})
}

// languageSelection holds the flags that override extension lookup.
type languageSelection struct {
	language string
	grammar  string
	start    string
}

func (s *languageSelection) override() (LanguageConfig, bool) {
	switch {
	case s.grammar != "":
		path, err := filepath.Abs(s.grammar)
		if err != nil {
			path = s.grammar
		}
		return LanguageConfig{Grammar: path, Start: s.start}, true
	case s.language != "":
		return LanguageConfig{Builtin: s.language}, true
	}
	return LanguageConfig{}, false
}

// languageFor picks the language for path from the flags or, failing
// that, from the configured extensions.
func languageFor(path string, sel *languageSelection) (*syntax.Language, error) {
	if lc, ok := sel.override(); ok {
		return loadLanguage(lc)
	}
	lc, ok := cfg.languageConfig(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("%s: no language configured for extension %q; use --language or --grammar", path, filepath.Ext(path))
	}
	return loadLanguage(lc)
}

func (c *Config) languageConfig(ext string) (LanguageConfig, bool) {
	for _, lc := range c.Languages {
		for _, e := range lc.Extensions {
			if e == ext {
				return lc, true
			}
		}
	}
	return LanguageConfig{}, false
}

// configuredLanguages loads every language in the configuration by
// extension, skipping the ones that fail to load.
func configuredLanguages() map[string]*syntax.Language {
	langs := make(map[string]*syntax.Language)
	for _, lc := range cfg.Languages {
		lang, err := loadLanguage(lc)
		if err != nil {
			cliLog.Warningf("language for %s: %s", strings.Join(lc.Extensions, ", "), err)
			continue
		}
		for _, ext := range lc.Extensions {
			if _, ok := langs[ext]; !ok {
				langs[ext] = lang
			}
		}
	}
	return langs
}

func addLanguageFlags(cmd *cobra.Command, sel *languageSelection) {
	flags := cmd.Flags()
	flags.StringVarP(&sel.language, "language", "l", "", "built-in language ("+strings.Join(grammars.Names(), ", ")+")")
	flags.StringVarP(&sel.grammar, "grammar", "g", "", "EBNF grammar file")
	flags.StringVar(&sel.start, "start", "", "start production of the EBNF grammar")
}
