package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/graft/syntax"
)

const assignments = `
Program   = { Statement } .
Statement = ident "=" number ";" .
ident     = letter { letter } .
number    = digit { digit } .
comment   = "#" { letter | " " } .
letter    = "a" … "z" .
digit     = "0" … "9" .
`

func writeGrammar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assign.ebnf")
	require.NoError(t, os.WriteFile(path, []byte(assignments), 0o644))
	return path
}

func TestParseRanges(t *testing.T) {
	source := []byte("ab\ncd")
	ranges, err := parseRanges(source, "0:2, 3:5")
	require.NoError(t, err)
	assert.Equal(t, []syntax.Range{
		{StartByte: 0, EndByte: 2, EndPoint: syntax.Point{Column: 2}},
		{StartByte: 3, EndByte: 5, StartPoint: syntax.Point{Row: 1}, EndPoint: syntax.Point{Row: 1, Column: 2}},
	}, ranges)

	for _, bad := range []string{"3", "a:4", "1:-2", ""} {
		_, err := parseRanges(source, bad)
		assert.Error(t, err, "ranges %q", bad)
	}
}

func TestLanguageConfig(t *testing.T) {
	c := defaultConfig()
	lc, ok := c.languageConfig(".calc")
	require.True(t, ok)
	assert.Equal(t, "arithmetic", lc.Builtin)

	_, ok = c.languageConfig(".rb")
	assert.False(t, ok)

	c.Languages = append([]LanguageConfig{{Extensions: []string{".calc"}, Builtin: "sentence"}}, c.Languages...)
	lc, _ = c.languageConfig(".calc")
	assert.Equal(t, "sentence", lc.Builtin)
}

func TestLoadLanguage(t *testing.T) {
	lang, err := loadLanguage(LanguageConfig{Builtin: "json"})
	require.NoError(t, err)
	assert.Equal(t, "json", lang.Name)

	_, err = loadLanguage(LanguageConfig{Builtin: "cobol"})
	assert.ErrorContains(t, err, "available: arithmetic, json, sentence")

	_, err = loadLanguage(LanguageConfig{Extensions: []string{".x"}})
	assert.Error(t, err)

	path := writeGrammar(t)
	lc := LanguageConfig{Grammar: path, Start: "Program", Extras: []string{"comment"}}
	first, err := loadLanguage(lc)
	require.NoError(t, err)
	second, err := loadLanguage(lc)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLanguageSelection(t *testing.T) {
	sel := &languageSelection{language: "sentence"}
	lang, err := languageFor("input.json", sel)
	require.NoError(t, err)
	assert.Equal(t, "sentence", lang.Name)

	cfg = defaultConfig()
	lang, err = languageFor("input.json", &languageSelection{})
	require.NoError(t, err)
	assert.Equal(t, "json", lang.Name)

	_, err = languageFor("input.rb", &languageSelection{})
	assert.ErrorContains(t, err, `no language configured for extension ".rb"`)
}

func TestEbnfCompileCommand(t *testing.T) {
	path := writeGrammar(t)

	var out bytes.Buffer
	cmd := newEbnfCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"compile", "--start", "Program", "--extras", "comment", "--describe", path})
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "Statement -> ident = number ;")
	assert.True(t, strings.HasPrefix(lastLine(text), path+": "), text)
	assert.Contains(t, lastLine(text), "symbols")
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	return lines[len(lines)-1]
}
