package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alejandrodnm/roundbot/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrompt_MultiplierAndTemplate(t *testing.T) {
	p := config.ParsePrompt("0.8\n---PROMPT---\nTrade wisely.\n{{.Summary}}\n")
	assert.Equal(t, 0.8, p.Multiplier)
	assert.Equal(t, "Trade wisely.\n{{.Summary}}", p.Template)
}

func TestParsePrompt_NoDelimiter(t *testing.T) {
	p := config.ParsePrompt("Just a template")
	assert.Equal(t, 1.0, p.Multiplier)
	assert.Equal(t, "Just a template", p.Template)
}

func TestParsePrompt_InvalidMultiplier(t *testing.T) {
	for _, head := range []string{"abc", "0", "-0.5", "1.5", "NaN"} {
		p := config.ParsePrompt(head + "\n---PROMPT---\nbody")
		assert.Equal(t, 1.0, p.Multiplier, "head=%q", head)
		assert.Equal(t, "body", p.Template)
	}
}

func TestParsePrompt_EmptyTemplate(t *testing.T) {
	p := config.ParsePrompt("0.5\n---PROMPT---\n   \n")
	assert.Equal(t, 0.5, p.Multiplier)
	assert.Equal(t, config.DefaultPrompt, p.Template)
}

func TestLoadPrompt_MissingFileUsesDefaults(t *testing.T) {
	p, err := config.LoadPrompt(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPromptConfig(), p)
}

func TestLoadPrompt_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("0.25\n---PROMPT---\nGo {{.Token}}"), 0o600))

	p, err := config.LoadPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, 0.25, p.Multiplier)
	assert.Equal(t, "Go {{.Token}}", p.Template)
}
