package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/mathcheck/model"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	c := DefaultConfig()
	c.Server.Addr = ""
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Models.Default = "ghost"
	assert.Error(t, c.Validate(), "default model needs an endpoint")

	c = DefaultConfig()
	c.Models.Default = "m"
	c.Models.Endpoints["m"] = &model.Endpoint{Provider: "openai", Model: "gpt-4o"}
	assert.NoError(t, c.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mathcheck.yaml")
	content := `
server:
  addr: ":9090"
models:
  default: gpt-4o
  endpoints:
    gpt-4o:
      provider: openai
      model: gpt-4o
      max_tokens: 4096
render:
  timeout: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "gpt-4o", c.Models.Default)
	assert.Equal(t, 4096, c.Models.Endpoints["gpt-4o"].MaxTokens)
	assert.Equal(t, time.Minute, c.Render.Timeout)
	// Unset fields keep defaults.
	assert.Equal(t, "pdflatex", c.Render.PDFLaTeX)

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	over := &Config{}
	over.Server.Addr = ":7000"
	over.Models.Default = "m"
	over.Models.Endpoints = map[string]*model.Endpoint{
		"m": {Provider: "gemini", Model: "gemini-2.0-flash"},
	}

	base.Merge(over)
	assert.Equal(t, ":7000", base.Server.Addr)
	assert.Equal(t, "m", base.Models.Default)
	assert.NotNil(t, base.Models.Endpoints["m"])
	// Untouched values survive.
	assert.Equal(t, 30*time.Second, base.Server.ReadTimeout)
}

func TestRegistryFromConfig(t *testing.T) {
	c := DefaultConfig()
	c.Models.Default = "m"
	c.Models.Endpoints["m"] = &model.Endpoint{Provider: "openai", Model: "gpt-4o"}

	reg, err := c.Registry()
	require.NoError(t, err)
	assert.Equal(t, "m", reg.Default())
}

func TestPromptSuffixReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suffix.txt")
	require.NoError(t, os.WriteFile(path, []byte("show your work\n"), 0644))

	p, err := NewPromptSuffix(path, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "show your work", p.Get())

	require.NoError(t, os.WriteFile(path, []byte("box the final answer"), 0644))
	assert.Eventually(t, func() bool {
		return p.Get() == "box the final answer"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPromptSuffixEmptyPath(t *testing.T) {
	p, err := NewPromptSuffix("", nil)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "", p.Get())
}
