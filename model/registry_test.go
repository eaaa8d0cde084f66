package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	eps := map[string]*Endpoint{
		"gpt-4o":       {Provider: "openai", Model: "gpt-4o"},
		"gemini-flash": {Provider: "gemini", Model: "gemini-2.0-flash"},
	}
	r, err := NewRegistry(eps, "gpt-4o")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", r.Default())
	assert.Equal(t, []string{"gemini-flash", "gpt-4o"}, r.Names())
	assert.Equal(t, "openai", r.Get("gpt-4o").Provider)
	assert.Nil(t, r.Get("missing"))
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(map[string]*Endpoint{}, "ghost")
	assert.Error(t, err, "default must have an endpoint")

	_, err = NewRegistry(map[string]*Endpoint{"m": {Provider: "openai"}}, "")
	assert.Error(t, err, "endpoint needs a model identifier")
}

func TestResolve(t *testing.T) {
	r, err := NewRegistry(map[string]*Endpoint{
		"gpt-4o":       {Provider: "openai", Model: "gpt-4o"},
		"gemini-flash": {Provider: "gemini", Model: "gemini-2.0-flash"},
	}, "gpt-4o")
	require.NoError(t, err)

	name, ep, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", name)
	assert.Equal(t, "openai", ep.Provider)

	name, _, err = r.Resolve("gemini-flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini-flash", name)

	_, _, err = r.Resolve("missing")
	assert.ErrorContains(t, err, "unknown model")
}

func TestResolveFallsBackWhenUnhealthy(t *testing.T) {
	r, err := NewRegistry(map[string]*Endpoint{
		"gpt-4o":       {Provider: "openai", Model: "gpt-4o"},
		"gemini-flash": {Provider: "gemini", Model: "gemini-2.0-flash"},
	}, "gpt-4o")
	require.NoError(t, err)

	r.MarkUnhealthy("gemini-flash")
	assert.False(t, r.Healthy("gemini-flash"))

	name, _, err := r.Resolve("gemini-flash")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", name, "unhealthy model falls back to the default")

	// With the default down too there is nothing better to offer.
	r.MarkUnhealthy("gpt-4o")
	name, _, err = r.Resolve("gemini-flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini-flash", name)

	r.MarkHealthy("gemini-flash")
	name, _, err = r.Resolve("gemini-flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini-flash", name)
}

func TestRegistryAdd(t *testing.T) {
	r, err := NewRegistry(map[string]*Endpoint{}, "")
	require.NoError(t, err)

	require.NoError(t, r.Add("gpt-4o-mini", &Endpoint{Provider: "openai", Model: "gpt-4o-mini"}))
	assert.NotNil(t, r.Get("gpt-4o-mini"))

	assert.Error(t, r.Add("bad", &Endpoint{}))
}
