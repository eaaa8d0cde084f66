// Package model manages the registry of language models available for
// answering problems: which provider serves each model, where its endpoint
// lives, and which model handles a request when none is named.
package model

import (
	"fmt"
	"sort"
	"sync"
)

// Endpoint describes one model endpoint.
type Endpoint struct {
	// Provider is the adapter name (openai, gemini).
	Provider string `yaml:"provider" json:"provider"`

	// URL overrides the provider's default API base URL.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `yaml:"model" json:"model"`

	// MaxTokens caps response length. Zero uses the provider default.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// Temperature is the sampling temperature; nil uses the provider
	// default. Grading runs typically pin this to 0.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// Registry maps model names to endpoints.
type Registry struct {
	mu           sync.RWMutex
	endpoints    map[string]*Endpoint
	defaultModel string
	unhealthy    map[string]bool
}

// NewRegistry creates a registry from an endpoint map. The default model is
// used when a request names none; it must be a key of endpoints if set.
func NewRegistry(endpoints map[string]*Endpoint, defaultModel string) (*Registry, error) {
	if defaultModel != "" {
		if _, ok := endpoints[defaultModel]; !ok {
			return nil, fmt.Errorf("default model %q has no endpoint", defaultModel)
		}
	}
	for name, ep := range endpoints {
		if ep == nil || ep.Provider == "" || ep.Model == "" {
			return nil, fmt.Errorf("endpoint %q needs provider and model", name)
		}
	}
	return &Registry{
		endpoints:    endpoints,
		defaultModel: defaultModel,
		unhealthy:    make(map[string]bool),
	}, nil
}

// Resolve maps a requested model name to an endpoint. An empty name resolves
// to the default. A model marked unhealthy falls back to the default when
// that is a different, healthy model; otherwise the requested endpoint is
// returned anyway so the caller can still try it.
func (r *Registry) Resolve(name string) (string, *Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultModel
	}
	if name == "" {
		return "", nil, fmt.Errorf("no model named and no default configured")
	}
	ep, ok := r.endpoints[name]
	if !ok {
		return "", nil, fmt.Errorf("unknown model %q", name)
	}
	if r.unhealthy[name] && r.defaultModel != "" && r.defaultModel != name && !r.unhealthy[r.defaultModel] {
		return r.defaultModel, r.endpoints[r.defaultModel], nil
	}
	return name, ep, nil
}

// MarkUnhealthy records that requests to a model are failing.
func (r *Registry) MarkUnhealthy(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unhealthy[name] = true
}

// MarkHealthy clears a model's unhealthy mark.
func (r *Registry) MarkHealthy(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.unhealthy, name)
}

// Healthy reports whether a model is not marked unhealthy.
func (r *Registry) Healthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.unhealthy[name]
}

// Get returns the endpoint for a model name, or nil if unknown.
func (r *Registry) Get(name string) *Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[name]
}

// Default returns the default model name, which may be empty.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModel
}

// Names returns all registered model names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Add registers or replaces an endpoint.
func (r *Registry) Add(name string, ep *Endpoint) error {
	if ep == nil || ep.Provider == "" || ep.Model == "" {
		return fmt.Errorf("endpoint %q needs provider and model", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = ep
	return nil
}
