// Package config provides configuration loading and management for the
// grading service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/mathcheck/model"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Models  ModelsConfig  `yaml:"models"`
	Render  RenderConfig  `yaml:"render"`
	Storage StorageConfig `yaml:"storage"`
	Prompt  PromptConfig  `yaml:"prompt"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`
	// ReadTimeout bounds request reading.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout bounds response writing. Rendering and LLM calls can be
	// slow, so this is generous.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ModelsConfig configures the model registry.
type ModelsConfig struct {
	// Default is the model used when a request names none.
	Default string `yaml:"default"`
	// Endpoints maps model names to endpoint definitions.
	Endpoints map[string]*model.Endpoint `yaml:"endpoints"`
}

// RenderConfig configures the LaTeX rendering pipeline.
type RenderConfig struct {
	// PDFLaTeX is the pdflatex binary.
	PDFLaTeX string `yaml:"pdflatex"`
	// PDFToPPM is the pdftoppm binary used for PDF to PNG conversion.
	PDFToPPM string `yaml:"pdftoppm"`
	// WorkDir holds intermediate render files.
	WorkDir string `yaml:"work_dir"`
	// Timeout bounds one render invocation.
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig configures the file store.
type StorageConfig struct {
	// Root is the directory served and written by the storage backend.
	Root string `yaml:"root"`
}

// PromptConfig configures prompt construction.
type PromptConfig struct {
	// SuffixFile is a file whose contents are appended to every answer
	// prompt. It is watched and hot-reloaded at runtime.
	SuffixFile string `yaml:"suffix_file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Models: ModelsConfig{
			Default:   "",
			Endpoints: map[string]*model.Endpoint{},
		},
		Render: RenderConfig{
			PDFLaTeX: "pdflatex",
			PDFToPPM: "pdftoppm",
			WorkDir:  os.TempDir(),
			Timeout:  30 * time.Second,
		},
		Storage: StorageConfig{
			Root: "data",
		},
		Prompt: PromptConfig{
			SuffixFile: "",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Render.PDFLaTeX == "" || c.Render.PDFToPPM == "" {
		return fmt.Errorf("render.pdflatex and render.pdftoppm are required")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Models.Default != "" {
		if _, ok := c.Models.Endpoints[c.Models.Default]; !ok {
			return fmt.Errorf("models.default %q has no endpoint", c.Models.Default)
		}
	}
	return nil
}

// Registry builds a model registry from the models section.
func (c *Config) Registry() (*model.Registry, error) {
	return model.NewRegistry(c.Models.Endpoints, c.Models.Default)
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Merge overlays another config onto this one; non-zero values in other win.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ReadTimeout != 0 {
		c.Server.ReadTimeout = other.Server.ReadTimeout
	}
	if other.Server.WriteTimeout != 0 {
		c.Server.WriteTimeout = other.Server.WriteTimeout
	}

	if other.Models.Default != "" {
		c.Models.Default = other.Models.Default
	}
	for name, ep := range other.Models.Endpoints {
		if c.Models.Endpoints == nil {
			c.Models.Endpoints = map[string]*model.Endpoint{}
		}
		c.Models.Endpoints[name] = ep
	}

	if other.Render.PDFLaTeX != "" {
		c.Render.PDFLaTeX = other.Render.PDFLaTeX
	}
	if other.Render.PDFToPPM != "" {
		c.Render.PDFToPPM = other.Render.PDFToPPM
	}
	if other.Render.WorkDir != "" {
		c.Render.WorkDir = other.Render.WorkDir
	}
	if other.Render.Timeout != 0 {
		c.Render.Timeout = other.Render.Timeout
	}

	if other.Storage.Root != "" {
		c.Storage.Root = other.Storage.Root
	}
	if other.Prompt.SuffixFile != "" {
		c.Prompt.SuffixFile = other.Prompt.SuffixFile
	}
}
