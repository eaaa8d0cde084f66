package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PromptSuffix holds the runtime-configurable text appended to every answer
// prompt. The backing file is watched and reloaded on change, so operators
// can tune prompting without a restart. Consumers only read; the grading
// core never writes.
type PromptSuffix struct {
	mu      sync.RWMutex
	current string

	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}
}

// NewPromptSuffix loads the suffix file and starts watching it. An empty
// path returns a static empty suffix with no watcher.
func NewPromptSuffix(path string, logger *slog.Logger) (*PromptSuffix, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &PromptSuffix{path: path, logger: logger, done: make(chan struct{})}
	if path == "" {
		return p, nil
	}

	if err := p.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file, which drops a
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	p.watcher = watcher
	go p.watch()
	return p, nil
}

// Get returns the current suffix.
func (p *PromptSuffix) Get() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Close stops the watcher.
func (p *PromptSuffix) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	return p.watcher.Close()
}

func (p *PromptSuffix) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read prompt suffix: %w", err)
	}
	p.mu.Lock()
	p.current = strings.TrimSpace(string(data))
	p.mu.Unlock()
	return nil
}

func (p *PromptSuffix) watch() {
	for {
		select {
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := p.reload(); err != nil {
				p.logger.Warn("prompt suffix reload failed", "path", p.path, "error", err)
				continue
			}
			p.logger.Info("prompt suffix reloaded", "path", p.path)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("prompt suffix watcher error", "error", err)
		}
	}
}
