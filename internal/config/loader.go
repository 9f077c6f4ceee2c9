package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML model file and watches it for changes.
type Loader struct {
	path     string
	log      *slog.Logger
	mu       sync.RWMutex
	current  *ModelConfig
	onChange []func(*ModelConfig)
}

// NewLoader creates a Loader and performs the initial load. The file must
// parse and validate.
func NewLoader(path string, log *slog.Logger) (*Loader, error) {
	if log == nil {
		log = slog.Default()
	}
	l := &Loader{path: path, log: log}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Load reads, defaults and validates a single file.
func Load(path string) (*ModelConfig, error) {
	l := &Loader{path: path}
	return l.load()
}

// Path returns the watched file.
func (l *Loader) Path() string { return l.path }

// Config returns the current (latest) configuration.
func (l *Loader) Config() *ModelConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*ModelConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// settle is how long Watch waits after the last event on the file before
// reloading. Editors and `cp` produce bursts of writes.
const settle = 50 * time.Millisecond

// Watch hot-reloads the model whenever the file changes. The parent
// directory is watched so that editors replacing the file by rename are
// seen too. A failed reload keeps the previous model. Call stop to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", dir, err)
	}
	target := filepath.Clean(l.path)

	done := make(chan struct{})
	go func() {
		defer w.Close()
		timer := time.NewTimer(settle)
		timer.Stop()
		defer timer.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				timer.Reset(settle)
			case <-timer.C:
				if _, err := l.Reload(); err != nil {
					l.log.Warn("config reload failed, keeping previous model", "path", l.path, "error", err)
					continue
				}
				l.log.Info("config reloaded", "path", l.path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.log.Warn("config watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the config file. On error the
// current config is kept.
func (l *Loader) Reload() (*ModelConfig, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*ModelConfig), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*ModelConfig, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", l.path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*ModelConfig, error) {
	var cfg ModelConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *ModelConfig) {
	if cfg.Engine.ChainWorkers == 0 {
		cfg.Engine.ChainWorkers = 4
	}
	if cfg.Engine.QueueDepth == 0 {
		cfg.Engine.QueueDepth = 64
	}
	if cfg.Engine.RunTimeoutMs == 0 {
		cfg.Engine.RunTimeoutMs = 600000
	}
	if cfg.Run.Chains == 0 {
		cfg.Run.Chains = 1
	}
	if cfg.Run.Generations == 0 {
		cfg.Run.Generations = 1000
	}
	if cfg.Run.SampleEvery == 0 {
		cfg.Run.SampleEvery = 100
	}
	for i := range cfg.Moves {
		if cfg.Moves[i].Weight == 0 {
			cfg.Moves[i].Weight = 1
		}
	}
}
