package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kbukum/mediafs/component"
	"github.com/kbukum/mediafs/logger"
)

// Watcher re-reads a Source when its file changes and notifies subscribers.
// It is a component so the registry can start and stop it.
type Watcher struct {
	src *Source
	log *logger.Logger

	mu       sync.Mutex
	subs     []func(*Source)
	watching bool
	lastErr  error
}

var _ component.Component = (*Watcher)(nil)

// NewWatcher creates a watcher for src.
func NewWatcher(src *Source, log *logger.Logger) *Watcher {
	return &Watcher{src: src, log: log.WithComponent("config")}
}

// Subscribe registers fn to run after every successful reload.
func (w *Watcher) Subscribe(fn func(*Source)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Name implements component.Component.
func (w *Watcher) Name() string { return "config-watcher" }

// Start begins watching the config file. With no file it does nothing.
func (w *Watcher) Start(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching || w.src.file == "" {
		return nil
	}
	w.src.v.OnConfigChange(w.onChange)
	w.src.v.WatchConfig()
	w.watching = true
	w.log.Info("watching config", logger.Fields("file", w.src.file))
	return nil
}

// Stop stops notifying subscribers. viper offers no way to close its
// watcher, so events after Stop are dropped.
func (w *Watcher) Stop(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watching = false
	return nil
}

// Health reports the outcome of the last reload.
func (w *Watcher) Health(context.Context) component.Health {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastErr != nil {
		return component.Health{Name: w.Name(), Status: component.StatusDegraded, Message: w.lastErr.Error()}
	}
	return component.Health{Name: w.Name(), Status: component.StatusHealthy}
}

// Reload re-reads the config file and notifies subscribers. It is used for
// SIGHUP and by tests; file events go through the same path.
func (w *Watcher) Reload() error {
	if w.src.file == "" {
		return fmt.Errorf("config: no config file to reload")
	}
	if err := w.src.v.ReadInConfig(); err != nil {
		w.setErr(err)
		return fmt.Errorf("reload config: %w", err)
	}
	w.notify()
	return nil
}

func (w *Watcher) onChange(e fsnotify.Event) {
	w.mu.Lock()
	active := w.watching
	w.mu.Unlock()
	if !active || !(e.Has(fsnotify.Write) || e.Has(fsnotify.Create)) {
		return
	}
	w.log.Info("config changed", logger.Fields("file", e.Name, "op", e.Op.String()))
	w.notify()
}

func (w *Watcher) notify() {
	w.setErr(nil)
	w.mu.Lock()
	subs := append([]func(*Source)(nil), w.subs...)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(w.src)
	}
}

func (w *Watcher) setErr(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}
