package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce collapses the burst of events editors produce on save.
const DefaultReloadDebounce = 2 * time.Second

// Watcher reloads the configuration file when it changes and hands every
// successfully loaded and validated configuration to a callback. Invalid
// edits are logged and otherwise ignored, so the last good configuration
// stays in effect.
type Watcher struct {
	configPath string
	onReload   func(*Config)
	watcher    *fsnotify.Watcher
	debounce   time.Duration

	reloadChan chan struct{}
	stopOnce   sync.Once
	stopChan   chan struct{}
	done       sync.WaitGroup
}

// NewWatcher creates a watcher for configPath. Reloads wait for debounce of
// quiet time; zero means DefaultReloadDebounce.
func NewWatcher(configPath string, debounce time.Duration, onReload func(*Config)) (*Watcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	return &Watcher{
		configPath: absPath,
		onReload:   onReload,
		watcher:    fw,
		debounce:   debounce,
		reloadChan: make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}, nil
}

// Start watches the directory holding the file; editors that replace the file
// on save would otherwise drop the watch.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	slog.Info("Watching configuration", slog.String("path", w.configPath))

	w.done.Add(2)
	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop ends watching and waits for the loops to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		err = w.watcher.Close()
		w.done.Wait()
	})
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.done.Done()
	name := filepath.Base(w.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				slog.Debug("Config file changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
				w.trigger()
			case event.Has(fsnotify.Remove):
				slog.Warn("Config file removed; keeping the current configuration", slog.String("path", event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) trigger() {
	select {
	case w.reloadChan <- struct{}{}:
	default:
		// reload already pending
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	defer w.done.Done()
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-w.reloadChan:
			timer.Reset(w.debounce)
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.configPath)
	if err != nil {
		slog.Error("Failed to reload configuration", slog.String("path", w.configPath), slog.String("error", err.Error()))
		return
	}
	slog.Info("Configuration reloaded", slog.String("path", w.configPath))
	w.onReload(cfg)
}
