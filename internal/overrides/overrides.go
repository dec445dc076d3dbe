// Package overrides applies a YAML file of metric values on top of the live
// dashboard and re-applies it whenever the file is saved. It backs the demo
// mode where values are edited by hand.
package overrides

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"healthguard/internal/monitor"
)

// Source tags patches read from the overrides file.
const Source = "overrides"

// Applier is the part of the monitor the watcher writes to.
type Applier interface {
	Apply(source string, patch monitor.Patch) (monitor.Change, error)
}

// LoadPatch reads a metric patch from a YAML file. Unknown keys are an
// error; an empty file yields an empty patch.
func LoadPatch(path string) (monitor.Patch, error) {
	f, err := os.Open(path)
	if err != nil {
		return monitor.Patch{}, fmt.Errorf("open overrides: %w", err)
	}
	defer f.Close()

	var patch monitor.Patch
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&patch); err != nil && !errors.Is(err, io.EOF) {
		return monitor.Patch{}, fmt.Errorf("decode overrides %s: %w", path, err)
	}
	return patch, nil
}

// Watcher keeps the monitor in line with the overrides file.
type Watcher struct {
	path   string
	target Applier
	logger zerolog.Logger
}

// NewWatcher returns a watcher for path.
func NewWatcher(path string, target Applier, logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:   filepath.Clean(path),
		target: target,
		logger: logger.With().Str("component", "overrides").Str("path", path).Logger(),
	}
}

// ApplyFile loads the file once and applies it. An empty file is a no-op.
func (w *Watcher) ApplyFile() error {
	patch, err := LoadPatch(w.path)
	if err != nil {
		return err
	}
	if patch.Empty() {
		w.logger.Debug().Msg("overrides file is empty")
		return nil
	}
	change, err := w.target.Apply(Source, patch)
	if err != nil {
		return err
	}
	w.logger.Info().
		Int("score", change.Current.Score).
		Str("risk", string(change.Current.RiskStatus)).
		Msg("overrides applied")
	return nil
}

// Run applies the file, then re-applies it on every write until ctx is done.
// A missing file at start is logged; it is picked up once created. A failed
// reload keeps the current dashboard.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.ApplyFile(); err != nil {
		w.logger.Warn().Err(err).Msg("initial overrides not applied")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace the file on save.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info().Msg("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.ApplyFile(); err != nil {
				w.logger.Error().Err(err).Msg("reload failed, keeping current values")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("watcher error")
		}
	}
}
