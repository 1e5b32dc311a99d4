package metrics

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Rules is a concurrency-safe holder for the active RuleSet.
type Rules struct {
	current atomic.Pointer[RuleSet]
}

// NewRules returns a holder initialised with rs (or the defaults when nil).
func NewRules(rs *RuleSet) *Rules {
	if rs == nil {
		rs = Default()
	}
	r := &Rules{}
	r.current.Store(rs)
	return r
}

// Get returns the active rule set.
func (r *Rules) Get() *RuleSet {
	return r.current.Load()
}

// Set replaces the active rule set.
func (r *Rules) Set(rs *RuleSet) {
	r.current.Store(rs)
}

// reloadDelay coalesces the burst of events a single save produces.
var reloadDelay = 100 * time.Millisecond

// Watch reloads the rules file at path whenever it changes, until ctx is
// cancelled. Reloads wait until events settle for reloadDelay. A file that
// is empty or fails to parse is logged and the previous rules stay active.
// The parent directory is watched so editors that replace the file
// atomically are picked up.
func (r *Rules) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating rules watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving rules path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	logger := slog.Default().With("path", abs)
	settle := time.NewTimer(reloadDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			settle.Reset(reloadDelay)
		case <-settle.C:
			r.reload(abs, logger)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("rules watcher error", "error", err)
		}
	}
}

func (r *Rules) reload(path string, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("rules reload failed, keeping previous rules", "error", err)
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		logger.Debug("rules file is empty, keeping previous rules")
		return
	}
	rs, err := ParseRules(data)
	if err != nil {
		logger.Warn("rules reload failed, keeping previous rules", "error", err)
		return
	}
	r.Set(rs)
	logger.Info("rules reloaded")
}
