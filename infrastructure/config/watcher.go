package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hirewire/pipeline-go/infrastructure/logging"
)

// ReloadFunc is invoked with the freshly loaded rule set after a
// change on disk. Errors from loading are logged and the previous rule
// set stays in effect.
type ReloadFunc func(ctx context.Context, rules *RuleFile) error

// Watcher watches a rule file or directory and reloads on change.
type Watcher struct {
	path     string
	reload   ReloadFunc
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  bool
}

// NewWatcher creates a watcher for the given rule path.
func NewWatcher(path string, reload ReloadFunc) *Watcher {
	return &Watcher{
		path:     path,
		reload:   reload,
		debounce: 250 * time.Millisecond,
	}
}

// Start begins watching. It returns after the underlying watcher is
// registered; events are handled on a background goroutine until Stop
// is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the containing directory so editor rename-and-replace
	// saves are still observed.
	target := w.path
	dir := filepath.Dir(target)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fw
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(ctx, fw)
	return nil
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.watcher == nil {
		return
	}
	w.closed = true
	w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			// Debounce bursts of write events from a single save.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.Error().
				Add(logging.Component("rule-watcher")).
				Add(logging.ErrorField(err)).
				Msg("rule watcher error")
		case <-timerC:
			timerC = nil
			w.fire(ctx)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	// For a single-file path only that file matters; for a directory
	// any yaml inside counts.
	if filepath.Clean(w.path) == filepath.Clean(ev.Name) {
		return true
	}
	return filepath.Dir(ev.Name) == filepath.Clean(w.path)
}

func (w *Watcher) fire(ctx context.Context) {
	rules, err := LoadRules(w.path)
	if err != nil {
		logging.Warn().
			Add(logging.Component("rule-watcher")).
			Add(logging.ErrorField(err)).
			Msg("rule reload failed, keeping previous rule set")
		return
	}
	if err := w.reload(ctx, rules); err != nil {
		logging.Warn().
			Add(logging.Component("rule-watcher")).
			Add(logging.ErrorField(err)).
			Msg("rule reload callback failed")
		return
	}
	logging.Info().
		Add(logging.Component("rule-watcher")).
		Add(logging.Int("rules", len(rules.Rules))).
		Add(logging.Int("flows", len(rules.Flows))).
		Msg("rules reloaded")
}
