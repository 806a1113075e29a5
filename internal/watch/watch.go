// Package watch hot-reloads rule source files: it watches a directory
// for .rule file create/write/remove events, debounces rapid saves, and
// re-invokes internal/dsl and internal/lhscompile to re-lower affected
// rules without a process restart.
//
// An fsnotify-watcher-plus-debounce-map-plus-stats shape: Start/Stop, a
// debounceMap of path->lastEventTime drained by a ticker, and a running
// flag guarded by a mutex.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Alon769/lity/internal/dsl"
	"github.com/Alon769/lity/internal/lhscompile"
	"github.com/Alon769/lity/internal/logging"
	"github.com/Alon769/lity/internal/rete"
	"github.com/fsnotify/fsnotify"
)

// CompileResult is handed to OnReload once per successfully recompiled
// file: every rule the file defined, successfully lowered into g.
type CompileResult struct {
	Path    string
	Results []*lhscompile.CompileResult
}

// Watcher watches ruleDir for .rule file changes and recompiles them
// against a shared Rete graph as they settle.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	ruleDir     string
	graph       *rete.Graph
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	// OnReload, if set, is invoked after each file is successfully
	// recompiled. OnError, if set, is invoked with any compile or read
	// error instead.
	OnReload func(CompileResult)
	OnError  func(path string, err error)

	Stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	FilesChanged      int
	FilesDeleted      int
	ReloadsTriggered  int
	Errors            int
	LastEventPath     string
	LastEventTime     time.Time
}

// New constructs a Watcher over ruleDir, recompiling into graph.
// debounce bounds how long a file's writes must settle before it is
// re-read (spec has no opinion on this; it is purely a CLI/dev-loop
// convenience layered on top of the core).
func New(ruleDir string, graph *rete.Graph, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Watcher{
		watcher:     fw,
		ruleDir:     ruleDir,
		graph:       graph,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching ruleDir in a background goroutine. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.ruleDir, 0o755); err != nil {
		logging.Get(logging.CategoryWatch).Error("mkdir %s: %v", w.ruleDir, err)
	}
	if err := w.watcher.Add(w.ruleDir); err != nil {
		logging.Get(logging.CategoryWatch).Error("watch %s: %v", w.ruleDir, err)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			w.Stats.Errors++
			w.mu.Unlock()
			logging.Get(logging.CategoryWatch).Error("watcher error: %v", err)
		case <-ticker.C:
			w.processDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".rule") {
		return
	}
	w.mu.Lock()
	w.Stats.LastEventPath = event.Name
	w.Stats.LastEventTime = time.Now()
	if event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0 {
		w.Stats.FilesDeleted++
	} else {
		w.Stats.FilesChanged++
	}
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, t := range w.debounceMap {
		if now.Sub(t) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		w.reload(path)
	}
}

func (w *Watcher) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return // deleted after the event settled; nothing to recompile
		}
		w.reportError(path, err)
		return
	}

	rules, errs := dsl.ParseFile(string(data))
	if len(errs) > 0 {
		w.reportError(path, errs[0])
		return
	}

	var results []*lhscompile.CompileResult
	for _, rule := range rules {
		cr, cerrs := lhscompile.Compile(rule, w.graph)
		if len(cerrs) > 0 {
			w.reportError(path, cerrs[0])
			return
		}
		results = append(results, cr)
	}

	w.mu.Lock()
	w.Stats.ReloadsTriggered++
	w.mu.Unlock()

	logging.Get(logging.CategoryWatch).Info("reloaded %s: %d rule(s)", filepath.Base(path), len(results))
	if w.OnReload != nil {
		w.OnReload(CompileResult{Path: path, Results: results})
	}
}

func (w *Watcher) reportError(path string, err error) {
	w.mu.Lock()
	w.Stats.Errors++
	w.mu.Unlock()
	logging.Get(logging.CategoryWatch).Error("reload %s: %v", path, err)
	if w.OnError != nil {
		w.OnError(path, err)
	}
}
