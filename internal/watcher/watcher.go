// Package watcher keeps the index synchronized with a set of watched
// directories. Filesystem events are coalesced, either per path with a
// debounce timer or across paths in timed batches, before they reach the
// ingest pipeline.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/mydocs/internal/config"
	"github.com/standardbeagle/mydocs/internal/logging"
)

// Handler receives coalesced document events.
type Handler interface {
	OnCreated(ctx context.Context, path string) error
	OnModified(ctx context.Context, path string) error
	OnDeleted(ctx context.Context, path string) error
	OnMoved(ctx context.Context, oldPath, newPath string) error
}

type eventKind int

const (
	eventCreated eventKind = iota
	eventModified
	eventDeleted
)

// stopDrainTimeout bounds how long Stop waits for in-flight dispatches.
const stopDrainTimeout = 5 * time.Second

// renamePairWindow is how long a rename origin stays eligible to pair with a
// subsequent create into a move.
const renamePairWindow = 2 * time.Second

// Stats counts watcher activity since Start.
type Stats struct {
	EventsSeen    int64
	Dispatched    int64
	Errors        int64
	Ignored       int64
	LastEventTime time.Time
}

// Health is the watcher's self-assessment.
type Health struct {
	Healthy   bool     `json:"healthy"`
	Issues    []string `json:"issues,omitempty"`
	ErrorRate float64  `json:"error_rate"`
}

// Watcher tails filesystem events for the configured directories.
type Watcher struct {
	cfg     config.Watcher
	handler Handler
	log     *logging.Logger

	fs      *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	mu             sync.Mutex
	pending        map[string]eventKind
	debounceTimers map[string]*time.Timer
	batchTimer     *time.Timer
	pendingRenames map[string]renameOrigin

	statsMu sync.RWMutex
	stats   Stats

	wg     sync.WaitGroup
	loopWg sync.WaitGroup
}

type renameOrigin struct {
	path string
	at   time.Time
}

// New builds a watcher. Start must be called before events flow.
func New(cfg config.Watcher, handler Handler, log *logging.Logger) *Watcher {
	return &Watcher{
		cfg:            cfg,
		handler:        handler,
		log:            log,
		pending:        make(map[string]eventKind),
		debounceTimers: make(map[string]*time.Timer),
		pendingRenames: make(map[string]renameOrigin),
	}
}

// Start registers the configured directories and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	if w.started {
		return fmt.Errorf("watcher already started")
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	w.fs = fs
	w.ctx, w.cancel = context.WithCancel(ctx)

	// a bad entry in the directory list skips that entry, not the watcher
	watching := 0
	for _, dir := range w.cfg.Directories {
		if err := w.watchTree(dir); err != nil {
			w.log.Warning("skipping watch directory %s: %v", dir, err)
			continue
		}
		watching++
	}
	if watching == 0 {
		fs.Close()
		w.cancel()
		return fmt.Errorf("no watchable directories among %d configured", len(w.cfg.Directories))
	}

	w.started = true
	w.loopWg.Add(1)
	go w.eventLoop()
	w.log.Info("watching %d directories (debounce=%dms batch=%v)",
		len(w.cfg.Directories), w.cfg.DebounceDelayMs, w.cfg.BatchProcessing)
	return nil
}

// Stop cancels event processing and waits for in-flight dispatches, up to
// stopDrainTimeout.
func (w *Watcher) Stop() error {
	if !w.started {
		return nil
	}
	w.cancel()
	err := w.fs.Close()
	w.loopWg.Wait()

	w.mu.Lock()
	for path, timer := range w.debounceTimers {
		timer.Stop()
		delete(w.debounceTimers, path)
	}
	if w.batchTimer != nil {
		w.batchTimer.Stop()
	}
	w.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(stopDrainTimeout):
		w.log.Warning("stop drain exceeded %s, abandoning in-flight dispatches", stopDrainTimeout)
	}
	w.started = false
	return err
}

func (w *Watcher) watchTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch target %s is not a directory", root)
	}
	if err := w.fs.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	if !w.cfg.Recursive {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.log.Warning("walk error under %s: %v", root, err)
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.log.Warning("failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer w.loopWg.Done()
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.recordError()
			w.log.Warning("watch error: %v", err)
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	w.statsMu.Lock()
	w.stats.EventsSeen++
	w.stats.LastEventTime = time.Now()
	w.statsMu.Unlock()

	if ev.Op.Has(fsnotify.Chmod) && ev.Op&^fsnotify.Chmod == 0 {
		return
	}

	// a created subdirectory extends the watch tree
	if ev.Op.Has(fsnotify.Create) && w.cfg.Recursive {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.ignoredDir(ev.Name) {
				if err := w.fs.Add(ev.Name); err != nil {
					w.log.Warning("failed to watch new directory %s: %v", ev.Name, err)
				}
			}
			return
		}
	}

	if !w.relevantFile(ev.Name) {
		w.statsMu.Lock()
		w.stats.Ignored++
		w.statsMu.Unlock()
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		if old, ok := w.takeRenameOrigin(ev.Name); ok {
			w.dispatchMove(old, ev.Name)
			return
		}
		w.enqueue(ev.Name, eventCreated)
	case ev.Op.Has(fsnotify.Write):
		w.enqueue(ev.Name, eventModified)
	case ev.Op.Has(fsnotify.Rename):
		w.rememberRenameOrigin(ev.Name)
		w.enqueue(ev.Name, eventDeleted)
	case ev.Op.Has(fsnotify.Remove):
		w.enqueue(ev.Name, eventDeleted)
	}
}

// rememberRenameOrigin records a renamed-away path so a create for the same
// base name inside the window can be paired into a move.
func (w *Watcher) rememberRenameOrigin(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pendingRenames[filepath.Base(path)] = renameOrigin{path: path, at: time.Now()}
}

func (w *Watcher) takeRenameOrigin(newPath string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	base := filepath.Base(newPath)
	origin, ok := w.pendingRenames[base]
	if !ok {
		return "", false
	}
	delete(w.pendingRenames, base)
	if time.Since(origin.at) > renamePairWindow || origin.path == newPath {
		return "", false
	}
	// the delete queued for the old path is superseded by the move
	if timer, ok := w.debounceTimers[origin.path]; ok {
		timer.Stop()
		delete(w.debounceTimers, origin.path)
	}
	delete(w.pending, origin.path)
	return origin.path, true
}

// enqueue coalesces an event. Debounced mode arms a per-path timer that each
// new event resets; batched mode collects paths under a single timer.
func (w *Watcher) enqueue(path string, kind eventKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// deletes always win; a create followed by writes stays a create so the
	// dispatcher still ingests paths the store has never seen
	if existing, ok := w.pending[path]; !ok {
		w.pending[path] = kind
	} else {
		switch {
		case kind == eventDeleted:
			w.pending[path] = eventDeleted
		case existing == eventDeleted && kind == eventCreated:
			w.pending[path] = eventCreated
		case existing == eventCreated:
			// keep created, later writes fold in
		default:
			w.pending[path] = kind
		}
	}

	if w.cfg.BatchProcessing {
		if w.batchTimer == nil {
			delay := time.Duration(w.cfg.BatchDelayMs) * time.Millisecond
			w.batchTimer = time.AfterFunc(delay, w.flushBatch)
		}
		return
	}

	delay := time.Duration(w.cfg.DebounceDelayMs) * time.Millisecond
	if timer, ok := w.debounceTimers[path]; ok {
		timer.Reset(delay)
		return
	}
	w.debounceTimers[path] = time.AfterFunc(delay, func() { w.flushPath(path) })
}

func (w *Watcher) flushPath(path string) {
	w.mu.Lock()
	kind, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.debounceTimers, path)
	w.mu.Unlock()
	if !ok {
		return
	}
	w.dispatch(path, kind)
}

func (w *Watcher) flushBatch() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]eventKind)
	w.batchTimer = nil
	w.mu.Unlock()
	for path, kind := range batch {
		w.dispatch(path, kind)
	}
}

func (w *Watcher) dispatch(path string, kind eventKind) {
	if w.ctx.Err() != nil {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		var err error
		switch kind {
		case eventCreated:
			err = w.handler.OnCreated(w.ctx, path)
		case eventModified:
			err = w.handler.OnModified(w.ctx, path)
		case eventDeleted:
			err = w.handler.OnDeleted(w.ctx, path)
		}
		w.recordDispatch(err)
		if err != nil {
			w.log.Warning("dispatch failed for %s: %v", path, err)
		}
	}()
}

func (w *Watcher) dispatchMove(oldPath, newPath string) {
	if w.ctx.Err() != nil {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		err := w.handler.OnMoved(w.ctx, oldPath, newPath)
		w.recordDispatch(err)
		if err != nil {
			w.log.Warning("move dispatch failed for %s -> %s: %v", oldPath, newPath, err)
		}
	}()
}

func (w *Watcher) recordDispatch(err error) {
	w.statsMu.Lock()
	w.stats.Dispatched++
	if err != nil {
		w.stats.Errors++
	}
	w.statsMu.Unlock()
}

func (w *Watcher) recordError() {
	w.statsMu.Lock()
	w.stats.Errors++
	w.statsMu.Unlock()
}

// relevantFile applies the extension, ignore, and size filters. A path that
// no longer stats (a delete) passes the size filter.
func (w *Watcher) relevantFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	match := false
	for _, allowed := range w.cfg.Extensions {
		if ext == allowed {
			match = true
			break
		}
	}
	if !match {
		return false
	}
	if w.ignored(path) {
		return false
	}
	if w.cfg.MaxFileSizeMB > 0 {
		if info, err := os.Stat(path); err == nil && info.Size() > int64(w.cfg.MaxFileSizeMB)*1024*1024 {
			return false
		}
	}
	return true
}

func (w *Watcher) ignored(path string) bool {
	normalized := filepath.ToSlash(path)
	for _, pattern := range w.cfg.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, normalized); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) ignoredDir(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return w.ignored(path)
}

// Snapshot returns a copy of the counters.
func (w *Watcher) Snapshot() Stats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.stats
}

// CheckHealth evaluates the watcher: running, every configured directory
// still present, and at most one error per ten observed events.
func (w *Watcher) CheckHealth() Health {
	s := w.Snapshot()
	h := Health{Healthy: true}
	if !w.started {
		h.Healthy = false
		h.Issues = append(h.Issues, "watcher not started")
	}
	for _, dir := range w.cfg.Directories {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			h.Healthy = false
			h.Issues = append(h.Issues, fmt.Sprintf("watch directory missing: %s", dir))
		}
	}
	if s.EventsSeen > 0 {
		h.ErrorRate = float64(s.Errors) / float64(s.EventsSeen)
		if h.ErrorRate >= 0.1 {
			h.Healthy = false
			h.Issues = append(h.Issues, fmt.Sprintf("error rate %.2f exceeds 0.10", h.ErrorRate))
		}
	}
	return h
}
