package ui

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	ptdebug "github.com/vanderheijden86/peektree/pkg/debug"
	"github.com/vanderheijden86/peektree/pkg/loader"
	"github.com/vanderheijden86/peektree/pkg/tree"
	"github.com/vanderheijden86/peektree/pkg/watcher"
)

// WorkerState represents the current state of the background worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is rebuilding the tree.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "read", "load"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Number of consecutive failures
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// BackgroundWorker rebuilds the tree model off the UI thread whenever the
// hierarchy file changes. Rebuilt trees go to the Bubble Tea program and
// to OnTree, so the same worker can feed the terminal and the HTTP adapter.
type BackgroundWorker struct {
	// Configuration
	path          string // hierarchy file or .peektree directory
	debounceDelay time.Duration
	load          func(string) (*tree.Model, error)
	onTree        func(*tree.Model)
	onError       func(error)

	// State
	mu       sync.RWMutex
	state    WorkerState
	dirty    bool // True if a change came in while processing
	current  *tree.Model
	started  bool
	lastHash string // Content hash of last loaded file (for dedup)

	// Error tracking
	lastError  *WorkerError
	errorCount int

	// Components
	watcher *watcher.Watcher
	program *tea.Program

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerConfig configures the BackgroundWorker.
type WorkerConfig struct {
	Path          string
	DebounceDelay time.Duration
	Program       *tea.Program
	Load          func(string) (*tree.Model, error) // defaults to loader.Load
	OnTree        func(*tree.Model)
	OnError       func(error)
	ForcePoll     bool
}

// NewBackgroundWorker creates a new background worker.
func NewBackgroundWorker(cfg WorkerConfig) (*BackgroundWorker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = watcher.DefaultDebounceDuration
	}
	if cfg.Load == nil {
		cfg.Load = loader.Load
	}
	w := &BackgroundWorker{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		load:          cfg.Load,
		onTree:        cfg.OnTree,
		onError:       cfg.OnError,
		program:       cfg.Program,
		state:         WorkerIdle,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	if cfg.Path != "" {
		fw, err := watcher.New(cfg.Path,
			watcher.WithDebounceDuration(cfg.DebounceDelay),
			watcher.WithForcePoll(cfg.ForcePoll),
			watcher.WithOnError(w.watchError),
		)
		if err != nil {
			cancel()
			return nil, err
		}
		w.watcher = fw
	}

	return w, nil
}

// SetProgram attaches the Bubble Tea program that receives reload messages.
// The program is usually created after the worker, so this is set late.
func (w *BackgroundWorker) SetProgram(p *tea.Program) {
	w.mu.Lock()
	w.program = p
	w.mu.Unlock()
}

// Start begins watching for file changes and processing in the background.
// Start is idempotent - calling it multiple times has no effect.
func (w *BackgroundWorker) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if w.watcher != nil {
		if err := w.watcher.Start(w.ctx); err != nil {
			close(w.done)
			return err
		}
		go w.processLoop()
	} else {
		// No watcher - close done channel immediately so Stop() doesn't block
		close(w.done)
	}

	return nil
}

// Stop halts the background worker and cleans up resources.
// Stop is idempotent - calling it multiple times has no effect.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	wasStarted := w.started
	w.mu.Unlock()

	w.cancel()

	if w.watcher != nil {
		w.watcher.Stop()
	}

	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

// TriggerRefresh manually triggers a reload.
// Has no effect if the worker is stopped; coalesces while processing.
func (w *BackgroundWorker) TriggerRefresh() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if w.state == WorkerProcessing {
		w.dirty = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	go w.process()
}

// Tree returns the most recently rebuilt tree (nil before the first reload).
func (w *BackgroundWorker) Tree() *tree.Model {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// State returns the current worker state.
func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// LastError returns the most recent error (nil if last operation succeeded).
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

// LastHash returns the content hash of the last successful load.
func (w *BackgroundWorker) LastHash() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastHash
}

// SeedHash records the hash of content that is already loaded, so an
// unchanged first event does not trigger a rebuild.
func (w *BackgroundWorker) SeedHash() error {
	hash, err := fileHash(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()
	return nil
}

// processLoop watches for file changes and triggers processing.
func (w *BackgroundWorker) processLoop() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return
		case ch := <-w.watcher.Changes():
			if ch.Retargeted {
				ptdebug.Log("worker: %s now loads %s", w.path, ch.Path)
			}
			w.process()
		}
	}
}

func (w *BackgroundWorker) process() {
	w.mu.Lock()
	if w.state != WorkerIdle {
		if w.state == WorkerProcessing {
			w.dirty = true
		}
		w.mu.Unlock()
		return
	}
	w.state = WorkerProcessing
	w.dirty = false
	w.mu.Unlock()

	t := w.rebuild()

	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if t != nil {
		w.current = t
	}
	wasDirty := w.dirty
	w.state = WorkerIdle
	program := w.program
	w.mu.Unlock()

	if t != nil {
		if program != nil {
			program.Send(TreeReloadedMsg{Tree: t})
		}
		if w.onTree != nil {
			w.onTree(t)
		}
	}

	if wasDirty {
		go w.process()
	}
}

// rebuild loads the file and builds a new tree. It returns nil when the
// content is unchanged or loading failed.
func (w *BackgroundWorker) rebuild() *tree.Model {
	if w.path == "" {
		return nil
	}
	start := time.Now()

	var hash string
	if err := w.safeCompute("read", func() error {
		var err error
		hash, err = fileHash(w.path)
		return err
	}); err != nil {
		w.fail(err)
		return nil
	}

	w.mu.RLock()
	lastHash := w.lastHash
	w.mu.RUnlock()
	if hash == lastHash && lastHash != "" {
		ptdebug.Log("worker: %s unchanged (hash=%s), skipping rebuild", w.path, hashPrefix(hash))
		w.recordError(nil)
		return nil
	}

	var t *tree.Model
	if err := w.safeCompute("load", func() error {
		var err error
		t, err = w.load(w.path)
		return err
	}); err != nil {
		w.fail(err)
		return nil
	}

	w.recordError(nil)
	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()

	ptdebug.Log("worker: rebuilt %s: %d levels, %d nodes in %v (hash=%s)",
		w.path, t.LevelCount(), t.NodeCount(), time.Since(start), hashPrefix(hash))
	return t
}

func (w *BackgroundWorker) fail(err *WorkerError) {
	ptdebug.Log("worker: %v", err)
	w.recordError(err)

	w.mu.RLock()
	program := w.program
	w.mu.RUnlock()
	if program != nil {
		program.Send(TreeErrorMsg{Err: err})
	}
	if w.onError != nil {
		w.onError(err)
	}
}

func (w *BackgroundWorker) watchError(err error) {
	w.fail(&WorkerError{Phase: "watch", Cause: err, Time: time.Now()})
}

// safeCompute executes fn and recovers from any panics.
func (w *BackgroundWorker) safeCompute(phase string, fn func() error) *WorkerError {
	var result *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &WorkerError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &WorkerError{
				Phase: phase,
				Cause: err,
				Time:  time.Now(),
			}
		}
	}()
	return result
}

// recordError tracks an error and updates error state.
func (w *BackgroundWorker) recordError(err *WorkerError) {
	w.mu.Lock()
	w.lastError = err
	if err != nil {
		w.errorCount++
		err.Retries = w.errorCount
	} else {
		w.errorCount = 0
	}
	w.mu.Unlock()
}

func fileHash(path string) (string, error) {
	resolved, err := loader.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// hashPrefix returns up to 16 characters of the hash for logging.
func hashPrefix(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
