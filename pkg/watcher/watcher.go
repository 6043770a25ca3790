// Package watcher reports changes to a hierarchy source so renderers can
// rebuild their tree model.
//
// A source is a hierarchy file or a .peektree directory. For a directory the
// watcher follows whichever tree.* file the loader would pick, so adding a
// tree.yaml next to an existing tree.md switches the backing file and is
// reported as a retargeting change.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vanderheijden86/peektree/pkg/debug"
	"github.com/vanderheijden86/peektree/pkg/loader"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is how often the polling fallback stats the source.
const DefaultPollInterval = 2 * time.Second

var (
	ErrFileRemoved    = errors.New("hierarchy file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Change describes one settled modification of the watched source.
type Change struct {
	Path       string // hierarchy file backing the source after the change
	Retargeted bool   // a .peektree directory switched to another file
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounceDuration = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithOnChange sets a callback run for every settled change, before the
// change is offered on Changes.
func WithOnChange(fn func(Change)) Option {
	return func(w *Watcher) { w.onChange = fn }
}

func WithOnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll skips fsnotify. PT_FORCE_POLL=1 has the same effect.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// Watcher follows one hierarchy source.
type Watcher struct {
	source string
	dir    bool

	debounceDuration time.Duration
	pollInterval     time.Duration
	forcePoll        bool
	onChange         func(Change)
	onError          func(error)

	debounce *Debouncer
	changes  chan Change

	mu         sync.Mutex
	target     string
	stamp      fileStamp
	retargeted bool
	running    bool
	polling    bool
	cancel     context.CancelFunc
	fsw        *fsnotify.Watcher
}

// New creates a watcher for a hierarchy file or .peektree directory. The
// source does not have to exist yet when it is a file.
func New(source string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		source:           abs,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func(Change) {},
		onError:          func(error) {},
		changes:          make(chan Change, 1),
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		w.dir = true
	}
	w.target = w.resolve()
	w.debounce = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start watches the source until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrAlreadyStarted
	}
	if _, err := os.Stat(w.source); os.IsPermission(err) {
		return ErrPermission
	}

	w.stamp, _ = stampOf(w.target)
	ctx, w.cancel = context.WithCancel(ctx)

	w.polling = w.forcePoll || envBool("PT_FORCE_POLL")
	if !w.polling {
		fsw, err := w.openNotify()
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s: %v", w.source, err)
			w.polling = true
		} else {
			w.fsw = fsw
			go w.notifyLoop(ctx, fsw)
		}
	}
	if w.polling {
		go w.pollLoop(ctx)
	}

	debug.Log("watcher: watching %s -> %q (polling=%v)", w.source, w.target, w.polling)
	w.running = true
	return nil
}

// Stop ends watching. It is safe to call more than once. Changes stays
// open so a blocked reader is not woken by a zero value.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.cancel()
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.debounce.Cancel()
	w.running = false
}

// Changes delivers settled changes. Changes that arrive while one is still
// pending are coalesced; readers should reload from Target.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Source returns the absolute file or directory being watched.
func (w *Watcher) Source() string {
	return w.source
}

// Target returns the hierarchy file currently backing the source, or ""
// when a directory holds none.
func (w *Watcher) Target() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

func (w *Watcher) IsPolling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

func (w *Watcher) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) resolve() string {
	if !w.dir {
		return w.source
	}
	target, err := loader.Resolve(w.source)
	if err != nil {
		return ""
	}
	return target
}

// openNotify watches the .peektree directory itself, or the directory that
// holds a plain file. Editors save by renaming over the file, which a
// watch on the file alone would lose.
func (w *Watcher) openNotify() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := w.source
	if !w.dir {
		dir = filepath.Dir(w.source)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

func (w *Watcher) notifyLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if w.dir {
		if !loader.IsDirCandidate(filepath.Base(ev.Name)) {
			return
		}
		if w.retarget() {
			w.schedule()
			return
		}
	}

	target := w.Target()
	if target == "" || !concerns(target, ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove) && !w.dir:
		w.onError(ErrFileRemoved)
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
		w.schedule()
	}
}

// concerns reports whether an event on name can change the content of
// target. SQLite in WAL mode commits to the -wal file first.
func concerns(target, name string) bool {
	base, got := filepath.Base(target), filepath.Base(name)
	if got == base {
		return true
	}
	return loader.IsSQLite(target) && got == base+"-wal"
}

// retarget re-resolves a directory source and reports whether it is now
// backed by a different, existing file.
func (w *Watcher) retarget() bool {
	next := w.resolve()

	w.mu.Lock()
	prev := w.target
	if next == prev {
		w.mu.Unlock()
		return false
	}
	w.target = next
	w.stamp, _ = stampOf(next)
	w.retargeted = true
	w.mu.Unlock()

	debug.Log("watcher: %s now backed by %q (was %q)", w.source, next, prev)
	if next == "" {
		w.onError(ErrFileRemoved)
		return false
	}
	return true
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	if w.dir && w.retarget() {
		w.schedule()
		return
	}

	w.mu.Lock()
	target, prev := w.target, w.stamp
	w.mu.Unlock()
	if target == "" {
		return
	}

	cur, err := stampOf(target)
	switch {
	case os.IsNotExist(err):
		// Report a removal once; a file that reappears counts as changed.
		if !prev.missing() {
			w.setStamp(fileStamp{})
			w.onError(ErrFileRemoved)
		}
		return
	case os.IsPermission(err):
		w.onError(ErrPermission)
		return
	case err != nil:
		w.onError(err)
		return
	}

	if cur.equal(prev) {
		return
	}
	w.setStamp(cur)
	w.schedule()
}

func (w *Watcher) setStamp(s fileStamp) {
	w.mu.Lock()
	w.stamp = s
	w.mu.Unlock()
}

func (w *Watcher) schedule() {
	w.debounce.Trigger(w.emit)
}

func (w *Watcher) emit() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	ch := Change{Path: w.target, Retargeted: w.retargeted}
	w.retargeted = false
	w.mu.Unlock()

	debug.Log("watcher: %s changed (retargeted=%v)", ch.Path, ch.Retargeted)
	w.onChange(ch)

	select {
	case w.changes <- ch:
	default:
	}
}

// fileStamp is what the polling fallback compares between ticks. Size is
// kept because some filesystems only store mtime in whole seconds.
type fileStamp struct {
	mtime time.Time
	size  int64
}

func stampOf(path string) (fileStamp, error) {
	if path == "" {
		return fileStamp{}, os.ErrNotExist
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{mtime: info.ModTime(), size: info.Size()}, nil
}

func (s fileStamp) missing() bool {
	return s.mtime.IsZero()
}

func (s fileStamp) equal(o fileStamp) bool {
	return s.mtime.Equal(o.mtime) && s.size == o.size
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
