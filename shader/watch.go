package shader

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher recompiles file-backed shaders when their sources change.
//
// File events arrive on a background goroutine and only mark shaders dirty;
// the recompilation itself happens in Apply, which must be called from the
// goroutine that owns the device.
type Watcher struct {
	fs     *fsnotify.Watcher
	logger *log.Logger

	mu      sync.Mutex
	byPath  map[string][]*Shader
	dirs    map[string]bool
	pending map[*Shader]struct{}
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

func NewWatcher(logger *log.Logger) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader watcher: %w", err)
	}
	w := &Watcher{
		fs:      fsWatch,
		logger:  logger,
		byPath:  make(map[string][]*Shader),
		dirs:    make(map[string]bool),
		pending: make(map[*Shader]struct{}),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

// Add watches every file s was loaded from. Editors often replace files
// instead of writing them, so the containing directories are watched.
func (w *Watcher) Add(s *Shader) error {
	p := s.Paths()
	if p.Vertex == "" {
		return fmt.Errorf("shader %q was not loaded from files", s.Name)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("shader watcher already closed")
	}
	for _, file := range []string{p.Vertex, p.Fragment, p.Geometry} {
		if file == "" {
			continue
		}
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		dir := filepath.Dir(abs)
		if !w.dirs[dir] {
			if err := w.fs.Add(dir); err != nil {
				return fmt.Errorf("watch %q: %w", dir, err)
			}
			w.dirs[dir] = true
		}
		w.byPath[abs] = append(w.byPath[abs], s)
	}
	return nil
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			abs, err := filepath.Abs(e.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			for _, s := range w.byPath[abs] {
				w.pending[s] = struct{}{}
			}
			w.mu.Unlock()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("shader watcher", "err", err)

		case <-w.done:
			return
		}
	}
}

// Pending reports how many shaders are waiting to be recompiled.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Apply recompiles every shader whose files changed since the last call and
// returns the failures joined. A shader that fails keeps its old program.
func (w *Watcher) Apply() error {
	w.mu.Lock()
	dirty := make([]*Shader, 0, len(w.pending))
	for s := range w.pending {
		dirty = append(dirty, s)
	}
	clear(w.pending)
	w.mu.Unlock()

	var errs []error
	for _, s := range dirty {
		if err := s.Reload(); err != nil {
			errs = append(errs, err)
			continue
		}
		w.logger.Info("shader reloaded", "shader", s.Name, "generation", s.Generation())
	}
	return errors.Join(errs...)
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}
