package section

import (
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// rebuildDelay coalesces bursts of write events from editors that save in
// multiple syscalls.
const rebuildDelay = 100 * time.Millisecond

// Watcher keeps an Index in sync with a file on disk. The index is marked
// dirty as soon as a write is observed and updated after a short debounce.
type Watcher struct {
	path   string
	index  *Index
	logger *zap.Logger

	fw     *fsnotify.Watcher
	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// Watch starts watching path and rebuilding index on changes. The index is
// populated once from the file's current content before returning.
func Watch(path string, index *Index, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{path: path, index: index, logger: logger, fw: fw}
	w.rebuild()
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.index.MarkDirty()
			w.schedule()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.String("path", w.path), zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(rebuildDelay, w.rebuild)
}

func (w *Watcher) rebuild() {
	src, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("read failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.index.Update(Build(Scan(string(src))))
}
