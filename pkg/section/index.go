package section

import (
	"errors"
	"sync"
)

// ErrStale is returned by Index queries while the underlying document has
// changed and the tree has not been rebuilt yet.
var ErrStale = errors.New("section: index is stale")

// Index holds the current section tree for one document. Trees are replaced
// wholesale, never mutated, so readers always see a fully-formed tree. A
// dirty flag makes queries refuse a stale tree instead of racing a rebuild.
type Index struct {
	mu    sync.RWMutex
	tree  *Tree
	dirty bool
}

// NewIndex returns an index with an empty, clean tree.
func NewIndex() *Index {
	return &Index{tree: Build(nil)}
}

// MarkDirty flags the index as stale until the next Update.
func (x *Index) MarkDirty() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.dirty = true
}

// Update installs a freshly built tree and clears the dirty flag.
func (x *Index) Update(t *Tree) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tree = t
	x.dirty = false
}

// Find returns the deepest section containing line. It returns ErrStale if
// the index is dirty.
func (x *Index) Find(line int) (Section, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.dirty {
		return Section{}, false, ErrStale
	}
	s, ok := x.tree.Find(line)
	return s, ok, nil
}

// All returns all sections in document order, or ErrStale if dirty.
func (x *Index) All() ([]Section, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.dirty {
		return nil, ErrStale
	}
	return x.tree.All(), nil
}
