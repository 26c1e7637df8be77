package index

import (
	"sync"
	"sync/atomic"
)

type snapshot map[Category][]Record

// Index holds the current records of every category. Readers never block:
// each read sees whichever snapshot was installed last. Writers copy the
// snapshot, replace one category and swap it in.
type Index struct {
	current   atomic.Pointer[snapshot]
	writeMu   sync.Mutex
	ready     chan struct{}
	readyOnce sync.Once
}

func NewIndex() *Index {
	idx := &Index{ready: make(chan struct{})}
	empty := make(snapshot, len(Categories))
	idx.current.Store(&empty)
	return idx
}

// Records returns the installed records of a category. A category that was
// never installed is empty. The slice must not be modified.
func (i *Index) Records(category Category) []Record {
	return (*i.current.Load())[category]
}

// Install replaces the records of one category.
func (i *Index) Install(category Category, records []Record) {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	old := *i.current.Load()
	next := make(snapshot, len(Categories))
	for c, r := range old {
		next[c] = r
	}
	next[category] = records
	i.current.Store(&next)
}

// Ready is closed once the first medicines fetch has finished, successfully
// or not. Queries do not wait for it.
func (i *Index) Ready() <-chan struct{} {
	return i.ready
}

// Warming reports whether the first build is still in progress.
func (i *Index) Warming() bool {
	select {
	case <-i.ready:
		return false
	default:
		return true
	}
}

func (i *Index) markReady() {
	i.readyOnce.Do(func() { close(i.ready) })
}
