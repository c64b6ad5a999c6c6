package collision

import "sync"

// DirLocks hands out one mutex per destination directory so that
// resolve, relocate and claim run as a single exclusive section per
// directory while other directories proceed in parallel.
type DirLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDirLocks creates an empty lock table.
func NewDirLocks() *DirLocks {
	return &DirLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for dir and returns the matching unlock function.
func (d *DirLocks) Lock(dir string) func() {
	k := dirKey(dir)
	d.mu.Lock()
	l, ok := d.locks[k]
	if !ok {
		l = &sync.Mutex{}
		d.locks[k] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}
