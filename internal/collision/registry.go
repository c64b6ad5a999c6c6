package collision

import (
	"path/filepath"
	"strings"
	"sync"
)

// Registry tracks the destinations claimed during one run, per destination
// directory. Disk checks alone are not enough because several documents can
// be resolved before any of them is written.
type Registry struct {
	mu   sync.Mutex
	dirs map[string]*dirClaims
}

type dirClaims struct {
	keys  map[string]string   // logical key -> claimed path
	names map[string]struct{} // lower-cased claimed file names
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{dirs: make(map[string]*dirClaims)}
}

func dirKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Clean(dir)
}

func nameKey(name string) string {
	return strings.ToLower(name)
}

func (r *Registry) claimsFor(dir string) *dirClaims {
	k := dirKey(dir)
	c, ok := r.dirs[k]
	if !ok {
		c = &dirClaims{keys: make(map[string]string), names: make(map[string]struct{})}
		r.dirs[k] = c
	}
	return c
}

// Claimed returns the path that claimed key in dir, if any.
func (r *Registry) Claimed(dir, key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.claimsFor(dir).keys[key]
	return path, ok
}

// Claim records key and the file name of path for dir. It returns false and
// leaves the registry unchanged when key is already claimed.
func (r *Registry) Claim(dir, key, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.claimsFor(dir)
	if _, ok := c.keys[key]; ok {
		return false
	}
	c.keys[key] = path
	c.names[nameKey(filepath.Base(path))] = struct{}{}
	return true
}

// Release forgets path in dir, together with any key it claimed.
func (r *Registry) Release(dir, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.claimsFor(dir)
	delete(c.names, nameKey(filepath.Base(path)))
	for k, p := range c.keys {
		if p == path {
			delete(c.keys, k)
		}
	}
}

func (r *Registry) nameClaimed(c *dirClaims, name string) bool {
	_, ok := c.names[nameKey(name)]
	return ok
}
