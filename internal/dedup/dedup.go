// Package dedup suppresses duplicate media paths within a session. The
// registry is owned by the session event loop and needs no locking.
package dedup

// Registry remembers every path surfaced so far in the current session.
type Registry struct {
	seen map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

// TryRegister records the path and reports whether it was new. Each distinct
// path is accepted exactly once; repeats return false and leave the registry
// unchanged.
func (r *Registry) TryRegister(path string) bool {
	if _, ok := r.seen[path]; ok {
		return false
	}

	r.seen[path] = struct{}{}

	return true
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	return len(r.seen)
}

// Reset forgets all registered paths.
func (r *Registry) Reset() {
	r.seen = make(map[string]struct{})
}
