package topic

import (
	"sync"

	"github.com/solomatovs/gauss/internal/perr"
)

// Registry holds every topic in the engine. The set of topic names is fixed
// at startup plus runtime (SIGHUP) additions only; topics are never deleted
// while the engine runs.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]*Topic
}

func NewRegistry() *Registry {
	return &Registry{topics: make(map[string]*Topic)}
}

// Register inserts a fully initialized topic. Re-registering an existing
// name is rejected without mutating the registry.
func (r *Registry) Register(t *Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.topics[t.Name()]; exists {
		return perr.Config(t.Name(), "duplicate topic registration")
	}
	r.topics[t.Name()] = t
	return nil
}

func (r *Registry) Get(name string) (*Topic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.topics[name]
	return t, ok
}

func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[name]
	return ok
}

// Names returns every registered topic name, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	return names
}

// FlushAll calls Flush on every registered topic's storage, at shutdown.
func (r *Registry) FlushAll() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, t := range r.topics {
		if err := t.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
