package platform

import (
	"fmt"
	"sort"
	"time"
)

type entry struct {
	adapter Adapter
	timeout time.Duration
}

// Registry maps platform names to adapters. It is built once at startup and
// read-only afterwards.
type Registry struct {
	entries        map[string]entry
	defaultTimeout time.Duration
}

func NewRegistry(defaultTimeout time.Duration) *Registry {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Registry{
		entries:        make(map[string]entry),
		defaultTimeout: defaultTimeout,
	}
}

// Register adds an adapter. A zero timeout uses the registry default.
func (r *Registry) Register(a Adapter, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	r.entries[a.Name()] = entry{adapter: a, timeout: timeout}
	return r
}

func (r *Registry) Get(name string) (Adapter, bool) {
	e, ok := r.entries[name]
	return e.adapter, ok
}

// Timeout is the per-call deadline for a platform.
func (r *Registry) Timeout(name string) time.Duration {
	if e, ok := r.entries[name]; ok {
		return e.timeout
	}
	return r.defaultTimeout
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate returns the first unknown platform name, if any.
func (r *Registry) Validate(names []string) error {
	for _, n := range names {
		if _, ok := r.entries[n]; !ok {
			return fmt.Errorf("unknown platform %q", n)
		}
	}
	return nil
}

// NewDefaultRegistry registers every built-in adapter. Video uploads get a
// longer deadline than plain API calls.
func NewDefaultRegistry(timeout time.Duration, opts Options) *Registry {
	r := NewRegistry(timeout)
	r.Register(NewFacebook(opts), 0)
	r.Register(NewTwitter(opts), 0)
	r.Register(NewInstagram(opts), 0)
	r.Register(NewLinkedIn(opts), 0)
	r.Register(NewTiktok(opts), 0)
	r.Register(NewYoutube(opts), 4*r.defaultTimeout)
	return r
}
