// Package registry routes generation requests to initialized providers by ID.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/xostack/xogen"
)

// ErrDuplicateProvider indicates an attempt to register the same ID twice.
var ErrDuplicateProvider = errors.New("provider already registered")

type state int

const (
	stateRegistered state = iota
	stateInitializing
	stateReady
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateReady:
		return "ready"
	case stateFailed:
		return "failed"
	case stateInitializing:
		return "initializing"
	default:
		return "registered"
	}
}

type entry struct {
	provider xogen.Provider
	state    state
	err      error
}

// Status describes one registered provider.
type Status struct {
	ID    string
	Name  string
	State string
	Err   error
}

// Registry maintains a mapping of provider IDs to providers.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	inflight sync.WaitGroup
	logger   *slog.Logger
}

// New constructs an empty registry. A nil logger discards output.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds p under p.ID(). The provider is not initialized.
func (r *Registry) Register(p xogen.Provider) error {
	if p == nil {
		return errors.New("provider must not be nil")
	}
	id := p.ID()
	if id == "" {
		return xogen.ConfigErrorf("", "provider %q has an empty ID", p.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, id)
	}
	r.entries[id] = &entry{provider: p}
	return nil
}

// InitializeAll initializes every provider that has not been initialized yet,
// concurrently. Failed providers stay registered but unusable; their errors
// are joined into the returned error. A provider claimed by a concurrent
// InitializeAll is skipped.
func (r *Registry) InitializeAll(ctx context.Context) error {
	r.mu.Lock()
	pending := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.state == stateRegistered {
			e.state = stateInitializing
			pending = append(pending, e)
		}
	}
	r.mu.Unlock()

	errs := make([]error, len(pending))
	var wg sync.WaitGroup
	for i, e := range pending {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = e.provider.Initialize(ctx)
		}()
	}
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range pending {
		if errs[i] != nil {
			e.state = stateFailed
			e.err = errs[i]
			r.logger.Warn("provider failed to initialize", "provider", e.provider.ID(), "error", errs[i])
			continue
		}
		e.state = stateReady
		r.logger.Debug("provider initialized", "provider", e.provider.ID())
	}
	return errors.Join(errs...)
}

// Get returns the provider registered under id, whatever its state.
func (r *Registry) Get(id string) (xogen.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.provider, true
}

// IDs returns all registered IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Statuses reports the state of every provider, sorted by ID.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, Status{ID: id, Name: e.provider.Name(), State: e.state.String(), Err: e.err})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Generate routes req to the initialized provider registered under id.
func (r *Registry) Generate(ctx context.Context, id string, req xogen.Request) (*xogen.Generation, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	var st state
	var initErr error
	if ok {
		st, initErr = e.state, e.err
		if st == stateReady {
			r.inflight.Add(1)
		}
	}
	r.mu.RUnlock()

	switch {
	case !ok:
		return nil, xogen.InvalidRequestErrorf("", "unknown provider %q", id)
	case st == stateFailed:
		return nil, xogen.ConfigErrorf(id, "provider failed to initialize: %w", initErr)
	case st != stateReady:
		return nil, xogen.ConfigErrorf(id, "provider not initialized")
	}
	defer r.inflight.Done()

	r.logger.Debug("routing generation", "provider", id, "n", req.N)
	return e.provider.Generate(ctx, req)
}

// Close removes all registrations, waits for routed Generate calls to
// return, then closes every provider that implements io.Closer.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	r.inflight.Wait()

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if c, ok := entries[id].provider.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}
