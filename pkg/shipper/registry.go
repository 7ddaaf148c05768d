package shipper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Registry manages registered shipping carriers.
type Registry struct {
	shippers map[string]Shipper
	mu       sync.RWMutex
}

// NewRegistry creates a new shipper registry.
func NewRegistry() *Registry {
	return &Registry{
		shippers: make(map[string]Shipper),
	}
}

// Register adds a shipper to the registry, replacing any shipper with the same name.
func (r *Registry) Register(s Shipper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shippers[s.Name()] = s
}

// Get returns a shipper by name.
func (r *Registry) Get(name string) (Shipper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.shippers[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCarrierNotFound, name)
}

// All returns all registered shippers ordered by name.
func (r *Registry) All() []Shipper {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Shipper, 0, len(r.shippers))
	for _, s := range r.shippers {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Names returns the sorted names of all registered shippers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.shippers))
	for name := range r.shippers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered shippers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shippers)
}

// RateObserver receives the outcome of one carrier's call within a fan-out.
// elapsed covers that carrier alone. It may be called concurrently.
type RateObserver func(ctx context.Context, carrier string, elapsed time.Duration, result *RateResult, err error)

// RateAll shops rates from the named carriers in parallel, or from every
// registered carrier when carriers is empty. A failing carrier does not fail
// the others; its error is returned alongside the successful results.
// Results keep the order of the carriers they came from.
func (r *Registry) RateAll(ctx context.Context, req *RateRequest, carriers []string) ([]*RateResult, []error) {
	return r.RateAllObserved(ctx, req, carriers, nil)
}

// RateAllObserved is RateAll, reporting each carrier's outcome to observe
// as soon as that carrier answers.
func (r *Registry) RateAllObserved(ctx context.Context, req *RateRequest, carriers []string, observe RateObserver) ([]*RateResult, []error) {
	if len(carriers) == 0 {
		carriers = r.Names()
	}
	if len(carriers) == 0 {
		return nil, []error{ErrCarrierNotFound}
	}

	results := make([]*RateResult, len(carriers))
	errs := make([]error, len(carriers))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range carriers {
		g.Go(func() error {
			start := time.Now()
			res, err := r.rateOne(ctx, name, req)
			if observe != nil {
				observe(ctx, name, time.Since(start), res, err)
			}
			results[i], errs[i] = res, err
			return nil // Don't fail the group, continue with other carriers
		})
	}
	_ = g.Wait()

	return compact(results), compact(errs)
}

func (r *Registry) rateOne(ctx context.Context, name string, req *RateRequest) (*RateResult, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	res, err := s.Rate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

func compact[T comparable](in []T) []T {
	var zero T
	out := make([]T, 0, len(in))
	for _, v := range in {
		if v != zero {
			out = append(out, v)
		}
	}
	return out
}
