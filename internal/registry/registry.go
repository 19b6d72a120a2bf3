/*

The pool registry is the read-mostly catalog of candidate pools. It owns every
Pool; all other components reference pools by name and resolve them here at
each use. APY values are supplied by an external refresh (see apyfeed).

*/

package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/types"
	"github.com/nexusyield/yvm/internal/utils"
)

var registryLogger = logger.GetForComponent("pool_registry")

var (
	ErrPoolNotFound = errors.New("pool not found in registry")
	ErrInvalidPool  = errors.New("invalid pool definition")
	ErrInvalidAPY   = errors.New("invalid apy value")
)

// Registry holds the catalog of candidate pools, keyed by pool name.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]types.Pool
}

func NewRegistry() *Registry {
	return &Registry{
		pools: make(map[string]types.Pool),
	}
}

// Upsert adds a pool to the catalog or refreshes the APY of an existing one.
// Identity fields of an existing pool are immutable; an upsert that tries to
// change them is rejected.
func (r *Registry) Upsert(pool types.Pool) error {
	if pool.Name == "" || pool.ProviderID == "" || pool.Token0 == "" || pool.Token1 == "" {
		return fmt.Errorf("%w: name, provider_id and both tokens are required", ErrInvalidPool)
	}
	if err := validateAPY(pool.APY); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.pools[pool.Name]
	if ok {
		if existing.ProviderID != pool.ProviderID || existing.Token0 != pool.Token0 || existing.Token1 != pool.Token1 {
			return fmt.Errorf("%w: pool %s identity fields are immutable", ErrInvalidPool, pool.Name)
		}
		existing.APY = pool.APY
		r.pools[pool.Name] = existing
		return nil
	}

	r.pools[pool.Name] = pool
	registryLogger.Debug().
		Str("pool", pool.Name).
		Str("provider", pool.ProviderID).
		Float64("apy", pool.APY).
		Msg("Pool registered")
	return nil
}

// Get resolves a pool by name.
func (r *Registry) Get(name string) (types.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pool, ok := r.pools[name]
	if !ok {
		return types.Pool{}, fmt.Errorf("%w: %s", ErrPoolNotFound, name)
	}
	return pool, nil
}

// ListPools returns all pools sorted by name for deterministic iteration.
func (r *Registry) ListPools() []types.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pools := make([]types.Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	sort.Slice(pools, func(i, j int) bool {
		return pools[i].Name < pools[j].Name
	})
	return pools
}

// APYOf returns the observed APY of the named pool.
func (r *Registry) APYOf(name string) (float64, error) {
	pool, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	return pool.APY, nil
}

// SetAPY refreshes the APY of an existing pool. This is the only mutation
// allowed on a pool after creation.
func (r *Registry) SetAPY(name string, apy float64) error {
	if err := validateAPY(apy); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, name)
	}
	pool.APY = apy
	r.pools[name] = pool
	return nil
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

func validateAPY(apy float64) error {
	if err := utils.ValidateFinite(apy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAPY, err)
	}
	if apy < 0 {
		return fmt.Errorf("%w: apy must be non-negative, got %f", ErrInvalidAPY, apy)
	}
	return nil
}
