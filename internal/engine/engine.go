/*

The rebalancing engine selects the single pool that should hold all pooled
capital and executes the migration plan that moves existing allocations there.
Migration failures are isolated per source pool: a failed leg leaves its
allocation entry untouched so the discrepancy stays visible and retriable,
while the other source pools migrate independently.

*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/provider"
	"github.com/nexusyield/yvm/internal/registry"
	"github.com/nexusyield/yvm/internal/types"
)

var ErrNoPoolCandidates = errors.New("pool registry has no candidate pools")

// DefaultAPYEpsilon is the tolerance used when comparing externally reported
// APY figures, which may carry floating-point representation noise.
const DefaultAPYEpsilon = 1e-9

// Engine decides the target pool and moves capital between pools through the
// provider adapters.
type Engine struct {
	registry  *registry.Registry
	providers *provider.Set
	epsilon   float64
	logger    zerolog.Logger
}

func New(reg *registry.Registry, providers *provider.Set, epsilon float64) *Engine {
	if epsilon <= 0 {
		epsilon = DefaultAPYEpsilon
	}
	return &Engine{
		registry:  reg,
		providers: providers,
		epsilon:   epsilon,
		logger:    logger.GetForComponent("rebalance_engine"),
	}
}

// SelectBest returns the pool with the maximum observed APY. When several
// pools tie within epsilon, the lexicographically smallest name wins, so the
// choice is reproducible under floating-point ties.
func (e *Engine) SelectBest() (types.Pool, error) {
	pools := e.registry.ListPools()
	if len(pools) == 0 {
		return types.Pool{}, ErrNoPoolCandidates
	}

	// ListPools is name-sorted, so requiring a strictly greater APY keeps
	// the earliest name on ties.
	best := pools[0]
	for _, pool := range pools[1:] {
		if pool.APY > best.APY+e.epsilon {
			best = pool
		}
	}
	return best, nil
}

// Migrate moves every allocation entry for pools other than target into
// target. On success a source entry is deleted and its amount accumulated
// under target; on a provider failure the entry is left untouched. The
// returned error joins all per-pool failures, every one carrying provider
// retry context.
func (e *Engine) Migrate(ctx context.Context, allocations map[string]sdkmath.Int, target types.Pool) error {
	sources := make([]string, 0, len(allocations))
	for name := range allocations {
		if name != target.Name {
			sources = append(sources, name)
		}
	}
	sort.Strings(sources)

	var failures []error
	for _, source := range sources {
		amount := allocations[source]
		if err := e.migratePool(ctx, source, amount, target); err != nil {
			e.logger.Error().
				Err(err).
				Str("source", source).
				Str("target", target.Name).
				Str("amount", amount.String()).
				Msg("Pool migration failed, allocation entry left in place for retry")
			failures = append(failures, err)
			continue
		}

		delete(allocations, source)
		existing, ok := allocations[target.Name]
		if !ok {
			existing = sdkmath.ZeroInt()
		}
		allocations[target.Name] = existing.Add(amount)

		e.logger.Info().
			Str("source", source).
			Str("target", target.Name).
			Str("amount", amount.String()).
			Msg("Liquidity migrated")
	}

	return errors.Join(failures...)
}

// migratePool moves one source allocation into the target pool: remove the
// liquidity from the source using its own token pair, then add it to the
// target using the target's pair.
func (e *Engine) migratePool(ctx context.Context, source string, amount sdkmath.Int, target types.Pool) error {
	sourcePool, err := e.registry.Get(source)
	if err != nil {
		return fmt.Errorf("resolving source pool %s: %w", source, err)
	}

	sourceAdapter, err := e.providers.Resolve(sourcePool.ProviderID)
	if err != nil {
		return err
	}
	targetAdapter, err := e.providers.Resolve(target.ProviderID)
	if err != nil {
		return err
	}

	if _, err := sourceAdapter.RemoveLiquidity(ctx, sourcePool.Name, sourcePool.Token0, sourcePool.Token1, amount); err != nil {
		return provider.WrapError(sourcePool.Name, provider.OpRemoveLiquidity, amount, err)
	}

	coin0, coin1, err := targetAdapter.QuoteSplit(ctx, target.Name, target.Token0, target.Token1, amount)
	if err != nil {
		return provider.WrapError(target.Name, provider.OpQuoteSplit, amount, err)
	}
	if _, err := targetAdapter.AddLiquidity(ctx, target.Name, coin0, coin1); err != nil {
		return provider.WrapError(target.Name, provider.OpAddLiquidity, amount, err)
	}

	return nil
}
