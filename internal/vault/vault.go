/*

The vault facade is the sole entry point for external callers. It composes
the share ledger, pool registry, rebalancing engine and provider adapters,
and serializes every mutating operation behind a single aggregate lock so the
cross-field invariants (totals, allocations, accounts, current pool) are
always observed all-or-nothing.

Ledger mutations commit before any provider call: a user's share burn is
never lost because the external liquidity movement failed afterwards. Such
failures surface as *provider.Error so the caller can retry only the provider
step; the ledger is never rolled back automatically.

*/

package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nexusyield/yvm/internal/engine"
	"github.com/nexusyield/yvm/internal/ledger"
	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/provider"
	"github.com/nexusyield/yvm/internal/registry"
	"github.com/nexusyield/yvm/internal/types"
	"github.com/nexusyield/yvm/internal/utils"
)

var ErrNoPoolSelected = errors.New("no pool has been selected yet")

// Recorder persists operation receipts for auditing. Implementations must
// tolerate being called while the vault lock is held.
type Recorder interface {
	RecordOperation(receipt types.OperationReceipt) error
}

// Vault is the aggregate root. All mutating operations (Deposit, Withdraw,
// Rebalance, GetUserAccount's yield sync) hold the write lock; read-only
// queries share the read lock and see consistent snapshots.
type Vault struct {
	mu sync.RWMutex

	ledger    *ledger.Ledger
	registry  *registry.Registry
	providers *provider.Set
	engine    *engine.Engine

	allocations map[string]sdkmath.Int // Pool name -> liquidity placed there, non-zero entries only
	currentPool string                 // Empty until the first rebalance

	accountID string // The vault's identity at the providers
	recorder  Recorder
	logger    zerolog.Logger
}

// Config holds the dependencies for creating a new Vault instance.
type Config struct {
	Registry  *registry.Registry
	Providers *provider.Set
	Engine    *engine.Engine
	AccountID string
	Recorder  Recorder // Optional; nil disables receipt persistence
}

// New creates a vault facade with dependency injection.
func New(cfg Config) (*Vault, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("pool registry cannot be nil")
	}
	if cfg.Providers == nil {
		return nil, fmt.Errorf("provider set cannot be nil")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("rebalancing engine cannot be nil")
	}
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("vault account ID cannot be empty")
	}

	return &Vault{
		ledger:      ledger.New(),
		registry:    cfg.Registry,
		providers:   cfg.Providers,
		engine:      cfg.Engine,
		allocations: make(map[string]sdkmath.Int),
		accountID:   cfg.AccountID,
		recorder:    cfg.Recorder,
		logger:      logger.GetForComponent("vault_facade"),
	}, nil
}

// Deposit mints shares for the user and routes the new capital into the
// current pool. When no pool has ever been selected, a rebalance runs first.
// The ledger mint commits before the provider call; if the provider then
// fails, the (already committed) response is returned together with a
// *provider.Error so the routing step can be retried.
func (v *Vault) Deposit(ctx context.Context, user string, amount sdkmath.Int) (*types.DepositResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	minted, err := v.ledger.Deposit(user, amount)
	if err != nil {
		return nil, err
	}
	resp := &types.DepositResponse{DepositAmount: amount, Shares: minted}

	if v.currentPool == "" {
		// First-ever capital routing.
		if _, rerr := v.rebalanceLocked(ctx); rerr != nil && v.currentPool == "" {
			err := fmt.Errorf("%w: %w", ErrNoPoolSelected, rerr)
			v.record(types.OperationDeposit, user, amount, minted, "", false, err.Error())
			return resp, err
		}
	}

	if err := v.routeDepositLocked(ctx, amount); err != nil {
		v.record(types.OperationDeposit, user, amount, minted, v.currentPool, false, err.Error())
		return resp, err
	}

	v.record(types.OperationDeposit, user, amount, minted, v.currentPool, true, "")
	return resp, nil
}

// routeDepositLocked splits the deposit along the current pool's token ratio
// and places it there. The allocation entry only grows after the provider
// accepted the liquidity.
func (v *Vault) routeDepositLocked(ctx context.Context, amount sdkmath.Int) error {
	pool, err := v.registry.Get(v.currentPool)
	if err != nil {
		return err
	}
	adapter, err := v.providers.Resolve(pool.ProviderID)
	if err != nil {
		return err
	}

	coin0, coin1, err := adapter.QuoteSplit(ctx, pool.Name, pool.Token0, pool.Token1, amount)
	if err != nil {
		return provider.WrapError(pool.Name, provider.OpQuoteSplit, amount, err)
	}
	if _, err := adapter.AddLiquidity(ctx, pool.Name, coin0, coin1); err != nil {
		return provider.WrapError(pool.Name, provider.OpAddLiquidity, amount, err)
	}

	existing, ok := v.allocations[pool.Name]
	if !ok {
		existing = sdkmath.ZeroInt()
	}
	v.allocations[pool.Name] = existing.Add(amount)
	return nil
}

// Withdraw burns the user's shares and pulls the proportional slice of
// liquidity out of the current pool. The burn commits first; a provider
// failure afterwards returns the committed response alongside a
// *provider.Error, and reconciliation is an explicit retriable step.
func (v *Vault) Withdraw(ctx context.Context, user string, shares sdkmath.Int) (*types.WithdrawResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	amountOut, fraction, err := v.ledger.Withdraw(user, shares)
	if err != nil {
		return nil, err
	}
	resp := &types.WithdrawResponse{WithdrawAmount: amountOut}

	if v.currentPool == "" {
		v.record(types.OperationWithdraw, user, amountOut, shares, "", true, "no pool selected, nothing to pull")
		return resp, nil
	}

	// Allocation bookkeeping follows the burn; the ledger is authoritative
	// even if the provider call below fails.
	v.reduceAllocationLocked(v.currentPool, amountOut)

	if err := v.pullLiquidityLocked(ctx, fraction); err != nil {
		v.record(types.OperationWithdraw, user, amountOut, shares, v.currentPool, false, err.Error())
		return resp, err
	}

	v.record(types.OperationWithdraw, user, amountOut, shares, v.currentPool, true, "")
	return resp, nil
}

// pullLiquidityLocked derives the LP amount to withdraw from the vault's
// provider-reported LP balance and the redeemed fraction, then removes it.
func (v *Vault) pullLiquidityLocked(ctx context.Context, fraction sdkmath.LegacyDec) error {
	pool, err := v.registry.Get(v.currentPool)
	if err != nil {
		return err
	}
	adapter, err := v.providers.Resolve(pool.ProviderID)
	if err != nil {
		return err
	}

	balances, err := adapter.UserBalances(ctx, v.accountID)
	if err != nil {
		return provider.WrapError(pool.Name, provider.OpUserBalances, sdkmath.Int{}, err)
	}

	lpToWithdraw := sdkmath.LegacyNewDecFromInt(balances.LPAmount).Mul(fraction).TruncateInt()
	if !lpToWithdraw.IsPositive() {
		return nil
	}

	if _, err := adapter.RemoveLiquidity(ctx, pool.Name, pool.Token0, pool.Token1, lpToWithdraw); err != nil {
		return provider.WrapError(pool.Name, provider.OpRemoveLiquidity, lpToWithdraw, err)
	}
	return nil
}

func (v *Vault) reduceAllocationLocked(pool string, amount sdkmath.Int) {
	existing, ok := v.allocations[pool]
	if !ok {
		return
	}
	remaining := existing.Sub(amount)
	if remaining.IsPositive() {
		v.allocations[pool] = remaining
	} else {
		delete(v.allocations, pool)
	}
}

// Rebalance selects the best-APY pool and migrates all allocations there.
// Exposed for administrative triggering; also invoked implicitly by the
// first deposit.
func (v *Vault) Rebalance(ctx context.Context) (*types.RebalanceResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	resp, err := v.rebalanceLocked(ctx)
	if err != nil {
		v.record(types.OperationRebalance, "", sdkmath.Int{}, sdkmath.Int{}, v.currentPool, false, err.Error())
		return resp, err
	}
	v.record(types.OperationRebalance, "", sdkmath.Int{}, sdkmath.Int{}, v.currentPool, true, "")
	return resp, nil
}

func (v *Vault) rebalanceLocked(ctx context.Context) (*types.RebalanceResponse, error) {
	best, err := v.engine.SelectBest()
	if err != nil {
		return nil, err
	}

	if v.currentPool != best.Name {
		v.logger.Info().
			Str("previous", v.currentPool).
			Str("selected", best.Name).
			Float64("apy", best.APY).
			Msg("Current pool selected")
	}
	v.currentPool = best.Name

	// Per-pool migration failures keep their allocation entries in place;
	// the joined error carries retry context for each failed source.
	migErr := v.engine.Migrate(ctx, v.allocations, best)

	return &types.RebalanceResponse{Allocations: v.copyAllocationsLocked()}, migErr
}

// GetUserAccount refreshes the vault's position from the provider, applies
// any observed value correction (accrued yield) to the ledger, and returns
// the user's record valued at the refreshed share price.
func (v *Vault) GetUserAccount(ctx context.Context, user string) (*types.UserAccountInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	account, ok := v.ledger.Account(user)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUserNotFound, user)
	}

	if v.currentPool != "" {
		if err := v.syncWithProviderLocked(ctx); err != nil {
			return nil, err
		}
	}

	currentValue, err := utils.DecToFloat64(
		sdkmath.LegacyNewDecFromInt(account.Shares).Mul(v.ledger.SharePriceDec()))
	if err != nil {
		return nil, fmt.Errorf("computing current value for %s: %w", user, err)
	}

	return &types.UserAccountInfo{
		InitialDeposit: account.InitialDeposit,
		Shares:         account.Shares,
		CurrentValue:   currentValue,
	}, nil
}

// syncWithProviderLocked reconciles the recorded allocations with the value
// the provider reports for the vault's position. Any difference (yield, or a
// previously failed provider leg) is applied to the current pool's entry and
// the ledger total, so the share price reflects what the vault actually holds.
func (v *Vault) syncWithProviderLocked(ctx context.Context) error {
	pool, err := v.registry.Get(v.currentPool)
	if err != nil {
		return err
	}
	adapter, err := v.providers.Resolve(pool.ProviderID)
	if err != nil {
		return err
	}

	balances, err := adapter.UserBalances(ctx, v.accountID)
	if err != nil {
		return provider.WrapError(pool.Name, provider.OpUserBalances, sdkmath.Int{}, err)
	}

	actual := balances.Amount0.Add(balances.Amount1)
	if !actual.IsPositive() {
		return nil
	}

	recorded := sdkmath.ZeroInt()
	for _, amount := range v.allocations {
		recorded = recorded.Add(amount)
	}
	delta := actual.Sub(recorded)
	if delta.IsZero() {
		return nil
	}

	if err := v.ledger.AdjustBalance(delta); err != nil {
		return err
	}
	current, ok := v.allocations[v.currentPool]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	v.allocations[v.currentPool] = current.Add(delta)

	v.logger.Info().
		Str("pool", v.currentPool).
		Str("delta", delta.String()).
		Msg("Ledger synced with provider-reported position value")
	return nil
}

// GetInfo returns a consistent snapshot of the vault aggregate. Pure read.
func (v *Vault) GetInfo() *types.VaultInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var apy float64
	if v.currentPool != "" {
		if poolAPY, err := v.registry.APYOf(v.currentPool); err == nil {
			apy = poolAPY
		}
	}

	return &types.VaultInfo{
		TotalBalance: v.ledger.TotalBalance(),
		TotalShares:  v.ledger.TotalShares(),
		SharePrice:   v.ledger.SharePrice(),
		Allocations:  v.copyAllocationsLocked(),
		APY:          apy,
	}
}

// SharePrice returns the current share price. Pure read.
func (v *Vault) SharePrice() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.SharePrice()
}

// CurrentPool returns the name of the pool presently receiving all capital,
// or empty if none has been selected yet.
func (v *Vault) CurrentPool() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.currentPool
}

// Snapshot captures the aggregate state for persistence.
func (v *Vault) Snapshot() types.VaultSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return types.VaultSnapshot{
		Timestamp:    time.Now().UTC(),
		TotalBalance: v.ledger.TotalBalance(),
		TotalShares:  v.ledger.TotalShares(),
		SharePrice:   v.ledger.SharePrice(),
		CurrentPool:  v.currentPool,
		Allocations:  v.copyAllocationsLocked(),
	}
}

func (v *Vault) copyAllocationsLocked() map[string]sdkmath.Int {
	out := make(map[string]sdkmath.Int, len(v.allocations))
	for name, amount := range v.allocations {
		out[name] = amount
	}
	return out
}

func (v *Vault) record(op types.OperationType, user string, amount, shares sdkmath.Int, pool string, success bool, message string) {
	if v.recorder == nil {
		return
	}
	receipt := types.OperationReceipt{
		OpID:      uuid.New().String(),
		Type:      op,
		User:      user,
		Amount:    amount,
		Shares:    shares,
		Pool:      pool,
		Success:   success,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := v.recorder.RecordOperation(receipt); err != nil {
		v.logger.Error().Err(err).Str("op", string(op)).Msg("Failed to persist operation receipt")
	}
}
