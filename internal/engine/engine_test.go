package engine

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"

	"github.com/nexusyield/yvm/internal/provider"
	"github.com/nexusyield/yvm/internal/registry"
	"github.com/nexusyield/yvm/internal/types"
)

// countingAdapter records provider calls and fails on demand, per pool.
type countingAdapter struct {
	addCalls     int
	removeCalls  int
	quoteCalls   int
	balanceCalls int
	failRemove   map[string]bool
	failAdd      map[string]bool
}

func newCountingAdapter() *countingAdapter {
	return &countingAdapter{
		failRemove: make(map[string]bool),
		failAdd:    make(map[string]bool),
	}
}

func (a *countingAdapter) AddLiquidity(_ context.Context, pool string, _, _ sdktypes.Coin) (*provider.AddLiquidityResponse, error) {
	a.addCalls++
	if a.failAdd[pool] {
		return nil, errors.New("injected add failure")
	}
	return &provider.AddLiquidityResponse{Pool: pool, LPMinted: sdkmath.ZeroInt()}, nil
}

func (a *countingAdapter) RemoveLiquidity(_ context.Context, pool string, _, _ string, lpAmount sdkmath.Int) (*provider.RemoveLiquidityResponse, error) {
	a.removeCalls++
	if a.failRemove[pool] {
		return nil, errors.New("injected remove failure")
	}
	return &provider.RemoveLiquidityResponse{Pool: pool}, nil
}

func (a *countingAdapter) UserBalances(_ context.Context, _ string) (*provider.UserBalancesResponse, error) {
	a.balanceCalls++
	return &provider.UserBalancesResponse{
		LPAmount: sdkmath.ZeroInt(),
		Amount0:  sdkmath.ZeroInt(),
		Amount1:  sdkmath.ZeroInt(),
	}, nil
}

func (a *countingAdapter) QuoteSplit(_ context.Context, _ string, token0, token1 string, amount sdkmath.Int) (sdktypes.Coin, sdktypes.Coin, error) {
	a.quoteCalls++
	half := amount.QuoRaw(2)
	return sdktypes.Coin{Denom: token0, Amount: half},
		sdktypes.Coin{Denom: token1, Amount: amount.Sub(half)}, nil
}

func (a *countingAdapter) totalCalls() int {
	return a.addCalls + a.removeCalls + a.quoteCalls + a.balanceCalls
}

func setup(t *testing.T, pools ...types.Pool) (*Engine, *registry.Registry, *countingAdapter) {
	t.Helper()
	reg := registry.NewRegistry()
	adapter := newCountingAdapter()
	providers := provider.NewSet()
	providers.Register("sim", adapter)
	for _, p := range pools {
		if err := reg.Upsert(p); err != nil {
			t.Fatalf("seeding pool %s: %v", p.Name, err)
		}
	}
	return New(reg, providers, 0), reg, adapter
}

func pool(name string, apy float64) types.Pool {
	return types.Pool{ProviderID: "sim", Name: name, Token0: "ATOM", Token1: "USDC", APY: apy}
}

func TestSelectBest_HighestAPY(t *testing.T) {
	e, _, _ := setup(t,
		pool("ATOM-USDC", 0.10),
		pool("ELYS-USDC", 0.25),
		pool("OSMO-USDC", 0.18),
	)

	best, err := e.SelectBest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.Name != "ELYS-USDC" {
		t.Errorf("expected ELYS-USDC, got %s", best.Name)
	}
}

func TestSelectBest_TieBreakLexicographic(t *testing.T) {
	e, _, _ := setup(t,
		pool("OSMO-USDC", 0.20),
		pool("ATOM-USDC", 0.20),
		pool("ELYS-USDC", 0.20),
	)

	// The choice must be reproducible across repeated runs.
	for run := 0; run < 10; run++ {
		best, err := e.SelectBest()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if best.Name != "ATOM-USDC" {
			t.Fatalf("run %d: expected lexicographically smallest ATOM-USDC, got %s", run, best.Name)
		}
	}
}

func TestSelectBest_EpsilonTie(t *testing.T) {
	// Within epsilon these APYs are equal, so the name decides.
	e, _, _ := setup(t,
		pool("OSMO-USDC", 0.20+1e-12),
		pool("ATOM-USDC", 0.20),
	)

	best, err := e.SelectBest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.Name != "ATOM-USDC" {
		t.Errorf("expected ATOM-USDC under epsilon tie, got %s", best.Name)
	}
}

func TestSelectBest_EmptyRegistry(t *testing.T) {
	e, _, _ := setup(t)
	if _, err := e.SelectBest(); !errors.Is(err, ErrNoPoolCandidates) {
		t.Errorf("expected ErrNoPoolCandidates, got %v", err)
	}
}

func TestMigrate_MovesEverythingToTarget(t *testing.T) {
	e, _, adapter := setup(t,
		pool("ATOM-USDC", 0.10),
		pool("ELYS-USDC", 0.25),
		pool("OSMO-USDC", 0.18),
	)
	target := pool("ELYS-USDC", 0.25)

	allocations := map[string]sdkmath.Int{
		"ATOM-USDC": sdkmath.NewInt(300),
		"OSMO-USDC": sdkmath.NewInt(700),
	}

	if err := e.Migrate(context.Background(), allocations, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(allocations) != 1 {
		t.Fatalf("expected a single allocation entry, got %v", allocations)
	}
	if !allocations["ELYS-USDC"].Equal(sdkmath.NewInt(1000)) {
		t.Errorf("expected 1000 under target, got %s", allocations["ELYS-USDC"])
	}
	if adapter.removeCalls != 2 || adapter.addCalls != 2 {
		t.Errorf("expected 2 remove + 2 add calls, got %d/%d", adapter.removeCalls, adapter.addCalls)
	}
}

func TestMigrate_PartialFailureIsolation(t *testing.T) {
	e, _, adapter := setup(t,
		pool("ATOM-USDC", 0.10),
		pool("ELYS-USDC", 0.25),
		pool("OSMO-USDC", 0.18),
	)
	adapter.failRemove["ATOM-USDC"] = true
	target := pool("ELYS-USDC", 0.25)

	allocations := map[string]sdkmath.Int{
		"ATOM-USDC": sdkmath.NewInt(300),
		"OSMO-USDC": sdkmath.NewInt(700),
	}

	err := e.Migrate(context.Background(), allocations, target)
	if err == nil {
		t.Fatal("expected joined migration error")
	}

	var provErr *provider.Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *provider.Error in chain, got %v", err)
	}
	if provErr.Pool != "ATOM-USDC" || provErr.Op != provider.OpRemoveLiquidity {
		t.Errorf("unexpected failure context: %+v", provErr)
	}

	// The failed source keeps its entry for retry; the other one migrated.
	if !allocations["ATOM-USDC"].Equal(sdkmath.NewInt(300)) {
		t.Errorf("failed source entry must stay untouched, got %s", allocations["ATOM-USDC"])
	}
	if !allocations["ELYS-USDC"].Equal(sdkmath.NewInt(700)) {
		t.Errorf("expected 700 migrated to target, got %s", allocations["ELYS-USDC"])
	}
	if _, ok := allocations["OSMO-USDC"]; ok {
		t.Error("migrated source entry must be deleted")
	}
}

func TestMigrate_NoopWhenAlreadyInTarget(t *testing.T) {
	e, _, adapter := setup(t,
		pool("ATOM-USDC", 0.10),
		pool("ELYS-USDC", 0.25),
	)
	target := pool("ELYS-USDC", 0.25)

	allocations := map[string]sdkmath.Int{
		"ELYS-USDC": sdkmath.NewInt(1000),
	}

	if err := e.Migrate(context.Background(), allocations, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter.totalCalls() != 0 {
		t.Errorf("expected no provider calls, got %d", adapter.totalCalls())
	}
	if !allocations["ELYS-USDC"].Equal(sdkmath.NewInt(1000)) {
		t.Errorf("allocation must be unchanged, got %s", allocations["ELYS-USDC"])
	}
}
