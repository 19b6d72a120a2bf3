package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"

	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/types"
)

var simLogger = logger.GetForComponent("sim_provider")

var (
	ErrSimPoolUnknown    = errors.New("pool not known to simulated provider")
	ErrSimInsufficientLP = errors.New("insufficient lp balance")
)

// Sim is an in-memory liquidity provider used in sim mode and in tests.
// It values every token leg 1:1 in vault base units: one LP share always
// represents one base unit of liquidity, so the vault's accounting can be
// checked exactly against it.
type Sim struct {
	mu        sync.Mutex
	accountID string
	pools     map[string]*simPool
}

type simPool struct {
	token0   string
	token1   string
	reserve0 sdkmath.Int
	reserve1 sdkmath.Int
	lp       sdkmath.Int // LP shares held by the vault account
}

// NewSim creates a simulated provider. All liquidity operations act on behalf
// of the given vault account.
func NewSim(accountID string) *Sim {
	return &Sim{
		accountID: accountID,
		pools:     make(map[string]*simPool),
	}
}

// AddPool seeds a pool into the simulated provider.
func (s *Sim) AddPool(pool types.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[pool.Name]; ok {
		return
	}
	s.pools[pool.Name] = &simPool{
		token0:   pool.Token0,
		token1:   pool.Token1,
		reserve0: sdkmath.ZeroInt(),
		reserve1: sdkmath.ZeroInt(),
		lp:       sdkmath.ZeroInt(),
	}
}

// AccrueYield grows a pool's reserves without minting LP shares, simulating
// yield earned by the vault's position.
func (s *Sim) AccrueYield(pool string, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[pool]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSimPoolUnknown, pool)
	}
	half := amount.QuoRaw(2)
	p.reserve0 = p.reserve0.Add(half)
	p.reserve1 = p.reserve1.Add(amount.Sub(half))
	return nil
}

func (s *Sim) AddLiquidity(_ context.Context, pool string, coin0, coin1 sdktypes.Coin) (*AddLiquidityResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[pool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSimPoolUnknown, pool)
	}

	minted := coin0.Amount.Add(coin1.Amount)
	p.reserve0 = p.reserve0.Add(coin0.Amount)
	p.reserve1 = p.reserve1.Add(coin1.Amount)
	p.lp = p.lp.Add(minted)

	simLogger.Debug().
		Str("pool", pool).
		Str("minted", minted.String()).
		Msg("Simulated add_liquidity")

	return &AddLiquidityResponse{Pool: pool, LPMinted: minted}, nil
}

func (s *Sim) RemoveLiquidity(_ context.Context, pool string, _, _ string, lpAmount sdkmath.Int) (*RemoveLiquidityResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[pool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSimPoolUnknown, pool)
	}
	if lpAmount.GT(p.lp) {
		return nil, fmt.Errorf("%w: pool %s holds %s, requested %s", ErrSimInsufficientLP, pool, p.lp, lpAmount)
	}

	// One LP share redeems one base unit, split along the reserve ratio.
	total := p.reserve0.Add(p.reserve1)
	var out0 sdkmath.Int
	if total.IsZero() {
		out0 = sdkmath.ZeroInt()
	} else {
		out0 = lpAmount.Mul(p.reserve0).Quo(total)
	}
	out1 := lpAmount.Sub(out0)

	p.reserve0 = p.reserve0.Sub(out0)
	p.reserve1 = p.reserve1.Sub(out1)
	p.lp = p.lp.Sub(lpAmount)

	simLogger.Debug().
		Str("pool", pool).
		Str("burned", lpAmount.String()).
		Msg("Simulated remove_liquidity")

	return &RemoveLiquidityResponse{
		Pool:    pool,
		Amount0: sdktypes.Coin{Denom: p.token0, Amount: out0},
		Amount1: sdktypes.Coin{Denom: p.token1, Amount: out1},
	}, nil
}

func (s *Sim) UserBalances(_ context.Context, userID string) (*UserBalancesResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &UserBalancesResponse{
		LPAmount: sdkmath.ZeroInt(),
		Amount0:  sdkmath.ZeroInt(),
		Amount1:  sdkmath.ZeroInt(),
	}
	if userID != s.accountID {
		return resp, nil
	}

	for _, p := range s.pools {
		if p.lp.IsZero() {
			continue
		}
		resp.LPAmount = resp.LPAmount.Add(p.lp)
		resp.Amount0 = resp.Amount0.Add(p.reserve0)
		resp.Amount1 = resp.Amount1.Add(p.reserve1)
	}
	return resp, nil
}

func (s *Sim) QuoteSplit(_ context.Context, pool string, token0, token1 string, amount sdkmath.Int) (sdktypes.Coin, sdktypes.Coin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[pool]
	if !ok {
		return sdktypes.Coin{}, sdktypes.Coin{}, fmt.Errorf("%w: %s", ErrSimPoolUnknown, pool)
	}

	// Split along the current reserve ratio; an empty pool takes 50/50.
	total := p.reserve0.Add(p.reserve1)
	var amount0 sdkmath.Int
	if total.IsZero() {
		amount0 = amount.QuoRaw(2)
	} else {
		amount0 = amount.Mul(p.reserve0).Quo(total)
	}
	amount1 := amount.Sub(amount0)

	return sdktypes.Coin{Denom: token0, Amount: amount0},
		sdktypes.Coin{Denom: token1, Amount: amount1}, nil
}
