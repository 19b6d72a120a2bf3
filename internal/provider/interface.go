package provider

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
)

// Adapter defines the interface the vault uses to move liquidity in and out
// of a specific provider's pools and to query its own positions there.
// This interface abstracts away the specific provider implementation,
// allowing for different backends (live, simulated, etc.).
type Adapter interface {
	// AddLiquidity places the two token legs into the named pool and mints
	// an LP position for the vault.
	AddLiquidity(ctx context.Context, pool string, coin0, coin1 sdktypes.Coin) (*AddLiquidityResponse, error)

	// RemoveLiquidity burns lpAmount of the vault's LP position in the named
	// pool and returns the underlying token legs.
	RemoveLiquidity(ctx context.Context, pool string, token0, token1 string, lpAmount sdkmath.Int) (*RemoveLiquidityResponse, error)

	// UserBalances returns the given account's aggregate LP amount and
	// underlying token legs at this provider, valued in vault base units.
	UserBalances(ctx context.Context, userID string) (*UserBalancesResponse, error)

	// QuoteSplit is the provider's opaque swap/quote capability: it splits a
	// single-token amount into the two legs required by the named pool's
	// current token ratio. Swap routing inside the provider is out of scope
	// for the vault.
	QuoteSplit(ctx context.Context, pool string, token0, token1 string, amount sdkmath.Int) (sdktypes.Coin, sdktypes.Coin, error)
}

// AddLiquidityResponse reports the LP position minted for an add.
type AddLiquidityResponse struct {
	Pool     string      `json:"pool"`
	LPMinted sdkmath.Int `json:"lp_minted"`
}

// RemoveLiquidityResponse reports the token legs returned by a removal.
type RemoveLiquidityResponse struct {
	Pool    string        `json:"pool"`
	Amount0 sdktypes.Coin `json:"amount0"`
	Amount1 sdktypes.Coin `json:"amount1"`
}

// UserBalancesResponse reports an account's position at a provider.
// Amount0/Amount1 are the underlying legs of the LP position, already valued
// in the vault's base token units by the provider.
type UserBalancesResponse struct {
	LPAmount sdkmath.Int `json:"lp_amount"`
	Amount0  sdkmath.Int `json:"amount0"`
	Amount1  sdkmath.Int `json:"amount1"`
}
