/*

This is the catalog entry for a candidate liquidity pool. Identity fields are
immutable after creation; only the observed APY is refreshed externally.

*/

package types

type Pool struct {
	ProviderID string  `json:"provider_id"` // Which concrete provider holds this pool
	Name       string  `json:"name"`        // Unique key, e.g. "ATOM-USDC"
	Token0     string  `json:"token0"`      // First token of the pair
	Token1     string  `json:"token1"`      // Second token of the pair
	APY        float64 `json:"apy"`         // Observed annual percentage yield, non-negative
}
