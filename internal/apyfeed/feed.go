/*
This file fetches the pool catalog with observed APYs from the external feed
endpoint. The vault only consumes the reported APY figure per pool; how the
feed measures yield is out of scope. Every entry is validated strictly before
it can reach the registry and influence capital movement.
*/

package apyfeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/registry"
	"github.com/nexusyield/yvm/internal/types"
	"github.com/nexusyield/yvm/internal/utils"
)

var feedLogger = logger.GetForComponent("apy_feed")

var (
	ErrInvalidFeedData = errors.New("invalid pool data received from feed")
	ErrEmptyFeed       = errors.New("feed returned no pools")
)

const (
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 30
)

// FeedEntry is one pool record as served by the feed endpoint.
type FeedEntry struct {
	ProviderID string  `json:"provider_id"`
	Name       string  `json:"name"`
	Token0     string  `json:"token0"`
	Token1     string  `json:"token1"`
	APY        float64 `json:"apy"`
}

// FetchCatalog retrieves and validates the pool catalog from the feed endpoint.
func FetchCatalog(url string) ([]types.Pool, error) {
	client := &http.Client{Timeout: TIMEOUT_SECONDS * time.Second}

	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		pools, err := fetchOnce(client, url)
		if err == nil {
			return pools, nil
		}
		lastErr = err
		feedLogger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxRetries", MAX_RETRIES).
			Msg("Feed fetch attempt failed")
		if attempt < MAX_RETRIES {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return nil, fmt.Errorf("feed fetch failed after %d attempts: %w", MAX_RETRIES, lastErr)
}

func fetchOnce(client *http.Client, url string) ([]types.Pool, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("requesting feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed response: %w", err)
	}

	var entries []FeedEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding feed response: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyFeed
	}

	pools := make([]types.Pool, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return nil, err
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("%w: duplicate pool name %s", ErrInvalidFeedData, entry.Name)
		}
		seen[entry.Name] = true

		pools = append(pools, types.Pool{
			ProviderID: entry.ProviderID,
			Name:       entry.Name,
			Token0:     entry.Token0,
			Token1:     entry.Token1,
			APY:        entry.APY,
		})
	}
	return pools, nil
}

func validateEntry(entry FeedEntry) error {
	if entry.Name == "" || entry.ProviderID == "" || entry.Token0 == "" || entry.Token1 == "" {
		return fmt.Errorf("%w: missing identity fields in entry %+v", ErrInvalidFeedData, entry)
	}
	if err := utils.ValidateFinite(entry.APY); err != nil {
		return fmt.Errorf("%w: apy for %s: %w", ErrInvalidFeedData, entry.Name, err)
	}
	if entry.APY < 0 {
		return fmt.Errorf("%w: negative apy %f for %s", ErrInvalidFeedData, entry.APY, entry.Name)
	}
	return nil
}

// Refresh pulls the catalog and upserts every pool into the registry.
// Existing pools only get their APY refreshed; identity fields stay immutable.
func Refresh(reg *registry.Registry, url string) error {
	pools, err := FetchCatalog(url)
	if err != nil {
		return err
	}

	for _, pool := range pools {
		if err := reg.Upsert(pool); err != nil {
			feedLogger.Error().
				Err(err).
				Str("pool", pool.Name).
				Msg("Rejected feed entry")
			return err
		}
	}

	feedLogger.Info().Int("pools", len(pools)).Msg("Pool catalog refreshed from feed")
	return nil
}
