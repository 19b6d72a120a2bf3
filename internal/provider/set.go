package provider

import (
	"fmt"
	"sync"

	"github.com/nexusyield/yvm/internal/logger"
)

var setLogger = logger.GetForComponent("provider_set")

// Set maps provider IDs to concrete adapters: one logical interface,
// multiple concrete providers.
type Set struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewSet() *Set {
	return &Set{
		adapters: make(map[string]Adapter),
	}
}

// Register binds an adapter to a provider ID, replacing any previous binding.
func (s *Set) Register(providerID string, adapter Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adapters[providerID] = adapter
	setLogger.Info().Str("provider", providerID).Msg("Provider adapter registered")
}

// Resolve returns the adapter bound to the given provider ID.
func (s *Set) Resolve(providerID string) (Adapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapter, ok := s.adapters[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	return adapter, nil
}
