// Package adapter implements the per-protocol position readers. Each
// adapter fetches raw balances for the tracked address and returns a
// ProtocolResult; valuation is the aggregator's job. Fetch failures
// wrap domain.ErrFetchUnavailable so the aggregator can tell a broken
// backend from bad input.
package adapter

import (
	"context"
	"strings"
	"sync"

	"github.com/detradefi/navoracle/internal/domain"
)

// ChainReader is the chain surface an adapter reads through.
type ChainReader interface {
	domain.ERC20Reader
	domain.PoolReader
	NativeToken() domain.TokenRef
}

// Readers maps network names to connected chain readers.
type Readers map[string]ChainReader

// metaCache memoizes token metadata lookups across fetch runs. Token
// symbol and decimals are immutable, so entries never expire.
type metaCache struct {
	mu      sync.Mutex
	entries map[string]domain.TokenRef
}

func newMetaCache() *metaCache {
	return &metaCache{entries: make(map[string]domain.TokenRef)}
}

func (m *metaCache) get(ctx context.Context, reader ChainReader, network, token string) (domain.TokenRef, error) {
	key := network + ":" + strings.ToLower(token)

	m.mu.Lock()
	ref, ok := m.entries[key]
	m.mu.Unlock()
	if ok {
		return ref, nil
	}

	ref, err := reader.TokenMeta(ctx, token)
	if err != nil {
		return domain.TokenRef{}, err
	}

	m.mu.Lock()
	m.entries[key] = ref
	m.mu.Unlock()
	return ref, nil
}
