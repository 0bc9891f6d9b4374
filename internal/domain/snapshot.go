package domain

import (
	"math/big"
	"time"
)

// PositionEntry is one line of the portfolio overview: a display key
// such as "lending.net_position" or "spot.USDC" and its canonical
// value in the canonical asset's smallest unit.
type PositionEntry struct {
	Key       string
	Canonical *big.Int
}

// Overview is the aggregated portfolio summary. Positions holds only
// strictly positive entries sorted by canonical value descending
// (insertion order preserved among equals); NAVWei additionally folds
// in negative net exposures that are excluded from the display list.
type Overview struct {
	Positions   []PositionEntry
	NAVWei      *big.Int
	NAV         string // NAVWei formatted in canonical display units
	TotalSupply *big.Int
	SharePrice  string // NAV / total share supply, "0" when supply is zero
}

// Snapshot is one complete aggregation result for one address. It is
// append-only once persisted: CollectedAt is when on-chain data was
// gathered, PersistedAt is stamped by the persister at write time.
// Protocols holds the per-protocol detail sections keyed by protocol
// name; values are plain maps/slices/big.Ints so the document can be
// normalized and stored as JSON.
type Snapshot struct {
	ID          string
	Address     string
	CollectedAt time.Time
	PersistedAt time.Time
	Overview    Overview
	Protocols   map[string]any
}

// Document flattens the snapshot into a JSON-safe map. Every *big.Int
// anywhere in the tree becomes its decimal string representation, so
// values above 2^53 survive storage in backends that parse numbers as
// floats.
func (s Snapshot) Document() map[string]any {
	positions := make([]any, 0, len(s.Overview.Positions))
	for _, p := range s.Overview.Positions {
		positions = append(positions, map[string]any{
			"key":   p.Key,
			"value": p.Canonical,
		})
	}
	doc := map[string]any{
		"id":           s.ID,
		"address":      s.Address,
		"collected_at": s.CollectedAt.UTC().Format(time.RFC3339),
		"persisted_at": s.PersistedAt.UTC().Format(time.RFC3339),
		"overview": map[string]any{
			"positions":    positions,
			"nav_wei":      s.Overview.NAVWei,
			"nav":          s.Overview.NAV,
			"total_supply": s.Overview.TotalSupply,
			"share_price":  s.Overview.SharePrice,
		},
		"protocols": s.Protocols,
	}
	return NormalizeDocument(doc).(map[string]any)
}

// NormalizeDocument walks a document tree and rewrites every *big.Int
// as a decimal string. Maps and slices are copied, scalars pass
// through unchanged.
func NormalizeDocument(v any) any {
	switch t := v.(type) {
	case *big.Int:
		if t == nil {
			return "0"
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = NormalizeDocument(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = NormalizeDocument(val)
		}
		return out
	default:
		return v
	}
}
