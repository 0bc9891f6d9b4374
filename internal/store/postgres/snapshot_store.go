package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/detradefi/navoracle/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. The
// full normalized document is stored as JSONB next to the indexed
// columns, so a snapshot read back is exactly the snapshot written.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given
// connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotSelectCols = `id, address, collected_at, persisted_at, document`

// Insert appends one snapshot. IDs are unique, so re-inserting an
// already persisted snapshot fails rather than overwriting history.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.Snapshot) error {
	doc, err := json.Marshal(snap.Document())
	if err != nil {
		return fmt.Errorf("postgres: encode snapshot %s: %w", snap.ID, err)
	}

	var totalSupply *string
	if snap.Overview.TotalSupply != nil {
		v := snap.Overview.TotalSupply.String()
		totalSupply = &v
	}

	const query = `
		INSERT INTO snapshots (
			id, address, collected_at, persisted_at,
			nav_wei, nav, share_price, total_supply, document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.pool.Exec(ctx, query,
		snap.ID, snap.Address, snap.CollectedAt, snap.PersistedAt,
		snap.Overview.NAVWei.String(), snap.Overview.NAV,
		snap.Overview.SharePrice, totalSupply, doc,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot %s: %w: %w", snap.ID, domain.ErrPersistenceUnavailable, err)
	}
	return nil
}

// GetByID returns one snapshot. It returns domain.ErrNotFound when no
// row exists.
func (s *SnapshotStore) GetByID(ctx context.Context, id string) (domain.Snapshot, error) {
	const query = `SELECT ` + snapshotSelectCols + ` FROM snapshots WHERE id = $1`
	snap, err := scanSnapshotRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snapshot{}, domain.ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("postgres: get snapshot %s: %w", id, err)
	}
	return snap, nil
}

// Latest returns the most recently collected snapshot for an address.
func (s *SnapshotStore) Latest(ctx context.Context, address string) (domain.Snapshot, error) {
	const query = `
		SELECT ` + snapshotSelectCols + `
		FROM snapshots
		WHERE address = $1
		ORDER BY collected_at DESC
		LIMIT 1`
	snap, err := scanSnapshotRow(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snapshot{}, domain.ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("postgres: latest snapshot for %s: %w", address, err)
	}
	return snap, nil
}

// ListRecent returns up to limit snapshots for an address, newest
// first.
func (s *SnapshotStore) ListRecent(ctx context.Context, address string, limit int) ([]domain.Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT ` + snapshotSelectCols + `
		FROM snapshots
		WHERE address = $1
		ORDER BY collected_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, address, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots for %s: %w", address, err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshotRow(row pgx.Row) (domain.Snapshot, error) {
	var (
		snap domain.Snapshot
		doc  []byte
	)
	if err := row.Scan(&snap.ID, &snap.Address, &snap.CollectedAt, &snap.PersistedAt, &doc); err != nil {
		return domain.Snapshot{}, err
	}

	var document map[string]any
	if err := json.Unmarshal(doc, &document); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode document: %w", err)
	}
	overview, err := overviewFromDocument(document)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Overview = overview
	if protocols, ok := document["protocols"].(map[string]any); ok {
		snap.Protocols = protocols
	}
	snap.CollectedAt = snap.CollectedAt.UTC()
	snap.PersistedAt = snap.PersistedAt.UTC()
	return snap, nil
}

// overviewFromDocument rebuilds the typed overview from the normalized
// JSON document, parsing decimal strings back into big integers.
func overviewFromDocument(document map[string]any) (domain.Overview, error) {
	raw, ok := document["overview"].(map[string]any)
	if !ok {
		return domain.Overview{}, fmt.Errorf("document has no overview section")
	}

	var overview domain.Overview
	navWei, err := bigFromDoc(raw["nav_wei"])
	if err != nil {
		return domain.Overview{}, fmt.Errorf("overview nav_wei: %w", err)
	}
	overview.NAVWei = navWei
	overview.NAV, _ = raw["nav"].(string)
	overview.SharePrice, _ = raw["share_price"].(string)
	if raw["total_supply"] != nil {
		supply, err := bigFromDoc(raw["total_supply"])
		if err != nil {
			return domain.Overview{}, fmt.Errorf("overview total_supply: %w", err)
		}
		overview.TotalSupply = supply
	}

	positions, _ := raw["positions"].([]any)
	for _, p := range positions {
		entry, ok := p.(map[string]any)
		if !ok {
			continue
		}
		value, err := bigFromDoc(entry["value"])
		if err != nil {
			return domain.Overview{}, fmt.Errorf("overview position value: %w", err)
		}
		key, _ := entry["key"].(string)
		overview.Positions = append(overview.Positions, domain.PositionEntry{Key: key, Canonical: value})
	}
	return overview, nil
}

func bigFromDoc(v any) (*big.Int, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected decimal string, got %T", v)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal string %q", s)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
