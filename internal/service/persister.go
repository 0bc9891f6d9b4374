// Package service holds the orchestration layer between the aggregator
// and the storage backends.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/detradefi/navoracle/internal/domain"
)

// SnapshotArchiver copies a persisted snapshot document into long-term
// blob storage.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snap *domain.Snapshot) (string, error)
}

// SnapshotBroadcaster pushes a freshly persisted snapshot to live
// subscribers.
type SnapshotBroadcaster interface {
	BroadcastSnapshot(snap *domain.Snapshot)
}

// Persister writes finished snapshots to the primary store and verifies
// each write by reading it back before reporting success. Archival and
// broadcast are best-effort side channels: their failures are logged but
// never fail the persist.
type Persister struct {
	store     domain.SnapshotStore
	archiver  SnapshotArchiver
	broadcast SnapshotBroadcaster
	logger    *slog.Logger
	now       func() time.Time
}

// NewPersister creates a Persister. archiver and broadcast may be nil
// when the corresponding side channel is not configured.
func NewPersister(
	store domain.SnapshotStore,
	archiver SnapshotArchiver,
	broadcast SnapshotBroadcaster,
	logger *slog.Logger,
) *Persister {
	return &Persister{
		store:     store,
		archiver:  archiver,
		broadcast: broadcast,
		logger:    logger.With(slog.String("component", "persister")),
		now:       time.Now,
	}
}

// Persist assigns the snapshot an ID, stamps PersistedAt, appends it to
// the store, and verifies the row by reading it back. The stored record
// must echo the same ID and NAV or the persist fails with
// ErrVerificationFailed.
func (p *Persister) Persist(ctx context.Context, snap *domain.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	snap.PersistedAt = p.now().UTC()

	if err := p.store.Insert(ctx, *snap); err != nil {
		return fmt.Errorf("persister: insert snapshot %s: %w", snap.ID, err)
	}

	stored, err := p.store.GetByID(ctx, snap.ID)
	if err != nil {
		return fmt.Errorf("persister: read back snapshot %s: %w: %v",
			snap.ID, domain.ErrVerificationFailed, err)
	}
	if stored.ID != snap.ID || !equalNAV(stored, snap) {
		return fmt.Errorf("persister: snapshot %s read back mismatch: %w",
			snap.ID, domain.ErrVerificationFailed)
	}

	p.logger.InfoContext(ctx, "snapshot persisted",
		slog.String("snapshot_id", snap.ID),
		slog.String("address", snap.Address),
		slog.String("nav", snap.Overview.NAV),
		slog.String("share_price", snap.Overview.SharePrice),
	)

	if p.archiver != nil {
		if key, archErr := p.archiver.ArchiveSnapshot(ctx, snap); archErr != nil {
			p.logger.WarnContext(ctx, "snapshot archive failed",
				slog.String("snapshot_id", snap.ID),
				slog.String("error", archErr.Error()),
			)
		} else {
			p.logger.DebugContext(ctx, "snapshot archived",
				slog.String("snapshot_id", snap.ID),
				slog.String("key", key),
			)
		}
	}

	if p.broadcast != nil {
		p.broadcast.BroadcastSnapshot(snap)
	}

	return nil
}

// equalNAV compares the stored NAV against the in-memory snapshot. Both
// sides normalise through big.Int so formatting differences in the
// stored document do not trip verification.
func equalNAV(stored domain.Snapshot, snap *domain.Snapshot) bool {
	a, b := stored.Overview.NAVWei, snap.Overview.NAVWei
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}
