package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detradefi/navoracle/internal/domain"
)

type memStore struct {
	snapshots map[string]domain.Snapshot
	insertErr error
	// mutate lets a test corrupt the stored copy before read-back.
	mutate func(*domain.Snapshot)
}

func (m *memStore) Insert(_ context.Context, snap domain.Snapshot) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.snapshots == nil {
		m.snapshots = make(map[string]domain.Snapshot)
	}
	if m.mutate != nil {
		m.mutate(&snap)
	}
	m.snapshots[snap.ID] = snap
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (domain.Snapshot, error) {
	snap, ok := m.snapshots[id]
	if !ok {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (m *memStore) Latest(_ context.Context, _ string) (domain.Snapshot, error) {
	return domain.Snapshot{}, domain.ErrNotFound
}

func (m *memStore) ListRecent(_ context.Context, _ string, _ int) ([]domain.Snapshot, error) {
	return nil, nil
}

type memArchiver struct {
	calls int
	err   error
}

func (a *memArchiver) ArchiveSnapshot(_ context.Context, _ *domain.Snapshot) (string, error) {
	a.calls++
	return "snapshots/test.json", a.err
}

type memBroadcaster struct {
	received []*domain.Snapshot
}

func (b *memBroadcaster) BroadcastSnapshot(snap *domain.Snapshot) {
	b.received = append(b.received, snap)
}

func newSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Address: "0x0000000000000000000000000000000000000abc",
		Overview: domain.Overview{
			NAVWei: big.NewInt(1_250_000_000_000),
			NAV:    "1250000.000000",
		},
		Protocols: map[string]any{},
	}
}

func TestPersistAssignsIDAndStamps(t *testing.T) {
	store := &memStore{}
	arch := &memArchiver{}
	bcast := &memBroadcaster{}
	p := NewPersister(store, arch, bcast, slog.New(slog.NewTextHandler(io.Discard, nil)))

	snap := newSnapshot()
	require.NoError(t, p.Persist(context.Background(), snap))

	assert.NotEmpty(t, snap.ID)
	assert.False(t, snap.PersistedAt.IsZero())
	assert.Contains(t, store.snapshots, snap.ID)
	assert.Equal(t, 1, arch.calls)
	require.Len(t, bcast.received, 1)
	assert.Equal(t, snap.ID, bcast.received[0].ID)
}

func TestPersistInsertFailure(t *testing.T) {
	store := &memStore{insertErr: domain.ErrPersistenceUnavailable}
	p := NewPersister(store, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := p.Persist(context.Background(), newSnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistenceUnavailable)
}

func TestPersistReadBackMismatch(t *testing.T) {
	store := &memStore{
		mutate: func(snap *domain.Snapshot) {
			snap.Overview.NAVWei = big.NewInt(1)
		},
	}
	p := NewPersister(store, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := p.Persist(context.Background(), newSnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
}

func TestPersistArchiveFailureIsNonFatal(t *testing.T) {
	store := &memStore{}
	arch := &memArchiver{err: assert.AnError}
	bcast := &memBroadcaster{}
	p := NewPersister(store, arch, bcast, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, p.Persist(context.Background(), newSnapshot()))
	assert.Equal(t, 1, arch.calls)
	assert.Len(t, bcast.received, 1)
}
