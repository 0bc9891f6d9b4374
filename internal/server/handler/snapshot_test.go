package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detradefi/navoracle/internal/domain"
)

type fakeStore struct {
	byID   map[string]domain.Snapshot
	latest map[string]domain.Snapshot
	recent []domain.Snapshot
	err    error
}

func (f *fakeStore) Insert(_ context.Context, _ domain.Snapshot) error { return nil }

func (f *fakeStore) GetByID(_ context.Context, id string) (domain.Snapshot, error) {
	if f.err != nil {
		return domain.Snapshot{}, f.err
	}
	snap, ok := f.byID[id]
	if !ok {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (f *fakeStore) Latest(_ context.Context, address string) (domain.Snapshot, error) {
	if f.err != nil {
		return domain.Snapshot{}, f.err
	}
	snap, ok := f.latest[address]
	if !ok {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (f *fakeStore) ListRecent(_ context.Context, _ string, limit int) ([]domain.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.recent) {
		limit = len(f.recent)
	}
	return f.recent[:limit], nil
}

func sampleSnapshot(id string) domain.Snapshot {
	return domain.Snapshot{
		ID:          id,
		Address:     "0x00000000000000000000000000000000000000aa",
		CollectedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		PersistedAt: time.Date(2026, 2, 1, 12, 0, 5, 0, time.UTC),
		Overview: domain.Overview{
			NAVWei:     big.NewInt(42_000_000),
			NAV:        "42.000000",
			SharePrice: "1.000000",
		},
		Protocols: map[string]any{},
	}
}

func newMux(store domain.SnapshotStore) *http.ServeMux {
	h := NewSnapshotHandler(store, "0x00000000000000000000000000000000000000aa", slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/snapshots", h.List)
	mux.HandleFunc("GET /api/v1/snapshots/latest", h.Latest)
	mux.HandleFunc("GET /api/v1/snapshots/{id}", h.Get)
	return mux
}

func TestLatestUsesDefaultAddress(t *testing.T) {
	store := &fakeStore{
		latest: map[string]domain.Snapshot{
			"0x00000000000000000000000000000000000000aa": sampleSnapshot("snap-1"),
		},
	}
	rec := httptest.NewRecorder()
	newMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "snap-1", doc["id"])

	overview, ok := doc["overview"].(map[string]any)
	require.True(t, ok)
	// Big integers must cross the API as decimal strings.
	assert.Equal(t, "42000000", overview["nav_wei"])
}

func TestLatestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(&fakeStore{}).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/latest?address=0xdead", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetByID(t *testing.T) {
	store := &fakeStore{byID: map[string]domain.Snapshot{"snap-9": sampleSnapshot("snap-9")}}

	rec := httptest.NewRecorder()
	newMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/snap-9", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCapsLimit(t *testing.T) {
	store := &fakeStore{
		recent: []domain.Snapshot{sampleSnapshot("a"), sampleSnapshot("b"), sampleSnapshot("c")},
	}
	rec := httptest.NewRecorder()
	newMux(store).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/snapshots?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["count"])
}

func TestStoreErrorMapsTo500(t *testing.T) {
	store := &fakeStore{err: domain.ErrPersistenceUnavailable}
	rec := httptest.NewRecorder()
	newMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/latest", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
