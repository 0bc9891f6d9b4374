package s3blob

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detradefi/navoracle/internal/domain"
)

type fakeWriter struct {
	keys        []string
	bodies      map[string][]byte
	contentType string
	err         error
}

func (w *fakeWriter) Write(_ context.Context, key string, body []byte, contentType string) error {
	if w.err != nil {
		return w.err
	}
	if w.bodies == nil {
		w.bodies = make(map[string][]byte)
	}
	w.keys = append(w.keys, key)
	w.bodies[key] = body
	w.contentType = contentType
	return nil
}

type fakeChecker struct {
	exists bool
	err    error
}

func (c *fakeChecker) Exists(_ context.Context, _ string) (bool, error) {
	return c.exists, c.err
}

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		ID:          "0c6a1f2e",
		Address:     "0xAbCd000000000000000000000000000000000001",
		CollectedAt: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Overview: domain.Overview{
			NAV:        "1250000.000000",
			SharePrice: "1.042113",
		},
		Protocols: map[string]any{},
	}
}

func TestArchiveSnapshotKeyFormat(t *testing.T) {
	writer := &fakeWriter{}
	arch := NewArchiver(writer, &fakeChecker{exists: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	key, err := arch.ArchiveSnapshot(context.Background(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t,
		"snapshots/0xabcd000000000000000000000000000000000001/2026-01/2026-01-15T10-30-00Z-0c6a1f2e.json",
		key)
	require.Len(t, writer.keys, 1)
	assert.Equal(t, key, writer.keys[0])
	assert.Equal(t, "application/json", writer.contentType)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(writer.bodies[key], &doc))
	assert.Contains(t, doc, "overview")
}

func TestArchiveSnapshotVerificationFailure(t *testing.T) {
	arch := NewArchiver(&fakeWriter{}, &fakeChecker{exists: false}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := arch.ArchiveSnapshot(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
}

func TestArchiveSnapshotUploadError(t *testing.T) {
	writer := &fakeWriter{err: assert.AnError}
	arch := NewArchiver(writer, &fakeChecker{exists: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := arch.ArchiveSnapshot(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
