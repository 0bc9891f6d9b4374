package s3blob

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/detradefi/navoracle/internal/domain"
)

// KeyChecker reports whether an object exists under a key. The archiver
// only needs the existence probe, not the full Reader surface.
type KeyChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// Archiver uploads normalized snapshot documents to blob storage so the
// full history survives database retention windows. Uploads are verified
// with a HeadObject before the archiver reports success.
type Archiver struct {
	writer domain.BlobWriter
	reader KeyChecker
	logger *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, reader KeyChecker, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSnapshot serialises the snapshot's document form and uploads it
// under a key partitioned by vault address and collection time. Returns
// the object key on success.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, snap *domain.Snapshot) (string, error) {
	doc := snap.Document()

	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: archive snapshot marshal: %w", err)
	}

	key := snapshotKey(snap)
	if err := a.writer.Write(ctx, key, buf, "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive snapshot upload: %w", err)
	}

	ok, err := a.reader.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive snapshot verify: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("s3blob: archive snapshot %s: %w", key, domain.ErrVerificationFailed)
	}

	a.logger.Info("snapshot archived",
		slog.String("key", key),
		slog.String("snapshot_id", snap.ID),
		slog.Int("bytes", len(buf)))

	return key, nil
}

// snapshotKey builds the object key for an archived snapshot:
//
//	snapshots/<address>/2026-01/2026-01-15T10-30-00Z-<id>.json
//
// Keys are partitioned by year-month so listing a month of history is a
// single prefix scan. Colons are not valid in all S3-compatible stores,
// so the timestamp uses dashes throughout.
func snapshotKey(snap *domain.Snapshot) string {
	ts := snap.CollectedAt.UTC().Format(time.RFC3339)
	ts = strings.ReplaceAll(ts, ":", "-")
	return fmt.Sprintf("snapshots/%s/%s/%s-%s.json",
		strings.ToLower(snap.Address),
		snap.CollectedAt.UTC().Format("2006-01"),
		ts,
		snap.ID)
}
