package s3blob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// BlobWriter is the narrow upload interface the archiver needs.
type BlobWriter interface {
	PutSessions(ctx context.Context, key string, sessions []domain.Session) error
}

// ArchiverConfig controls the retention sweep.
type ArchiverConfig struct {
	// Retention is how long resolved sessions stay in the primary ledger
	// before being moved to object storage.
	Retention time.Duration

	// Interval is how often the sweep runs.
	Interval time.Duration

	// BatchSize caps how many sessions each uploaded object holds.
	BatchSize int
}

// Archiver periodically drains resolved sessions older than the retention
// window from the history ledger into JSONL objects. Rows are deleted from
// the ledger only after their batch has been uploaded, so a failed upload
// leaves the ledger intact and the next sweep retries the same rows.
type Archiver struct {
	cfg     ArchiverConfig
	writer  BlobWriter
	history domain.HistoryStore
	logger  *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(cfg ArchiverConfig, writer BlobWriter, history domain.HistoryStore, logger *slog.Logger) *Archiver {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Archiver{
		cfg:     cfg,
		writer:  writer,
		history: history,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := a.Sweep(ctx); err != nil {
				a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.Info("archive sweep complete", slog.Int64("sessions", n))
			}
		}
	}
}

// Sweep archives and deletes every resolved session older than the retention
// window, in batches. It returns the number of sessions moved.
func (a *Archiver) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-a.cfg.Retention)
	var moved int64

	for {
		batch, err := a.history.ListBefore(ctx, cutoff, a.cfg.BatchSize)
		if err != nil {
			return moved, fmt.Errorf("s3blob: list archivable sessions: %w", err)
		}
		if len(batch) == 0 {
			return moved, nil
		}

		path := archivePath(batch[0].ResolvedAt, batch[len(batch)-1].ResolvedAt)
		if err := a.writer.PutSessions(ctx, path, batch); err != nil {
			return moved, fmt.Errorf("s3blob: upload archive batch: %w", err)
		}

		// Delete by ID, never by timestamp: rows sharing the batch's newest
		// resolved_at but cut off by the batch size must survive until their
		// own batch has been uploaded.
		ids := make([]string, len(batch))
		for i, s := range batch {
			ids[i] = s.ID
		}
		n, err := a.history.Delete(ctx, ids)
		if err != nil {
			return moved, fmt.Errorf("s3blob: delete archived sessions: %w", err)
		}
		moved += n

		if len(batch) < a.cfg.BatchSize {
			return moved, nil
		}
	}
}

// archivePath builds the object key for a batch from the resolved-at range of
// its rows.
//
//	archive/sessions/20250101T000000Z-20250131T235959Z.jsonl
func archivePath(oldest, newest time.Time) string {
	const layout = "20060102T150405Z"
	return fmt.Sprintf("archive/sessions/%s-%s.jsonl",
		oldest.UTC().Format(layout), newest.UTC().Format(layout))
}
