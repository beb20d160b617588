package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// HistoryStore implements domain.HistoryStore using PostgreSQL. Prices are
// stored as NUMERIC and scanned through their text form so no precision is
// lost on the round trip.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a new HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

const sessionSelectCols = `id, identity, symbol, direction,
	entry_price::text, settlement_price::text, outcome,
	started_at, duration_seconds, ends_at, resolved_at`

func scanSessionRows(rows pgx.Rows) ([]domain.Session, error) {
	var sessions []domain.Session
	for rows.Next() {
		var (
			symbol, direction, outcome string
			entry, settle              string
			durationSeconds            int64
			out                        domain.Session
		)
		if err := rows.Scan(
			&out.ID, &out.Identity, &symbol, &direction,
			&entry, &settle, &outcome,
			&out.StartedAt, &durationSeconds, &out.EndsAt, &out.ResolvedAt,
		); err != nil {
			return nil, err
		}

		entryPrice, err := decimal.NewFromString(entry)
		if err != nil {
			return nil, fmt.Errorf("parse entry price %q: %w", entry, err)
		}
		settlePrice, err := decimal.NewFromString(settle)
		if err != nil {
			return nil, fmt.Errorf("parse settlement price %q: %w", settle, err)
		}

		out.Symbol = domain.Symbol(symbol)
		out.Direction = domain.Direction(direction)
		out.Outcome = domain.Outcome(outcome)
		out.EntryPrice = entryPrice
		out.SettlementPrice = settlePrice
		out.Duration = time.Duration(durationSeconds) * time.Second
		out.State = domain.StateResolved
		sessions = append(sessions, out)
	}
	return sessions, rows.Err()
}

// Append records a resolved session in the ledger. Re-appending the same
// session ID is a no-op, so a retried resolution cannot duplicate a row.
func (s *HistoryStore) Append(ctx context.Context, sess domain.Session) error {
	const query = `
		INSERT INTO resolved_sessions (
			id, identity, symbol, direction,
			entry_price, settlement_price, outcome,
			started_at, duration_seconds, ends_at, resolved_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11
		)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		sess.ID, string(sess.Identity), string(sess.Symbol), string(sess.Direction),
		sess.EntryPrice.String(), sess.SettlementPrice.String(), string(sess.Outcome),
		sess.StartedAt, int64(sess.Duration/time.Second), sess.EndsAt, sess.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append session %s: %w: %w", sess.ID, domain.ErrPersistence, err)
	}
	return nil
}

// ListByIdentity returns an identity's resolved sessions, newest first.
func (s *HistoryStore) ListByIdentity(ctx context.Context, id domain.Identity, opts domain.ListOpts) ([]domain.Session, error) {
	query := `SELECT ` + sessionSelectCols + ` FROM resolved_sessions
		WHERE identity = $1
		ORDER BY resolved_at DESC`
	args := []any{string(id)}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history: %w: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	sessions, err := scanSessionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan history: %w: %w", domain.ErrPersistence, err)
	}
	return sessions, nil
}

// ListBefore returns up to limit sessions resolved before the cutoff, oldest
// first, for the archiver to drain in stable batches.
func (s *HistoryStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionSelectCols+` FROM resolved_sessions
		 WHERE resolved_at < $1
		 ORDER BY resolved_at ASC
		 LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list before %s: %w: %w", cutoff.Format(time.RFC3339), domain.ErrPersistence, err)
	}
	defer rows.Close()

	sessions, err := scanSessionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan before: %w: %w", domain.ErrPersistence, err)
	}
	return sessions, nil
}

// Delete removes exactly the identified sessions and reports how many rows
// were deleted.
func (s *HistoryStore) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM resolved_sessions WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d sessions: %w: %w", len(ids), domain.ErrPersistence, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)
