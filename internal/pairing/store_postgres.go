package pairing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oiblz/tally/internal/sentinel"
	"github.com/oiblz/tally/pkg/domain"
)

// PostgresStore persists proposals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed proposal store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Propose(ctx context.Context, claimed domain.Identity, device string, now time.Time) (int64, error) {
	// The bootstrap auto-confirm and the emptiness check are one statement,
	// so two racing first proposals cannot both self-confirm.
	query := `
		INSERT INTO proposals (claimed, device, created_at, confirmed_at)
		VALUES ($1, $2, $3, CASE WHEN EXISTS (SELECT 1 FROM proposals) THEN NULL ELSE $3 END)
		RETURNING id
	`
	var id int64
	if err := s.db.QueryRowContext(ctx, query, claimed.String(), device, now).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert proposal: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) State(ctx context.Context, id int64) (domain.Identity, State, error) {
	return s.state(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) state(ctx context.Context, q querier, id int64) (domain.Identity, State, error) {
	query := `
		SELECT
			p1.claimed,
			p1.confirmed_at,
			p1.refused_at,
			p1.converted_at,
			EXISTS (
				SELECT 1 FROM proposals p2
				WHERE p2.claimed = p1.claimed AND p2.created_at > p1.created_at
			) AS stale
		FROM proposals p1
		WHERE p1.id = $1
	`
	var claimedCode string
	var confirmedAt, refusedAt, convertedAt sql.NullTime
	var stale bool
	err := q.QueryRowContext(ctx, query, id).Scan(&claimedCode, &confirmedAt, &refusedAt, &convertedAt, &stale)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", sentinel.ErrNotFound
		}
		return "", "", fmt.Errorf("read proposal state: %w", err)
	}

	claimed, err := domain.ParseIdentity(claimedCode)
	if err != nil {
		return "", "", fmt.Errorf("scan proposal: %w", err)
	}

	p := Proposal{
		ConfirmedAt: nullTimePtr(confirmedAt),
		RefusedAt:   nullTimePtr(refusedAt),
		ConvertedAt: nullTimePtr(convertedAt),
	}
	return claimed, Classify(&p, stale), nil
}

func (s *PostgresStore) Confirm(ctx context.Context, id int64, now time.Time) error {
	return s.resolve(ctx, "confirmed_at", id, now)
}

func (s *PostgresStore) Refuse(ctx context.Context, id int64, now time.Time) error {
	return s.resolve(ctx, "refused_at", id, now)
}

// resolve is the mutual-exclusion primitive: a conditional update whose
// zero-rows-affected outcome is the failure signal.
func (s *PostgresStore) resolve(ctx context.Context, column string, id int64, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE proposals
		SET %s = $2
		WHERE id = $1
			AND confirmed_at IS NULL
			AND refused_at IS NULL
	`, column)
	res, err := s.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("resolve proposal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve proposal rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrPrecondition
	}
	return nil
}

func (s *PostgresStore) Convert(ctx context.Context, id int64, now time.Time, issue func(domain.Identity) (string, error)) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin convert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	claimed, state, err := s.state(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", sentinel.ErrPrecondition
		}
		return "", err
	}
	if state != StateConvertible {
		return "", sentinel.ErrPrecondition
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE proposals
		SET converted_at = $2
		WHERE id = $1
			AND confirmed_at IS NOT NULL
			AND converted_at IS NULL
	`, id, now)
	if err != nil {
		return "", fmt.Errorf("convert proposal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("convert proposal rows: %w", err)
	}
	if rows == 0 {
		return "", sentinel.ErrPrecondition
	}

	wire, err := issue(claimed)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit convert: %w", err)
	}
	return wire, nil
}

func (s *PostgresStore) Confirmable(ctx context.Context, by domain.Identity) (*Confirmable, error) {
	query := `
		SELECT p1.id, p1.device
		FROM proposals p1
		WHERE p1.claimed <> $1
			AND p1.confirmed_at IS NULL
			AND p1.refused_at IS NULL
			AND NOT EXISTS (
				SELECT 1 FROM proposals p2
				WHERE p2.claimed = p1.claimed AND p2.created_at > p1.created_at
			)
		ORDER BY p1.created_at ASC
		LIMIT 1
	`
	var c Confirmable
	err := s.db.QueryRowContext(ctx, query, by.String()).Scan(&c.ID, &c.Device)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find confirmable proposal: %w", err)
	}
	return &c, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
