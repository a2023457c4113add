package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oiblz/tally/internal/sentinel"
	"github.com/oiblz/tally/pkg/domain"
)

// PostgresStore persists ledger entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SubmitExpense(ctx context.Context, e *Expense) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("expense is required")
	}
	query := `
		INSERT INTO expenses (creator, payer, split, label, detail, date, paid, owed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var detail any
	if e.Detail != "" {
		detail = e.Detail
	}
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		e.Creator.String(),
		e.Payer.String(),
		e.Split.String(),
		e.Label.String(),
		detail,
		e.Date,
		e.Paid,
		e.Owed,
		e.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) SubmitTransfer(ctx context.Context, t *Transfer) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("transfer is required")
	}
	query := `
		INSERT INTO transfers (sender, receiver, date, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		t.Sender.String(),
		t.Receiver.String(),
		t.Date,
		t.Amount,
		t.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transfer: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ResolveExpense(ctx context.Context, id int64, caller domain.Identity, confirm bool, now time.Time) error {
	resolvable := `
		SELECT EXISTS (
			SELECT 1 FROM expenses
			WHERE id = $1
				AND creator <> $2
				AND confirmed_at IS NULL
				AND refused_at IS NULL
		)
	`
	update := fmt.Sprintf(`
		UPDATE expenses
		SET %s = $3
		WHERE id = $1
			AND creator <> $2
			AND confirmed_at IS NULL
			AND refused_at IS NULL
	`, resolutionColumn(confirm))
	return s.resolve(ctx, resolvable, update, id, caller, now)
}

func (s *PostgresStore) ResolveTransfer(ctx context.Context, id int64, caller domain.Identity, confirm bool, now time.Time) error {
	resolvable := `
		SELECT EXISTS (
			SELECT 1 FROM transfers
			WHERE id = $1
				AND receiver = $2
				AND confirmed_at IS NULL
				AND refused_at IS NULL
		)
	`
	update := fmt.Sprintf(`
		UPDATE transfers
		SET %s = $3
		WHERE id = $1
			AND receiver = $2
			AND confirmed_at IS NULL
			AND refused_at IS NULL
	`, resolutionColumn(confirm))
	return s.resolve(ctx, resolvable, update, id, caller, now)
}

// resolve runs the two-step protocol: the resolvable read is an
// optimization; correctness lives entirely in the conditional update,
// whose zero-rows-affected result catches any racing resolution between
// the check and the write.
func (s *PostgresStore) resolve(ctx context.Context, resolvableQuery, updateQuery string, id int64, caller domain.Identity, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolve tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	var resolvable bool
	if err := tx.QueryRowContext(ctx, resolvableQuery, id, caller.String()).Scan(&resolvable); err != nil {
		return fmt.Errorf("check resolvable: %w", err)
	}
	if !resolvable {
		return sentinel.ErrPrecondition
	}

	res, err := tx.ExecContext(ctx, updateQuery, id, caller.String(), now)
	if err != nil {
		return fmt.Errorf("resolve entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve entry rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrPrecondition
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve: %w", err)
	}
	return nil
}

func resolutionColumn(confirm bool) string {
	if confirm {
		return "confirmed_at"
	}
	return "refused_at"
}

func (s *PostgresStore) AllExpenses(ctx context.Context) ([]Expense, error) {
	query := `
		SELECT id, creator, payer, split, label, detail, date, paid, owed, created_at, confirmed_at, refused_at
		FROM expenses
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var expenses []Expense
	for rows.Next() {
		var e Expense
		var creator, payer, split, label string
		var detail sql.NullString
		var confirmedAt, refusedAt sql.NullTime
		if err := rows.Scan(&e.ID, &creator, &payer, &split, &label, &detail, &e.Date, &e.Paid, &e.Owed, &e.CreatedAt, &confirmedAt, &refusedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Creator, err = domain.ParseIdentity(creator); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Payer, err = domain.ParseIdentity(payer); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Split, err = domain.ParseSplit(split); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Label, err = domain.ParseLabel(label); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Detail = detail.String
		e.ConfirmedAt = nullTimePtr(confirmedAt)
		e.RefusedAt = nullTimePtr(refusedAt)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (s *PostgresStore) AllTransfers(ctx context.Context) ([]Transfer, error) {
	query := `
		SELECT id, sender, receiver, date, amount, created_at, confirmed_at, refused_at
		FROM transfers
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var transfers []Transfer
	for rows.Next() {
		var t Transfer
		var sender, receiver string
		var confirmedAt, refusedAt sql.NullTime
		if err := rows.Scan(&t.ID, &sender, &receiver, &t.Date, &t.Amount, &t.CreatedAt, &confirmedAt, &refusedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if t.Sender, err = domain.ParseIdentity(sender); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if t.Receiver, err = domain.ParseIdentity(receiver); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.ConfirmedAt = nullTimePtr(confirmedAt)
		t.RefusedAt = nullTimePtr(refusedAt)
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return transfers, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
