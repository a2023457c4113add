// Package ledger holds the approval ledger: expenses and transfers, each
// created by one identity and resolved (confirmed or refused) only by the
// other. Resolution reuses the pairing registry's discipline: a
// conditional update whose zero-rows-affected outcome is the losing
// racer's failure signal.
package ledger

import (
	"time"

	"github.com/oiblz/tally/pkg/domain"
)

// Expense is money paid by one party, part of which the other owes back
// according to the split policy. Amounts are integer minor currency units.
type Expense struct {
	ID          int64
	Creator     domain.Identity
	Payer       domain.Identity
	Split       domain.Split
	Label       domain.Label
	Detail      string
	Date        time.Time
	Paid        int64
	Owed        int64
	CreatedAt   time.Time
	ConfirmedAt *time.Time
	RefusedAt   *time.Time
}

// Transfer is money moved directly from sender to the counter-party.
type Transfer struct {
	ID          int64
	Sender      domain.Identity
	Receiver    domain.Identity
	Date        time.Time
	Amount      int64
	CreatedAt   time.Time
	ConfirmedAt *time.Time
	RefusedAt   *time.Time
}

// Pending reports whether the entry still awaits resolution.
func (e *Expense) Pending() bool  { return e.ConfirmedAt == nil && e.RefusedAt == nil }
func (t *Transfer) Pending() bool { return t.ConfirmedAt == nil && t.RefusedAt == nil }
