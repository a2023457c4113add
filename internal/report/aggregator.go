// Package report builds the read models over the ledger: the balance
// summary, the month-grouped listing, and the split recommendation. It
// never writes; everything is computed from full scans of the two entry
// tables, which stay small for a two-party ledger.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/oiblz/tally/internal/ledger"
	"github.com/oiblz/tally/internal/platform/tracer"
	"github.com/oiblz/tally/pkg/domain"
	dErrors "github.com/oiblz/tally/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// Reader is the slice of the ledger store the aggregator needs.
type Reader interface {
	AllExpenses(ctx context.Context) ([]ledger.Expense, error)
	AllTransfers(ctx context.Context) ([]ledger.Transfer, error)
}

// Aggregator computes the read models for one caller at a time.
type Aggregator struct {
	reader Reader
	tracer tracer.Tracer
}

// New constructs the aggregator.
func New(reader Reader, tr tracer.Tracer) (*Aggregator, error) {
	if reader == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "report: reader is required")
	}
	if tr == nil {
		tr = tracer.Noop{}
	}
	return &Aggregator{reader: reader, tracer: tr}, nil
}

// Summary is the caller's balance position. Definite covers confirmed
// entries, Maybe the still-pending ones; refused entries count nowhere.
type Summary struct {
	Me           domain.Identity `json:"me"`
	Definite     int64           `json:"definite"`
	Maybe        int64           `json:"maybe"`
	PendingYou   int64           `json:"pending_you"`
	PendingOther int64           `json:"pending_other"`
}

// Summary computes the caller's net balance and pending-action counts.
// An expense contributes paid-owed to its payer and -owed to the
// counter-party; a transfer contributes its full amount to the sender.
func (a *Aggregator) Summary(ctx context.Context, me domain.Identity) (*Summary, error) {
	ctx, span := a.tracer.Start(ctx, "report.summary")
	var err error
	defer func() { span.End(err) }()

	expenses, transfers, err := a.readAll(ctx)
	if err != nil {
		return nil, err
	}

	out := &Summary{Me: me}

	for i := range expenses {
		e := &expenses[i]
		if e.RefusedAt != nil {
			continue
		}
		if e.Pending() {
			if e.Creator == me {
				out.PendingOther++
			} else {
				out.PendingYou++
			}
		}

		contrib := -e.Owed
		if e.Payer == me {
			contrib = e.Paid - e.Owed
		}
		if e.ConfirmedAt != nil {
			out.Definite += contrib
		} else {
			out.Maybe += contrib
		}
	}

	for i := range transfers {
		t := &transfers[i]
		if t.RefusedAt != nil {
			continue
		}
		if t.Pending() {
			if t.Sender == me {
				out.PendingOther++
			} else {
				out.PendingYou++
			}
		}

		contrib := t.Amount
		if t.Sender != me {
			contrib = -contrib
		}
		if t.ConfirmedAt != nil {
			out.Definite += contrib
		} else {
			out.Maybe += contrib
		}
	}

	return out, nil
}

// ExpenseItem is an expense as the listing presents it to the caller.
// Spent is the caller's own share: paid-owed when the caller paid, owed
// otherwise.
type ExpenseItem struct {
	ID        int64           `json:"id"`
	Yours     bool            `json:"yours"`
	Payer     domain.Identity `json:"payer"`
	Split     domain.Split    `json:"split"`
	Label     domain.Label    `json:"label"`
	Detail    string          `json:"detail,omitempty"`
	Date      string          `json:"date"`
	Paid      int64           `json:"paid"`
	Spent     int64           `json:"spent"`
	Confirmed bool            `json:"confirmed"`
	Refused   bool            `json:"refused"`
}

// TransferItem is a transfer as the listing presents it to the caller.
type TransferItem struct {
	ID        int64  `json:"id"`
	Yours     bool   `json:"yours"`
	Date      string `json:"date"`
	Amount    int64  `json:"amount"`
	Confirmed bool   `json:"confirmed"`
	Refused   bool   `json:"refused"`
}

// Item tags an entry with its kind so the two shapes share one list.
type Item struct {
	T string `json:"t"`
	C any    `json:"c"`
}

// Month is one bucket of the listing. N is year*12+month-1, a single
// sortable integer the client turns back into a calendar month. The
// spend sums only cover confirmed entries.
type Month struct {
	N       int    `json:"n"`
	SpentMe int64  `json:"spent_me"`
	SpentWe int64  `json:"spent_we"`
	Items   []Item `json:"items"`
}

// Listing is the month-grouped history with unresolved entries pulled
// out into their own bucket.
type Listing struct {
	Pendings []Item  `json:"pendings"`
	Months   []Month `json:"months"`
}

type listEntry struct {
	date      time.Time
	createdAt time.Time
	spent     int64
	paid      int64
	pending   bool
	confirmed bool
	item      Item
}

// List merges expenses and transfers into the month-grouped history.
// A non-nil label filter keeps only matching expenses and drops
// transfers entirely, since transfers carry no label.
func (a *Aggregator) List(ctx context.Context, me domain.Identity, labels []domain.Label) (*Listing, error) {
	ctx, span := a.tracer.Start(ctx, "report.list")
	var err error
	defer func() { span.End(err) }()

	expenses, transfers, err := a.readAll(ctx)
	if err != nil {
		return nil, err
	}

	if labels != nil {
		transfers = nil
		keep := make(map[domain.Label]bool, len(labels))
		for _, l := range labels {
			keep[l] = true
		}
		filtered := expenses[:0]
		for _, e := range expenses {
			if keep[e.Label] {
				filtered = append(filtered, e)
			}
		}
		expenses = filtered
	}

	entries := make([]listEntry, 0, len(expenses)+len(transfers))
	for i := range expenses {
		e := &expenses[i]
		spent := e.Owed
		if e.Payer == me {
			spent = e.Paid - e.Owed
		}
		entries = append(entries, listEntry{
			date:      e.Date,
			createdAt: e.CreatedAt,
			spent:     spent,
			paid:      e.Paid,
			pending:   e.Pending(),
			confirmed: e.ConfirmedAt != nil,
			item: Item{T: "Expense", C: &ExpenseItem{
				ID:        e.ID,
				Yours:     e.Creator == me,
				Payer:     e.Payer,
				Split:     e.Split,
				Label:     e.Label,
				Detail:    e.Detail,
				Date:      e.Date.Format(dateLayout),
				Paid:      e.Paid,
				Spent:     spent,
				Confirmed: e.ConfirmedAt != nil,
				Refused:   e.RefusedAt != nil,
			}},
		})
	}
	for i := range transfers {
		t := &transfers[i]
		entries = append(entries, listEntry{
			date:      t.Date,
			createdAt: t.CreatedAt,
			pending:   t.Pending(),
			confirmed: t.ConfirmedAt != nil,
			item: Item{T: "Transfer", C: &TransferItem{
				ID:        t.ID,
				Yours:     t.Sender == me,
				Date:      t.Date.Format(dateLayout),
				Amount:    t.Amount,
				Confirmed: t.ConfirmedAt != nil,
				Refused:   t.RefusedAt != nil,
			}},
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].date.Equal(entries[j].date) {
			return entries[i].date.After(entries[j].date)
		}
		return entries[i].createdAt.After(entries[j].createdAt)
	})

	out := &Listing{Pendings: []Item{}, Months: []Month{}}
	for i := 0; i < len(entries); {
		n := monthKey(entries[i].date)
		month := Month{N: n, Items: []Item{}}

		for ; i < len(entries) && monthKey(entries[i].date) == n; i++ {
			e := &entries[i]
			if e.pending {
				out.Pendings = append(out.Pendings, e.item)
				continue
			}
			month.Items = append(month.Items, e.item)
			if e.confirmed {
				month.SpentMe += e.spent
				month.SpentWe += e.paid
			}
		}

		out.Months = append(out.Months, month)
	}

	return out, nil
}

func monthKey(date time.Time) int {
	return date.Year()*12 + int(date.Month()) - 1
}

// SplitRecommendation returns the split most often confirmed for the
// payer and label, or nil when no confirmed expense matches. Ties break
// toward the declaration order of the split constants.
func (a *Aggregator) SplitRecommendation(ctx context.Context, payer domain.Identity, label domain.Label) (*domain.Split, error) {
	ctx, span := a.tracer.Start(ctx, "report.splitrecc")
	var err error
	defer func() { span.End(err) }()

	expenses, err := a.reader.AllExpenses(ctx)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "read expenses")
		return nil, err
	}

	counts := make(map[domain.Split]int)
	for i := range expenses {
		e := &expenses[i]
		if e.ConfirmedAt != nil && e.Payer == payer && e.Label == label {
			counts[e.Split]++
		}
	}

	var best *domain.Split
	bestCount := 0
	for _, s := range []domain.Split{domain.SplitProportional, domain.SplitEvenly, domain.SplitArbitrary} {
		if c := counts[s]; c > bestCount {
			s := s
			best = &s
			bestCount = c
		}
	}
	return best, nil
}

func (a *Aggregator) readAll(ctx context.Context) ([]ledger.Expense, []ledger.Transfer, error) {
	expenses, err := a.reader.AllExpenses(ctx)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "read expenses")
	}
	transfers, err := a.reader.AllTransfers(ctx)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "read transfers")
	}
	return expenses, transfers, nil
}
