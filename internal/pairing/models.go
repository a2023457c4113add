// Package pairing turns an unauthenticated request into a durable
// authenticated identity. A caller proposes which of the two identities it
// claims to be; the counter-party, already holding a session, confirms or
// refuses; the caller then converts the confirmed proposal into a session
// token. Proposals are append-only rows, superseded implicitly by recency.
package pairing

import (
	"time"

	"github.com/oiblz/tally/pkg/domain"
)

// State classifies a proposal at read time. Stale is derived from the
// existence of a strictly newer proposal for the same identity, never
// stored.
type State string

const (
	StateConfirmable State = "confirmable"
	StateConvertible State = "convertible"
	StateConverted   State = "converted"
	StateRefused     State = "refused"
	StateStale       State = "stale"
)

// Proposal is one pairing attempt. confirmed/refused are mutually
// exclusive and set at most once; converted requires confirmed.
type Proposal struct {
	ID          int64
	Claimed     domain.Identity
	Device      string
	CreatedAt   time.Time
	ConfirmedAt *time.Time
	RefusedAt   *time.Time
	ConvertedAt *time.Time
}

// Classify derives the state from a proposal's fields plus the staleness
// flag computed against the newest row for the same identity. Refusal
// outranks staleness so a refused proposal never reads as merely stale.
func Classify(p *Proposal, stale bool) State {
	switch {
	case p.RefusedAt != nil:
		return StateRefused
	case stale:
		return StateStale
	case p.ConfirmedAt == nil:
		return StateConfirmable
	case p.ConvertedAt == nil:
		return StateConvertible
	default:
		return StateConverted
	}
}

// Confirmable is what the counter-party sees when polling for proposals
// awaiting its approval.
type Confirmable struct {
	ID     int64  `json:"id"`
	Device string `json:"device"`
}
