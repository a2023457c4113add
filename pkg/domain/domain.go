// Package domain holds the value types shared by every layer: the two
// ledger participants, the expense split policies, and the expense labels.
// Each enum has an explicit encode/decode boundary to its stored string
// form; unknown codes are a hard failure, never a silent default.
package domain

import "fmt"

// Identity is one of the two fixed ledger participants.
type Identity string

const (
	IdentityA Identity = "a"
	IdentityB Identity = "b"
)

// ParseIdentity decodes a stored or wire identity code.
func ParseIdentity(s string) (Identity, error) {
	switch Identity(s) {
	case IdentityA, IdentityB:
		return Identity(s), nil
	}
	return "", fmt.Errorf("unknown identity %q", s)
}

// Other returns the counter-party. Total over both values; any other
// receiver is a programming error.
func (i Identity) Other() Identity {
	switch i {
	case IdentityA:
		return IdentityB
	case IdentityB:
		return IdentityA
	}
	panic(fmt.Sprintf("domain: invalid identity %q", string(i)))
}

// Valid reports whether i is one of the two participants.
func (i Identity) Valid() bool {
	return i == IdentityA || i == IdentityB
}

func (i Identity) String() string { return string(i) }

// Split is the policy dividing a paid expense amount into the payer's own
// share and the amount owed by the counter-party.
type Split string

const (
	// SplitProportional divides by the fixed household ratio: payer A is
	// owed a third of the paid amount, payer B two thirds.
	SplitProportional Split = "proportional"
	// SplitEvenly divides the paid amount in half.
	SplitEvenly Split = "evenly"
	// SplitArbitrary takes a caller-supplied owed amount, bounded by the
	// paid amount.
	SplitArbitrary Split = "arbitrary"
)

// ParseSplit decodes a stored or wire split code.
func ParseSplit(s string) (Split, error) {
	switch Split(s) {
	case SplitProportional, SplitEvenly, SplitArbitrary:
		return Split(s), nil
	}
	return "", fmt.Errorf("unknown split %q", s)
}

func (s Split) String() string { return string(s) }

// Label categorizes an expense.
type Label string

const (
	LabelGroceries Label = "groceries"
	LabelHousehold Label = "household"
	LabelLeisure   Label = "leisure"
	LabelTravel    Label = "travel"
	LabelOther     Label = "other"
)

// ParseLabel decodes a stored or wire label code.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case LabelGroceries, LabelHousehold, LabelLeisure, LabelTravel, LabelOther:
		return Label(s), nil
	}
	return "", fmt.Errorf("unknown label %q", s)
}

func (l Label) String() string { return string(l) }
