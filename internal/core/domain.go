package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Member is an external identity. The ledger only ever references members
	// by their opaque id; the name is carried for display.
	Member struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}

	// Register is a named group of members sharing one ledger of balances.
	// AllAccepted flips to true exactly once, when the last invited member
	// accepts, and the register only admits transactions from then on.
	Register struct {
		ID          string
		Name        string
		AllAccepted bool
	}

	// Debt is one member's running balance within one register. There is
	// exactly one Debt per (member, register) pair.
	Debt struct {
		ID         string
		RegisterID string
		MemberID   string
		MemberName string
		Balance    int64 // grosze
		Accepted   bool
	}

	// GroupTransaction is a proposed change to the balances of every Debt in
	// a register, pending unanimous approval. Immutable once created except
	// for the settlement fields; deleted when unanimously rejected.
	GroupTransaction struct {
		ID         string
		RegisterID string
		Name       string
		InitDate   time.Time
		IsSettled  bool
		SettleDate *time.Time
		Archived   bool
	}

	// RegisterStanding is one member's view of a register: the register
	// itself, whether this member accepted, and how far acceptance has
	// progressed overall.
	RegisterStanding struct {
		Register      Register
		Accepted      bool
		AcceptedCount int
		MemberCount   int
	}

	// IndividualsTransaction is one member's monetary delta and vote within a
	// GroupTransaction. Amount is fixed at creation; Supports and WantsRemove
	// are the only fields that change before settlement. BalanceBefore is set
	// exactly once, at settlement, to the Debt balance the amount was applied
	// on top of.
	IndividualsTransaction struct {
		ID                 string
		DebtID             string
		GroupTransactionID string
		MemberID           string
		MemberName         string
		Amount             int64 // grosze
		Supports           bool
		WantsRemove        bool
		BalanceBefore      *int64
		DebtBalance        int64 // current balance of the referenced Debt
	}
)

// VoteOutcome is the aggregate decision over all votes of one transaction.
type VoteOutcome int

const (
	OutcomePending VoteOutcome = iota
	OutcomeSettled
	OutcomeRemoved
)

func (o VoteOutcome) String() string {
	switch o {
	case OutcomeSettled:
		return "settled"
	case OutcomeRemoved:
		return "removed"
	default:
		return "pending"
	}
}

// EvaluateVotes aggregates the vote flags of every participant row into an
// outcome. Unanimous wants_remove wins over unanimous supports, so a
// transaction where everyone ticked both boxes is removed and no balance
// moves.
func EvaluateVotes(rows []IndividualsTransaction) VoteOutcome {
	if len(rows) == 0 {
		return OutcomePending
	}
	allSupport := true
	allRemove := true
	for _, r := range rows {
		if !r.Supports {
			allSupport = false
		}
		if !r.WantsRemove {
			allRemove = false
		}
	}
	switch {
	case allRemove:
		return OutcomeRemoved
	case allSupport:
		return OutcomeSettled
	default:
		return OutcomePending
	}
}

// ValidateName checks a register or transaction display name.
func ValidateName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return ErrEmptyName
	}
	if len(name) > 128 {
		return errors.New("name too long (max 128 characters)")
	}
	return nil
}
