package core

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyName            = errors.New("empty name")
	ErrDuplicateMember      = errors.New("duplicate member")
	ErrUnknownMember        = errors.New("unknown member")
	ErrNotInvited           = errors.New("not invited to this register")
	ErrAlreadyAccepted      = errors.New("invite already accepted")
	ErrRegisterNotUsable    = errors.New("register not yet accepted by all invited members")
	ErrUnbalancedAmounts    = errors.New("amounts do not sum to zero")
	ErrIncompleteAmounts    = errors.New("amounts do not match the register members exactly")
	ErrNegativeExpense      = errors.New("expense cannot be negative")
	ErrContributionMismatch = errors.New("contributions do not sum to the expense")
	ErrAlreadySettled       = errors.New("transaction already settled")
	ErrNotAParticipant      = errors.New("member does not take part in this transaction")

	ErrMemberNotFound      = errors.New("member not found")
	ErrRegisterNotFound    = errors.New("register not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)
