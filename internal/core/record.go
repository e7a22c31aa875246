package core

import "time"

// SettlementLine is one member's slice of a settled transaction, with the
// balance it was applied to and the balance it produced.
type SettlementLine struct {
	MemberName    string
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
}

// SettlementRecord is the archive view of one settled transaction.
type SettlementRecord struct {
	TransactionID   string
	RegisterName    string
	TransactionName string
	SettleDate      time.Time
	Lines           []SettlementLine
}
