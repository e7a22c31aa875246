package services

import (
	"context"
	"fmt"
	"log/slog"

	"rejestr/internal/amqp"
	"rejestr/internal/core"
	"rejestr/internal/storage"
)

// TransactionService orchestrates transaction proposals and voting across
// SQLite and AMQP.
type TransactionService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewTransactionService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *TransactionService {
	return &TransactionService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// VoteView is one participant row of a transaction prepared for display. For a
// settled transaction the balances are the snapshot taken at settlement; for a
// pending one they are the live balance and what it would become.
type VoteView struct {
	MemberID      string
	MemberName    string
	Amount        int64
	AmountDisplay string
	Supports      bool
	WantsRemove   bool
	BalancePre    string
	BalancePost   string
}

// ProposeManual proposes a transaction from explicit per-member amounts. The
// amounts must sum to zero; money moves between members, never in or out.
func (s *TransactionService) ProposeManual(ctx context.Context, registerID, name string, amounts map[string]int64) (core.GroupTransaction, error) {
	if err := core.ValidateName(name); err != nil {
		return core.GroupTransaction{}, err
	}
	var sum int64
	for _, amount := range amounts {
		sum += amount
	}
	if sum != 0 {
		return core.GroupTransaction{}, core.ErrUnbalancedAmounts
	}

	gt, err := s.storage.ProposeTransaction(ctx, registerID, name, amounts)
	if err != nil {
		return core.GroupTransaction{}, err
	}
	slog.InfoContext(ctx, "Transaction proposed",
		"transaction_id", gt.ID, "register_id", registerID, "name", name, "mode", "manual")
	return gt, nil
}

// ProposeEasy proposes a transaction from a shared expense: contributions maps
// each member to the grosze they paid toward it, and the engine splits the
// expense into exact per-member deltas. Every member of the register must
// appear in contributions, zero or not.
func (s *TransactionService) ProposeEasy(ctx context.Context, registerID, name string, expense int64, contributions map[string]int64) (core.GroupTransaction, error) {
	if err := core.ValidateName(name); err != nil {
		return core.GroupTransaction{}, err
	}
	if expense < 0 {
		return core.GroupTransaction{}, core.ErrNegativeExpense
	}

	debts, err := s.storage.ListDebts(ctx, registerID)
	if err != nil {
		return core.GroupTransaction{}, err
	}
	if len(contributions) != len(debts) {
		return core.GroupTransaction{}, core.ErrIncompleteAmounts
	}
	split := make([]core.Contribution, 0, len(debts))
	for _, d := range debts {
		grosze, ok := contributions[d.MemberID]
		if !ok {
			return core.GroupTransaction{}, core.ErrIncompleteAmounts
		}
		split = append(split, core.Contribution{MemberID: d.MemberID, Grosze: grosze})
	}

	deltas, err := core.SplitExpense(expense, split)
	if err != nil {
		return core.GroupTransaction{}, err
	}
	amounts := make(map[string]int64, len(deltas))
	for _, d := range deltas {
		amounts[d.MemberID] = d.Grosze
	}

	gt, err := s.storage.ProposeTransaction(ctx, registerID, name, amounts)
	if err != nil {
		return core.GroupTransaction{}, err
	}
	slog.InfoContext(ctx, "Transaction proposed",
		"transaction_id", gt.ID, "register_id", registerID, "name", name,
		"mode", "easy", "expense", expense)
	return gt, nil
}

// CastVote records a vote and, when it completes the unanimity, publishes the
// settlement notification. A publish failure never fails the vote; the worker
// catches unarchived settlements up on its own.
func (s *TransactionService) CastVote(ctx context.Context, transactionID, memberID string, supports, wantsRemove bool) (core.VoteOutcome, error) {
	outcome, err := s.storage.CastVote(ctx, transactionID, memberID, supports, wantsRemove)
	if err != nil {
		return core.OutcomePending, err
	}

	if outcome == core.OutcomeSettled {
		gt, err := s.storage.GetTransaction(ctx, transactionID)
		if err != nil {
			return outcome, fmt.Errorf("load settled transaction: %w", err)
		}
		if err := s.publishSettled(ctx, gt); err != nil {
			slog.ErrorContext(ctx, "Failed to publish settlement message",
				"transaction_id", transactionID, "error", err)
		}
	}
	return outcome, nil
}

func (s *TransactionService) publishSettled(ctx context.Context, gt core.GroupTransaction) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping settlement message",
			"transaction_id", gt.ID)
		return nil
	}
	if gt.SettleDate == nil {
		return fmt.Errorf("transaction %s has no settle date", gt.ID)
	}
	return s.amqpClient.PublishTransactionSettled(ctx, gt.ID, gt.RegisterID, *gt.SettleDate)
}

// Transactions returns the register's transactions, pending first.
func (s *TransactionService) Transactions(ctx context.Context, registerID string) ([]core.GroupTransaction, error) {
	return s.storage.ListTransactions(ctx, registerID)
}

// VoteTable returns the participant rows of a transaction prepared for
// display, ordered by member name.
func (s *TransactionService) VoteTable(ctx context.Context, transactionID string) ([]VoteView, error) {
	votes, err := s.storage.ListVotes(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	views := make([]VoteView, 0, len(votes))
	for _, v := range votes {
		pre := v.DebtBalance
		if v.BalanceBefore != nil {
			pre = *v.BalanceBefore
		}
		views = append(views, VoteView{
			MemberID:      v.MemberID,
			MemberName:    v.MemberName,
			Amount:        v.Amount,
			AmountDisplay: core.Format(v.Amount),
			Supports:      v.Supports,
			WantsRemove:   v.WantsRemove,
			BalancePre:    core.Format(pre),
			BalancePost:   core.Format(pre + v.Amount),
		})
	}
	return views, nil
}
