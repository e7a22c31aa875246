package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rejestr/internal/core"
)

// ProposeTransaction creates a group transaction with one individuals row per
// debt of the register. amounts maps member id to grosze and must cover the
// register's member set exactly; any missing or extra member fails the whole
// proposal with core.ErrIncompleteAmounts. The register must be usable.
func (r *SQLiteRepository) ProposeTransaction(ctx context.Context, registerID, name string, amounts map[string]int64) (core.GroupTransaction, error) {
	gt := core.GroupTransaction{
		ID:         uuid.New().String(),
		RegisterID: registerID,
		Name:       name,
		InitDate:   r.now(),
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var allAccepted bool
		err := tx.QueryRowContext(ctx,
			"SELECT all_accepted FROM registers WHERE id = ?", registerID,
		).Scan(&allAccepted)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrRegisterNotFound
		}
		if err != nil {
			return fmt.Errorf("check register: %w", err)
		}
		if !allAccepted {
			return core.ErrRegisterNotUsable
		}

		rows, err := tx.QueryContext(ctx,
			"SELECT id, member_id FROM debts WHERE register_id = ?", registerID)
		if err != nil {
			return fmt.Errorf("list debts: %w", err)
		}
		debtByMember := make(map[string]string)
		for rows.Next() {
			var debtID, memberID string
			if err := rows.Scan(&debtID, &memberID); err != nil {
				rows.Close()
				return fmt.Errorf("scan debt: %w", err)
			}
			debtByMember[memberID] = debtID
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate debts: %w", err)
		}

		if len(amounts) != len(debtByMember) {
			return core.ErrIncompleteAmounts
		}
		for memberID := range amounts {
			if _, ok := debtByMember[memberID]; !ok {
				return core.ErrIncompleteAmounts
			}
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO group_transactions (id, register_id, name, init_date) VALUES (?, ?, ?, ?)",
			gt.ID, gt.RegisterID, gt.Name, gt.InitDate.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert group transaction: %w", err)
		}

		for memberID, amount := range amounts {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO individuals_transactions (id, debt_id, group_transaction_id, amount) VALUES (?, ?, ?, ?)",
				uuid.New().String(), debtByMember[memberID], gt.ID, amount,
			)
			if err != nil {
				return fmt.Errorf("insert individuals transaction for member %s: %w", memberID, err)
			}
		}
		return nil
	})
	if err != nil {
		return core.GroupTransaction{}, err
	}
	return gt, nil
}

// GetTransaction looks a group transaction up by id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.GroupTransaction, error) {
	var gt core.GroupTransaction
	var initDate int64
	var settleDate sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, register_id, name, init_date, is_settled, settle_date, archived
		FROM group_transactions WHERE id = ?`, id,
	).Scan(&gt.ID, &gt.RegisterID, &gt.Name, &initDate, &gt.IsSettled, &settleDate, &gt.Archived)
	if errors.Is(err, sql.ErrNoRows) {
		return core.GroupTransaction{}, core.ErrTransactionNotFound
	}
	if err != nil {
		return core.GroupTransaction{}, fmt.Errorf("get transaction: %w", err)
	}
	gt.InitDate = time.Unix(initDate, 0)
	if settleDate.Valid {
		t := time.Unix(settleDate.Int64, 0)
		gt.SettleDate = &t
	}
	return gt, nil
}

// ListTransactions returns all transactions of a register, pending before
// settled and oldest first within each group.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, registerID string) ([]core.GroupTransaction, error) {
	if _, err := r.GetRegister(ctx, registerID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, register_id, name, init_date, is_settled, settle_date, archived
		FROM group_transactions
		WHERE register_id = ?
		ORDER BY is_settled, init_date`, registerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListVotes returns the per-member rows of a transaction ordered by member
// name, each carrying the live balance of its debt.
func (r *SQLiteRepository) ListVotes(ctx context.Context, transactionID string) ([]core.IndividualsTransaction, error) {
	if _, err := r.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, voteRowsQuery+" ORDER BY m.name", transactionID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()
	return scanVoteRows(rows)
}

const voteRowsQuery = `
	SELECT it.id, it.debt_id, it.group_transaction_id, d.member_id, m.name,
	       it.amount, it.supports, it.wants_remove, it.balance_before, d.balance
	FROM individuals_transactions it
	JOIN debts d ON d.id = it.debt_id
	JOIN members m ON m.id = d.member_id
	WHERE it.group_transaction_id = ?`

// CastVote records the member's vote flags and evaluates the aggregate inside
// the same transaction. On unanimous removal the group transaction is deleted;
// on unanimous support each debt balance is bumped by its amount, with the
// pre-settlement balance snapshotted into balance_before first. Votes on a
// settled transaction fail with core.ErrAlreadySettled.
func (r *SQLiteRepository) CastVote(ctx context.Context, transactionID, memberID string, supports, wantsRemove bool) (core.VoteOutcome, error) {
	outcome := core.OutcomePending
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var isSettled bool
		err := tx.QueryRowContext(ctx,
			"SELECT is_settled FROM group_transactions WHERE id = ?", transactionID,
		).Scan(&isSettled)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("check transaction: %w", err)
		}
		if isSettled {
			return core.ErrAlreadySettled
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE individuals_transactions SET supports = ?, wants_remove = ?
			WHERE group_transaction_id = ?
			  AND debt_id IN (SELECT id FROM debts WHERE member_id = ?)`,
			supports, wantsRemove, transactionID, memberID)
		if err != nil {
			return fmt.Errorf("record vote: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("record vote: %w", err)
		}
		if n == 0 {
			return core.ErrNotAParticipant
		}

		rows, err := tx.QueryContext(ctx, voteRowsQuery, transactionID)
		if err != nil {
			return fmt.Errorf("list votes: %w", err)
		}
		votes, err := scanVoteRows(rows)
		rows.Close()
		if err != nil {
			return err
		}

		outcome = core.EvaluateVotes(votes)
		switch outcome {
		case core.OutcomeRemoved:
			// Individuals rows go via ON DELETE CASCADE.
			if _, err := tx.ExecContext(ctx, "DELETE FROM group_transactions WHERE id = ?", transactionID); err != nil {
				return fmt.Errorf("remove transaction: %w", err)
			}
		case core.OutcomeSettled:
			return settle(ctx, tx, transactionID, votes, r.now())
		}
		return nil
	})
	if err != nil {
		return core.OutcomePending, err
	}
	return outcome, nil
}

// settle applies every vote row's amount to its debt, snapshotting the balance
// it was applied on top of, then marks the transaction settled.
func settle(ctx context.Context, tx *sql.Tx, transactionID string, votes []core.IndividualsTransaction, now time.Time) error {
	for _, v := range votes {
		_, err := tx.ExecContext(ctx,
			"UPDATE individuals_transactions SET balance_before = ? WHERE id = ?",
			v.DebtBalance, v.ID)
		if err != nil {
			return fmt.Errorf("snapshot balance for debt %s: %w", v.DebtID, err)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE debts SET balance = balance + ? WHERE id = ?",
			v.Amount, v.DebtID)
		if err != nil {
			return fmt.Errorf("apply amount to debt %s: %w", v.DebtID, err)
		}
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE group_transactions SET is_settled = 1, settle_date = ? WHERE id = ?",
		now.Unix(), transactionID)
	if err != nil {
		return fmt.Errorf("mark settled: %w", err)
	}
	return nil
}

// SettlementRecord builds the archive view of a settled transaction: one line
// per member with the amount and the balances around it.
func (r *SQLiteRepository) SettlementRecord(ctx context.Context, transactionID string) (core.SettlementRecord, error) {
	gt, err := r.GetTransaction(ctx, transactionID)
	if err != nil {
		return core.SettlementRecord{}, err
	}
	if !gt.IsSettled || gt.SettleDate == nil {
		return core.SettlementRecord{}, core.ErrTransactionNotFound
	}
	reg, err := r.GetRegister(ctx, gt.RegisterID)
	if err != nil {
		return core.SettlementRecord{}, err
	}
	votes, err := r.ListVotes(ctx, transactionID)
	if err != nil {
		return core.SettlementRecord{}, err
	}

	rec := core.SettlementRecord{
		TransactionID:   gt.ID,
		RegisterName:    reg.Name,
		TransactionName: gt.Name,
		SettleDate:      *gt.SettleDate,
	}
	for _, v := range votes {
		before := v.DebtBalance - v.Amount
		if v.BalanceBefore != nil {
			before = *v.BalanceBefore
		}
		rec.Lines = append(rec.Lines, core.SettlementLine{
			MemberName:    v.MemberName,
			Amount:        v.Amount,
			BalanceBefore: before,
			BalanceAfter:  before + v.Amount,
		})
	}
	return rec, nil
}

// ListUnarchivedSettled returns settled transactions that have not been
// archived yet, oldest settlement first.
func (r *SQLiteRepository) ListUnarchivedSettled(ctx context.Context, limit int) ([]core.GroupTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, register_id, name, init_date, is_settled, settle_date, archived
		FROM group_transactions
		WHERE is_settled = 1 AND archived = 0
		ORDER BY settle_date
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unarchived settled: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// MarkArchived flags a settled transaction as archived.
func (r *SQLiteRepository) MarkArchived(ctx context.Context, transactionID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE group_transactions SET archived = 1 WHERE id = ?", transactionID)
	if err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func scanTransactions(rows *sql.Rows) ([]core.GroupTransaction, error) {
	var txs []core.GroupTransaction
	for rows.Next() {
		var gt core.GroupTransaction
		var initDate int64
		var settleDate sql.NullInt64
		if err := rows.Scan(&gt.ID, &gt.RegisterID, &gt.Name, &initDate, &gt.IsSettled, &settleDate, &gt.Archived); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		gt.InitDate = time.Unix(initDate, 0)
		if settleDate.Valid {
			t := time.Unix(settleDate.Int64, 0)
			gt.SettleDate = &t
		}
		txs = append(txs, gt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func scanVoteRows(rows *sql.Rows) ([]core.IndividualsTransaction, error) {
	var votes []core.IndividualsTransaction
	for rows.Next() {
		var v core.IndividualsTransaction
		var balanceBefore sql.NullInt64
		if err := rows.Scan(&v.ID, &v.DebtID, &v.GroupTransactionID, &v.MemberID, &v.MemberName,
			&v.Amount, &v.Supports, &v.WantsRemove, &balanceBefore, &v.DebtBalance); err != nil {
			return nil, fmt.Errorf("scan vote row: %w", err)
		}
		if balanceBefore.Valid {
			b := balanceBefore.Int64
			v.BalanceBefore = &b
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote rows: %w", err)
	}
	return votes, nil
}
