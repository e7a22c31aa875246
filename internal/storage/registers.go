package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rejestr/internal/core"
)

// CreateRegister creates a register with one zero-balance Debt per member.
// The proposer's debt is created already accepted; with no invited members the
// register is immediately usable. Fails with core.ErrUnknownMember when any
// referenced member does not exist. All rows are created in one transaction.
func (r *SQLiteRepository) CreateRegister(ctx context.Context, name, proposerID string, invitedIDs []string) (core.Register, error) {
	reg := core.Register{
		ID:          uuid.New().String(),
		Name:        name,
		AllAccepted: len(invitedIDs) == 0,
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		memberIDs := append([]string{proposerID}, invitedIDs...)
		for _, id := range memberIDs {
			var one int
			err := tx.QueryRowContext(ctx, "SELECT 1 FROM members WHERE id = ?", id).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return core.ErrUnknownMember
			}
			if err != nil {
				return fmt.Errorf("check member %s: %w", id, err)
			}
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO registers (id, name, all_accepted) VALUES (?, ?, ?)",
			reg.ID, reg.Name, reg.AllAccepted,
		)
		if err != nil {
			return fmt.Errorf("insert register: %w", err)
		}

		for _, id := range memberIDs {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO debts (id, register_id, member_id, balance, accepted) VALUES (?, ?, ?, 0, ?)",
				uuid.New().String(), reg.ID, id, id == proposerID,
			)
			if err != nil {
				return fmt.Errorf("insert debt for member %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Register{}, err
	}
	return reg, nil
}

// GetRegister looks a register up by id.
func (r *SQLiteRepository) GetRegister(ctx context.Context, id string) (core.Register, error) {
	var reg core.Register
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, all_accepted FROM registers WHERE id = ?", id,
	).Scan(&reg.ID, &reg.Name, &reg.AllAccepted)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Register{}, core.ErrRegisterNotFound
	}
	if err != nil {
		return core.Register{}, fmt.Errorf("get register: %w", err)
	}
	return reg, nil
}

// AcceptInvite marks the member's debt accepted and, when that was the last
// outstanding invite, flips the register to all_accepted. The recomputation
// happens inside the same transaction as the update, so exactly one caller
// ever observes activated == true.
func (r *SQLiteRepository) AcceptInvite(ctx context.Context, registerID, memberID string) (activated bool, err error) {
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		debtID, err := lockInviteDebt(ctx, tx, registerID, memberID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE debts SET accepted = 1 WHERE id = ?", debtID); err != nil {
			return fmt.Errorf("accept debt: %w", err)
		}

		var outstanding int
		err = tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM debts WHERE register_id = ? AND accepted = 0", registerID,
		).Scan(&outstanding)
		if err != nil {
			return fmt.Errorf("count outstanding invites: %w", err)
		}
		if outstanding == 0 {
			if _, err := tx.ExecContext(ctx, "UPDATE registers SET all_accepted = 1 WHERE id = ?", registerID); err != nil {
				return fmt.Errorf("activate register: %w", err)
			}
			activated = true
		}
		return nil
	})
	return activated, err
}

// RejectInvite deletes the register and every one of its debts, no matter how
// many members had already accepted. Irreversible; the group has to be
// recreated from scratch. Only members who have not accepted yet may reject.
func (r *SQLiteRepository) RejectInvite(ctx context.Context, registerID, memberID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockInviteDebt(ctx, tx, registerID, memberID); err != nil {
			return err
		}
		// Debts go via ON DELETE CASCADE. A register that somehow already has
		// transactions is protected by the group_transactions FK; hitting that
		// here means a state machine bug, not caller error.
		if _, err := tx.ExecContext(ctx, "DELETE FROM registers WHERE id = ?", registerID); err != nil {
			return fmt.Errorf("delete register: %w", err)
		}
		return nil
	})
}

// lockInviteDebt fetches the member's debt inside tx and applies the shared
// invite preconditions: the register must exist, the member must hold a debt
// in it, and that debt must not be accepted yet.
func lockInviteDebt(ctx context.Context, tx *sql.Tx, registerID, memberID string) (debtID string, err error) {
	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM registers WHERE id = ?", registerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrRegisterNotFound
	}
	if err != nil {
		return "", fmt.Errorf("check register: %w", err)
	}

	var accepted bool
	err = tx.QueryRowContext(ctx,
		"SELECT id, accepted FROM debts WHERE register_id = ? AND member_id = ?",
		registerID, memberID,
	).Scan(&debtID, &accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotInvited
	}
	if err != nil {
		return "", fmt.Errorf("get debt: %w", err)
	}
	if accepted {
		return "", core.ErrAlreadyAccepted
	}
	return debtID, nil
}

// ListDebts returns the debts of a register with member names, ordered by
// member name.
func (r *SQLiteRepository) ListDebts(ctx context.Context, registerID string) ([]core.Debt, error) {
	if _, err := r.GetRegister(ctx, registerID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.register_id, d.member_id, m.name, d.balance, d.accepted
		FROM debts d JOIN members m ON m.id = d.member_id
		WHERE d.register_id = ?
		ORDER BY m.name`, registerID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var debts []core.Debt
	for rows.Next() {
		var d core.Debt
		if err := rows.Scan(&d.ID, &d.RegisterID, &d.MemberID, &d.MemberName, &d.Balance, &d.Accepted); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		debts = append(debts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate debts: %w", err)
	}
	return debts, nil
}

// ListMemberRegisters returns every register the member belongs to, with the
// member's own acceptance state and the register's accepted/total counts,
// ordered by register name.
func (r *SQLiteRepository) ListMemberRegisters(ctx context.Context, memberID string) ([]core.RegisterStanding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.all_accepted, d.accepted,
		       (SELECT COUNT(*) FROM debts WHERE register_id = g.id AND accepted = 1),
		       (SELECT COUNT(*) FROM debts WHERE register_id = g.id)
		FROM registers g JOIN debts d ON d.register_id = g.id
		WHERE d.member_id = ?
		ORDER BY g.name`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list member registers: %w", err)
	}
	defer rows.Close()

	var standings []core.RegisterStanding
	for rows.Next() {
		var s core.RegisterStanding
		if err := rows.Scan(&s.Register.ID, &s.Register.Name, &s.Register.AllAccepted,
			&s.Accepted, &s.AcceptedCount, &s.MemberCount); err != nil {
			return nil, fmt.Errorf("scan register standing: %w", err)
		}
		standings = append(standings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate register standings: %w", err)
	}
	return standings, nil
}
