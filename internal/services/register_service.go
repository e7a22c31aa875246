package services

import (
	"context"
	"fmt"
	"log/slog"

	"rejestr/internal/core"
	"rejestr/internal/storage"
)

// RegisterService orchestrates the register lifecycle: creation with invites,
// the unanimous acceptance gate, and the balance overviews.
type RegisterService struct {
	storage *storage.SQLiteRepository
}

func NewRegisterService(storage *storage.SQLiteRepository) *RegisterService {
	return &RegisterService{storage: storage}
}

// DebtView is a debt with its balance formatted for display.
type DebtView struct {
	MemberID   string
	MemberName string
	Balance    int64
	Display    string
	Accepted   bool
}

// CreateMember registers a new member identity.
func (s *RegisterService) CreateMember(ctx context.Context, name string) (core.Member, error) {
	m, err := s.storage.CreateMember(ctx, name)
	if err != nil {
		return core.Member{}, err
	}
	slog.InfoContext(ctx, "Member created", "member_id", m.ID, "name", m.Name)
	return m, nil
}

// Members returns all known members ordered by name.
func (s *RegisterService) Members(ctx context.Context) ([]core.Member, error) {
	return s.storage.ListMembers(ctx)
}

// CreateRegister proposes a new register. The proposer must not appear in the
// invited list and the invited list must not repeat members.
func (s *RegisterService) CreateRegister(ctx context.Context, name, proposerID string, invitedIDs []string) (core.Register, error) {
	if err := core.ValidateName(name); err != nil {
		return core.Register{}, err
	}
	seen := map[string]bool{proposerID: true}
	for _, id := range invitedIDs {
		if seen[id] {
			return core.Register{}, core.ErrDuplicateMember
		}
		seen[id] = true
	}

	reg, err := s.storage.CreateRegister(ctx, name, proposerID, invitedIDs)
	if err != nil {
		return core.Register{}, fmt.Errorf("create register: %w", err)
	}
	slog.InfoContext(ctx, "Register proposed",
		"register_id", reg.ID, "name", reg.Name, "invited", len(invitedIDs))
	return reg, nil
}

// AcceptInvite accepts the member's invitation.
func (s *RegisterService) AcceptInvite(ctx context.Context, registerID, memberID string) error {
	activated, err := s.storage.AcceptInvite(ctx, registerID, memberID)
	if err != nil {
		return err
	}
	if activated {
		slog.InfoContext(ctx, "Register activated", "register_id", registerID)
	}
	return nil
}

// RejectInvite rejects the member's invitation, dissolving the register.
func (s *RegisterService) RejectInvite(ctx context.Context, registerID, memberID string) error {
	if err := s.storage.RejectInvite(ctx, registerID, memberID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Register dissolved by rejection",
		"register_id", registerID, "member_id", memberID)
	return nil
}

// IsUsable reports whether the register exists and admits transactions.
func (s *RegisterService) IsUsable(ctx context.Context, registerID string) (bool, error) {
	reg, err := s.storage.GetRegister(ctx, registerID)
	if err != nil {
		return false, err
	}
	return reg.AllAccepted, nil
}

// Debts returns the register's balances with display formatting, ordered by
// member name.
func (s *RegisterService) Debts(ctx context.Context, registerID string) ([]DebtView, error) {
	debts, err := s.storage.ListDebts(ctx, registerID)
	if err != nil {
		return nil, err
	}
	views := make([]DebtView, 0, len(debts))
	for _, d := range debts {
		views = append(views, DebtView{
			MemberID:   d.MemberID,
			MemberName: d.MemberName,
			Balance:    d.Balance,
			Display:    core.Format(d.Balance),
			Accepted:   d.Accepted,
		})
	}
	return views, nil
}

// Overview returns every register the member belongs to with acceptance
// progress.
func (s *RegisterService) Overview(ctx context.Context, memberID string) ([]core.RegisterStanding, error) {
	if _, err := s.storage.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.storage.ListMemberRegisters(ctx, memberID)
}
