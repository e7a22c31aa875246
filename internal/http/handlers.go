package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"rejestr/internal/core"
	"rejestr/internal/services"
)

// errStatus maps domain errors to HTTP status codes: missing entities are
// 404, permission and state machine violations are 403, bad input is 422.
func errStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrMemberNotFound),
		errors.Is(err, core.ErrRegisterNotFound),
		errors.Is(err, core.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotInvited),
		errors.Is(err, core.ErrAlreadyAccepted),
		errors.Is(err, core.ErrRegisterNotUsable),
		errors.Is(err, core.ErrNotAParticipant),
		errors.Is(err, core.ErrAlreadySettled):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrDuplicateMember),
		errors.Is(err, core.ErrUnknownMember),
		errors.Is(err, core.ErrUnbalancedAmounts),
		errors.Is(err, core.ErrIncompleteAmounts),
		errors.Is(err, core.ErrNegativeExpense),
		errors.Is(err, core.ErrContributionMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errStatus(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"url", r.URL.Path, "error", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

// parseAmounts converts decimal zloty strings keyed by member id to grosze.
func parseAmounts(in map[string]string) (map[string]int64, error) {
	out := make(map[string]int64, len(in))
	for memberID, s := range in {
		grosze, err := core.ParseDecimalToGrosze(s)
		if err != nil {
			return nil, err
		}
		out[memberID] = grosze
	}
	return out, nil
}

type memberResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func toMemberResponse(m core.Member) memberResponse {
	return memberResponse{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt.Format(time.RFC3339)}
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.registers.CreateMember(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberResponse(m))
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.registers.Members(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMemberRegisters(w http.ResponseWriter, r *http.Request) {
	standings, err := s.registers.Overview(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	type standingResponse struct {
		RegisterID    string `json:"register_id"`
		Name          string `json:"name"`
		Usable        bool   `json:"usable"`
		Accepted      bool   `json:"accepted"`
		AcceptedCount int    `json:"accepted_count"`
		MemberCount   int    `json:"member_count"`
	}
	out := make([]standingResponse, 0, len(standings))
	for _, st := range standings {
		out = append(out, standingResponse{
			RegisterID:    st.Register.ID,
			Name:          st.Register.Name,
			Usable:        st.Register.AllAccepted,
			Accepted:      st.Accepted,
			AcceptedCount: st.AcceptedCount,
			MemberCount:   st.MemberCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type registerResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Usable bool   `json:"usable"`
}

func (s *Server) handleCreateRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string   `json:"name"`
		ProposerID string   `json:"proposer_id"`
		InvitedIDs []string `json:"invited_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	reg, err := s.registers.CreateRegister(r.Context(), req.Name, req.ProposerID, req.InvitedIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{ID: reg.ID, Name: reg.Name, Usable: reg.AllAccepted})
}

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.registers.AcceptInvite(r.Context(), r.PathValue("id"), req.MemberID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRejectInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.registers.RejectInvite(r.Context(), r.PathValue("id"), req.MemberID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := s.registers.Debts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	type debtResponse struct {
		MemberID   string `json:"member_id"`
		MemberName string `json:"member_name"`
		Balance    string `json:"balance"`
		Accepted   bool   `json:"accepted"`
	}
	out := make([]debtResponse, 0, len(debts))
	for _, d := range debts {
		out = append(out, debtResponse{
			MemberID:   d.MemberID,
			MemberName: d.MemberName,
			Balance:    d.Display,
			Accepted:   d.Accepted,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type transactionResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	InitDate   string `json:"init_date"`
	Settled    bool   `json:"settled"`
	SettleDate string `json:"settle_date,omitempty"`
}

func toTransactionResponse(gt core.GroupTransaction) transactionResponse {
	resp := transactionResponse{
		ID:       gt.ID,
		Name:     gt.Name,
		InitDate: gt.InitDate.Format(time.RFC3339),
		Settled:  gt.IsSettled,
	}
	if gt.SettleDate != nil {
		resp.SettleDate = gt.SettleDate.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.Transactions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, gt := range txs {
		out = append(out, toTransactionResponse(gt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProposeManual(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string            `json:"name"`
		Amounts map[string]string `json:"amounts"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	amounts, err := parseAmounts(req.Amounts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gt, err := s.transactions.ProposeManual(r.Context(), r.PathValue("id"), req.Name, amounts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(gt))
}

func (s *Server) handleProposeEasy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string            `json:"name"`
		Expense       string            `json:"expense"`
		Contributions map[string]string `json:"contributions"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	expense, err := core.ParseDecimalToGrosze(req.Expense)
	if err != nil {
		writeError(w, r, err)
		return
	}
	contributions, err := parseAmounts(req.Contributions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gt, err := s.transactions.ProposeEasy(r.Context(), r.PathValue("id"), req.Name, expense, contributions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(gt))
}

type voteResponse struct {
	MemberID    string `json:"member_id"`
	MemberName  string `json:"member_name"`
	Amount      string `json:"amount"`
	Supports    bool   `json:"supports"`
	WantsRemove bool   `json:"wants_remove"`
	BalancePre  string `json:"balance_pre"`
	BalancePost string `json:"balance_post"`
}

func toVoteResponse(v services.VoteView) voteResponse {
	return voteResponse{
		MemberID:    v.MemberID,
		MemberName:  v.MemberName,
		Amount:      v.AmountDisplay,
		Supports:    v.Supports,
		WantsRemove: v.WantsRemove,
		BalancePre:  v.BalancePre,
		BalancePost: v.BalancePost,
	}
}

func (s *Server) handleVoteTable(w http.ResponseWriter, r *http.Request) {
	votes, err := s.transactions.VoteTable(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]voteResponse, 0, len(votes))
	for _, v := range votes {
		out = append(out, toVoteResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID    string `json:"member_id"`
		Supports    bool   `json:"supports"`
		WantsRemove bool   `json:"wants_remove"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := s.transactions.CastVote(r.Context(), r.PathValue("id"), req.MemberID, req.Supports, req.WantsRemove)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": outcome.String()})
}
