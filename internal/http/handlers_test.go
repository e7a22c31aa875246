package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"rejestr/internal/services"
	"rejestr/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	srv := NewServer(":0",
		services.NewRegisterService(repo),
		services.NewTransactionService(repo, nil))
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any, wantStatus int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s status = %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func doJSONList(t *testing.T, ts *httptest.Server, path string) []map[string]any {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want 200", path, resp.StatusCode)
	}
	var out []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func createMember(t *testing.T, ts *httptest.Server, name string) string {
	t.Helper()
	resp := doJSON(t, ts, http.MethodPost, "/api/members", map[string]string{"name": name}, http.StatusCreated)
	return resp["id"].(string)
}

func TestFullSettlementFlow(t *testing.T) {
	ts := newTestServer(t)

	anna := createMember(t, ts, "Anna")
	bartek := createMember(t, ts, "Bartek")

	reg := doJSON(t, ts, http.MethodPost, "/api/registers", map[string]any{
		"name":        "Mieszkanie",
		"proposer_id": anna,
		"invited_ids": []string{bartek},
	}, http.StatusCreated)
	regID := reg["id"].(string)
	if reg["usable"].(bool) {
		t.Error("register usable before invite accepted")
	}

	// Proposing before activation is forbidden.
	doJSON(t, ts, http.MethodPost, "/api/registers/"+regID+"/transactions", map[string]any{
		"name":    "Czynsz",
		"amounts": map[string]string{anna: "25.00", bartek: "-25.00"},
	}, http.StatusForbidden)

	doJSON(t, ts, http.MethodPost, "/api/registers/"+regID+"/accept",
		map[string]string{"member_id": bartek}, http.StatusNoContent)

	tx := doJSON(t, ts, http.MethodPost, "/api/registers/"+regID+"/transactions", map[string]any{
		"name":    "Czynsz",
		"amounts": map[string]string{anna: "25.00", bartek: "-25.00"},
	}, http.StatusCreated)
	txID := tx["id"].(string)

	vote := doJSON(t, ts, http.MethodPost, "/api/transactions/"+txID+"/votes",
		map[string]any{"member_id": anna, "supports": true}, http.StatusOK)
	if vote["outcome"] != "pending" {
		t.Errorf("first vote outcome = %v, want pending", vote["outcome"])
	}
	vote = doJSON(t, ts, http.MethodPost, "/api/transactions/"+txID+"/votes",
		map[string]any{"member_id": bartek, "supports": true}, http.StatusOK)
	if vote["outcome"] != "settled" {
		t.Errorf("last vote outcome = %v, want settled", vote["outcome"])
	}

	debts := doJSONList(t, ts, "/api/registers/"+regID+"/debts")
	if len(debts) != 2 {
		t.Fatalf("len(debts) = %d, want 2", len(debts))
	}
	if debts[0]["member_name"] != "Anna" || debts[0]["balance"] != "25.00" {
		t.Errorf("debts[0] = %v, want Anna at 25.00", debts[0])
	}
	if debts[1]["balance"] != "-25.00" {
		t.Errorf("debts[1] = %v, want Bartek at -25.00", debts[1])
	}

	votes := doJSONList(t, ts, "/api/transactions/"+txID+"/votes")
	if votes[0]["balance_pre"] != "0.00" || votes[0]["balance_post"] != "25.00" {
		t.Errorf("votes[0] = %v, want snapshot 0.00 -> 25.00", votes[0])
	}

	txs := doJSONList(t, ts, "/api/registers/"+regID+"/transactions")
	if len(txs) != 1 || txs[0]["settled"] != true {
		t.Errorf("transactions = %v, want one settled", txs)
	}
}

func TestEasyProposalFlow(t *testing.T) {
	ts := newTestServer(t)

	anna := createMember(t, ts, "Anna")
	bartek := createMember(t, ts, "Bartek")

	reg := doJSON(t, ts, http.MethodPost, "/api/registers", map[string]any{
		"name":        "Zakupy",
		"proposer_id": anna,
		"invited_ids": []string{bartek},
	}, http.StatusCreated)
	regID := reg["id"].(string)
	doJSON(t, ts, http.MethodPost, "/api/registers/"+regID+"/accept",
		map[string]string{"member_id": bartek}, http.StatusNoContent)

	tx := doJSON(t, ts, http.MethodPost, "/api/registers/"+regID+"/transactions/easy", map[string]any{
		"name":          "Biedronka",
		"expense":       "30.00",
		"contributions": map[string]string{anna: "30.00", bartek: "0"},
	}, http.StatusCreated)

	votes := doJSONList(t, ts, "/api/transactions/"+tx["id"].(string)+"/votes")
	if votes[0]["member_name"] != "Anna" || votes[0]["amount"] != "-15.00" {
		t.Errorf("votes[0] = %v, want Anna at -15.00", votes[0])
	}
	if votes[1]["amount"] != "15.00" {
		t.Errorf("votes[1] = %v, want Bartek at 15.00", votes[1])
	}
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	anna := createMember(t, ts, "Anna")

	reg := doJSON(t, ts, http.MethodPost, "/api/registers", map[string]any{
		"name":        "Solo",
		"proposer_id": anna,
	}, http.StatusCreated)
	regID := reg["id"].(string)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{"missing register", http.MethodPost, "/api/registers/missing/accept",
			map[string]string{"member_id": anna}, http.StatusNotFound},
		{"missing member overview", http.MethodGet, "/api/members/missing/registers",
			nil, http.StatusNotFound},
		{"proposer invited", http.MethodPost, "/api/registers",
			map[string]any{"name": "Dup", "proposer_id": anna, "invited_ids": []string{anna}},
			http.StatusUnprocessableEntity},
		{"unbalanced amounts", http.MethodPost, "/api/registers/" + regID + "/transactions",
			map[string]any{"name": "Krzywe", "amounts": map[string]string{anna: "1.00"}},
			http.StatusUnprocessableEntity},
		{"malformed amount", http.MethodPost, "/api/registers/" + regID + "/transactions",
			map[string]any{"name": "Zle", "amounts": map[string]string{anna: "abc"}},
			http.StatusUnprocessableEntity},
		{"accept own register", http.MethodPost, "/api/registers/" + regID + "/accept",
			map[string]string{"member_id": anna}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doJSON(t, ts, tt.method, tt.path, tt.body, tt.wantStatus)
		})
	}
}

func TestInvalidJSONBody(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Post(ts.URL+"/api/members", "application/json",
		bytes.NewBufferString("not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
