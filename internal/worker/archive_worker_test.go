package worker

import (
	"context"
	"path/filepath"
	"testing"

	"rejestr/internal/amqp"
	"rejestr/internal/archive/memory"
	"rejestr/internal/storage"
)

// settledTransaction sets up a two-member register with one settled
// transaction and returns its id.
func settledTransaction(t *testing.T, repo *storage.SQLiteRepository) string {
	t.Helper()
	ctx := context.Background()

	anna, err := repo.CreateMember(ctx, "Anna")
	if err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	bartek, err := repo.CreateMember(ctx, "Bartek")
	if err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	reg, err := repo.CreateRegister(ctx, "Mieszkanie", anna.ID, []string{bartek.ID})
	if err != nil {
		t.Fatalf("CreateRegister() error = %v", err)
	}
	if _, err := repo.AcceptInvite(ctx, reg.ID, bartek.ID); err != nil {
		t.Fatalf("AcceptInvite() error = %v", err)
	}
	gt, err := repo.ProposeTransaction(ctx, reg.ID, "Czynsz",
		map[string]int64{anna.ID: 2500, bartek.ID: -2500})
	if err != nil {
		t.Fatalf("ProposeTransaction() error = %v", err)
	}
	for _, memberID := range []string{anna.ID, bartek.ID} {
		if _, err := repo.CastVote(ctx, gt.ID, memberID, true, false); err != nil {
			t.Fatalf("CastVote() error = %v", err)
		}
	}
	return gt.ID
}

func TestHandleSettledMessage(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer repo.Close()
	ctx := context.Background()
	txID := settledTransaction(t, repo)

	store := memory.New()
	w := NewArchiveWorker(repo, store, 10)

	msg := &amqp.TransactionSettledMessage{TransactionID: txID}
	if err := w.HandleSettledMessage(ctx, msg); err != nil {
		t.Fatalf("HandleSettledMessage() error = %v", err)
	}

	records := store.Records()
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.RegisterName != "Mieszkanie" || rec.TransactionName != "Czynsz" || len(rec.Lines) != 2 {
		t.Errorf("record = %+v, want Czynsz in Mieszkanie with 2 lines", rec)
	}

	// Redelivery must not archive twice.
	if err := w.HandleSettledMessage(ctx, msg); err != nil {
		t.Fatalf("redelivered HandleSettledMessage() error = %v", err)
	}
	if got := len(store.Records()); got != 1 {
		t.Errorf("len(records) after redelivery = %d, want 1", got)
	}

	pending, err := repo.ListUnarchivedSettled(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnarchivedSettled() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("len(pending) = %d after archiving, want 0", len(pending))
	}
}

func TestProcessPendingSettlements(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer repo.Close()
	ctx := context.Background()
	settledTransaction(t, repo)

	store := memory.New()
	w := NewArchiveWorker(repo, store, 10)

	if err := w.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck() error = %v", err)
	}
	if got := len(store.Records()); got != 1 {
		t.Fatalf("len(records) = %d, want 1", got)
	}
	// Nothing left on the second pass.
	if err := w.ProcessPendingSettlements(ctx); err != nil {
		t.Fatalf("ProcessPendingSettlements() error = %v", err)
	}
	if got := len(store.Records()); got != 1 {
		t.Errorf("len(records) after second pass = %d, want 1", got)
	}
}
