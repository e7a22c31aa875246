package memory

import (
	"context"
	"testing"
	"time"

	"rejestr/internal/core"
)

func TestAppendReturnsSequentialRefs(t *testing.T) {
	store := New()
	rec := core.SettlementRecord{
		TransactionID:   "tx-1",
		RegisterName:    "Mieszkanie",
		TransactionName: "Czynsz",
		SettleDate:      time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC),
		Lines: []core.SettlementLine{
			{MemberName: "Anna", Amount: 2500, BalanceBefore: 0, BalanceAfter: 2500},
		},
	}

	for i, want := range []string{"mem:1", "mem:2"} {
		ref, err := store.Append(context.Background(), rec)
		if err != nil {
			t.Fatalf("Append() #%d error = %v", i+1, err)
		}
		if ref != want {
			t.Errorf("ref #%d = %q, want %q", i+1, ref, want)
		}
	}
	if got := store.Records(); len(got) != 2 || got[0].TransactionID != "tx-1" {
		t.Errorf("Records() = %+v, want 2 copies of the record", got)
	}
}
