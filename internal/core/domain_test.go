package core

import (
	"strings"
	"testing"
)

func votes(flags ...[2]bool) []IndividualsTransaction {
	rows := make([]IndividualsTransaction, len(flags))
	for i, f := range flags {
		rows[i] = IndividualsTransaction{Supports: f[0], WantsRemove: f[1]}
	}
	return rows
}

func TestEvaluateVotes(t *testing.T) {
	cases := []struct {
		name string
		rows []IndividualsTransaction
		want VoteOutcome
	}{
		{"no rows", nil, OutcomePending},
		{"nobody voted", votes([2]bool{false, false}, [2]bool{false, false}), OutcomePending},
		{"partial support", votes([2]bool{true, false}, [2]bool{false, false}), OutcomePending},
		{"all support", votes([2]bool{true, false}, [2]bool{true, false}), OutcomeSettled},
		{"all want removal", votes([2]bool{false, true}, [2]bool{false, true}), OutcomeRemoved},
		{"partial removal", votes([2]bool{false, true}, [2]bool{true, false}), OutcomePending},
		// Removal has priority even when everyone also supports.
		{"all support and all remove", votes([2]bool{true, true}, [2]bool{true, true}), OutcomeRemoved},
		{"all support, one also removes", votes([2]bool{true, true}, [2]bool{true, false}), OutcomeSettled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EvaluateVotes(tc.rows); got != tc.want {
				t.Errorf("EvaluateVotes = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVoteOutcomeString(t *testing.T) {
	if OutcomeSettled.String() != "settled" || OutcomeRemoved.String() != "removed" || OutcomePending.String() != "pending" {
		t.Error("unexpected outcome labels")
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("Wakacje 2025"); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
	if err := ValidateName("   "); err != ErrEmptyName {
		t.Errorf("blank name: got %v, want ErrEmptyName", err)
	}
	if err := ValidateName(strings.Repeat("x", 129)); err == nil {
		t.Error("over-long name accepted")
	}
}
