package core

import "math/rand/v2"

// Contribution is how many grosze one member put towards a shared expense.
type Contribution struct {
	MemberID string
	Grosze   int64
}

// Delta is the resulting balance change for one member.
type Delta struct {
	MemberID string
	Grosze   int64
}

// SplitExpense divides an expense evenly among the contributing members and
// returns, per member, the even share minus what they already contributed.
// The integer division leftover (0 <= leftover < n grosze) is charged one
// grosz each to that many members picked at random, so the deltas always sum
// to exactly zero.
//
// Fails with ErrNegativeExpense for a negative expense and with
// ErrContributionMismatch when the contributions do not add up to the expense.
func SplitExpense(expense int64, contributions []Contribution) ([]Delta, error) {
	if expense < 0 {
		return nil, ErrNegativeExpense
	}
	if len(contributions) == 0 {
		return nil, ErrContributionMismatch
	}
	var sum int64
	for _, c := range contributions {
		sum += c.Grosze
	}
	if sum != expense {
		return nil, ErrContributionMismatch
	}

	n := int64(len(contributions))
	share := expense / n
	deltas := make([]Delta, len(contributions))
	for i, c := range contributions {
		deltas[i] = Delta{MemberID: c.MemberID, Grosze: share - c.Grosze}
	}

	leftover := expense - share*n
	for _, i := range rand.Perm(len(contributions))[:leftover] {
		deltas[i].Grosze++
	}
	return deltas, nil
}
