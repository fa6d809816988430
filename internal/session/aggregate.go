package session

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zombor/splitcheck/internal/receipt"
)

// ParticipantTotal is one participant's line in a Summary
type ParticipantTotal struct {
	Participant string            `json:"participant"`
	Total       decimal.Decimal   `json:"total"`
	Breakdown   []string          `json:"breakdown"`
	Selection   receipt.Selection `json:"selection"`
}

// Summary is the combined view of everyone's shares
type Summary struct {
	Total        decimal.Decimal    `json:"total"`
	Participants []ParticipantTotal `json:"participants"`
	// Recomputed is set when no one confirmed and the shares were
	// calculated from open selections instead
	Recomputed bool `json:"recomputed"`
}

// Aggregate sums the confirmed results of a session, highest share first.
// Without any confirmed result it falls back to every non-empty selection.
func Aggregate(sess *Session, calc *receipt.Calculator) Summary {
	summary := Summary{Total: decimal.Zero, Participants: []ParticipantTotal{}}

	if len(sess.Results) > 0 {
		for participant, result := range sess.Results {
			summary.Participants = append(summary.Participants, ParticipantTotal{
				Participant: participant,
				Total:       result.Total,
				Breakdown:   result.Breakdown,
				Selection:   result.Selection,
			})
		}
	} else {
		for participant, sel := range sess.Selections {
			if sel.Empty() {
				continue
			}
			split := calc.Compute(sess.Receipt, sel)
			summary.Participants = append(summary.Participants, ParticipantTotal{
				Participant: participant,
				Total:       split.Total,
				Breakdown:   split.Breakdown(),
				Selection:   sel.Snapshot(),
			})
		}
		summary.Recomputed = len(summary.Participants) > 0
	}

	sort.Slice(summary.Participants, func(i, j int) bool {
		a, b := summary.Participants[i], summary.Participants[j]
		if !a.Total.Equal(b.Total) {
			return a.Total.GreaterThan(b.Total)
		}
		return a.Participant < b.Participant
	})
	for _, p := range summary.Participants {
		summary.Total = summary.Total.Add(p.Total)
	}
	return summary
}
