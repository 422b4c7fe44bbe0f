package voting

import (
	"math"

	"github.com/shopspring/decimal"
	communitydb "github.com/vecindia/asambleax/pkg/db/community"
	"github.com/vecindia/asambleax/pkg/db/models/community"
)

// ComputeResults folds per-option tallies into the result document. Pure
// function over already-loaded rows. Percentages are over the votes actually
// cast, not over the community total: a question where nobody voted reports
// zero percentages rather than dividing by zero.
func ComputeResults(q *community.Question, options []community.Option, tallies []communitydb.VoteTally) *community.QuestionResults {
	byOption := make(map[int64]communitydb.VoteTally, len(tallies))
	totalVotes := 0
	totalCoefficient := decimal.Zero
	for _, t := range tallies {
		byOption[t.OptionID] = t
		totalVotes += t.VoteCount
		totalCoefficient = totalCoefficient.Add(t.CoefficientSum)
	}

	out := &community.QuestionResults{
		QuestionID:       q.ID,
		Text:             q.Text,
		ClosedAt:         q.ClosedAt,
		TotalVotes:       totalVotes,
		TotalCoefficient: totalCoefficient,
		Options:          make([]community.OptionResult, 0, len(options)),
	}

	for _, opt := range options {
		t := byOption[opt.ID]
		r := community.OptionResult{
			OptionID:       opt.ID,
			Label:          opt.Label,
			VoteCount:      t.VoteCount,
			CoefficientSum: t.CoefficientSum,
		}
		if totalVotes > 0 {
			r.VotePercentage = round2(100 * float64(t.VoteCount) / float64(totalVotes))
		}
		if totalCoefficient.IsPositive() {
			pct, _ := t.CoefficientSum.Mul(decimal.NewFromInt(100)).
				Div(totalCoefficient).Round(2).Float64()
			r.CoefficientPercentage = pct
		}
		out.Options = append(out.Options, r)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
