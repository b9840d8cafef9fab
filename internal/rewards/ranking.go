package rewards

import (
	"zoin_economy/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// MaxRewardedRank is the last rank that earns a reward.
	MaxRewardedRank = 5
	// CandidateLimit bounds the scores fetched per settlement; it leaves
	// headroom for ties straddling the reward cutoff.
	CandidateLimit = 50
)

var (
	firstPrize  = decimal.RequireFromString("3.00")
	secondPrize = decimal.RequireFromString("1.00")
	minorPrize  = decimal.RequireFromString("0.15")
)

// RewardFor returns the payout for a competition rank.
func RewardFor(rank int) decimal.Decimal {
	switch {
	case rank == 1:
		return firstPrize
	case rank == 2:
		return secondPrize
	case rank >= 3 && rank <= MaxRewardedRank:
		return minorPrize
	default:
		return decimal.Zero
	}
}

// Placement is a ranked score and the reward it earns.
type Placement struct {
	Score  domain.Score    `json:"score"`
	Rank   int             `json:"rank"`
	Reward decimal.Decimal `json:"reward"`
}

// Rank assigns standard competition ranks ("1224") to scores already
// ordered by amount descending. Tied amounts share a rank and the next
// distinct amount takes its 1-based position. Ranking stops at the first
// rank past MaxRewardedRank.
func Rank(scores []domain.Score) []Placement {
	var out []Placement
	rank := 0
	for i, s := range scores {
		if i == 0 || s.Amount != scores[i-1].Amount {
			rank = i + 1
		}
		if rank > MaxRewardedRank {
			break
		}
		out = append(out, Placement{Score: s, Rank: rank, Reward: RewardFor(rank)})
	}
	return out
}
