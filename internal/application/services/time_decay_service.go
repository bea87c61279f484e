package services

import (
	"math"
	"sort"
	"time"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

// decayRatePerDay is the exponential recency decay rate: a candidate loses
// roughly 1% of its score per day of age, halving around day 69.
const decayRatePerDay = 0.01

// TimeDecayService computes exponential recency decay from event dates and
// re-ranks candidate sets by their decayed scores.
type TimeDecayService struct{}

// NewTimeDecayService creates a new time decay service.
func NewTimeDecayService() *TimeDecayService {
	return &TimeDecayService{}
}

// DecayFactor returns exp(-0.01 * daysAgo), strictly decreasing for
// daysAgo ≥ 0. Future dates are clamped to 1.0, no penalty.
func (s *TimeDecayService) DecayFactor(daysAgo float64) float64 {
	if daysAgo < 0 {
		return 1.0
	}
	return math.Exp(-decayRatePerDay * daysAgo)
}

// ApplyDecay multiplies each candidate's score by its decay factor, then
// re-sorts descending by the decayed score (stable, so exact ties keep
// their original relative order) and assigns ranks 1..N. A candidate with
// an unparseable date is treated as maximally stale (factor 0) rather than
// failing, since metadata dates are request-time data.
func (s *TimeDecayService) ApplyDecay(candidates []entities.Candidate, ref time.Time) []entities.ScoredCandidate {
	scored := make([]entities.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		sc := entities.ScoredCandidate{
			Candidate:     c,
			OriginalScore: c.Score,
		}
		if eventDate, ok := parseCandidateDate(c.Metadata.Date); ok {
			// The exact day count feeds the exponent; the rounded value is
			// reported only.
			daysAgo := ref.Sub(eventDate).Hours() / 24
			sc.TimeDecayFactor = s.DecayFactor(daysAgo)
			sc.DaysAgo = int(math.Round(daysAgo))
			sc.Score = c.Score * sc.TimeDecayFactor
		} else {
			sc.TimeDecayFactor = 0
			sc.Score = 0
		}
		scored[i] = sc
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored
}

// ApplyDecayBatch applies decay to each candidate set independently.
// Output order matches input order regardless of how items are processed.
func (s *TimeDecayService) ApplyDecayBatch(batches [][]entities.Candidate, ref time.Time) [][]entities.ScoredCandidate {
	results := make([][]entities.ScoredCandidate, len(batches))
	for i, batch := range batches {
		results[i] = s.ApplyDecay(batch, ref)
	}
	return results
}
