package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/observability"
)

// ScoreWeights configures the composite relevance formula. The formula is a
// plain weighted sum; caller-supplied weights are applied as-is and are not
// re-normalized.
type ScoreWeights struct {
	Keyword        float64 `json:"keyword"`
	Recency        float64 `json:"recency"`
	TypePreference float64 `json:"type_preference"`
}

// DefaultScoreWeights returns the default weights, summing to 1.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Keyword:        0.5,
		Recency:        0.3,
		TypePreference: 0.2,
	}
}

const (
	// typePreferenceMatch rewards candidates whose artifact type is in the
	// query's artifact-type filter; typePreferenceFallback applies when a
	// type filter exists but the candidate's type is not in it. With no
	// type filter (nil or empty) the factor is 0 for everyone: no bonus,
	// no penalty.
	typePreferenceMatch    = 1.0
	typePreferenceFallback = 0.5

	bm25K1 = 1.2
	bm25B  = 0.75

	// diversityPenalty is the multiplier applied to a candidate's score for
	// every earlier selection drawn from the same source artifact.
	diversityPenalty = 0.5
)

var keywordStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "the": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "which": {}, "with": {},
}

// RetrievalScoringService combines keyword match, recency decay, and
// artifact-type preference into one composite relevance score, normalizes
// scores across the candidate set, ranks, and optionally re-ranks for
// source-artifact diversity.
type RetrievalScoringService struct {
	decay *TimeDecayService
	now   func() time.Time
}

// NewRetrievalScoringService creates a scorer sharing the given decay service.
func NewRetrievalScoringService(decay *TimeDecayService) *RetrievalScoringService {
	return &RetrievalScoringService{decay: decay, now: time.Now}
}

// SetClock overrides the reference clock, for deterministic tests.
func (s *RetrievalScoringService) SetClock(now func() time.Time) {
	s.now = now
}

// Score computes the composite score for every candidate, min-max normalizes
// into [0,1] (a zero-range set normalizes to 1.0 for all, never a division
// by zero), then stable-sorts descending and assigns ranks 1..N. A nil
// weights argument uses the defaults.
func (s *RetrievalScoringService) Score(candidates []entities.Candidate, sq *entities.StructuredQuery, weights *ScoreWeights) []entities.ScoredCandidate {
	if len(candidates) == 0 {
		return []entities.ScoredCandidate{}
	}
	start := time.Now()
	w := DefaultScoreWeights()
	if weights != nil {
		w = *weights
	}

	ref := s.now()
	terms := keywordTokens(sq)
	avgLen := averageTokenCount(candidates)

	scored := make([]entities.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		keyword := bm25Score(terms, c.Chunk.Text, avgLen)

		decayFactor := 0.0
		daysAgo := 0
		if eventDate, ok := parseCandidateDate(c.Metadata.Date); ok {
			exact := ref.Sub(eventDate).Hours() / 24
			decayFactor = s.decay.DecayFactor(exact)
			daysAgo = int(math.Round(exact))
		}

		typePref := typePreference(c, sq)
		combined := w.Keyword*keyword + w.Recency*decayFactor + w.TypePreference*typePref

		scored[i] = entities.ScoredCandidate{
			Candidate:       c,
			OriginalScore:   c.Score,
			TimeDecayFactor: decayFactor,
			DaysAgo:         daysAgo,
			Breakdown: &entities.ScoreBreakdown{
				Keyword:        keyword,
				Recency:        decayFactor,
				TypePreference: typePref,
				Combined:       combined,
			},
		}
		scored[i].Score = combined
	}

	normalizeScores(scored)

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}

	if m := observability.Instruments(); m != nil {
		observability.RecordRerankMetric(context.Background(), m, len(candidates), time.Since(start))
	}
	return scored
}

// ScoreWithDiversity scores the candidates, then greedily selects the top K
// while penalizing repeat selections from the same source artifact. As long
// as artifacts remain unrepresented in the selection, their best candidates
// take precedence, so the top K always draws from min(K, distinct artifact
// count) distinct artifacts.
func (s *RetrievalScoringService) ScoreWithDiversity(candidates []entities.Candidate, sq *entities.StructuredQuery, weights *ScoreWeights, topK int) []entities.ScoredCandidate {
	scored := s.Score(candidates, sq, weights)
	if len(scored) == 0 {
		return scored
	}
	if topK <= 0 || topK > len(scored) {
		topK = len(scored)
	}

	selected := make([]entities.ScoredCandidate, 0, topK)
	used := make([]bool, len(scored))
	pickedPerArtifact := make(map[string]int)

	for len(selected) < topK {
		bestIdx := -1
		bestScore := 0.0
		bestFresh := false
		for i, sc := range scored {
			if used[i] {
				continue
			}
			artifact := artifactKey(sc.Candidate)
			picks := pickedPerArtifact[artifact]
			penalized := sc.Score * math.Pow(diversityPenalty, float64(picks))
			fresh := picks == 0

			switch {
			case bestIdx == -1,
				fresh && !bestFresh,
				fresh == bestFresh && penalized > bestScore:
				bestIdx = i
				bestScore = penalized
				bestFresh = fresh
			}
		}

		pick := scored[bestIdx]
		used[bestIdx] = true
		pickedPerArtifact[artifactKey(pick.Candidate)]++

		pick.Score = bestScore
		pick.Rank = len(selected) + 1
		selected = append(selected, pick)
	}
	return selected
}

func artifactKey(c entities.Candidate) string {
	if c.Metadata.ArtifactID != "" {
		return c.Metadata.ArtifactID
	}
	return c.Chunk.ChunkID
}

func typePreference(c entities.Candidate, sq *entities.StructuredQuery) float64 {
	if sq == nil || len(sq.Filters.ArtifactTypes) == 0 {
		return 0
	}
	if containsString(sq.Filters.ArtifactTypes, c.Metadata.ArtifactType) {
		return typePreferenceMatch
	}
	return typePreferenceFallback
}

// normalizeScores min-max normalizes the Score field into [0,1]. All-equal
// scores normalize to 1.0 for every candidate.
func normalizeScores(scored []entities.ScoredCandidate) {
	minScore, maxScore := scored[0].Score, scored[0].Score
	for _, sc := range scored[1:] {
		if sc.Score < minScore {
			minScore = sc.Score
		}
		if sc.Score > maxScore {
			maxScore = sc.Score
		}
	}

	for i := range scored {
		if maxScore > minScore {
			scored[i].Score = (scored[i].Score - minScore) / (maxScore - minScore)
		} else {
			scored[i].Score = 1.0
		}
		if scored[i].Breakdown != nil {
			scored[i].Breakdown.Normalized = scored[i].Score
		}
	}
}

// keywordTokens collects the unique non-stopword tokens from the query's
// expanded terms, falling back to the raw query when expansion is absent.
func keywordTokens(sq *entities.StructuredQuery) []string {
	if sq == nil {
		return nil
	}
	sources := sq.ExpandedTerms
	if len(sources) == 0 {
		sources = []string{sq.OriginalQuery}
	}

	seen := make(map[string]struct{})
	var tokens []string
	for _, source := range sources {
		for _, tok := range tokenize(source) {
			if _, stop := keywordStopwords[tok]; stop {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// bm25Score is a BM25-style saturation score in [0,1): per query token,
// tf*(k1+1)/(tf+k1*lengthNorm), averaged over tokens and scaled by the
// saturation ceiling. There is no IDF term; candidate sets are small and
// drawn from a single patient's record.
func bm25Score(terms []string, text string, avgLen float64) float64 {
	if len(terms) == 0 || text == "" {
		return 0
	}

	docTokens := tokenize(text)
	if len(docTokens) == 0 {
		return 0
	}
	counts := make(map[string]int, len(docTokens))
	for _, tok := range docTokens {
		counts[tok]++
	}

	lengthNorm := 1.0
	if avgLen > 0 {
		lengthNorm = 1 - bm25B + bm25B*float64(len(docTokens))/avgLen
	}

	total := 0.0
	for _, term := range terms {
		tf := float64(counts[term])
		if tf == 0 {
			continue
		}
		total += tf * (bm25K1 + 1) / (tf + bm25K1*lengthNorm)
	}
	return total / (float64(len(terms)) * (bm25K1 + 1))
}

func averageTokenCount(candidates []entities.Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	total := 0
	for _, c := range candidates {
		total += len(tokenize(c.Chunk.Text))
	}
	return float64(total) / float64(len(candidates))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
