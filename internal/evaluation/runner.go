package evaluation

import (
	"context"
	"time"

	"github.com/avonhealth/emrchat/backend/internal/application/services"
	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
	"github.com/avonhealth/emrchat/backend/internal/domain/repositories"
)

const evalTopK = 10

// QueryParser is the query-understanding surface the runner needs.
type QueryParser interface {
	Parse(query, patientID string) (*entities.StructuredQuery, error)
}

// CandidateScorer re-ranks retrieved candidates.
type CandidateScorer interface {
	Score(candidates []entities.Candidate, sq *entities.StructuredQuery, weights *services.ScoreWeights) []entities.ScoredCandidate
}

// Runner evaluates the full pipeline (parse, retrieve, score) against a
// golden query set. Per-query failures are skipped, not fatal; a broken
// index should surface as bad metrics, not abort the run.
type Runner struct {
	parser    QueryParser
	retriever repositories.CandidateRetriever
	scorer    CandidateScorer
}

// NewRunner wires the three pipeline stages.
func NewRunner(parser QueryParser, retriever repositories.CandidateRetriever, scorer CandidateScorer) *Runner {
	return &Runner{parser: parser, retriever: retriever, scorer: scorer}
}

// Run executes every golden query and aggregates the metrics.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalQueries: len(queries),
		ByIntent:     make(map[entities.Intent]*IntentSummary),
	}

	for _, gq := range queries {
		start := time.Now()

		sq, err := r.parser.Parse(gq.Query, gq.PatientID)
		if err != nil {
			continue
		}

		candidates, err := r.retriever.Retrieve(ctx, sq, evalTopK*5)
		if err != nil {
			continue
		}
		scored := r.scorer.Score(candidates, sq, nil)
		latency := time.Since(start)

		retrieved := make([]string, len(scored))
		for i, sc := range scored {
			retrieved[i] = sc.Chunk.ChunkID
		}

		result := EvalResult{
			QueryID:         gq.ID,
			Query:           gq.Query,
			ExpectedIntent:  gq.ExpectedIntent,
			ParsedIntent:    sq.Intent,
			IntentCorrect:   sq.Intent == gq.ExpectedIntent,
			RecallAt10:      RecallAtK(gq.RelevantChunks, retrieved, evalTopK),
			MRRAt10:         MRRAtK(gq.RelevantChunks, retrieved, evalTopK),
			ResultCount:     len(scored),
			RetrievedChunks: retrieved,
			Latency:         latency,
		}

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgLatency += res.Latency
	if res.IntentCorrect {
		s.IntentAccuracy++
	}
	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}

	if _, ok := s.ByIntent[res.ExpectedIntent]; !ok {
		s.ByIntent[res.ExpectedIntent] = &IntentSummary{}
	}
	is := s.ByIntent[res.ExpectedIntent]
	is.Count++
	is.AvgRecallAt10 += res.RecallAt10
	is.AvgMRRAt10 += res.MRRAt10
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalQueries > 0 {
		n := float64(s.TotalQueries)
		s.IntentAccuracy /= n
		s.AvgRecallAt10 /= n
		s.AvgMRRAt10 /= n
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}

	for _, is := range s.ByIntent {
		if is.Count > 0 {
			n := float64(is.Count)
			is.AvgRecallAt10 /= n
			is.AvgMRRAt10 /= n
		}
	}
}
