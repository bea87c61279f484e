package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avonhealth/emrchat/backend/internal/application/services"
	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
	apperrors "github.com/avonhealth/emrchat/backend/pkg/errors"
)

type stubParser struct {
	intents map[string]entities.Intent
}

func (p *stubParser) Parse(query, patientID string) (*entities.StructuredQuery, error) {
	if query == "" {
		return nil, apperrors.NewEmptyQueryError()
	}
	intent, ok := p.intents[query]
	if !ok {
		intent = entities.IntentGeneral
	}
	return &entities.StructuredQuery{
		QueryID:       "q-" + query,
		OriginalQuery: query,
		PatientID:     patientID,
		Intent:        intent,
	}, nil
}

type stubRetriever struct {
	chunks map[string][]string
}

func (r *stubRetriever) Retrieve(_ context.Context, sq *entities.StructuredQuery, _ int) ([]entities.Candidate, error) {
	var out []entities.Candidate
	for i, id := range r.chunks[sq.OriginalQuery] {
		out = append(out, entities.Candidate{
			Chunk: entities.Chunk{ChunkID: id, Text: id},
			Metadata: entities.ChunkMetadata{
				PatientID: sq.PatientID,
				Date:      "2024-06-01",
			},
			Score: 1.0 - float64(i)*0.1,
		})
	}
	return out, nil
}

type passthroughScorer struct{}

func (passthroughScorer) Score(candidates []entities.Candidate, _ *entities.StructuredQuery, _ *services.ScoreWeights) []entities.ScoredCandidate {
	scored := make([]entities.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = entities.ScoredCandidate{Candidate: c, Rank: i + 1}
		scored[i].Score = c.Score
	}
	return scored
}

func TestRunner_AggregatesMetrics(t *testing.T) {
	parser := &stubParser{intents: map[string]entities.Intent{
		"meds query": entities.IntentRetrieveMedications,
		"labs query": entities.IntentRetrieveLabs,
	}}
	retriever := &stubRetriever{chunks: map[string][]string{
		"meds query": {"c1", "c2", "c3"},
		"labs query": {"x1", "x2"},
	}}
	runner := NewRunner(parser, retriever, passthroughScorer{})

	queries := []GoldenQuery{
		{
			ID: "g1", Query: "meds query", PatientID: "p1",
			ExpectedIntent: entities.IntentRetrieveMedications,
			RelevantChunks: []string{"c1", "c2"},
			Difficulty:     "easy",
		},
		{
			ID: "g2", Query: "labs query", PatientID: "p1",
			ExpectedIntent: entities.IntentRetrieveNotes,
			RelevantChunks: []string{"missing"},
			Difficulty:     "hard",
		},
	}

	summary, err := runner.Run(context.Background(), queries)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalQueries)
	assert.Equal(t, 2, summary.QueriesWithHits)
	// g1 parsed correctly, g2 expected notes but the parser said labs.
	assert.Equal(t, 0.5, summary.IntentAccuracy)
	// g1 recall 1.0, g2 recall 0.0.
	assert.Equal(t, 0.5, summary.AvgRecallAt10)
	assert.Equal(t, 0.5, summary.AvgMRRAt10)

	require.Contains(t, summary.ByIntent, entities.IntentRetrieveMedications)
	assert.Equal(t, 1, summary.ByIntent[entities.IntentRetrieveMedications].Count)
	assert.Equal(t, 1.0, summary.ByIntent[entities.IntentRetrieveMedications].AvgRecallAt10)
}

func TestRunner_SkipsFailedParses(t *testing.T) {
	runner := NewRunner(&stubParser{}, &stubRetriever{}, passthroughScorer{})

	summary, err := runner.Run(context.Background(), []GoldenQuery{
		{ID: "g1", Query: "", PatientID: "p1", ExpectedIntent: entities.IntentGeneral, Difficulty: "easy"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalQueries)
	assert.Equal(t, 0, summary.QueriesWithHits)
	assert.Equal(t, 0.0, summary.AvgRecallAt10)
}
