package evaluation

import (
	"time"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

// GoldenQuery is one labeled query with its expected parse and retrieval
// outcomes. RelevantChunks lists the chunk ids a correct top-K should
// surface.
type GoldenQuery struct {
	ID             string          `json:"id"`
	Query          string          `json:"query"`
	PatientID      string          `json:"patient_id"`
	ExpectedIntent entities.Intent `json:"expected_intent"`
	RelevantChunks []string        `json:"relevant_chunks"`
	Difficulty     string          `json:"difficulty"`
}

// EvalResult holds the outcome for a single golden query.
type EvalResult struct {
	QueryID         string
	Query           string
	ExpectedIntent  entities.Intent
	ParsedIntent    entities.Intent
	IntentCorrect   bool
	RecallAt10      float64
	MRRAt10         float64
	ResultCount     int
	RetrievedChunks []string
	Latency         time.Duration
}

// EvalSummary aggregates metrics across a golden query set.
type EvalSummary struct {
	TotalQueries    int
	IntentAccuracy  float64
	AvgRecallAt10   float64
	AvgMRRAt10      float64
	AvgLatency      time.Duration
	QueriesWithHits int
	ByIntent        map[entities.Intent]*IntentSummary
}

// IntentSummary holds metrics grouped by expected intent.
type IntentSummary struct {
	Count         int
	AvgRecallAt10 float64
	AvgMRRAt10    float64
}
