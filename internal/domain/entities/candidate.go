package entities

import "time"

// Chunk is a sub-span of an EMR artifact's text used as the retrieval unit.
type Chunk struct {
	ChunkID string `json:"chunk_id"`
	Text    string `json:"text"`
}

// ChunkMetadata carries the provenance fields used for filtering and decay.
// Date is an ISO-8601 timestamp produced by the retriever.
type ChunkMetadata struct {
	PatientID    string `json:"patient_id,omitempty"`
	ArtifactID   string `json:"artifact_id,omitempty"`
	ArtifactType string `json:"artifact_type,omitempty"`
	Author       string `json:"author,omitempty"`
	Date         string `json:"date,omitempty"`
}

// Candidate is a retrieved chunk plus metadata and a base relevance score
// produced by the external retriever (lexical or semantic similarity).
type Candidate struct {
	Chunk    Chunk         `json:"chunk"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// ScoreBreakdown records the per-factor contributions behind a composite score.
type ScoreBreakdown struct {
	Keyword        float64 `json:"keyword"`
	Recency        float64 `json:"recency"`
	TypePreference float64 `json:"type_preference"`
	Combined       float64 `json:"combined"`
	Normalized     float64 `json:"normalized"`
}

// ScoredCandidate is a candidate after decay and ranking. Score holds the
// re-scored value; OriginalScore preserves the retriever's base score. Rank
// is 1-indexed and unique within a result set. Instances are created fresh
// per scoring call and never mutated after return.
type ScoredCandidate struct {
	Candidate
	OriginalScore   float64         `json:"original_score"`
	TimeDecayFactor float64         `json:"time_decay_factor"`
	DaysAgo         int             `json:"days_ago"`
	Rank            int             `json:"rank"`
	Breakdown       *ScoreBreakdown `json:"breakdown,omitempty"`
}

// ArtifactChunk is the persisted form of a chunk in the chunk store, before
// it is indexed into the search collection.
type ArtifactChunk struct {
	ID           string    `json:"id"`
	ArtifactID   string    `json:"artifact_id"`
	PatientID    string    `json:"patient_id"`
	ArtifactType string    `json:"artifact_type"`
	Author       string    `json:"author"`
	Text         string    `json:"text"`
	EventDate    time.Time `json:"event_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToCandidate converts a stored chunk into a retrieval candidate with the
// given base score.
func (c *ArtifactChunk) ToCandidate(score float64) Candidate {
	return Candidate{
		Chunk: Chunk{ChunkID: c.ID, Text: c.Text},
		Metadata: ChunkMetadata{
			PatientID:    c.PatientID,
			ArtifactID:   c.ArtifactID,
			ArtifactType: c.ArtifactType,
			Author:       c.Author,
			Date:         c.EventDate.Format(time.RFC3339),
		},
		Score: score,
	}
}
