package repositories

import (
	"context"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

// ChunkRepository persists artifact chunks and their metadata. The relational
// store is the system of record; the search index is derived from it.
type ChunkRepository interface {
	// Save upserts a chunk keyed by its chunk id.
	Save(ctx context.Context, chunk *entities.ArtifactChunk) error

	// SaveBatch upserts a batch of chunks in one statement.
	SaveBatch(ctx context.Context, chunks []*entities.ArtifactChunk) error

	// GetByID returns the chunk with the given id, or a not-found error.
	GetByID(ctx context.Context, chunkID string) (*entities.ArtifactChunk, error)

	// ListByPatient returns every chunk belonging to one patient.
	ListByPatient(ctx context.Context, patientID string) ([]*entities.ArtifactChunk, error)

	// ListAll streams the full chunk table in id order, for index rebuilds.
	ListAll(ctx context.Context) ([]*entities.ArtifactChunk, error)
}

// CandidateRetriever fetches scored candidate chunks for a structured query
// from the search index.
type CandidateRetriever interface {
	// Retrieve runs the query against the index with its filter set applied
	// and returns up to limit candidates with engine scores attached.
	Retrieve(ctx context.Context, sq *entities.StructuredQuery, limit int) ([]entities.Candidate, error)
}
