package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/avonhealth/emrchat/backend/internal/application/services"
	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
	"github.com/avonhealth/emrchat/backend/internal/domain/repositories"
	tsclient "github.com/avonhealth/emrchat/backend/internal/infrastructure/clients/typesense"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/observability"
)

const defaultRetrieveLimit = 50

// TypesenseRetriever implements candidate retrieval against the chunk index.
// The structured query's filter set is pushed down as a filter_by predicate
// so isolation happens inside the engine, not after the fact.
type TypesenseRetriever struct {
	client  *tsclient.Client
	filters *services.MetadataFilterService
}

var _ repositories.CandidateRetriever = (*TypesenseRetriever)(nil)

// NewTypesenseRetriever creates a retriever over the chunk collection.
func NewTypesenseRetriever(client *tsclient.Client, filters *services.MetadataFilterService) *TypesenseRetriever {
	return &TypesenseRetriever{client: client, filters: filters}
}

// Retrieve searches the chunk collection with the query's expanded terms and
// filter predicate, returning candidates with engine scores attached.
func (r *TypesenseRetriever) Retrieve(ctx context.Context, sq *entities.StructuredQuery, limit int) ([]entities.Candidate, error) {
	ctx, span := observability.StartSpan(ctx, "chunks.retrieve")
	defer span.End()

	if limit <= 0 {
		limit = defaultRetrieveLimit
	}

	q := sq.OriginalQuery
	if len(sq.ExpandedTerms) > 0 {
		q = strings.Join(sq.ExpandedTerms, " ")
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("text"),
		PerPage: pointer.Int(limit),
	}
	if filterBy := RenderFilterBy(r.filters.ToVectorStoreFilter(sq.Filters)); filterBy != "" {
		searchParams.FilterBy = pointer.String(filterBy)
	}

	result, err := r.client.Client().Collection(tsclient.ChunksCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	candidates := []entities.Candidate{}
	if result.Hits == nil {
		return candidates, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document

		score := 0.0
		if hit.TextMatch != nil {
			score = float64(*hit.TextMatch)
		}

		candidates = append(candidates, entities.Candidate{
			Chunk: entities.Chunk{
				ChunkID: docString(doc, "id"),
				Text:    docString(doc, "text"),
			},
			Metadata: entities.ChunkMetadata{
				PatientID:    docString(doc, "patient_id"),
				ArtifactID:   docString(doc, "artifact_id"),
				ArtifactType: docString(doc, "artifact_type"),
				Author:       docString(doc, "author"),
				Date:         docString(doc, "date"),
			},
			Score: score,
		})
	}

	if m := observability.Instruments(); m != nil {
		observability.RecordRetrievalMetric(ctx, m, len(candidates))
	}
	return candidates, nil
}

// Index upserts one stored chunk into the search collection.
func (r *TypesenseRetriever) Index(ctx context.Context, chunk *entities.ArtifactChunk) error {
	document := map[string]interface{}{
		"id":            chunk.ID,
		"text":          chunk.Text,
		"patient_id":    chunk.PatientID,
		"artifact_id":   chunk.ArtifactID,
		"artifact_type": chunk.ArtifactType,
		"author":        chunk.Author,
		"date":          chunk.EventDate.Format(time.RFC3339),
		"date_unix":     chunk.EventDate.Unix(),
	}
	if err := r.client.IndexChunk(ctx, document); err != nil {
		return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// RenderFilterBy renders the declarative filter into a Typesense filter_by
// expression. Clauses combine with &&; an empty filter renders to "".
func RenderFilterBy(f entities.VectorStoreFilter) string {
	var clauses []string
	if f.PatientID != "" {
		clauses = append(clauses, fmt.Sprintf("patient_id:=%s", f.PatientID))
	}
	if len(f.ArtifactTypes) > 0 {
		clauses = append(clauses, fmt.Sprintf("artifact_type:=[%s]", strings.Join(f.ArtifactTypes, ",")))
	}
	if f.DateFromUnix != nil {
		clauses = append(clauses, fmt.Sprintf("date_unix:>=%d", *f.DateFromUnix))
	}
	if f.DateToUnix != nil {
		clauses = append(clauses, fmt.Sprintf("date_unix:<=%d", *f.DateToUnix))
	}
	if f.Author != "" {
		clauses = append(clauses, fmt.Sprintf("author:=%s", f.Author))
	}
	return strings.Join(clauses, " && ")
}

func docString(doc map[string]interface{}, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}
