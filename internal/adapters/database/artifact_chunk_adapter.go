package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
	"github.com/avonhealth/emrchat/backend/internal/domain/repositories"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/avonhealth/emrchat/backend/pkg/errors"
)

const chunksTable = "artifact_chunks"

// ArtifactChunkAdapter implements chunk persistence in Postgres. The table is
// the system of record; the search collection is rebuilt from it.
type ArtifactChunkAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewArtifactChunkAdapter creates a new chunk adapter.
func NewArtifactChunkAdapter(client *postgres.Client) repositories.ChunkRepository {
	return &ArtifactChunkAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func chunkRecord(chunk *entities.ArtifactChunk) goqu.Record {
	return goqu.Record{
		"id":            chunk.ID,
		"artifact_id":   chunk.ArtifactID,
		"patient_id":    chunk.PatientID,
		"artifact_type": chunk.ArtifactType,
		"author":        sql.NullString{String: chunk.Author, Valid: chunk.Author != ""},
		"text":          chunk.Text,
		"event_date":    chunk.EventDate,
		"created_at":    chunk.CreatedAt,
	}
}

// Save upserts one chunk keyed by id.
func (a *ArtifactChunkAdapter) Save(ctx context.Context, chunk *entities.ArtifactChunk) error {
	if chunk == nil {
		return apperrors.NewInternalError("chunk is nil", fmt.Errorf("chunk is nil"))
	}

	record := chunkRecord(chunk)
	query, args, err := a.db.Insert(chunksTable).
		Rows(record).
		OnConflict(goqu.DoUpdate("id", record)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build chunk upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to save chunk", err)
	}
	return nil
}

// SaveBatch upserts a batch of chunks in one statement.
func (a *ArtifactChunkAdapter) SaveBatch(ctx context.Context, chunks []*entities.ArtifactChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	records := make([]goqu.Record, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk == nil {
			return apperrors.NewInternalError("chunk is nil", fmt.Errorf("chunk is nil"))
		}
		records = append(records, chunkRecord(chunk))
	}

	query, args, err := a.db.Insert(chunksTable).
		Rows(records).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"artifact_id":   goqu.I("excluded.artifact_id"),
			"patient_id":    goqu.I("excluded.patient_id"),
			"artifact_type": goqu.I("excluded.artifact_type"),
			"author":        goqu.I("excluded.author"),
			"text":          goqu.I("excluded.text"),
			"event_date":    goqu.I("excluded.event_date"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build chunk batch upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to save chunk batch", err)
	}
	return nil
}

// GetByID returns one chunk by its id.
func (a *ArtifactChunkAdapter) GetByID(ctx context.Context, chunkID string) (*entities.ArtifactChunk, error) {
	query, args, err := a.db.From(chunksTable).
		Select("id", "artifact_id", "patient_id", "artifact_type", "author", "text", "event_date", "created_at").
		Where(goqu.Ex{"id": chunkID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build chunk select query", err)
	}

	chunk, err := scanChunk(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("chunk with id %s not found", chunkID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get chunk", err)
	}
	return chunk, nil
}

// ListByPatient returns every chunk for one patient, newest event first.
func (a *ArtifactChunkAdapter) ListByPatient(ctx context.Context, patientID string) ([]*entities.ArtifactChunk, error) {
	query, args, err := a.db.From(chunksTable).
		Select("id", "artifact_id", "patient_id", "artifact_type", "author", "text", "event_date", "created_at").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("event_date").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build chunk list query", err)
	}
	return a.queryChunks(ctx, query, args)
}

// ListAll returns the full chunk table in id order, for index rebuilds.
func (a *ArtifactChunkAdapter) ListAll(ctx context.Context) ([]*entities.ArtifactChunk, error) {
	query, args, err := a.db.From(chunksTable).
		Select("id", "artifact_id", "patient_id", "artifact_type", "author", "text", "event_date", "created_at").
		Order(goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build chunk list query", err)
	}
	return a.queryChunks(ctx, query, args)
}

func (a *ArtifactChunkAdapter) queryChunks(ctx context.Context, query string, args []interface{}) ([]*entities.ArtifactChunk, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list chunks", err)
	}
	defer rows.Close()

	var chunks []*entities.ArtifactChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan chunk", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate chunks", err)
	}
	return chunks, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (*entities.ArtifactChunk, error) {
	chunk := &entities.ArtifactChunk{}
	var author sql.NullString
	err := row.Scan(
		&chunk.ID,
		&chunk.ArtifactID,
		&chunk.PatientID,
		&chunk.ArtifactType,
		&author,
		&chunk.Text,
		&chunk.EventDate,
		&chunk.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	chunk.Author = author.String
	return chunk, nil
}
