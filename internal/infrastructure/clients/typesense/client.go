package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/avonhealth/emrchat/backend/pkg/config"
	"github.com/avonhealth/emrchat/backend/pkg/retry"
)

// ChunksCollection is the index holding one document per artifact chunk.
const ChunksCollection = "emr_chunks"

// Client wraps the Typesense client backing candidate retrieval.
type Client struct {
	client *typesense.Client
}

// NewClient connects to Typesense and verifies health with exponential
// backoff.
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("next_delay", nextDelay).
				Msg("Typesense connection attempt failed, retrying")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client.
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures the chunks collection exists. The date is stored twice:
// the ISO string for display and re-scoring, and the unix timestamp for
// range filtering.
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == ChunksCollection {
			log.Info().Str("collection", ChunksCollection).Msg("Typesense collection already exists")
			return nil
		}
	}

	schema := &api.CollectionSchema{
		Name: ChunksCollection,
		Fields: []api.Field{
			{
				Name: "id",
				Type: "string",
			},
			{
				Name: "text",
				Type: "string",
			},
			{
				Name:  "patient_id",
				Type:  "string",
				Facet: pointer.True(),
			},
			{
				Name: "artifact_id",
				Type: "string",
			},
			{
				Name:  "artifact_type",
				Type:  "string",
				Facet: pointer.True(),
			},
			{
				Name:     "author",
				Type:     "string",
				Facet:    pointer.True(),
				Optional: pointer.True(),
			},
			{
				Name:     "date",
				Type:     "string",
				Optional: pointer.True(),
			},
			{
				Name: "date_unix",
				Type: "int64",
			},
		},
		DefaultSortingField: pointer.String("date_unix"),
	}

	if _, err := c.client.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", ChunksCollection).Msg("created Typesense collection")
	return nil
}

// IndexChunk upserts one chunk document.
func (c *Client) IndexChunk(ctx context.Context, document map[string]interface{}) error {
	_, err := c.client.Collection(ChunksCollection).Documents().Upsert(ctx, document)
	return err
}
