package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avonhealth/emrchat/backend/internal/adapters/database"
	"github.com/avonhealth/emrchat/backend/internal/adapters/search"
	"github.com/avonhealth/emrchat/backend/internal/application/services"
	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/clients/postgres"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/clients/typesense"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/observability"
	"github.com/avonhealth/emrchat/backend/pkg/config"
)

func main() {
	var chunksFile string
	var intervalFlag string
	flag.StringVar(&chunksFile, "file", "", "JSONL file of artifact chunks to load before indexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		parsed, err := time.ParseDuration(intervalValue)
		if err != nil || parsed <= 0 {
			fmt.Fprintf(os.Stderr, "invalid interval %q\n", intervalValue)
			os.Exit(1)
		}
		interval = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("emrchat-indexer", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, chunksFile); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		// Loading from file is a one-time seed; repeats only reindex.
		chunksFile = ""
		log.Info().Dur("interval", interval).Msg("reindex complete, sleeping")

		select {
		case <-ctx.Done():
			log.Info().Msg("indexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, chunksFile string) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	chunkRepo := database.NewArtifactChunkAdapter(pgClient)
	retriever := search.NewTypesenseRetriever(tsClient, services.NewMetadataFilterService())

	if chunksFile != "" {
		loaded, err := loadChunksFile(ctx, chunksFile, chunkRepo)
		if err != nil {
			return err
		}
		log.Info().Int("chunks", loaded).Str("file", chunksFile).Msg("loaded chunks into store")
	}

	chunks, err := chunkRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	indexed := 0
	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := retriever.Index(ctx, chunk); err != nil {
			log.Error().Err(err).Str("chunk_id", chunk.ID).Msg("failed to index chunk")
			continue
		}
		indexed++
	}

	log.Info().Int("indexed", indexed).Int("total", len(chunks)).Msg("reindex pass finished")
	return nil
}

func loadChunksFile(ctx context.Context, path string, repo interface {
	SaveBatch(ctx context.Context, chunks []*entities.ArtifactChunk) error
}) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	const batchSize = 200
	var batch []*entities.ArtifactChunk
	total := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		chunk := &entities.ArtifactChunk{}
		if err := json.Unmarshal([]byte(line), chunk); err != nil {
			return total, fmt.Errorf("malformed chunk line: %w", err)
		}
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = time.Now().UTC()
		}
		batch = append(batch, chunk)

		if len(batch) == batchSize {
			if err := repo.SaveBatch(ctx, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return total, err
	}
	if len(batch) > 0 {
		if err := repo.SaveBatch(ctx, batch); err != nil {
			return total, err
		}
		total += len(batch)
	}
	return total, nil
}
