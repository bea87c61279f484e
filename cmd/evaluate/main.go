package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/avonhealth/emrchat/backend/internal/adapters/search"
	"github.com/avonhealth/emrchat/backend/internal/application/services"
	"github.com/avonhealth/emrchat/backend/internal/evaluation"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/clients/typesense"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/observability"
	"github.com/avonhealth/emrchat/backend/pkg/config"
)

func main() {
	var goldenPath string
	flag.StringVar(&goldenPath, "golden", "config/golden_queries.json", "path to the golden query set")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("emrchat-evaluate", cfg.Env)

	queries, err := evaluation.LoadGoldenQueries(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", goldenPath).Msg("failed to load golden queries")
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		log.Fatal().Err(err).Msg("golden query set is invalid")
	}

	understanding, err := buildUnderstandingService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load dictionaries")
	}

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Typesense")
	}

	retriever := search.NewTypesenseRetriever(tsClient, services.NewMetadataFilterService())
	scorer := services.NewRetrievalScoringService(services.NewTimeDecayService())

	runner := evaluation.NewRunner(understanding, retriever, scorer)
	summary, err := runner.Run(context.Background(), queries)
	if err != nil {
		log.Fatal().Err(err).Msg("evaluation run failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatal().Err(err).Msg("failed to encode summary")
	}
}

// buildUnderstandingService wires the parse pipeline without a cache; every
// golden query should be parsed fresh so latency numbers mean something.
func buildUnderstandingService(cfg *config.Config) (*services.QueryUnderstandingService, error) {
	classifier, err := services.NewIntentClassifier(cfg.Dictionaries.IntentKeywordsPath)
	if err != nil {
		return nil, err
	}
	extractor, err := services.NewEntityExtractor(cfg.Dictionaries.EntityDictionariesPath)
	if err != nil {
		return nil, err
	}
	expander, err := services.NewQueryExpansionService(cfg.Dictionaries.SynonymsPath)
	if err != nil {
		return nil, err
	}
	return services.NewQueryUnderstandingService(classifier, extractor, services.NewTemporalParser(), expander), nil
}
