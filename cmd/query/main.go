package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avonhealth/emrchat/backend/internal/adapters/cache"
	"github.com/avonhealth/emrchat/backend/internal/adapters/search"
	"github.com/avonhealth/emrchat/backend/internal/application/services"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/clients/redis"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/clients/typesense"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/observability"
	"github.com/avonhealth/emrchat/backend/pkg/config"
)

func main() {
	var query, patientID string
	var limit, topK int
	var diversify, parseOnly bool
	flag.StringVar(&query, "query", "", "clinical question to run")
	flag.StringVar(&patientID, "patient", "", "patient id the question is scoped to")
	flag.IntVar(&limit, "limit", 50, "max candidates to fetch from the index")
	flag.IntVar(&topK, "top", 10, "result count after reranking")
	flag.BoolVar(&diversify, "diversify", false, "penalize repeat picks from one artifact")
	flag.BoolVar(&parseOnly, "parse-only", false, "print the structured query and exit")
	flag.Parse()

	if query == "" || patientID == "" {
		fmt.Fprintln(os.Stderr, "usage: query -query <text> -patient <id> [-limit N] [-top K] [-diversify] [-parse-only]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("emrchat-query", cfg.Env)

	ctx := context.Background()
	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	understanding, err := buildUnderstandingService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load dictionaries")
	}

	sq, err := understanding.Parse(query, patientID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse query")
	}

	if parseOnly {
		printJSON(sq)
		return
	}

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Typesense")
	}

	filters := services.NewMetadataFilterService()
	retriever := search.NewTypesenseRetriever(tsClient, filters)

	candidates, err := retriever.Retrieve(ctx, sq, limit)
	if err != nil {
		log.Fatal().Err(err).Msg("retrieval failed")
	}
	log.Info().Int("candidates", len(candidates)).Str("intent", string(sq.Intent)).Msg("retrieved candidates")

	scorer := services.NewRetrievalScoringService(services.NewTimeDecayService())
	if diversify {
		printJSON(scorer.ScoreWithDiversity(candidates, sq, nil, topK))
		return
	}

	scored := scorer.Score(candidates, sq, nil)
	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	printJSON(scored)
}

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

	svc := services.NewQueryUnderstandingService(classifier, extractor, services.NewTemporalParser(), expander)

	// Redis is optional for one-shot runs; parsing degrades to uncached.
	if redisClient, err := redis.NewClient(&cfg.Redis); err == nil {
		svc.SetCache(cache.NewRedisAdapter(redisClient))
	} else {
		log.Warn().Err(err).Msg("running without parse cache")
	}
	return svc, nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("failed to encode output")
	}
}
