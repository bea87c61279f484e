package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
	"github.com/avonhealth/emrchat/backend/internal/domain/providers"
	"github.com/avonhealth/emrchat/backend/internal/infrastructure/observability"
	apperrors "github.com/avonhealth/emrchat/backend/pkg/errors"
)

// maxQueryLength is the cap on raw query length in characters; longer input
// is rejected as a structural error.
const maxQueryLength = 1000

// parseCacheTTLSeconds is how long cached parse results live (24 hours).
const parseCacheTTLSeconds = 86400

// artifactTypesByIntent is the fixed table deriving the artifact-type filter
// from a classified intent. The general intent carries no type filter.
var artifactTypesByIntent = map[entities.Intent][]string{
	entities.IntentRetrieveMedications: {"medication_order", "prescription"},
	entities.IntentRetrieveConditions:  {"problem_list", "diagnosis"},
	entities.IntentRetrieveLabs:        {"lab_result", "lab_report"},
	entities.IntentRetrieveNotes:       {"clinical_note", "progress_note"},
	entities.IntentRetrieveCarePlans:   {"care_plan"},
	entities.IntentRetrieveVitals:      {"vital_sign"},
	entities.IntentSummarize:           {"clinical_note", "care_plan", "medication_order"},
}

var (
	missingSynonymCounterOnce sync.Once
	missingSynonymCounter     metric.Int64Counter
)

// QueryUnderstandingService orchestrates intent classification, entity
// extraction, temporal parsing, and synonym expansion into one
// StructuredQuery. The pipeline is pure CPU work over immutable
// dictionaries and is safe for concurrent use.
type QueryUnderstandingService struct {
	classifier *IntentClassifier
	extractor  *EntityExtractor
	temporal   *TemporalParser
	expander   *QueryExpansionService
	cache      providers.CacheProvider
	now        func() time.Time
}

// ParseMetadata carries the per-type entity counts and confidence breakdown
// returned by ParseWithMetadata.
type ParseMetadata struct {
	EntityCounts       map[entities.EntityType]int `json:"entity_counts"`
	IntentConfidence   float64                     `json:"intent_confidence"`
	AlternativeIntents []entities.IntentScore      `json:"alternative_intents,omitempty"`
}

// BatchParseItem is one input to ParseBatch.
type BatchParseItem struct {
	Query     string `json:"query"`
	PatientID string `json:"patient_id"`
}

// BatchParseResult keys a parse outcome to its input. Err is set when the
// item failed validation; the rest of the batch is unaffected.
type BatchParseResult struct {
	Query  string                    `json:"query"`
	Result *entities.StructuredQuery `json:"result,omitempty"`
	Err    error                     `json:"-"`
}

// NewQueryUnderstandingService wires the four leaf parsers together.
func NewQueryUnderstandingService(
	classifier *IntentClassifier,
	extractor *EntityExtractor,
	temporal *TemporalParser,
	expander *QueryExpansionService,
) *QueryUnderstandingService {
	return &QueryUnderstandingService{
		classifier: classifier,
		extractor:  extractor,
		temporal:   temporal,
		expander:   expander,
		now:        time.Now,
	}
}

// SetCache sets an optional cache provider for parse results.
func (s *QueryUnderstandingService) SetCache(cache providers.CacheProvider) {
	s.cache = cache
}

// SetClock overrides the reference clock, for deterministic tests.
func (s *QueryUnderstandingService) SetClock(now func() time.Time) {
	s.now = now
}

// Parse turns a raw clinical question into a StructuredQuery. Validation
// failures (blank query, blank patient id, over-length query) return a
// typed error; semantic gaps (no intent keyword, no temporal phrase, no
// synonyms) degrade to defaults and never fail.
func (s *QueryUnderstandingService) Parse(query, patientID string) (*entities.StructuredQuery, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		s.recordParse("", false, start)
		return nil, apperrors.NewEmptyQueryError()
	}
	if strings.TrimSpace(patientID) == "" {
		s.recordParse("", false, start)
		return nil, apperrors.NewEmptyPatientIDError()
	}
	if utf8.RuneCountInString(query) > maxQueryLength {
		s.recordParse("", false, start)
		return nil, apperrors.NewQueryTooLongError(maxQueryLength)
	}

	sanitized := sanitizeWhitespace(query)

	if s.cache != nil {
		if cached := s.cachedParse(sanitized, patientID); cached != nil {
			s.recordParse(cached.Intent, true, start)
			return cached, nil
		}
	}

	intentResult := s.classifier.Classify(sanitized)
	extracted := s.extractor.Extract(sanitized)
	temporalFilter := s.temporal.Parse(sanitized, s.now())
	expanded := s.expander.Expand(sanitized, extracted)

	sq := &entities.StructuredQuery{
		QueryID:          uuid.New().String(),
		OriginalQuery:    query,
		PatientID:        patientID,
		Intent:           intentResult.Intent,
		IntentConfidence: intentResult.Confidence,
		Entities:         extracted,
		TemporalFilter:   temporalFilter,
		ExpandedTerms:    expanded.ExpandedTerms,
		SynonymMap:       expanded.SynonymMap,
	}
	for _, alt := range intentResult.Alternatives {
		sq.AmbiguousIntents = append(sq.AmbiguousIntents, alt.Intent)
	}

	sq.Filters.PatientID = patientID
	if types, ok := artifactTypesByIntent[intentResult.Intent]; ok {
		sq.Filters.ArtifactTypes = append([]string(nil), types...)
	}
	if temporalFilter != nil {
		sq.Filters.DateRange = &entities.DateRange{
			From: temporalFilter.DateFrom,
			To:   temporalFilter.DateTo,
		}
	}

	s.recordMissingSynonymMetrics(extracted, expanded)

	if s.cache != nil {
		if data, err := json.Marshal(sq); err == nil {
			_ = s.cache.Set(context.Background(), parseCacheKey(sanitized, patientID), data, parseCacheTTLSeconds)
		}
	}

	s.recordParse(sq.Intent, true, start)
	return sq, nil
}

// ParseWithMetadata parses the query and additionally reports per-type
// entity counts and the confidence breakdown.
func (s *QueryUnderstandingService) ParseWithMetadata(query, patientID string) (*entities.StructuredQuery, *ParseMetadata, error) {
	sq, err := s.Parse(query, patientID)
	if err != nil {
		return nil, nil, err
	}

	meta := &ParseMetadata{
		EntityCounts:     make(map[entities.EntityType]int),
		IntentConfidence: sq.IntentConfidence,
	}
	for _, ent := range sq.Entities {
		meta.EntityCounts[ent.Type]++
	}
	// The structured query keeps only the alternative intent names, so the
	// confidence breakdown is re-derived here.
	alt := s.classifier.Classify(sanitizeWhitespace(query))
	meta.AlternativeIntents = alt.Alternatives

	return sq, meta, nil
}

// ParseBatch applies Parse to each item independently. Output order matches
// input order, and one item's failure does not abort the rest.
func (s *QueryUnderstandingService) ParseBatch(items []BatchParseItem) []BatchParseResult {
	results := make([]BatchParseResult, len(items))
	for i, item := range items {
		sq, err := s.Parse(item.Query, item.PatientID)
		results[i] = BatchParseResult{Query: item.Query, Result: sq, Err: err}
	}
	return results
}

// HasSufficientContext reports whether the parsed query gives the retriever
// anything to narrow on: a non-general intent, at least one entity, or a
// temporal filter. Retrievers widen their search when this is false.
func (s *QueryUnderstandingService) HasSufficientContext(sq *entities.StructuredQuery) bool {
	if sq == nil {
		return false
	}
	return sq.Intent != entities.IntentGeneral || len(sq.Entities) > 0 || sq.TemporalFilter != nil
}

func (s *QueryUnderstandingService) cachedParse(sanitized, patientID string) *entities.StructuredQuery {
	data, err := s.cache.Get(context.Background(), parseCacheKey(sanitized, patientID))
	if err != nil {
		s.recordCacheOutcome(false)
		return nil
	}
	var cached entities.StructuredQuery
	if json.Unmarshal(data, &cached) != nil {
		s.recordCacheOutcome(false)
		return nil
	}
	s.recordCacheOutcome(true)
	// Each parse call owns a distinct query id, even on a cache hit.
	cached.QueryID = uuid.New().String()
	return &cached
}

func (s *QueryUnderstandingService) recordParse(intent entities.Intent, ok bool, start time.Time) {
	m := observability.Instruments()
	if m == nil {
		return
	}
	observability.RecordParseMetric(context.Background(), m, string(intent), ok, time.Since(start))
}

func (s *QueryUnderstandingService) recordCacheOutcome(hit bool) {
	m := observability.Instruments()
	if m == nil {
		return
	}
	if hit {
		observability.RecordCacheHit(context.Background(), m, "query_parse")
	} else {
		observability.RecordCacheMiss(context.Background(), m, "query_parse")
	}
}

func parseCacheKey(sanitized, patientID string) string {
	return "query_parse:" + patientID + ":" + strings.ToLower(sanitized)
}

func sanitizeWhitespace(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func initMissingSynonymCounter() {
	meter := otel.Meter("github.com/avonhealth/emrchat/backend/query_understanding")
	counter, err := meter.Int64Counter(
		"query.synonym_not_found.count",
		metric.WithDescription("Count of extracted medical terms absent from the synonym dictionary"),
	)
	if err == nil {
		missingSynonymCounter = counter
	}
}

func (s *QueryUnderstandingService) recordMissingSynonymMetrics(extracted []entities.Entity, expanded *entities.ExpandedQuery) {
	missingSynonymCounterOnce.Do(initMissingSynonymCounter)
	if missingSynonymCounter == nil {
		return
	}
	for _, ent := range extracted {
		switch ent.Type {
		case entities.EntityTypeMedication, entities.EntityTypeCondition, entities.EntityTypeSymptom:
		default:
			continue
		}
		key := strings.ToLower(ent.Text)
		if _, ok := expanded.SynonymMap[key]; ok {
			continue
		}
		if ent.NormalizedValue != "" {
			if _, ok := expanded.SynonymMap[ent.NormalizedValue]; ok {
				continue
			}
		}
		missingSynonymCounter.Add(
			context.Background(),
			1,
			metric.WithAttributes(attribute.String("query.term", key)),
		)
	}
}
