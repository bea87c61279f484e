package entities

import "time"

// EntityType is the category of a span extracted from query text.
type EntityType string

const (
	EntityTypeMedication EntityType = "medication"
	EntityTypeCondition  EntityType = "condition"
	EntityTypeSymptom    EntityType = "symptom"
	EntityTypeDate       EntityType = "date"
	EntityTypePerson     EntityType = "person"
)

// Entity is a typed span extracted from query text. Start and End are byte
// offsets into the sanitized query, half-open [Start, End).
type Entity struct {
	Type            EntityType `json:"type"`
	Text            string     `json:"text"`
	Start           int        `json:"start"`
	End             int        `json:"end"`
	NormalizedValue string     `json:"normalized_value,omitempty"`
}

// TemporalFilter is an explicit date range resolved from a temporal phrase.
// DateFrom is never after DateTo.
type TemporalFilter struct {
	TimeReference string    `json:"time_reference"`
	DateFrom      time.Time `json:"date_from"`
	DateTo        time.Time `json:"date_to"`
}

// DateRange is an inclusive date interval used in search filters.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SearchFilters is the structured filter set derived from a parsed query.
// A nil ArtifactTypes slice means no type filter; presence is checked
// explicitly, never by truthiness of the zero value.
type SearchFilters struct {
	PatientID     string     `json:"patient_id,omitempty"`
	ArtifactTypes []string   `json:"artifact_types,omitempty"`
	DateRange     *DateRange `json:"date_range,omitempty"`
	Author        string     `json:"author,omitempty"`
}

// ExpandedQuery holds synonym-expanded variants of a query. ExpandedTerms
// always contains at least the original query.
type ExpandedQuery struct {
	Original      string              `json:"original"`
	ExpandedTerms []string            `json:"expanded_terms"`
	SynonymMap    map[string][]string `json:"synonym_map"`
}

// VectorStoreFilter is a declarative predicate an external vector store can
// apply before similarity search. Date bounds are Unix seconds so stores
// that index epoch integers can filter without parsing timestamps.
type VectorStoreFilter struct {
	PatientID     string   `json:"patient_id,omitempty"`
	ArtifactTypes []string `json:"artifact_types,omitempty"`
	DateFromUnix  *int64   `json:"date_from_unix,omitempty"`
	DateToUnix    *int64   `json:"date_to_unix,omitempty"`
	Author        string   `json:"author,omitempty"`
}

// StructuredQuery is the parsed representation of a raw clinical question.
// It is created once per parse call and never mutated afterwards.
type StructuredQuery struct {
	QueryID          string              `json:"query_id"`
	OriginalQuery    string              `json:"original_query"`
	PatientID        string              `json:"patient_id"`
	Intent           Intent              `json:"intent"`
	IntentConfidence float64             `json:"intent_confidence"`
	AmbiguousIntents []Intent            `json:"ambiguous_intents,omitempty"`
	Entities         []Entity            `json:"entities"`
	TemporalFilter   *TemporalFilter     `json:"temporal_filter,omitempty"`
	ExpandedTerms    []string            `json:"expanded_terms,omitempty"`
	SynonymMap       map[string][]string `json:"synonym_map,omitempty"`
	Filters          SearchFilters       `json:"filters"`
}
