package services

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

// QueryExpansionService expands query terms using a static medical synonym
// dictionary (abbreviations, lay terms, drug-class generalizations). The
// dictionary is loaded once at construction and never mutated.
type QueryExpansionService struct {
	synonyms map[string][]string
}

// NewQueryExpansionService loads the synonym dictionary from a JSON config
// file mapping term → synonym list.
func NewQueryExpansionService(synonymsPath string) (*QueryExpansionService, error) {
	data, err := os.ReadFile(synonymsPath)
	if err != nil {
		return nil, err
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	s := &QueryExpansionService{synonyms: make(map[string][]string, len(raw))}
	for term, syns := range raw {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" {
			continue
		}
		cleaned := make([]string, 0, len(syns))
		for _, syn := range syns {
			syn = strings.ToLower(strings.TrimSpace(syn))
			if syn != "" && syn != key {
				cleaned = append(cleaned, syn)
			}
		}
		s.synonyms[key] = cleaned
	}
	return s, nil
}

// Synonyms returns the dictionary synonyms for a term. An unknown term
// yields an empty list, never an error.
func (s *QueryExpansionService) Synonyms(term string) []string {
	return s.synonyms[strings.ToLower(strings.TrimSpace(term))]
}

// Expand derives one query variant per synonym of each medical entity by
// substituting the entity's exact text with the synonym (case-insensitive,
// regex-escaped match). ExpandedTerms always contains the original query
// first; a query whose terms have no dictionary entries expands to itself.
func (s *QueryExpansionService) Expand(query string, ents []entities.Entity) *entities.ExpandedQuery {
	result := &entities.ExpandedQuery{
		Original:      query,
		ExpandedTerms: []string{query},
		SynonymMap:    make(map[string][]string),
	}

	seen := map[string]struct{}{strings.ToLower(query): {}}
	for _, ent := range ents {
		switch ent.Type {
		case entities.EntityTypeMedication, entities.EntityTypeCondition, entities.EntityTypeSymptom:
		default:
			continue
		}

		key := strings.ToLower(ent.Text)
		syns, ok := s.synonyms[key]
		if !ok && ent.NormalizedValue != "" {
			key = ent.NormalizedValue
			syns, ok = s.synonyms[key]
		}
		if !ok || len(syns) == 0 {
			continue
		}
		if _, dup := result.SynonymMap[key]; !dup {
			result.SynonymMap[key] = syns
		}

		pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(ent.Text))
		if err != nil {
			continue
		}
		for _, syn := range syns {
			variant := pattern.ReplaceAllLiteralString(query, syn)
			lowered := strings.ToLower(variant)
			if _, dup := seen[lowered]; dup {
				continue
			}
			seen[lowered] = struct{}{}
			result.ExpandedTerms = append(result.ExpandedTerms, variant)
		}
	}
	return result
}

// BuildExpandedSearchTerms returns the boosted term list consumed by the
// external search layer: the original term first with a boost suffix, then
// its unboosted synonyms. The ordering is a contract with that layer.
func (s *QueryExpansionService) BuildExpandedSearchTerms(term string, synonyms []string) []string {
	terms := make([]string, 0, len(synonyms)+1)
	terms = append(terms, term+"^2")
	terms = append(terms, synonyms...)
	return terms
}
