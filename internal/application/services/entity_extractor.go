package services

import (
	"encoding/json"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

// entityDictionaries is the on-disk shape of the entity dictionary config.
type entityDictionaries struct {
	Medications []string `json:"medications"`
	Conditions  []string `json:"conditions"`
	Symptoms    []string `json:"symptoms"`
}

var (
	// Absolute dates in ISO, slash, and common written forms.
	dateEntityPattern = regexp.MustCompile(`(?i)\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:,\s*|\s+)\d{4}|\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{4})\b`)

	// Capitalized name after a clinical title.
	personEntityPattern = regexp.MustCompile(`\b(?:Dr|Doctor|Nurse|Prof|NP|PA)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
)

// EntityExtractor extracts typed entities from query text via independent
// dictionary and pattern passes. Overlapping spans of the same type are
// merged keeping the longer span; spans of different types may coexist.
type EntityExtractor struct {
	medications []string
	conditions  []string
	symptoms    []string
}

// NewEntityExtractor loads the term dictionaries from a JSON config file.
// Terms are lowercased and sorted longest-first so the longest dictionary
// match at a position wins within its pass.
func NewEntityExtractor(dictPath string) (*EntityExtractor, error) {
	data, err := os.ReadFile(dictPath)
	if err != nil {
		return nil, err
	}

	var raw entityDictionaries
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	return &EntityExtractor{
		medications: normalizeTermList(raw.Medications),
		conditions:  normalizeTermList(raw.Conditions),
		symptoms:    normalizeTermList(raw.Symptoms),
	}, nil
}

func normalizeTermList(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) == len(out[j]) {
			return out[i] < out[j]
		}
		return len(out[i]) > len(out[j])
	})
	return out
}

// Extract runs all passes and returns entities ordered left-to-right by
// start offset.
func (e *EntityExtractor) Extract(text string) []entities.Entity {
	var out []entities.Entity
	out = append(out, e.dictionaryPass(text, e.medications, entities.EntityTypeMedication)...)
	out = append(out, e.dictionaryPass(text, e.conditions, entities.EntityTypeCondition)...)
	out = append(out, e.dictionaryPass(text, e.symptoms, entities.EntityTypeSymptom)...)
	out = append(out, e.datePass(text)...)
	out = append(out, e.personPass(text)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start == out[j].Start {
			return out[i].End > out[j].End
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// dictionaryPass finds every word-bounded occurrence of the dictionary terms
// and de-duplicates overlapping spans, keeping the longer span. Matching is
// done against an ASCII case fold of the text so offsets stay valid in the
// original even when it contains multi-byte runes.
func (e *EntityExtractor) dictionaryPass(text string, terms []string, entityType entities.EntityType) []entities.Entity {
	lower := asciiFold(text)
	var found []entities.Entity
	for _, term := range terms {
		offset := 0
		for {
			pos := strings.Index(lower[offset:], term)
			if pos < 0 {
				break
			}
			start := offset + pos
			end := start + len(term)
			if hasWordBoundary(lower, start, end) {
				found = append(found, entities.Entity{
					Type:            entityType,
					Text:            text[start:end],
					Start:           start,
					End:             end,
					NormalizedValue: term,
				})
			}
			offset = end
		}
	}
	return mergeOverlappingSpans(found)
}

func (e *EntityExtractor) datePass(text string) []entities.Entity {
	var found []entities.Entity
	for _, loc := range dateEntityPattern.FindAllStringIndex(text, -1) {
		found = append(found, entities.Entity{
			Type:  entities.EntityTypeDate,
			Text:  text[loc[0]:loc[1]],
			Start: loc[0],
			End:   loc[1],
		})
	}
	return mergeOverlappingSpans(found)
}

func (e *EntityExtractor) personPass(text string) []entities.Entity {
	var found []entities.Entity
	for _, loc := range personEntityPattern.FindAllStringSubmatchIndex(text, -1) {
		// loc[2:4] is the capture group holding the name itself.
		start, end := loc[2], loc[3]
		found = append(found, entities.Entity{
			Type:            entities.EntityTypePerson,
			Text:            text[start:end],
			Start:           start,
			End:             end,
			NormalizedValue: strings.ToLower(text[start:end]),
		})
	}
	return mergeOverlappingSpans(found)
}

// mergeOverlappingSpans keeps the longer of any two overlapping spans of the
// same type. Spans are returned ordered by start offset.
func mergeOverlappingSpans(spans []entities.Entity) []entities.Entity {
	if len(spans) < 2 {
		return spans
	}

	// Longest spans claim their range first.
	sort.SliceStable(spans, func(i, j int) bool {
		li, lj := spans[i].End-spans[i].Start, spans[j].End-spans[j].Start
		if li == lj {
			return spans[i].Start < spans[j].Start
		}
		return li > lj
	})

	var kept []entities.Entity
	for _, s := range spans {
		overlaps := false
		for _, k := range kept {
			if s.Start < k.End && k.Start < s.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, s)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

// asciiFold lowercases ASCII letters only. Unlike strings.ToLower it never
// changes the byte length of the string, so byte offsets into the folded
// text index the original text too. Dictionary terms are ASCII.
func asciiFold(text string) string {
	var b []byte
	for i := 0; i < len(text); i++ {
		if c := text[i]; c >= 'A' && c <= 'Z' {
			if b == nil {
				b = []byte(text)
			}
			b[i] = c + ('a' - 'A')
		}
	}
	if b == nil {
		return text
	}
	return string(b)
}

func hasWordBoundary(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordChar(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordChar(r) {
			return false
		}
	}
	return true
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
