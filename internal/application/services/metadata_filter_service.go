package services

import (
	"strings"
	"time"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

// candidateDateLayouts are the accepted metadata timestamp forms.
var candidateDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseCandidateDate parses a candidate's ISO-8601 metadata date.
func parseCandidateDate(date string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, false
	}
	for _, layout := range candidateDateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MetadataFilterService applies a structured filter set to a candidate set.
// All clauses combine with AND semantics. It supports a linear scan and an
// index-accelerated mode with identical output sets.
type MetadataFilterService struct{}

// NewMetadataFilterService creates a new metadata filter service.
func NewMetadataFilterService() *MetadataFilterService {
	return &MetadataFilterService{}
}

// Filter returns the candidates matching every present filter clause,
// preserving input order. An empty result is a valid outcome.
func (s *MetadataFilterService) Filter(candidates []entities.Candidate, filters entities.SearchFilters) []entities.Candidate {
	matched := make([]entities.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if matchesFilters(c, filters) {
			matched = append(matched, c)
		}
	}
	return matched
}

func matchesFilters(c entities.Candidate, f entities.SearchFilters) bool {
	if f.PatientID != "" && c.Metadata.PatientID != f.PatientID {
		return false
	}
	if len(f.ArtifactTypes) > 0 && !containsString(f.ArtifactTypes, c.Metadata.ArtifactType) {
		return false
	}
	if f.DateRange != nil {
		t, ok := parseCandidateDate(c.Metadata.Date)
		if !ok {
			return false
		}
		if t.Before(f.DateRange.From) || t.After(f.DateRange.To) {
			return false
		}
	}
	if f.Author != "" && !strings.EqualFold(c.Metadata.Author, f.Author) {
		return false
	}
	return true
}

// CandidateIndex pre-buckets a candidate batch by patient id, artifact type,
// and event-day for O(1) average lookups. It is built once per batch and
// never persisted across requests.
type CandidateIndex struct {
	candidates []entities.Candidate
	byPatient  map[string][]int
	byType     map[string][]int
	byDay      map[string][]int
}

// BuildIndex buckets the candidate batch for FilterIndexed.
func (s *MetadataFilterService) BuildIndex(candidates []entities.Candidate) *CandidateIndex {
	idx := &CandidateIndex{
		candidates: candidates,
		byPatient:  make(map[string][]int),
		byType:     make(map[string][]int),
		byDay:      make(map[string][]int),
	}
	for i, c := range candidates {
		if c.Metadata.PatientID != "" {
			idx.byPatient[c.Metadata.PatientID] = append(idx.byPatient[c.Metadata.PatientID], i)
		}
		if c.Metadata.ArtifactType != "" {
			idx.byType[c.Metadata.ArtifactType] = append(idx.byType[c.Metadata.ArtifactType], i)
		}
		if t, ok := parseCandidateDate(c.Metadata.Date); ok {
			day := t.UTC().Format("2006-01-02")
			idx.byDay[day] = append(idx.byDay[day], i)
		}
	}
	return idx
}

// FilterIndexed returns the same candidate set as Filter for any input; only
// the internal iteration order differs. The most selective present clause
// picks the bucket list, and every surviving candidate is re-verified against
// the full filter set.
func (s *MetadataFilterService) FilterIndexed(idx *CandidateIndex, filters entities.SearchFilters) []entities.Candidate {
	var ids []int
	switch {
	case filters.PatientID != "":
		ids = idx.byPatient[filters.PatientID]
	case len(filters.ArtifactTypes) > 0:
		for _, t := range filters.ArtifactTypes {
			ids = append(ids, idx.byType[t]...)
		}
	case filters.DateRange != nil:
		for day, dayIDs := range idx.byDay {
			// Day buckets use UTC dates; bucket-level bounds widen by one
			// day on each side, the per-candidate check below is exact.
			bucket, err := time.Parse("2006-01-02", day)
			if err != nil {
				continue
			}
			if bucket.Before(filters.DateRange.From.UTC().AddDate(0, 0, -1)) ||
				bucket.After(filters.DateRange.To.UTC().AddDate(0, 0, 1)) {
				continue
			}
			ids = append(ids, dayIDs...)
		}
	default:
		ids = make([]int, len(idx.candidates))
		for i := range idx.candidates {
			ids[i] = i
		}
	}

	matched := make([]entities.Candidate, 0, len(ids))
	for _, i := range ids {
		if matchesFilters(idx.candidates[i], filters) {
			matched = append(matched, idx.candidates[i])
		}
	}
	return matched
}

// ToVectorStoreFilter renders the filter set into the declarative predicate
// consumed by the external vector store. This is the only interface the
// filter exposes outward.
func (s *MetadataFilterService) ToVectorStoreFilter(f entities.SearchFilters) entities.VectorStoreFilter {
	vf := entities.VectorStoreFilter{
		PatientID: f.PatientID,
		Author:    f.Author,
	}
	if len(f.ArtifactTypes) > 0 {
		vf.ArtifactTypes = append([]string(nil), f.ArtifactTypes...)
	}
	if f.DateRange != nil {
		from := f.DateRange.From.Unix()
		to := f.DateRange.To.Unix()
		vf.DateFromUnix = &from
		vf.DateToUnix = &to
	}
	return vf
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
