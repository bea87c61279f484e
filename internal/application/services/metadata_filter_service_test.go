package services

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

func makeCandidate(chunkID, patientID, artifactType, author, date string) entities.Candidate {
	return entities.Candidate{
		Chunk: entities.Chunk{ChunkID: chunkID, Text: "chunk " + chunkID},
		Metadata: entities.ChunkMetadata{
			PatientID:    patientID,
			ArtifactID:   "artifact-" + chunkID,
			ArtifactType: artifactType,
			Author:       author,
			Date:         date,
		},
	}
}

func filterFixture() []entities.Candidate {
	return []entities.Candidate{
		makeCandidate("c1", "p1", "clinical_note", "Dr. Adams", "2024-05-01"),
		makeCandidate("c2", "p1", "lab_result", "Dr. Baker", "2024-06-01"),
		makeCandidate("c3", "p1", "medication_order", "Dr. Adams", "2024-06-10T09:30:00Z"),
		makeCandidate("c4", "p2", "clinical_note", "Dr. Adams", "2024-05-01"),
		makeCandidate("c5", "p2", "lab_result", "Dr. Chen", "2023-12-31"),
		makeCandidate("c6", "p1", "clinical_note", "Dr. Baker", "not-a-date"),
	}
}

func chunkIDs(cs []entities.Candidate) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.Chunk.ChunkID
	}
	return ids
}

func TestFilter_PatientIsolation(t *testing.T) {
	s := NewMetadataFilterService()
	out := s.Filter(filterFixture(), entities.SearchFilters{PatientID: "p2"})
	assert.Equal(t, []string{"c4", "c5"}, chunkIDs(out))
}

func TestFilter_AllClausesAND(t *testing.T) {
	s := NewMetadataFilterService()
	out := s.Filter(filterFixture(), entities.SearchFilters{
		PatientID:     "p1",
		ArtifactTypes: []string{"clinical_note", "lab_result"},
		DateRange: &entities.DateRange{
			From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		},
		Author: "dr. adams",
	})
	assert.Equal(t, []string{"c1"}, chunkIDs(out))
}

func TestFilter_AuthorCaseInsensitive(t *testing.T) {
	s := NewMetadataFilterService()
	out := s.Filter(filterFixture(), entities.SearchFilters{Author: "DR. CHEN"})
	assert.Equal(t, []string{"c5"}, chunkIDs(out))
}

func TestFilter_DateRangeInclusiveBounds(t *testing.T) {
	s := NewMetadataFilterService()
	out := s.Filter(filterFixture(), entities.SearchFilters{
		DateRange: &entities.DateRange{
			From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	// Candidates dated exactly on either bound are kept.
	assert.Equal(t, []string{"c1", "c2", "c4"}, chunkIDs(out))
}

func TestFilter_MalformedDateExcludedByDateRange(t *testing.T) {
	s := NewMetadataFilterService()
	out := s.Filter(filterFixture(), entities.SearchFilters{
		PatientID: "p1",
		DateRange: &entities.DateRange{
			From: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	assert.NotContains(t, chunkIDs(out), "c6")
}

func TestFilter_EmptyFiltersMatchAll(t *testing.T) {
	s := NewMetadataFilterService()
	fixture := filterFixture()
	out := s.Filter(fixture, entities.SearchFilters{})
	assert.Len(t, out, len(fixture))
}

func TestFilter_EmptyResultIsValid(t *testing.T) {
	s := NewMetadataFilterService()
	out := s.Filter(filterFixture(), entities.SearchFilters{PatientID: "p999"})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestFilterIndexed_MatchesLinearScan(t *testing.T) {
	s := NewMetadataFilterService()

	var candidates []entities.Candidate
	for i := 0; i < 40; i++ {
		candidates = append(candidates, makeCandidate(
			fmt.Sprintf("c%02d", i),
			fmt.Sprintf("p%d", i%3),
			[]string{"clinical_note", "lab_result", "medication_order", "care_plan"}[i%4],
			[]string{"Dr. Adams", "Dr. Baker"}[i%2],
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i*4).Format("2006-01-02"),
		))
	}
	candidates = append(candidates, makeCandidate("bad", "p0", "clinical_note", "Dr. Adams", "garbage"))

	idx := s.BuildIndex(candidates)

	filterSets := []entities.SearchFilters{
		{PatientID: "p1"},
		{ArtifactTypes: []string{"lab_result", "care_plan"}},
		{DateRange: &entities.DateRange{
			From: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		}},
		{PatientID: "p2", ArtifactTypes: []string{"clinical_note"}, Author: "dr. adams"},
		{PatientID: "p0", DateRange: &entities.DateRange{
			From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		}},
		{},
	}

	for _, filters := range filterSets {
		linear := chunkIDs(s.Filter(candidates, filters))
		indexed := chunkIDs(s.FilterIndexed(idx, filters))
		sort.Strings(linear)
		sort.Strings(indexed)
		assert.Equal(t, linear, indexed, "filters: %+v", filters)
	}
}

func TestToVectorStoreFilter(t *testing.T) {
	s := NewMetadataFilterService()
	from := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	vf := s.ToVectorStoreFilter(entities.SearchFilters{
		PatientID:     "p1",
		ArtifactTypes: []string{"medication_order", "prescription"},
		DateRange:     &entities.DateRange{From: from, To: to},
		Author:        "Dr. Adams",
	})

	assert.Equal(t, "p1", vf.PatientID)
	assert.Equal(t, []string{"medication_order", "prescription"}, vf.ArtifactTypes)
	assert.Equal(t, "Dr. Adams", vf.Author)
	require.NotNil(t, vf.DateFromUnix)
	require.NotNil(t, vf.DateToUnix)
	assert.Equal(t, from.Unix(), *vf.DateFromUnix)
	assert.Equal(t, to.Unix(), *vf.DateToUnix)
}

func TestToVectorStoreFilter_OmitsAbsentClauses(t *testing.T) {
	s := NewMetadataFilterService()
	vf := s.ToVectorStoreFilter(entities.SearchFilters{PatientID: "p1"})

	assert.Nil(t, vf.ArtifactTypes)
	assert.Nil(t, vf.DateFromUnix)
	assert.Nil(t, vf.DateToUnix)
	assert.Empty(t, vf.Author)
}
