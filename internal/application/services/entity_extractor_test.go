package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

func TestExtract_MedicationWithSpan(t *testing.T) {
	e := newTestExtractor(t)
	text := "Is the patient still taking Lisinopril?"
	ents := e.Extract(text)

	require.Len(t, ents, 1)
	assert.Equal(t, entities.EntityTypeMedication, ents[0].Type)
	assert.Equal(t, "Lisinopril", ents[0].Text)
	assert.Equal(t, "lisinopril", ents[0].NormalizedValue)
	assert.Equal(t, strings.Index(text, "Lisinopril"), ents[0].Start)
	assert.Equal(t, ents[0].Start+len("Lisinopril"), ents[0].End)
}

func TestExtract_OverlappingSpansKeepLonger(t *testing.T) {
	e := newTestExtractor(t)
	ents := e.Extract("does the patient have type 2 diabetes")

	require.Len(t, ents, 1)
	assert.Equal(t, entities.EntityTypeCondition, ents[0].Type)
	assert.Equal(t, "type 2 diabetes", ents[0].NormalizedValue)
}

func TestExtract_WordBoundary(t *testing.T) {
	e := newTestExtractor(t)
	// "aspiring" must not match the medication "aspirin".
	assert.Empty(t, e.Extract("an aspiring athlete"))
}

func TestExtract_DateEntity(t *testing.T) {
	e := newTestExtractor(t)

	for _, text := range []string{
		"labs drawn on 2024-03-15",
		"labs drawn on 3/15/2024",
		"labs drawn on March 15, 2024",
	} {
		ents := e.Extract(text)
		require.Len(t, ents, 1, "text: %s", text)
		assert.Equal(t, entities.EntityTypeDate, ents[0].Type)
	}
}

func TestExtract_PersonEntity(t *testing.T) {
	e := newTestExtractor(t)
	ents := e.Extract("notes written by Dr. Smith last week")

	require.Len(t, ents, 1)
	assert.Equal(t, entities.EntityTypePerson, ents[0].Type)
	assert.Equal(t, "Smith", ents[0].Text)
	assert.Equal(t, "smith", ents[0].NormalizedValue)
}

func TestExtract_MultipleTypesOrderedByStart(t *testing.T) {
	e := newTestExtractor(t)
	ents := e.Extract("started aspirin after the chest pain on 2024-01-10")

	require.Len(t, ents, 3)
	assert.Equal(t, entities.EntityTypeMedication, ents[0].Type)
	assert.Equal(t, entities.EntityTypeSymptom, ents[1].Type)
	assert.Equal(t, entities.EntityTypeDate, ents[2].Type)
	assert.True(t, ents[0].Start < ents[1].Start && ents[1].Start < ents[2].Start)
}

func TestExtract_NoEntities(t *testing.T) {
	e := newTestExtractor(t)
	assert.Empty(t, e.Extract("how is the patient doing overall"))
}

func TestExtract_NonASCIITextKeepsSpansValid(t *testing.T) {
	e := newTestExtractor(t)

	// Multi-byte runes whose lowercase form has a different byte length must
	// not shift or corrupt spans of terms that follow them.
	for _, text := range []string{
		"Ⱥ aspirin",
		"İ aspirin",
		"patient naïve to aspirin",
	} {
		ents := e.Extract(text)
		require.Len(t, ents, 1, "text: %s", text)
		assert.Equal(t, entities.EntityTypeMedication, ents[0].Type)
		assert.Equal(t, "aspirin", ents[0].Text)
		assert.Equal(t, strings.Index(text, "aspirin"), ents[0].Start)
		assert.Equal(t, ents[0].Start+len("aspirin"), ents[0].End)
	}
}

func TestExtract_MultiByteLetterIsWordChar(t *testing.T) {
	e := newTestExtractor(t)
	// A letter glued to the term is not a word boundary, multi-byte or not.
	assert.Empty(t, e.Extract("Ⱥaspirin"))
	assert.Empty(t, e.Extract("aspirinē"))
}

func TestExtract_RepeatedTermYieldsEachOccurrence(t *testing.T) {
	e := newTestExtractor(t)
	ents := e.Extract("metformin in the morning and metformin at night")

	require.Len(t, ents, 2)
	assert.Less(t, ents[0].Start, ents[1].Start)
	for _, ent := range ents {
		assert.Equal(t, "metformin", ent.NormalizedValue)
	}
}
