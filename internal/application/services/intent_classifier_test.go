package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

func TestClassify_Medications(t *testing.T) {
	c := newTestClassifier(t)
	result := c.Classify("What medications is the patient taking?")

	assert.Equal(t, entities.IntentRetrieveMedications, result.Intent)
	assert.Greater(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.Empty(t, result.Alternatives)
}

func TestClassify_PerIntentExamples(t *testing.T) {
	c := newTestClassifier(t)

	cases := []struct {
		query string
		want  entities.Intent
	}{
		{"show the most recent lab results", entities.IntentRetrieveLabs},
		{"what was documented at the last visit", entities.IntentRetrieveNotes},
		{"active problem list", entities.IntentRetrieveConditions},
		{"what is the current care plan", entities.IntentRetrieveCarePlans},
		{"latest vital signs", entities.IntentRetrieveVitals},
		{"give me an overview of this patient", entities.IntentSummarize},
	}
	for _, tc := range cases {
		result := c.Classify(tc.query)
		assert.Equal(t, tc.want, result.Intent, "query: %s", tc.query)
	}
}

func TestClassify_NoMatchIsGeneral(t *testing.T) {
	c := newTestClassifier(t)
	result := c.Classify("tell me about this person")

	assert.Equal(t, entities.IntentGeneral, result.Intent)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Alternatives)
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := newTestClassifier(t)
	lower := c.Classify("current medications")
	upper := c.Classify("CURRENT MEDICATIONS")

	assert.Equal(t, lower.Intent, upper.Intent)
	assert.Equal(t, lower.Confidence, upper.Confidence)
}

func TestClassify_TiedScoresReportAlternative(t *testing.T) {
	c := newTestClassifier(t)
	// "prescription" and "note" each carry weight 2.0 for their intents;
	// the tie breaks alphabetically and the runner-up is reported.
	result := c.Classify("prescription note")

	assert.Equal(t, entities.IntentRetrieveMedications, result.Intent)
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, entities.IntentRetrieveNotes, result.Alternatives[0].Intent)
	assert.Equal(t, result.Confidence, result.Alternatives[0].Confidence)
}

func TestClassify_DistantRunnerUpNotReported(t *testing.T) {
	c := newTestClassifier(t)
	// Medication keywords dominate; the single "visit" hit for notes falls
	// far outside the ambiguity margin.
	result := c.Classify("medications prescribed at the visit")

	assert.Equal(t, entities.IntentRetrieveMedications, result.Intent)
	assert.Empty(t, result.Alternatives)
}

func TestClassify_Deterministic(t *testing.T) {
	c := newTestClassifier(t)
	first := c.Classify("summarize the recent labs and notes")
	for i := 0; i < 20; i++ {
		again := c.Classify("summarize the recent labs and notes")
		assert.Equal(t, first, again)
	}
}
