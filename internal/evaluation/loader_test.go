package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

func writeGoldenFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "golden.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGoldenQueries(t *testing.T) {
	path := writeGoldenFile(t, `[
		{
			"id": "g1",
			"query": "what medications is the patient taking",
			"patient_id": "p1",
			"expected_intent": "retrieve_medications",
			"relevant_chunks": ["c1", "c2"],
			"difficulty": "easy"
		}
	]`)

	queries, err := LoadGoldenQueries(path)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "g1", queries[0].ID)
	assert.Equal(t, entities.IntentRetrieveMedications, queries[0].ExpectedIntent)
	assert.Equal(t, []string{"c1", "c2"}, queries[0].RelevantChunks)
}

func TestLoadGoldenQueries_MissingFile(t *testing.T) {
	_, err := LoadGoldenQueries(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadGoldenQueries_MalformedJSON(t *testing.T) {
	path := writeGoldenFile(t, `{not json`)
	_, err := LoadGoldenQueries(path)
	assert.Error(t, err)
}

func validGolden() GoldenQuery {
	return GoldenQuery{
		ID:             "g1",
		Query:          "recent labs",
		PatientID:      "p1",
		ExpectedIntent: entities.IntentRetrieveLabs,
		RelevantChunks: []string{"c1"},
		Difficulty:     "easy",
	}
}

func TestValidateGoldenQueries(t *testing.T) {
	assert.NoError(t, ValidateGoldenQueries([]GoldenQuery{validGolden()}))

	missingID := validGolden()
	missingID.ID = ""
	assert.Error(t, ValidateGoldenQueries([]GoldenQuery{missingID}))

	dup := validGolden()
	assert.Error(t, ValidateGoldenQueries([]GoldenQuery{validGolden(), dup}))

	missingQuery := validGolden()
	missingQuery.Query = ""
	assert.Error(t, ValidateGoldenQueries([]GoldenQuery{missingQuery}))

	missingPatient := validGolden()
	missingPatient.PatientID = ""
	assert.Error(t, ValidateGoldenQueries([]GoldenQuery{missingPatient}))

	badIntent := validGolden()
	badIntent.ExpectedIntent = "retrieve_everything"
	assert.Error(t, ValidateGoldenQueries([]GoldenQuery{badIntent}))

	badDifficulty := validGolden()
	badDifficulty.Difficulty = "impossible"
	assert.Error(t, ValidateGoldenQueries([]GoldenQuery{badDifficulty}))
}
