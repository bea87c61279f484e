package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecallAtK(t *testing.T) {
	relevant := []string{"c1", "c2", "c3", "c4"}

	assert.Equal(t, 1.0, RecallAtK(relevant, []string{"c1", "c2", "c3", "c4"}, 10))
	assert.Equal(t, 0.5, RecallAtK(relevant, []string{"c1", "x", "c2", "y"}, 10))
	assert.Equal(t, 0.25, RecallAtK(relevant, []string{"x", "c3"}, 10))
	assert.Equal(t, 0.0, RecallAtK(relevant, []string{"x", "y"}, 10))
	assert.Equal(t, 0.0, RecallAtK(relevant, nil, 10))
}

func TestRecallAtK_RespectsCutoff(t *testing.T) {
	relevant := []string{"c1"}
	// The relevant id sits at position 3 but k=2 cuts it off.
	assert.Equal(t, 0.0, RecallAtK(relevant, []string{"x", "y", "c1"}, 2))
	assert.Equal(t, 1.0, RecallAtK(relevant, []string{"x", "y", "c1"}, 3))
}

func TestRecallAtK_EmptyRelevant(t *testing.T) {
	assert.Equal(t, 0.0, RecallAtK(nil, []string{"c1"}, 10))
}

func TestMRRAtK(t *testing.T) {
	relevant := []string{"c1", "c2"}

	assert.Equal(t, 1.0, MRRAtK(relevant, []string{"c1", "x"}, 10))
	assert.Equal(t, 0.5, MRRAtK(relevant, []string{"x", "c2"}, 10))
	assert.InDelta(t, 1.0/3.0, MRRAtK(relevant, []string{"x", "y", "c1"}, 10), 1e-9)
	assert.Equal(t, 0.0, MRRAtK(relevant, []string{"x", "y"}, 10))
	assert.Equal(t, 0.0, MRRAtK(relevant, []string{"x", "y", "c1"}, 2))
	assert.Equal(t, 0.0, MRRAtK(nil, []string{"x"}, 10))
}

func TestPrecisionAtK(t *testing.T) {
	relevant := []string{"c1", "c2"}

	assert.Equal(t, 1.0, PrecisionAtK(relevant, []string{"c1", "c2"}, 2))
	assert.Equal(t, 0.5, PrecisionAtK(relevant, []string{"c1", "x"}, 2))
	assert.Equal(t, 0.0, PrecisionAtK(relevant, []string{"x", "y"}, 2))
	assert.Equal(t, 0.0, PrecisionAtK(relevant, nil, 2))
	assert.Equal(t, 0.0, PrecisionAtK(relevant, []string{"c1"}, 0))
}
