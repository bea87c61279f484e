package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// temporalRef is a fixed Saturday used as the reference clock in these tests.
var temporalRef = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestTemporalParse_LastNUnits(t *testing.T) {
	p := NewTemporalParser()

	tf := p.Parse("medications in the last 3 months", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, "last 3 months", tf.TimeReference)
	assert.Equal(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), tf.DateFrom)
	assert.Equal(t, temporalRef, tf.DateTo)

	tf = p.Parse("labs from the last 10 days", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC), tf.DateFrom)
}

func TestTemporalParse_LastUnit(t *testing.T) {
	p := NewTemporalParser()
	tf := p.Parse("notes from the last week", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, temporalRef.AddDate(0, 0, -7), tf.DateFrom)
	assert.Equal(t, temporalRef, tf.DateTo)
}

func TestTemporalParse_Since(t *testing.T) {
	p := NewTemporalParser()

	tf := p.Parse("everything since January 5, 2024", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), tf.DateFrom)
	assert.Equal(t, temporalRef, tf.DateTo)

	tf = p.Parse("labs since 2023", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), tf.DateFrom)
}

func TestTemporalParse_SinceWithTrailingWords(t *testing.T) {
	p := NewTemporalParser()

	// The date phrase runs into trailing words with no punctuation; the range
	// must still be [date, now], not a 1-day window around the bare date.
	tf := p.Parse("since March 2024 were the medications changed", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), tf.DateFrom)
	assert.Equal(t, temporalRef, tf.DateTo)

	tf = p.Parse("since January 5, 2024 has anything changed", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), tf.DateFrom)
	assert.Equal(t, temporalRef, tf.DateTo)
}

func TestTemporalParse_Between(t *testing.T) {
	p := NewTemporalParser()
	tf := p.Parse("visits between January 1, 2024 and March 1, 2024", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), tf.DateFrom)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), tf.DateTo)
}

func TestTemporalParse_BetweenInvertedBoundsSwap(t *testing.T) {
	p := NewTemporalParser()
	tf := p.Parse("visits between March 1, 2024 and January 1, 2024", temporalRef)
	require.NotNil(t, tf)
	assert.True(t, tf.DateFrom.Before(tf.DateTo))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), tf.DateFrom)
}

func TestTemporalParse_ThisPeriod(t *testing.T) {
	p := NewTemporalParser()

	tf := p.Parse("appointments this week", temporalRef)
	require.NotNil(t, tf)
	// The reference date is a Saturday; the week starts on Monday the 10th.
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), tf.DateFrom)
	assert.Equal(t, temporalRef, tf.DateTo)

	tf = p.Parse("labs this month", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), tf.DateFrom)

	tf = p.Parse("visits this year", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), tf.DateFrom)
}

func TestTemporalParse_UnitsAgoIsOneDayWindow(t *testing.T) {
	p := NewTemporalParser()
	tf := p.Parse("the visit 2 weeks ago", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, temporalRef.AddDate(0, 0, -14), tf.DateFrom)
	assert.Equal(t, tf.DateFrom.Add(24*time.Hour), tf.DateTo)
}

func TestTemporalParse_Yesterday(t *testing.T) {
	p := NewTemporalParser()
	tf := p.Parse("what happened yesterday", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), tf.DateFrom)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), tf.DateTo)
}

func TestTemporalParse_AbsoluteDate(t *testing.T) {
	p := NewTemporalParser()

	for _, text := range []string{
		"the lab result from 2024-03-15",
		"the lab result from 3/15/2024",
		"the lab result from March 15, 2024",
	} {
		tf := p.Parse(text, temporalRef)
		require.NotNil(t, tf, "text: %s", text)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), tf.DateFrom, "text: %s", text)
		assert.Equal(t, tf.DateFrom.Add(24*time.Hour), tf.DateTo, "text: %s", text)
	}
}

func TestTemporalParse_LeftmostPhraseWins(t *testing.T) {
	p := NewTemporalParser()
	tf := p.Parse("since 2023, but focus on the last 2 weeks", temporalRef)
	require.NotNil(t, tf)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), tf.DateFrom)
	assert.Equal(t, temporalRef, tf.DateTo)
}

func TestTemporalParse_NoPhraseYieldsNil(t *testing.T) {
	p := NewTemporalParser()
	assert.Nil(t, p.Parse("current medications", temporalRef))
	assert.Nil(t, p.Parse("", temporalRef))
}

func TestTemporalParse_AlwaysOrdered(t *testing.T) {
	p := NewTemporalParser()
	queries := []string{
		"last 6 months", "since March 2024", "between 2023 and 2024",
		"3 days ago", "yesterday", "this year", "labs on 2024-02-29",
	}
	for _, q := range queries {
		tf := p.Parse(q, temporalRef)
		require.NotNil(t, tf, "query: %s", q)
		assert.False(t, tf.DateFrom.After(tf.DateTo), "query: %s", q)
	}
}
