package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_AllInstrumentsCreated(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)

	assert.NotNil(t, m.QueryParseCount)
	assert.NotNil(t, m.QueryParseDuration)
	assert.NotNil(t, m.RetrievalCount)
	assert.NotNil(t, m.RerankDuration)
	assert.NotNil(t, m.CacheHitCount)
	assert.NotNil(t, m.CacheMissCount)
}

func TestInstruments_SharedAndRecordable(t *testing.T) {
	m := Instruments()
	require.NotNil(t, m)
	assert.Same(t, m, Instruments())

	ctx := context.Background()
	RecordParseMetric(ctx, m, "retrieve_medications", true, 3*time.Millisecond)
	RecordParseMetric(ctx, m, "", false, time.Millisecond)
	RecordRetrievalMetric(ctx, m, 12)
	RecordRerankMetric(ctx, m, 12, 2*time.Millisecond)
	RecordCacheHit(ctx, m, "query_parse")
	RecordCacheMiss(ctx, m, "query_parse")
}

func TestStartSpan_RecordError(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "chunks.retrieve")
	defer span.End()

	require.NotNil(t, ctx)
	RecordError(span, errors.New("index unavailable"))
	RecordError(span, nil)
}
