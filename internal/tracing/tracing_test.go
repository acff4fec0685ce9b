package tracing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRunID(t *testing.T) {
	a := GenerateRunID()
	b := GenerateRunID()

	assert.True(t, strings.HasPrefix(a, "run_"))
	assert.NotEqual(t, a, b)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run_abc")
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithSpanID(ctx, "span-1")

	assert.Equal(t, "run_abc", GetRunID(ctx))
	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "span-1", GetSpanID(ctx))
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetRunID(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
	assert.True(t, GetStartTime(ctx).IsZero())
	assert.Equal(t, time.Duration(0), Duration(ctx))
}

func TestWithRunTracing(t *testing.T) {
	ctx := WithRunTracing(context.Background())

	assert.NotEmpty(t, GetRunID(ctx))
	assert.False(t, GetStartTime(ctx).IsZero())

	time.Sleep(time.Millisecond)
	assert.Greater(t, Duration(ctx), time.Duration(0))
}

func TestGetRunInfo(t *testing.T) {
	start := time.Now()
	ctx := context.Background()
	ctx = WithRunID(ctx, "run_1")
	ctx = WithTraceID(ctx, "t")
	ctx = WithSpanID(ctx, "s")
	ctx = WithStartTime(ctx, start)

	info := GetRunInfo(ctx)
	assert.Equal(t, "run_1", info.RunID)
	assert.Equal(t, "t", info.TraceID)
	assert.Equal(t, "s", info.SpanID)
	assert.Equal(t, start, info.StartTime)
}
