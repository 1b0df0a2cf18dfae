package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/wyfcoding/goerp/pkg/metrics"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(1))
	assert.Equal(t, 4*time.Second, backoff(2))
	assert.Equal(t, 8*time.Second, backoff(3))

	assert.LessOrEqual(t, backoff(10), time.Minute, "backoff is capped")
	assert.LessOrEqual(t, backoff(100), time.Minute)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
	assert.Equal(t, "", truncate("", 5))
}

func TestSamplePendingSetsGauge(t *testing.T) {
	m := metrics.New("relaytest")
	r := &Relay{metrics: m}

	r.countPending = func(ctx context.Context) (int64, error) { return 7, nil }
	r.samplePending(context.Background())
	assert.Equal(t, 7.0, testutil.ToFloat64(m.OutboxPendingGauge))

	r.countPending = func(ctx context.Context) (int64, error) { return 0, nil }
	r.samplePending(context.Background())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OutboxPendingGauge))

	// 查询失败不把积压水位归零
	r.countPending = func(ctx context.Context) (int64, error) { return 3, nil }
	r.samplePending(context.Background())
	r.countPending = func(ctx context.Context) (int64, error) { return 0, errors.New("db unavailable") }
	r.samplePending(context.Background())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxPendingGauge))
}

func TestSamplePendingWithoutMetrics(t *testing.T) {
	r := &Relay{}
	r.countPending = func(ctx context.Context) (int64, error) { return 1, nil }
	assert.NotPanics(t, func() { r.samplePending(context.Background()) })
}
