package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	rc "github.com/unkn0wn-root/removalcache"
	"github.com/unkn0wn-root/removalcache/internal/faultprov"
	"github.com/unkn0wn-root/removalcache/provider/memory"
	"github.com/unkn0wn-root/removalcache/sloghooks"
	"github.com/unkn0wn-root/removalcache/strategy"
)

func TestProbe_EveryStrategyFaithful(t *testing.T) {
	ctx := context.Background()
	store, err := rc.New(rc.Options{Provider: memory.New()})
	require.NoError(t, err)
	defer store.Close(ctx)

	rec := sampleRecord()
	for _, s := range strategy.Standard(store) {
		r := probe(ctx, s, rec, time.Minute)
		assert.Empty(t, r.Err, s.Name())
		assert.True(t, r.Found, s.Name())
		assert.True(t, r.Faithful, s.Name())
		assert.Equal(t, s.Key(rec.Identity), r.Key)
		assert.Greater(t, r.Elapsed, time.Duration(0))
	}
}

func TestProbe_ReportsScalarFailure(t *testing.T) {
	ctx := context.Background()
	fp := faultprov.Wrap(memory.New()).Down(nil)
	store, err := rc.New(rc.Options{Provider: fp})
	require.NoError(t, err)
	defer store.Close(ctx)

	rec := sampleRecord()
	r := probe(ctx, strategy.NewDelimited(store), rec, 0)
	assert.Contains(t, r.Err, r.Key)
	assert.False(t, r.Found)

	// contained strategies just come back empty
	r = probe(ctx, strategy.NewHash(store), rec, 0)
	assert.Empty(t, r.Err)
	assert.False(t, r.Found)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestProbeDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newProbeDuration(reg)
	h.WithLabelValues("hash").Observe(0.01)
	assert.Equal(t, 1, testutil.CollectAndCount(h))
}

func TestHookLogger_WritesThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	hooks := sloghooks.New(hookLogger(zap.New(core)), sloghooks.Options{})

	hooks.OpFailed(rc.OpGetHash, "o3_hash:6f1c", assert.AnError)

	entries := logs.FilterMessage("removalcache.op_failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, rc.OpGetHash, entries[0].ContextMap()["op"])
	assert.NotEqual(t, "o3_hash:6f1c", entries[0].ContextMap()["key"], "key must stay redacted")
}

func TestHookLogger_HonorsZapLevel(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	hooks := sloghooks.New(hookLogger(zap.New(core)), sloghooks.Options{})

	hooks.OpFailed(rc.OpGetHash, "k", assert.AnError)
	assert.Zero(t, logs.Len())
}
