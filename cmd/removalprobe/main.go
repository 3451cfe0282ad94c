// Command removalprobe writes one removal record through every encoding
// strategy against the configured Redis, reads it back and reports latency
// and fidelity per strategy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	rc "github.com/unkn0wn-root/removalcache"
	"github.com/unkn0wn-root/removalcache/codec"
	"github.com/unkn0wn-root/removalcache/config"
	asynchook "github.com/unkn0wn-root/removalcache/hooks/async"
	promhooks "github.com/unkn0wn-root/removalcache/hooks/prometheus"
	zaplog "github.com/unkn0wn-root/removalcache/log/zap"
	"github.com/unkn0wn-root/removalcache/model"
	"github.com/unkn0wn-root/removalcache/sloghooks"
	"github.com/unkn0wn-root/removalcache/strategy"
)

const summaryPrefix = "removalprobe:summary:"

// result is the outcome of one strategy.
type result struct {
	Strategy string        `json:"strategy"`
	Key      string        `json:"key"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Found    bool          `json:"found"`
	Faithful bool          `json:"faithful"`
	Err      string        `json:"err,omitempty"`
}

type summary struct {
	RequestID string    `json:"request_id"`
	At        time.Time `json:"at"`
	Async     bool      `json:"async"`
	Results   []result  `json:"results"`
}

func main() {
	truncate := flag.Bool("truncate", false, "delete every strategy key after the probe")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address until interrupted")
	async := flag.Bool("async", false, "route hash and set writes through the fire-and-forget path")
	flag.Parse()

	if err := run(*truncate, *metricsAddr, *async); err != nil {
		fmt.Fprintln(os.Stderr, "removalprobe:", err)
		os.Exit(1)
	}
}

func run(truncate bool, metricsAddr string, async bool) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	counters, err := promhooks.New(reg)
	if err != nil {
		return fmt.Errorf("register hooks: %w", err)
	}
	probeDuration := newProbeDuration(reg)
	logHooks := asynchook.New(sloghooks.New(hookLogger(logger), sloghooks.Options{OpFailedEvery: 10}), 1, 256)
	defer logHooks.Close()

	provider, err := cfg.RedisProvider()
	if err != nil {
		return fmt.Errorf("redis provider: %w", err)
	}
	store, err := rc.New(rc.Options{
		Provider:       provider,
		ReadPreference: cfg.ReadPreference,
		Logger:         zaplog.ZapLogger{L: logger},
		Hooks:          rc.MultiHooks{counters, logHooks},
		AsyncWorkers:   cfg.AsyncWorkers,
		AsyncQueue:     cfg.AsyncQueue,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	opts := []strategy.Option{strategy.WithMaxDecode(cfg.DocumentMaxDecodeBytes)}
	if async {
		opts = append(opts, strategy.WithFireAndForget())
	}
	strategies := strategy.Standard(store, opts...)
	rec := sampleRecord()

	logger.Info("probe starting",
		zap.String("request_id", rec.RequestID.String()),
		zap.Int("strategies", len(strategies)),
		zap.Stringer("read_preference", cfg.ReadPreference),
		zap.Duration("ttl", cfg.CacheTTL),
		zap.Bool("async", async))

	results := make([]result, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		i, s := i, s
		g.Go(func() error {
			results[i] = probe(gctx, s, rec, cfg.CacheTTL)
			probeDuration.WithLabelValues(s.Name()).Observe(results[i].Elapsed.Seconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		fields := []zap.Field{
			zap.String("strategy", r.Strategy),
			zap.String("key", r.Key),
			zap.Duration("elapsed", r.Elapsed),
			zap.Bool("found", r.Found),
			zap.Bool("faithful", r.Faithful),
		}
		switch {
		case r.Err != "":
			logger.Error("strategy failed", append(fields, zap.String("err", r.Err))...)
		case !r.Found && async:
			logger.Info("strategy write still in flight", fields...)
		case !r.Faithful:
			logger.Warn("strategy lost data", fields...)
		default:
			logger.Info("strategy ok", fields...)
		}
	}

	rc.NewStructured[summary](store, codec.JSON[summary]{}).Set(ctx, summaryPrefix+rec.RequestID.String(), summary{
		RequestID: rec.RequestID.String(),
		At:        time.Now().UTC(),
		Async:     async,
		Results:   results,
	}, cfg.CacheTTL)

	if truncate {
		n, err := store.TruncateByPattern(ctx, strategy.Patterns(strategies...)...)
		if err != nil {
			logger.Warn("truncate incomplete", zap.Int("deleted", n), zap.Error(err))
		} else {
			logger.Info("truncated strategy keys", zap.Int("deleted", n))
		}
	}

	if metricsAddr != "" {
		return serveMetrics(ctx, logger, metricsAddr, reg)
	}
	return nil
}

func probe(ctx context.Context, s strategy.Strategy, rec model.RemovalRecord, ttl time.Duration) result {
	r := result{Strategy: s.Name(), Key: s.Key(rec.Identity)}
	start := time.Now()
	if err := s.Write(ctx, rec, ttl); err != nil {
		r.Err = err.Error()
		r.Elapsed = time.Since(start)
		return r
	}
	got, found, err := s.Read(ctx, rec.Identity)
	r.Elapsed = time.Since(start)
	if err != nil {
		r.Err = err.Error()
		return r
	}
	r.Found = found
	r.Faithful = found && got.Equal(rec.Reasons)
	return r
}

func sampleRecord() model.RemovalRecord {
	return model.RemovalRecord{
		Identity: model.Identity{RequestID: uuid.New(), ProductID: 42, VariantID: uuid.New()},
		Reasons: model.Reasons{
			"OUT_OF_STOCK": {"E1", "E2"},
			"FRAUD":        {"E3"},
			"REGION_BLOCK": {uuid.NewString(), uuid.NewString()},
		},
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.LevelKey = "severity"
	return cfg.Build()
}

// hookLogger routes slog records into the zap core so hook events share the
// process log stream and level.
func hookLogger(l *zap.Logger) *slog.Logger {
	return slog.New(zapslog.NewHandler(l.Core()))
}

func serveMetrics(ctx context.Context, logger *zap.Logger, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
