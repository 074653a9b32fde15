package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kdscrypto/mboa-market-place-sub003/adapters/nats"
	promadapter "github.com/kdscrypto/mboa-market-place-sub003/adapters/prometheus"
	"github.com/kdscrypto/mboa-market-place-sub003/core/app"
	"github.com/kdscrypto/mboa-market-place-sub003/ports/kv"
)

// === Config ===

// NOTE: run nats: docker run --net=host nats:latest -js

var (
	logLevel    = slog.LevelInfo
	N           = getEnvInt("N", 50_000)
	keySpace    = getEnvInt("KEYS", 2_000)
	maxSize     = getEnvInt("MAX_SIZE", 500)
	ttl         = getEnvDuration("TTL", 30*time.Second)
	backendType = getEnv("BACKEND", "mem")
	dataDir     = getEnv("DATA_DIR", os.TempDir()+"/mboa-cache")
	metricsAddr = getEnv("METRICS_ADDR", "")
	persist     = getEnvBool("PERSIST", true)
)

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	return v == "1" || strings.ToLower(v) == "true"
}

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, fallback.String()))
	if err != nil {
		return fallback
	}
	return v
}

// Listing is the cached payload: a trimmed-down classified ad.
type Listing struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price int    `json:"price"`
	City  string `json:"city"`
}

var cities = []string{"Douala", "Yaoundé", "Bafoussam", "Garoua", "Bamenda"}

// fetchListing stands in for the backend query a cache miss falls back to.
func fetchListing(_ context.Context, id int) (Listing, error) {
	time.Sleep(50 * time.Microsecond)
	return Listing{
		ID:    fmt.Sprintf("ad-%d", id),
		Title: fmt.Sprintf("Listing #%d", id),
		Price: 1_000 + id%97*250,
		City:  cities[id%len(cities)],
	}, nil
}

func createStore(ctx context.Context, log *slog.Logger) (kv.Store, func(), error) {
	switch backendType {
	case "nats":
		s, err := nats.NewKvStore(ctx, nats.KvConfig{Bucket: "mboa_cache"})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "file":
		s, err := kv.NewFileStore(dataDir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using file store", slog.String("dir", dataDir))
		return s, func() {}, nil
	default:
		return kv.NewMemStore(), func() {}, nil
	}
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := createStore(ctx, log)
	checkErr(err)
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	scope := app.New(app.Config{
		ID:      "cachedemo",
		Context: ctx,
		Log:     log,
		Metrics: promadapter.NewCacheMetrics(reg),
		Storage: store,
	})

	opts := []app.Option{app.WithMaxSize(maxSize), app.WithDefaultTTL(ttl)}
	if persist {
		opts = append(opts, app.WithPersistence("listings"))
	}
	listings := app.Cache[Listing](scope, "listings", opts...)

	log.Info("starting",
		slog.String("backend", backendType),
		slog.Int("n", N),
		slog.Int("keys", keySpace),
		slog.Int("max_size", maxSize),
		slog.Duration("ttl", ttl),
		slog.Int("restored", listings.Len()),
	)

	// skewed key choice so a few listings are hot
	zipf := rand.NewZipf(rand.New(rand.NewSource(time.Now().UnixNano())), 1.2, 1, uint64(keySpace-1))

	startAt := time.Now()
	for i := 0; i < N && ctx.Err() == nil; i++ {
		id := int(zipf.Uint64())
		_, err := listings.GetOrLoad(ctx, fmt.Sprintf("ad:%d", id), func(ctx context.Context) (Listing, error) {
			return fetchListing(ctx, id)
		})
		checkErr(err)
	}
	elapsed := time.Since(startAt)

	st := listings.Stats()
	hitRatio := 0.0
	if st.Hits+st.Misses > 0 {
		hitRatio = float64(st.Hits) / float64(st.Hits+st.Misses)
	}
	log.Info("done",
		slog.Duration("elapsed", elapsed),
		slog.Int("size", st.Size),
		slog.Int64("hits", st.Hits),
		slog.Int64("misses", st.Misses),
		slog.Float64("hit_ratio", hitRatio),
		slog.Int64("evictions", st.Evictions),
		slog.Int64("expirations", st.Expirations),
		slog.Duration("avg_age", st.AverageAge),
		slog.Int64("est_bytes", st.EstimatedMemoryBytes),
	)

	if metricsAddr != "" {
		serveMetrics(ctx, log, reg)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	checkErr(scope.Shutdown(shutdownCtx))
}

// serveMetrics exposes the registry until ctx is cancelled.
func serveMetrics(ctx context.Context, log *slog.Logger, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics, interrupt to exit", slog.String("addr", metricsAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		checkErr(err)
	}
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}
