package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"trust-gate/middleware/trustgate"
	"trust-gate/middleware/trustgate/application"
	"trust-gate/middleware/trustgate/domain"
	"trust-gate/middleware/trustgate/infra"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	policy, err := infra.LoadPolicy(cfg.policyFile)
	if err != nil {
		log.Fatalf("policy error: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	memWindows := infra.NewMemoryWindowStore(infra.WithIdleTTL(cfg.janitorIdleTTL))
	memWindows.StartJanitor(ctx)
	limiter := application.RateLimiter{Store: memWindows, Window: cfg.rateWindow}

	var rdb *redis.Client
	if cfg.redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
		// janelas compartilhadas entre réplicas; memória só como fallback.
		limiter = application.RateLimiter{
			Store:    infra.NewRedisWindowStore(rdb, infra.WithWindowPrefix(cfg.redisPrefix)),
			Fallback: memWindows,
			Window:   cfg.rateWindow,
		}
	}

	var stats domain.StatsStore
	if cfg.statsEnabled {
		if rdb == nil {
			log.Fatalf("STATS_ENABLED=true requires RATE_REDIS_ADDR")
		}
		stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
	}

	upstream := infra.UpstreamAction{BaseURL: cfg.upstreamURL}
	gate, err := trustgate.New(trustgate.Options{
		Policy:     policy,
		Limiter:    limiter,
		Notifier:   infra.LogNotifier{},
		Stats:      stats,
		Actions:    upstream.For,
		KeyFn:      trustgate.ClientKeyFunc(cfg.clientKeyHeader, cfg.trustXFF),
		Window:     cfg.rateWindow,
		IdleTTL:    cfg.janitorIdleTTL,
		WatchEvery: cfg.watchEvery,
	})
	if err != nil {
		log.Fatalf("gate error: %v", err)
	}
	gate.StartJanitor(ctx)

	r := chi.NewRouter()
	// /watch/* fica fora do limite de concorrência (conexões longas).
	api := gate.Mount(r, trustgate.ConcurrencyMiddleware(trustgate.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	}))

	routes := make([]string, 0, len(policy.Routes))
	for route := range policy.Routes {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	for _, route := range routes {
		protected := api.With(gate.RequireAccess(route))
		protected.Handle(route, proxy)
		protected.Handle(strings.TrimRight(route, "/")+"/*", proxy)
	}
	api.Handle("/*", proxy)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("policy: file=%q routes=%d forms=%d principals=%d", cfg.policyFile, len(policy.Routes), len(policy.Forms), len(policy.Principals))
	log.Printf("rate: window=%s redisAddr=%q clientKeyHeader=%q trustXFF=%v", cfg.rateWindow, cfg.redisAddr, cfg.clientKeyHeader, cfg.trustXFF)
	log.Printf("stats: enabled=%v bucket=%q ttl=%s trackKeys=%v", cfg.statsEnabled, cfg.statsBucket, cfg.statsTTL, cfg.statsTrackKeys)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr         string
	upstreamURL        string
	policyFile         string
	rateWindow         time.Duration
	clientKeyHeader    string
	trustXFF           bool
	concurrencyMax     int
	concurrencyTimeout time.Duration
	janitorIdleTTL     time.Duration
	watchEvery         time.Duration

	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string

	statsEnabled   bool
	statsPrefix    string
	statsTTL       time.Duration
	statsBucket    string
	statsTrackKeys bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.policyFile = getenvDefault("POLICY_FILE", "policy.yaml")
	cfg.rateWindow = getenvDurationDefault("RATE_WINDOW", domain.DefaultWindow)
	cfg.clientKeyHeader = os.Getenv("CLIENT_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)
	cfg.janitorIdleTTL = getenvDurationDefault("JANITOR_IDLE_TTL", 15*time.Minute)
	cfg.watchEvery = getenvDurationDefault("WATCH_EVERY", 2*time.Second)

	cfg.redisAddr = os.Getenv("RATE_REDIS_ADDR")
	cfg.redisPassword = os.Getenv("RATE_REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("RATE_REDIS_DB", 0)
	cfg.redisPrefix = getenvDefault("RATE_REDIS_PREFIX", "trustgate:window")

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "trustgate:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if strings.TrimSpace(cfg.policyFile) == "" {
		return config{}, errors.New("POLICY_FILE is required")
	}
	if cfg.rateWindow <= 0 {
		return config{}, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.statsEnabled && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("RATE_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
