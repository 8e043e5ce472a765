package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tripcache/flight-search/pkg/breaker"
	"github.com/tripcache/flight-search/pkg/cache"
	"github.com/tripcache/flight-search/pkg/degrade"
	"github.com/tripcache/flight-search/pkg/finder"
	"github.com/tripcache/flight-search/pkg/flight"
	"github.com/tripcache/flight-search/pkg/logging"
	"github.com/tripcache/flight-search/pkg/upstream"
)

func main() {
	logger := logging.Setup(logging.FromEnv())

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("Server exited")
	}
}

func run(logger zerolog.Logger) error {
	redisURL := getEnv("REDIS_URL", "redis://localhost:6379")
	upstreamURL := getEnv("UPSTREAM_URL", "http://localhost:8000")
	port := getEnv("PORT", "8080")
	cacheTTL := getDurationEnv("CACHE_TTL", cache.DefaultTTL)
	upstreamTimeout := getDurationEnv("UPSTREAM_TIMEOUT", 30*time.Second)
	failureThreshold := getIntEnv("BREAKER_FAILURE_THRESHOLD", 3)
	recoveryDelay := getDurationEnv("BREAKER_RECOVERY_DELAY", time.Minute)

	ctx := context.Background()

	redisClient, err := cache.Connect(ctx, redisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()
	logger.Info().Str("redis_url", redisURL).Msg("Connected to Redis")

	store := cache.NewStore(redisClient)

	scraper, err := upstream.NewClient(upstream.Config{
		BaseURL: upstreamURL,
		Timeout: upstreamTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating upstream client: %w", err)
	}

	scraperBreaker, err := breaker.New(breaker.Config{
		Name:             "scraper",
		FailureThreshold: failureThreshold,
		RecoveryDelay:    recoveryDelay,
		Protected:        upstream.IsRecoverable,
	})
	if err != nil {
		return fmt.Errorf("creating circuit breaker: %w", err)
	}

	// Fallback table, most specific first: a tripped breaker before a
	// generic recoverable failure.
	fallbacks := degrade.NewDispatcher()
	fallbacks.RegisterIs(breaker.ErrServiceUnavailable, degrade.ServiceUnavailableStrategy)
	fallbacks.Register(upstream.IsRecoverable, degrade.UpstreamFailureStrategy)

	search, err := finder.New(finder.Config{
		Cache:           store,
		Breaker:         scraperBreaker,
		Upstream:        scraper,
		Fallbacks:       fallbacks,
		CacheTTL:        cacheTTL,
		UpstreamTimeout: upstreamTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating finder: %w", err)
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      newRouter(search, redisClient, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting flight-search server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRouter(search *finder.Finder, redisClient *redis.Client, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", healthHandler(redisClient))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/v1/flights", searchHandler(search, logger))

	return r
}

func healthHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	}
}

func searchHandler(search *finder.Finder, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		criteria, err := parseCriteria(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		resp, err := search.FindItineraries(r.Context(), criteria)
		if err != nil {
			if errors.Is(err, flight.ErrInvalidCriteria) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			logger.Error().Err(err).Msg("Search failed without fallback")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		if resp.Degraded() {
			if resp.Fallback.RetryAfterSeconds > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(resp.Fallback.RetryAfterSeconds))
			}
			writeJSON(w, http.StatusServiceUnavailable, resp.Fallback)
			return
		}

		writeJSON(w, http.StatusOK, newResultView(resp.Results))
	}
}

// parseCriteria maps query parameters onto search criteria. Validation
// proper happens in the finder; this only rejects unparseable values.
func parseCriteria(r *http.Request) (flight.Criteria, error) {
	q := r.URL.Query()
	criteria := flight.Criteria{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Currency:    q.Get("currency"),
	}

	if departure := q.Get("departure"); departure != "" {
		d, err := time.Parse(flight.DateFormat, departure)
		if err != nil {
			return flight.Criteria{}, fmt.Errorf("invalid departure date %q", departure)
		}
		criteria.Departure = d
	}
	if ret := q.Get("return"); ret != "" {
		d, err := time.Parse(flight.DateFormat, ret)
		if err != nil {
			return flight.Criteria{}, fmt.Errorf("invalid return date %q", ret)
		}
		criteria.Return = d
	}
	for param, target := range map[string]*int{
		"passengers":       &criteria.Passengers,
		"checked_baggage":  &criteria.CheckedBags,
		"carry_on_baggage": &criteria.CarryOnBags,
	} {
		if raw := q.Get(param); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return flight.Criteria{}, fmt.Errorf("invalid %s %q", param, raw)
			}
			*target = n
		}
	}

	return criteria, nil
}

// resultView is the search response wire format.
type resultView struct {
	ID          string          `json:"id"`
	Total       int             `json:"total"`
	Itineraries []itineraryView `json:"itineraries"`
}

type itineraryView struct {
	Outbound legView   `json:"outbound"`
	Returns  []legView `json:"return_flights"`
}

type legView struct {
	Date            string `json:"date"`
	DepartureTime   string `json:"departure_time"`
	LandingTime     string `json:"landing_time"`
	Price           string `json:"price"`
	DurationMinutes int64  `json:"duration_minutes"`
}

func newResultView(rs *flight.ResultSet) resultView {
	view := resultView{
		ID:          rs.ID.String(),
		Total:       len(rs.Itineraries),
		Itineraries: make([]itineraryView, 0, len(rs.Itineraries)),
	}
	for _, it := range rs.Itineraries {
		iv := itineraryView{Outbound: newLegView(it.Outbound), Returns: []legView{}}
		for _, leg := range it.Returns {
			iv.Returns = append(iv.Returns, newLegView(leg))
		}
		view.Itineraries = append(view.Itineraries, iv)
	}
	return view
}

func newLegView(l flight.Leg) legView {
	return legView{
		Date:            l.Date.Format(flight.DateFormat),
		DepartureTime:   l.Departure,
		LandingTime:     l.Landing,
		Price:           l.Price.String(),
		DurationMinutes: int64(l.Duration / time.Minute),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
