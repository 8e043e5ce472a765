// Package upstream provides the client for the flight scraper service: the
// slow, unreliable dependency that actually performs searches. The client
// classifies failures into recoverable and unrecoverable categories and
// retries the recoverable ones with backoff before they surface to the
// circuit breaker.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tripcache/flight-search/pkg/flight"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flights_upstream_requests_total",
		Help: "Total upstream search requests by status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flights_upstream_request_duration_seconds",
		Help:    "Upstream search request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flights_upstream_errors_total",
		Help: "Total upstream errors by kind",
	}, []string{"kind"})
)

// Searcher is the upstream dependency consumed by the orchestrator: anything
// that can turn search criteria into a result set.
type Searcher interface {
	Search(ctx context.Context, criteria flight.Criteria) (*flight.ResultSet, error)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the scraper service (e.g. "http://scraper:8000").
	BaseURL string

	// Timeout bounds one HTTP attempt. The caller's context still bounds
	// the whole search including retries.
	Timeout time.Duration

	// DisableRetry turns off backoff retries (useful in tests).
	DisableRetry bool
}

// Client is an HTTP client for the scraper service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      bool
	logger     zerolog.Logger
}

var _ Searcher = (*Client)(nil)

// NewClient creates a scraper-service client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		retry:      !cfg.DisableRetry,
		logger:     log.With().Str("component", "upstream-client").Logger(),
	}, nil
}

// Search asks the scraper service for itineraries matching the criteria.
// Recoverable failures (network, timeout, 5xx) are retried with backoff and
// returned as *Error for breaker classification; 4xx and undecodable
// responses are returned without retry.
func (c *Client) Search(ctx context.Context, criteria flight.Criteria) (*flight.ResultSet, error) {
	criteria = criteria.Normalized()

	start := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(start).Seconds())
	}()

	searchURL := c.searchURL(criteria)

	var rs *flight.ResultSet
	do := func() error {
		result, err := c.doSearch(ctx, searchURL, criteria)
		if err != nil {
			return err
		}
		rs = result
		return nil
	}

	var err error
	if c.retry {
		err = retryWithBackoff(ctx, do)
	} else {
		err = do()
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("origin", criteria.Origin).
		Str("destination", criteria.Destination).
		Int("itineraries", len(rs.Itineraries)).
		Dur("duration", time.Since(start)).
		Msg("Upstream search completed")
	return rs, nil
}

// doSearch performs one HTTP attempt and classifies any failure.
func (c *Client) doSearch(ctx context.Context, searchURL string, criteria flight.Criteria) (*flight.ResultSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindClient, Message: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := classifyTransport(err)
		upstreamErrorsTotal.WithLabelValues(string(kind)).Inc()
		upstreamRequestsTotal.WithLabelValues("transport_error").Inc()
		c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("Upstream request failed")
		return nil, &Error{Kind: kind, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode >= 500:
		upstreamErrorsTotal.WithLabelValues(string(KindServer)).Inc()
		return nil, &Error{StatusCode: resp.StatusCode, Kind: KindServer, Message: resp.Status}
	case resp.StatusCode >= 400:
		upstreamErrorsTotal.WithLabelValues(string(KindClient)).Inc()
		return nil, &Error{StatusCode: resp.StatusCode, Kind: KindClient, Message: resp.Status}
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		upstreamErrorsTotal.WithLabelValues(string(KindMalformed)).Inc()
		return nil, &Error{StatusCode: resp.StatusCode, Kind: KindMalformed, Message: "decode response", Err: err}
	}

	rs, err := payload.toResultSet(criteria)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(KindMalformed)).Inc()
		return nil, &Error{StatusCode: resp.StatusCode, Kind: KindMalformed, Message: "invalid response payload", Err: err}
	}
	return rs, nil
}

// searchURL builds the scraper search URL for the criteria.
func (c *Client) searchURL(criteria flight.Criteria) string {
	query := url.Values{}
	query.Set("origin", criteria.Origin)
	query.Set("destination", criteria.Destination)
	query.Set("departure", criteria.Departure.Format(flight.DateFormat))
	if !criteria.Return.IsZero() {
		query.Set("return", criteria.Return.Format(flight.DateFormat))
	}
	query.Set("passengers", strconv.Itoa(criteria.Passengers))
	if criteria.CheckedBags > 0 {
		query.Set("checked_baggage", strconv.Itoa(criteria.CheckedBags))
	}
	if criteria.CarryOnBags > 0 {
		query.Set("carry_on_baggage", strconv.Itoa(criteria.CarryOnBags))
	}
	query.Set("currency", criteria.Currency)

	return c.baseURL + "/api/v1/flights?" + query.Encode()
}

// classifyTransport separates deadline failures from other network failures.
func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// searchResponse is the scraper service wire format.
type searchResponse struct {
	Results []itineraryPayload `json:"results"`
}

type itineraryPayload struct {
	Outbound      legPayload   `json:"outbound"`
	ReturnFlights []legPayload `json:"return_flights"`
}

type legPayload struct {
	Date          string  `json:"date"`
	DepartureTime string  `json:"departure_time"`
	LandingTime   string  `json:"landing_time"`
	Price         string  `json:"price"`
	FlightSeconds float64 `json:"flight_time_seconds"`
}

func (p searchResponse) toResultSet(criteria flight.Criteria) (*flight.ResultSet, error) {
	itineraries := make([]flight.Itinerary, 0, len(p.Results))
	for i, result := range p.Results {
		outbound, err := result.Outbound.toLeg()
		if err != nil {
			return nil, fmt.Errorf("result %d outbound: %w", i, err)
		}
		var returns []flight.Leg
		for j, rf := range result.ReturnFlights {
			leg, err := rf.toLeg()
			if err != nil {
				return nil, fmt.Errorf("result %d return %d: %w", i, j, err)
			}
			returns = append(returns, leg)
		}
		itineraries = append(itineraries, flight.Itinerary{Outbound: outbound, Returns: returns})
	}
	return flight.NewResultSet(criteria, itineraries), nil
}

func (p legPayload) toLeg() (flight.Leg, error) {
	date, err := time.Parse(flight.DateFormat, p.Date)
	if err != nil {
		return flight.Leg{}, fmt.Errorf("parse date %q: %w", p.Date, err)
	}
	if _, err := time.Parse(flight.ClockFormat, p.DepartureTime); err != nil {
		return flight.Leg{}, fmt.Errorf("parse departure time %q: %w", p.DepartureTime, err)
	}
	if _, err := time.Parse(flight.ClockFormat, p.LandingTime); err != nil {
		return flight.Leg{}, fmt.Errorf("parse landing time %q: %w", p.LandingTime, err)
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return flight.Leg{}, fmt.Errorf("parse price %q: %w", p.Price, err)
	}
	return flight.Leg{
		Date:      date,
		Departure: p.DepartureTime,
		Landing:   p.LandingTime,
		Price:     price,
		Duration:  time.Duration(p.FlightSeconds * float64(time.Second)),
	}, nil
}
