// Package testutil provides testing utilities for the flight-search service.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockUpstreamResponse defines one canned response from the mock scraper.
type MockUpstreamResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// EmptyResultsBody is a valid scraper payload with zero itineraries.
const EmptyResultsBody = `{"results":[]}`

// MockUpstream is a configurable mock scraper-service server for testing.
// Responses queued with Enqueue are served one-shot in order; once the queue
// drains, the default response is served.
type MockUpstream struct {
	server *httptest.Server

	mu           sync.Mutex
	queue        []MockUpstreamResponse
	defaultResp  MockUpstreamResponse
	requestCount int
	lastQuery    url.Values
}

// NewMockUpstream creates a mock scraper that answers 200 with an empty
// result set until configured otherwise.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		defaultResp: MockUpstreamResponse{
			StatusCode: http.StatusOK,
			Body:       EmptyResultsBody,
		},
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastQuery = r.URL.Query()

		resp := mock.defaultResp
		if len(mock.queue) > 0 {
			resp = mock.queue[0]
			mock.queue = mock.queue[1:]
		}
		mock.mu.Unlock()

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write([]byte(resp.Body))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Enqueue adds a one-shot response served before the default.
func (m *MockUpstream) Enqueue(resp MockUpstreamResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
}

// SetDefault replaces the response served once the queue is drained.
func (m *MockUpstream) SetDefault(resp MockUpstreamResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = resp
}

// Requests returns how many calls the mock has received.
func (m *MockUpstream) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockUpstream) LastQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// Reset clears counters, the response queue, and the default response.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.lastQuery = nil
	m.queue = nil
	m.defaultResp = MockUpstreamResponse{
		StatusCode: http.StatusOK,
		Body:       EmptyResultsBody,
	}
}
