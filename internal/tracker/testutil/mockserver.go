// Package testutil provides mock tracker servers for source tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// RecordedRequest stores information about a request made to the mock server.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Headers  http.Header
}

// MockTrackerServer is the base mock server for source tests.
// It records requests and can simulate auth, rate-limit and server errors
// before handing the request to the tracker-specific handler.
type MockTrackerServer struct {
	Server *httptest.Server
	mu     sync.RWMutex

	requests []RecordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)

	authError bool

	// failures are answered with failStatus before requests succeed.
	failures   int
	failStatus int
	failCount  int
}

// NewMockTrackerServer creates a new base mock server.
func NewMockTrackerServer() *MockTrackerServer {
	m := &MockTrackerServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handleRequest))
	return m
}

func (m *MockTrackerServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Headers:  r.Header.Clone(),
	})
	authError := m.authError
	fail := m.failCount < m.failures
	if fail {
		m.failCount++
	}
	status := m.failStatus
	handler := m.handler
	m.mu.Unlock()

	if authError {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	if fail {
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "1")
		}
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	if handler != nil {
		handler(w, r)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

// URL returns the mock server URL.
func (m *MockTrackerServer) URL() string {
	return m.Server.URL
}

// Close shuts down the mock server.
func (m *MockTrackerServer) Close() {
	m.Server.Close()
}

// SetHandler sets the handler for requests that are not failed.
func (m *MockTrackerServer) SetHandler(handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// SetAuthError enables/disables 401 Unauthorized responses.
func (m *MockTrackerServer) SetAuthError(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authError = enabled
}

// FailNext answers the next n requests with status (e.g. 429 or 503).
func (m *MockTrackerServer) FailNext(n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
	m.failStatus = status
	m.failCount = 0
}

// GetRequests returns all recorded requests.
func (m *MockTrackerServer) GetRequests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]RecordedRequest, len(m.requests))
	copy(result, m.requests)
	return result
}

// GetRequestCount returns the number of recorded requests.
func (m *MockTrackerServer) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
