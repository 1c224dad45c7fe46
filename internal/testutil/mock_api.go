// Package testutil provides testing utilities for the API client.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// APIDisabledPage is what a site serves when its API is switched off.
const APIDisabledPage = "<html><body>MediaWiki API is not enabled for this site. Add the following line to your LocalSettings.php</body></html>"

// MockResponse defines one scripted response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
	Gzip       bool
}

// RecordedRequest is a request received by the mock, with its form decoded.
type RecordedRequest struct {
	Method    string
	Header    http.Header
	Form      url.Values
	Files     map[string][]byte
	Multipart bool
}

// MockAPI is a scriptable mock API endpoint for testing. Responses queued
// with Enqueue are served in order; once the queue is empty the handler set
// with SetHandler answers, or a default success response.
type MockAPI struct {
	server  *httptest.Server
	mu      sync.Mutex
	queue   []MockResponse
	handler func(w http.ResponseWriter, r *http.Request, form url.Values)

	requests []RecordedRequest
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the endpoint URL of the mock.
func (m *MockAPI) URL() string {
	return m.server.URL + "/w/api.php"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Enqueue appends scripted responses.
func (m *MockAPI) Enqueue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
}

// SetHandler sets the handler used when no scripted response is queued.
// The handler gets the decoded form values of the request.
func (m *MockAPI) SetHandler(handler func(w http.ResponseWriter, r *http.Request, form url.Values)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Requests returns a copy of all recorded requests.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears recorded requests and queued responses.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.queue = nil
}

func (m *MockAPI) serve(w http.ResponseWriter, r *http.Request) {
	rec, err := record(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	var (
		next   *MockResponse
		custom = m.handler
	)
	if len(m.queue) > 0 {
		next = &m.queue[0]
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	switch {
	case next != nil:
		Write(w, *next)
	case custom != nil:
		custom(w, r, rec.Form)
	default:
		Write(w, NewJSONResponse(`{"batchcomplete":true}`))
	}
}

// record decodes the form of a POST request, url encoded or multipart.
func record(r *http.Request) (RecordedRequest, error) {
	rec := RecordedRequest{
		Method: r.Method,
		Header: r.Header.Clone(),
		Form:   url.Values{},
		Files:  map[string][]byte{},
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		rec.Multipart = true
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return rec, fmt.Errorf("parse multipart form: %w", err)
		}
		for key, values := range r.MultipartForm.Value {
			rec.Form[key] = append([]string(nil), values...)
		}
		for key, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			f, err := headers[0].Open()
			if err != nil {
				return rec, fmt.Errorf("open part %s: %w", key, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return rec, fmt.Errorf("read part %s: %w", key, err)
			}
			rec.Files[key] = data
		}
		return rec, nil
	}

	if err := r.ParseForm(); err != nil {
		return rec, fmt.Errorf("parse form: %w", err)
	}
	for key, values := range r.PostForm {
		rec.Form[key] = append([]string(nil), values...)
	}
	return rec, nil
}

// Write sends resp on w.
func Write(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	body := []byte(resp.Body)
	if resp.Gzip {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write(body)
		_ = gz.Close()
		body = buf.Bytes()
		w.Header().Set("Content-Encoding", "gzip")
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewAPIErrorResponse creates a response carrying an API error object.
func NewAPIErrorResponse(code, info string) MockResponse {
	return NewJSONResponse(fmt.Sprintf(`{"error":{"code":%q,"info":%q}}`, code, info))
}

// NewMaxLagResponse creates a maxlag error reporting lag seconds of
// replication lag.
func NewMaxLagResponse(lag int) MockResponse {
	resp := NewAPIErrorResponse("maxlag", fmt.Sprintf("Waiting for 10.64.16.7: %d seconds lagged", lag))
	resp.Headers["Retry-After"] = fmt.Sprint(lag)
	resp.Headers["X-Database-Lag"] = fmt.Sprint(lag)
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// NewInvalidJSONResponse creates a 200 OK response whose body is not JSON.
func NewInvalidJSONResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"query":{"pages":`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewAPIDisabledResponse creates the response of a site without API.
func NewAPIDisabledResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       APIDisabledPage,
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}
}

// FormMatches reports whether every key in want has the given value in form.
func FormMatches(form url.Values, want map[string]string) bool {
	for key, value := range want {
		if strings.Join(form[key], "|") != value {
			return false
		}
	}
	return true
}
