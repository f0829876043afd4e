package helpers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// RecordedRequest is one request received by the fake server
type RecordedRequest struct {
	Method string
	URL    string
	Body   string
}

// FakeAmbari is an Ambari REST API stand-in. Every path answers with an
// empty item list unless a response is registered for it.
type FakeAmbari struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []RecordedRequest
	responses map[string]string
	status    map[string]int
}

// NewFakeAmbari starts a fake server
func NewFakeAmbari() *FakeAmbari {
	f := &FakeAmbari{
		responses: make(map[string]string),
		status:    make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// Respond registers the body returned for a path
func (f *FakeAmbari) Respond(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = body
}

// Fail makes a path answer with status
func (f *FakeAmbari) Fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[path] = status
}

// Requests returns the requests whose path starts with prefix
func (f *FakeAmbari) Requests(prefix string) []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []RecordedRequest
	for _, r := range f.requests {
		if strings.HasPrefix(r.URL, prefix) {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeAmbari) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method: r.Method,
		URL:    r.URL.RequestURI(),
		Body:   string(body),
	})
	status, failing := f.status[r.URL.Path]
	response, ok := f.responses[r.URL.Path]
	f.mu.Unlock()

	if failing {
		w.WriteHeader(status)
		return
	}
	if !ok {
		response = `{"items":[]}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(response))
}
