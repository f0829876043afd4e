package httpclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tqrg-bot/ambari-sync/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled.
// This prevents flaky tests when running in parallel, as closing a server
// with keep-alives enabled can affect other tests sharing the HTTP transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

// hooks records the order in which request hooks run
type hooks struct {
	calls []string
	err   error
}

func (h *hooks) options(params string) httpclient.Options {
	return httpclient.Options{
		Params:   params,
		Complete: func() { h.calls = append(h.calls, "complete") },
		Error: func(err error) {
			h.calls = append(h.calls, "error")
			h.err = err
		},
		BeforeMap: func(body []byte) ([]byte, error) {
			h.calls = append(h.calls, "beforeMap")
			return body, nil
		},
	}
}

func (h *hooks) handler(body []byte) error {
	h.calls = append(h.calls, "handler:"+string(body))
	return nil
}

func TestDefaultClient_Get_Success(t *testing.T) {
	t.Parallel()

	var (
		receivedMethod    string
		receivedPath      string
		receivedUserAgent string
		receivedBy        string
	)
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedPath = r.URL.RequestURI()
		receivedUserAgent = r.Header.Get("User-Agent")
		receivedBy = r.Header.Get(httpclient.HeaderRequestedBy)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(server.URL, httpclient.WithTimeout(5*time.Second))
	h := &hooks{}

	err := client.Get(context.Background(), "/api/v1/clusters/c1/services?fields=ServiceInfo/state", h.handler, h.options(""))

	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, receivedMethod)
	assert.Equal(t, "/api/v1/clusters/c1/services?fields=ServiceInfo/state", receivedPath)
	assert.Equal(t, httpclient.UserAgent, receivedUserAgent)
	assert.Equal(t, "ambari", receivedBy)
	assert.Equal(t, []string{"beforeMap", `handler:{"items":[]}`, "complete"}, h.calls)
}

func TestDefaultClient_Get_ParamsSentAsPost(t *testing.T) {
	t.Parallel()

	var (
		receivedMethod   string
		receivedOverride string
		receivedBody     map[string]map[string]string
	)
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedOverride = r.Header.Get(httpclient.HeaderMethodOverride)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &receivedBody)
		_, _ = w.Write([]byte(`{"itemTotal":"2"}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(server.URL)
	h := &hooks{}

	err := client.Get(context.Background(), "/hosts?fields=Hosts/host_name", h.handler,
		h.options("Hosts/host_status=HEALTHY&page_size=10"))

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, receivedMethod)
	assert.Equal(t, http.MethodGet, receivedOverride)
	assert.Equal(t, "Hosts/host_status=HEALTHY&page_size=10", receivedBody["RequestInfo"]["query"])
}

func TestDefaultClient_Get_BeforeMapTransformsBody(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("raw"))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(server.URL)

	var got string
	err := client.Get(context.Background(), "/", func(body []byte) error {
		got = string(body)
		return nil
	}, httpclient.Options{
		BeforeMap: func(body []byte) ([]byte, error) {
			return append(body, "+mapped"...), nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "raw+mapped", got)
}

func TestDefaultClient_Get_HTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		errorContains string
	}{
		{name: "404 Not Found", statusCode: http.StatusNotFound, errorContains: "HTTP 404"},
		{name: "500 Internal Server Error", statusCode: http.StatusInternalServerError, errorContains: "HTTP 500"},
		{name: "401 Unauthorized", statusCode: http.StatusUnauthorized, errorContains: "HTTP 401"},
		{name: "403 Forbidden", statusCode: http.StatusForbidden, errorContains: "HTTP 403"},
		{name: "503 Service Unavailable", statusCode: http.StatusServiceUnavailable, errorContains: "HTTP 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := httpclient.NewDefaultClient(server.URL)
			h := &hooks{}

			err := client.Get(context.Background(), "/hosts", h.handler, h.options(""))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.Equal(t, tt.statusCode, httpclient.StatusCode(err))
			assert.Equal(t, []string{"error", "complete"}, h.calls)
			assert.Equal(t, err, h.err)
		})
	}
}

func TestDefaultClient_Get_NetworkErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		url           string
		errorContains string
	}{
		{
			name:          "invalid URL scheme",
			url:           "://invalid-url",
			errorContains: "failed to create request",
		},
		{
			name:          "unreachable host",
			url:           "http://invalid-host-does-not-exist.local:9999",
			errorContains: "failed to execute request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := httpclient.NewDefaultClient("")
			h := &hooks{}

			err := client.Get(context.Background(), tt.url, h.handler, h.options(""))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.Equal(t, []string{"error", "complete"}, h.calls)
		})
	}
}

func TestDefaultClient_Get_HandlerError(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(server.URL)
	mapErr := errors.New("unexpected payload")

	var completed, reported bool
	err := client.Get(context.Background(), "/", func([]byte) error { return mapErr }, httpclient.Options{
		Complete: func() { completed = true },
		Error:    func(error) { reported = true },
	})

	require.ErrorIs(t, err, mapErr)
	assert.True(t, completed)
	assert.True(t, reported)
}

func TestDefaultClient_Get_CompleteRunsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	completed := false
	err := client.Get(ctx, "/", nil, httpclient.Options{Complete: func() { completed = true }})

	require.Error(t, err)
	assert.True(t, completed)
}

func TestDefaultClient_Get_HeadersAndAuth(t *testing.T) {
	t.Parallel()

	var (
		user, password string
		ok             bool
		custom         string
	)
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok = r.BasicAuth()
		custom = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(server.URL+"/",
		httpclient.WithBasicAuth("admin", "secret"),
		httpclient.WithHeader("X-Custom", "value"),
	)

	require.NoError(t, client.Get(context.Background(), "/", nil, httpclient.Options{}))
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "secret", password)
	assert.Equal(t, "value", custom)
}

func TestDefaultClient_Get_SizeLimitExceeded(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", 101*1024*1024))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(server.URL)

	err := client.Get(context.Background(), "/", nil, httpclient.Options{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum allowed size")
	assert.Contains(t, err.Error(), "100.00 MB")
}
