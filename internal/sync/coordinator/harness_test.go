package coordinator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/tqrg-bot/ambari-sync/internal/config"
	"github.com/tqrg-bot/ambari-sync/internal/gate"
	"github.com/tqrg-bot/ambari-sync/internal/httpclient"
	"github.com/tqrg-bot/ambari-sync/internal/navigation"
	"github.com/tqrg-bot/ambari-sync/internal/status"
	"github.com/tqrg-bot/ambari-sync/internal/store"
	"github.com/tqrg-bot/ambari-sync/internal/subscription"
	"github.com/tqrg-bot/ambari-sync/internal/sync/state"
)

const (
	clusterPrefix = "/api/v1/clusters/c1"
	waitFor       = 2 * time.Second
	tickFor       = 5 * time.Millisecond
)

const (
	servicesJSON = `{"items":[
		{"ServiceInfo":{"service_name":"HDFS","state":"STARTED"},"components":[{"ServiceComponentInfo":{"component_name":"NAMENODE"}}]},
		{"ServiceInfo":{"service_name":"YARN","state":"STARTED"},"components":[{"ServiceComponentInfo":{"component_name":"APP_TIMELINE_SERVER"}}]},
		{"ServiceInfo":{"service_name":"FLUME","state":"INSTALLED"},"components":[]},
		{"ServiceInfo":{"service_name":"AMBARI_METRICS","state":"STARTED"},"components":[]}]}`

	hostsJSON        = `{"items":[{"Hosts":{"host_name":"h1"}},{"Hosts":{"host_name":"h2"}}]}`
	hostsMetricsJSON = `{"items":[{"Hosts":{"host_name":"h1"},"metrics":{"load":{"load_one":0.5}}}]}`
	clusterTagsJSON  = `{"Clusters":{"desired_configs":{"cluster-env":{"tag":"version7"}}}}`
	clusterEnvJSON   = `{"items":[{"type":"cluster-env","tag":"version7","properties":{"security_enabled":"false"}}]}`
)

// recordedRequest is one request seen by the fake API server
type recordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Override string
	Body     string
}

// apiServer is a fake cluster REST API
type apiServer struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]string
	failures  map[string]int
	preload   string
	onRequest func(r *http.Request)
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	s := &apiServer{
		responses: map[string]string{
			clusterPrefix + "/services":       servicesJSON,
			clusterPrefix + "/configurations": clusterEnvJSON,
		},
		failures: make(map[string]int),
		preload: `{"items":[]}`,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Override: r.Header.Get(httpclient.HeaderMethodOverride),
		Body:     string(body),
	})
	payload := s.respond(r)
	code, failed := s.failures[r.URL.Path]
	hook := s.onRequest
	s.mu.Unlock()

	if hook != nil {
		hook(r)
	}

	if failed {
		http.Error(w, "injected failure", code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, payload)
}

func (s *apiServer) respond(r *http.Request) string {
	switch {
	case r.URL.Path == clusterPrefix && strings.Contains(r.URL.RawQuery, "desired_configs"):
		return clusterTagsJSON
	case r.URL.Path == clusterPrefix+"/hosts" && strings.Contains(r.URL.RawQuery, "fields=metrics/disk/disk_free"):
		return hostsMetricsJSON
	case r.URL.Path == clusterPrefix+"/hosts" && !strings.Contains(r.URL.RawQuery, "fields="):
		return s.preload
	case r.URL.Path == clusterPrefix+"/hosts":
		return hostsJSON
	}
	if payload, ok := s.responses[r.URL.Path]; ok {
		return payload
	}
	return `{"items":[]}`
}

func (s *apiServer) setResponse(path, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = payload
}

func (s *apiServer) fail(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = code
}

// observe calls fn for every request before it is answered
func (s *apiServer) observe(fn func(r *http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRequest = fn
}

func (s *apiServer) setPreload(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preload = payload
}

// requestsTo returns the recorded requests for path
func (s *apiServer) requestsTo(path string) []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []recordedRequest
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// harness is a coordinator wired to a fake API server and an in-memory state service
type harness struct {
	api      *apiServer
	coord    *defaultCoordinator
	gate     *gate.Gate
	clock    clockwork.FakeClock
	store    *store.Store
	stateSvc state.TaskStateService
	nav      *navigation.Tracker
}

func newTestConfig(url string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: url, Cluster: "c1", StackVersion: "2.6"},
		Hosts:  &config.HostsConfig{PageSize: 10},
	}
}

func newHarness(t *testing.T, push subscription.PushClient, mutate func(*config.Config)) *harness {
	t.Helper()

	api := newAPIServer(t)
	cfg := newTestConfig(api.URL)
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		api:      api,
		gate:     gate.New(),
		clock:    clockwork.NewFakeClock(),
		stateSvc: state.NewMemoryStateService(nil),
		nav:      navigation.NewTracker("/main/dashboard"),
	}
	h.store = store.New(store.WithClock(h.clock))

	coord, err := New(httpclient.NewDefaultClient(api.URL), push, h.stateSvc, cfg,
		WithClock(h.clock),
		WithGate(h.gate),
		WithNavigation(h.nav),
		WithStore(h.store),
	)
	require.NoError(t, err)
	h.coord = coord.(*defaultCoordinator)
	return h
}

// start runs the coordinator until the test ends
func (h *harness) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.coord.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errCh)
	})

	require.Eventually(t, func() bool {
		h.coord.mu.Lock()
		defer h.coord.mu.Unlock()
		return h.coord.runCtx != nil
	}, waitFor, tickFor)
}

func (h *harness) phase(t *testing.T, task string) status.SyncPhase {
	t.Helper()
	s, err := h.stateSvc.GetStatus(context.Background(), task)
	require.NoError(t, err)
	return s.Phase
}

// fakePush records subscriptions and keeps their handlers
type fakePush struct {
	mu       sync.Mutex
	handlers map[string]func([]byte)
}

func newFakePush() *fakePush {
	return &fakePush{handlers: make(map[string]func([]byte))}
}

func (p *fakePush) Subscribe(_ context.Context, destination string, handler func(body []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[destination] = handler
	return nil
}

func (p *fakePush) Unsubscribe(_ context.Context, destination string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handlers, destination)
	return nil
}

func (p *fakePush) deliver(destination string, body string) bool {
	p.mu.Lock()
	handler, ok := p.handlers[destination]
	p.mu.Unlock()
	if ok {
		handler([]byte(body))
	}
	return ok
}

func (p *fakePush) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}
