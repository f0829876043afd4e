package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	syncapp "github.com/tqrg-bot/ambari-sync/internal/app"
	"github.com/tqrg-bot/ambari-sync/internal/config"
)

// EngineTestHelper manages the sync engine lifecycle for testing
type EngineTestHelper struct {
	ctx        context.Context
	configPath string
	httpClient *http.Client
	app        *syncapp.SyncApp
	dataDir    string
	opts       []syncapp.SyncAppOptions
}

// NewEngineTestHelper creates a helper running against the fake server
func NewEngineTestHelper(ctx context.Context, ambari *FakeAmbari, dataDir string, opts ...syncapp.SyncAppOptions) *EngineTestHelper {
	configPath := filepath.Join(dataDir, "config.yaml")
	content := fmt.Sprintf(`server:
  baseURL: %s
  cluster: c1
push:
  disabled: true
hosts:
  pageSize: 10
statusFile: %s
`, ambari.URL, filepath.Join(dataDir, "status.json"))
	gomega.Expect(os.WriteFile(configPath, []byte(content), 0o600)).To(gomega.Succeed())

	return &EngineTestHelper{
		ctx:        ctx,
		configPath: configPath,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dataDir:    dataDir,
		opts:       opts,
	}
}

// StartEngine builds the application and starts it in the background
func (s *EngineTestHelper) StartEngine() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := append([]syncapp.SyncAppOptions{
		syncapp.WithConfig(cfg),
		syncapp.WithAddress("127.0.0.1:0"),
	}, s.opts...)
	app, err := syncapp.NewSyncApp(s.ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = app

	go func() {
		if err := app.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Engine start failed: %v\n", err)
		}
	}()

	select {
	case <-app.Listening():
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("control server did not start listening")
	}
}

// StopEngine gracefully stops the engine
func (s *EngineTestHelper) StopEngine() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// BaseURL returns the control API base URL
func (s *EngineTestHelper) BaseURL() string {
	return "http://" + s.app.Addr().String()
}

// StatusFile returns the path of the task status file
func (s *EngineTestHelper) StatusFile() string {
	return filepath.Join(s.dataDir, "status.json")
}

// WaitForReady waits until the readiness endpoint reports ready
func (s *EngineTestHelper) WaitForReady(timeout time.Duration) {
	gomega.Eventually(func() (int, error) {
		resp, err := s.Get("/readiness")
		if err != nil {
			return 0, err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		return resp.StatusCode, nil
	}, timeout, 50*time.Millisecond).Should(gomega.Equal(http.StatusOK), "Engine should be ready")
}

// Get makes a GET request to the control API
func (s *EngineTestHelper) Get(path string) (*http.Response, error) {
	return s.httpClient.Get(s.BaseURL() + path)
}

// Put makes a PUT request with a JSON body
func (s *EngineTestHelper) Put(path string, body any) (*http.Response, error) {
	return s.send(http.MethodPut, path, body)
}

// Post makes a POST request with a JSON body
func (s *EngineTestHelper) Post(path string, body any) (*http.Response, error) {
	return s.send(http.MethodPost, path, body)
}

func (s *EngineTestHelper) send(method, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(s.ctx, method, s.BaseURL()+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.httpClient.Do(req)
}

// StatusCode performs a request and returns its status code
func StatusCode(resp *http.Response, err error) int {
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode
}
