package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	syncapp "github.com/tqrg-bot/ambari-sync/internal/app"
	"github.com/tqrg-bot/ambari-sync/internal/status"
	"github.com/tqrg-bot/ambari-sync/test-integration/engine/helpers"
)

const (
	servicesBody = `{"items":[{"ServiceInfo":{"service_name":"HDFS","state":"STARTED"}},` +
		`{"ServiceInfo":{"service_name":"YARN","state":"INSTALLED"}}]}`
	clusterPrefix = "/api/v1/clusters/c1"
)

var _ = Describe("Sync engine", Label("engine"), func() {
	var (
		ambari  *helpers.FakeAmbari
		engine  *helpers.EngineTestHelper
		dataDir string
	)

	startEngine := func(opts ...syncapp.SyncAppOptions) {
		engine = helpers.NewEngineTestHelper(ctx, ambari, dataDir, opts...)
		Expect(engine.StartEngine()).To(Succeed())
	}

	BeforeEach(func() {
		ambari = helpers.NewFakeAmbari()
		ambari.Respond(clusterPrefix+"/services", servicesBody)

		var err error
		dataDir, err = os.MkdirTemp("", "ambari-sync-integration-")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if engine != nil {
			Expect(engine.StopEngine()).To(Succeed())
			engine = nil
		}
		ambari.Close()
		Expect(os.RemoveAll(dataDir)).To(Succeed())
	})

	Context("with a reachable cluster", func() {
		BeforeEach(func() {
			startEngine()
			engine.WaitForReady(10 * time.Second)
		})

		It("loads the services dataset after activation", func() {
			Eventually(func() (int, error) {
				resp, err := engine.Get("/api/v1/datasets/services")
				if err != nil {
					return 0, err
				}
				defer resp.Body.Close()
				return resp.StatusCode, nil
			}, 5*time.Second, 50*time.Millisecond).Should(Equal(http.StatusOK))

			resp, err := engine.Get("/api/v1/datasets/services")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("HDFS"))
			Expect(resp.Header.Get("ETag")).To(HavePrefix(`"services-`))
		})

		It("refreshes a task on demand", func() {
			Eventually(func() int {
				return len(ambari.Requests(clusterPrefix + "/services"))
			}, 5*time.Second, 50*time.Millisecond).Should(BeNumerically(">=", 1))
			before := len(ambari.Requests(clusterPrefix + "/services"))

			Eventually(func() int {
				return helpers.StatusCode(engine.Post("/api/v1/tasks/updateServices/refresh", nil))
			}, 5*time.Second, 50*time.Millisecond).Should(Equal(http.StatusAccepted))

			Eventually(func() int {
				return len(ambari.Requests(clusterPrefix + "/services"))
			}, 5*time.Second, 50*time.Millisecond).Should(BeNumerically(">", before))
		})

		It("rejects unknown tasks", func() {
			Expect(helpers.StatusCode(engine.Post("/api/v1/tasks/nope/refresh", nil))).
				To(Equal(http.StatusNotFound))
		})

		It("sends the host query with the hosts table request", func() {
			Expect(helpers.StatusCode(engine.Put("/api/v1/route",
				map[string]any{"route": "/main/hosts"}))).To(Equal(http.StatusNoContent))

			Expect(helpers.StatusCode(engine.Put("/api/v1/hosts/query", map[string]any{
				"filters": []map[string]any{
					{"key": "Hosts/host_name", "type": "EQUAL", "value": "c6401.ambari.apache.org"},
					{"key": "Hosts/host_name", "type": "SORT", "value": "ASC"},
				},
			}))).To(Equal(http.StatusNoContent))

			Eventually(func() bool {
				_ = helpers.StatusCode(engine.Post("/api/v1/tasks/updateHost/refresh", nil))
				for _, r := range ambari.Requests(clusterPrefix + "/hosts") {
					if strings.Contains(r.Body, "Hosts/host_name=c6401.ambari.apache.org") &&
						strings.Contains(r.URL, "sortBy=Hosts/host_name.asc") {
						return true
					}
				}
				return false
			}, 5*time.Second, 100*time.Millisecond).Should(BeTrue())
		})

		It("persists task statuses", func() {
			Eventually(func() (map[string]*status.TaskStatus, error) {
				data, err := os.ReadFile(engine.StatusFile())
				if err != nil {
					return nil, err
				}
				var statuses map[string]*status.TaskStatus
				err = json.Unmarshal(data, &statuses)
				return statuses, err
			}, 5*time.Second, 50*time.Millisecond).Should(HaveKeyWithValue("updateServices",
				HaveField("Phase", Equal(status.SyncPhaseComplete))))
		})
	})

	Context("in view-only mode", func() {
		It("stays unready and sends no scheduled requests", func() {
			startEngine(syncapp.WithViewOnly(true))

			Consistently(func() int {
				return helpers.StatusCode(engine.Get("/readiness"))
			}, 500*time.Millisecond, 50*time.Millisecond).Should(Equal(http.StatusServiceUnavailable))
			Expect(ambari.Requests(clusterPrefix + "/services")).To(BeEmpty())
		})
	})

	Context("with an unauthorized probe", func() {
		It("does not bootstrap", func() {
			ambari.Fail(clusterPrefix, http.StatusUnauthorized)
			startEngine()

			Eventually(func() int {
				return len(ambari.Requests(clusterPrefix + "?fields=Clusters/version"))
			}, 5*time.Second, 50*time.Millisecond).Should(Equal(1))
			Consistently(func() int {
				return helpers.StatusCode(engine.Get("/readiness"))
			}, 300*time.Millisecond, 50*time.Millisecond).Should(Equal(http.StatusServiceUnavailable))
		})
	})
})
