package stomp_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tqrg-bot/ambari-sync/internal/stomp"
)

// inbox collects message bodies delivered to a handler
type inbox struct {
	mu     sync.Mutex
	bodies []string
}

func (i *inbox) handle(body []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.bodies = append(i.bodies, string(body))
}

func (i *inbox) all() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.bodies...)
}

var _ = Describe("Client", func() {
	var (
		b       *broker
		client  *stomp.Client
		ctx     context.Context
		cancel  context.CancelFunc
		runErr  chan error
		startUp func()
	)

	BeforeEach(func() {
		b = newBroker()
		ctx, cancel = context.WithCancel(context.Background())
		client = stomp.NewClient(b.url(), stomp.WithBackoff(10*time.Millisecond, 50*time.Millisecond))
		runErr = make(chan error, 1)
		startUp = func() {
			go func() { runErr <- client.Run(ctx) }()
			Eventually(client.Ready()).Should(BeClosed())
		}
	})

	AfterEach(func() {
		cancel()
		b.close()
	})

	It("delivers messages on subscribed destinations", func() {
		alerts := &inbox{}
		Expect(client.Subscribe(ctx, "/events/alerts", alerts.handle)).To(Succeed())

		startUp()
		Eventually(func() bool { return b.subscribed("/events/alerts") }).Should(BeTrue())

		Expect(b.publish(ctx, "/events/alerts", `{"alerts":[]}`)).To(Succeed())
		Eventually(alerts.all).Should(Equal([]string{`{"alerts":[]}`}))
	})

	It("subscribes immediately while connected", func() {
		startUp()

		hosts := &inbox{}
		Expect(client.Subscribe(ctx, "/events/hosts", hosts.handle)).To(Succeed())
		Eventually(func() bool { return b.subscribed("/events/hosts") }).Should(BeTrue())
		Expect(client.Destinations()).To(ConsistOf("/events/hosts"))
	})

	It("unsubscribes and ignores unknown destinations", func() {
		Expect(client.Subscribe(ctx, "/events/configs", (&inbox{}).handle)).To(Succeed())
		startUp()
		Eventually(func() bool { return b.subscribed("/events/configs") }).Should(BeTrue())

		Expect(client.Unsubscribe(ctx, "/events/configs")).To(Succeed())
		Eventually(func() bool { return b.subscribed("/events/configs") }).Should(BeFalse())
		Expect(client.Unsubscribe(ctx, "/events/unknown")).To(Succeed())
		Expect(client.Destinations()).To(BeEmpty())
	})

	It("restores subscriptions after the connection drops", func() {
		services := &inbox{}
		Expect(client.Subscribe(ctx, "/events/services", services.handle)).To(Succeed())
		startUp()
		Eventually(func() bool { return b.subscribed("/events/services") }).Should(BeTrue())

		b.drop()

		Eventually(b.connectCount).Should(Equal(2))
		Eventually(func() bool { return b.subscribed("/events/services") }).Should(BeTrue())
		Eventually(client.Connected).Should(BeTrue())

		Expect(b.publish(ctx, "/events/services", "after")).To(Succeed())
		Eventually(services.all).Should(ContainElement("after"))
	})

	It("disconnects on Close and stops running", func() {
		startUp()

		Expect(client.Close(ctx)).To(Succeed())
		Eventually(runErr).Should(Receive(BeNil()))
		Eventually(func() bool { return b.received(stomp.CommandDisconnect) }).Should(BeTrue())

		Expect(client.Subscribe(ctx, "/events/hosts", (&inbox{}).handle)).To(MatchError(stomp.ErrClosed))
		Expect(client.Close(ctx)).To(Succeed())
	})

	It("returns when the context is cancelled", func() {
		startUp()

		cancel()
		Eventually(runErr).Should(Receive(BeNil()))
	})

	It("fails when the broker rejects the connection", func() {
		b.mu.Lock()
		b.reject = "access denied"
		b.mu.Unlock()

		go func() { runErr <- client.Run(ctx) }()

		var err error
		Eventually(runErr).Should(Receive(&err))
		Expect(err).To(MatchError(stomp.ErrConnectRejected))
		Expect(err.Error()).To(ContainSubstring("access denied"))
	})
})
