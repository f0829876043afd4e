package stomp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tqrg-bot/ambari-sync/internal/stomp"
)

// broker is a minimal in-process STOMP broker over websocket
type broker struct {
	server *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	subs     map[string]string
	connects int
	commands []string
	reject   string
}

func newBroker() *broker {
	b := &broker{subs: make(map[string]string)}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

func (b *broker) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + stomp.DefaultPath
}

func (b *broker) close() {
	b.drop()
	b.server.Close()
}

func (b *broker) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		f, err := stomp.Decode(data)
		if err != nil || f == nil {
			continue
		}

		b.mu.Lock()
		b.commands = append(b.commands, f.Command)
		reject := b.reject
		switch f.Command {
		case stomp.CommandConnect:
			if reject == "" {
				b.conn = conn
				b.connects++
				b.subs = make(map[string]string)
			}
		case stomp.CommandSubscribe:
			b.subs[f.Header(stomp.HeaderDestination)] = f.Header(stomp.HeaderID)
		case stomp.CommandUnsubscribe:
			for dest, id := range b.subs {
				if id == f.Header(stomp.HeaderID) {
					delete(b.subs, dest)
				}
			}
		}
		b.mu.Unlock()

		switch f.Command {
		case stomp.CommandConnect:
			reply := stomp.NewFrame(stomp.CommandConnected, stomp.HeaderVersion, "1.2")
			if reject != "" {
				reply = stomp.NewFrame(stomp.CommandError, stomp.HeaderMessage, reject)
			}
			_ = conn.Write(ctx, websocket.MessageText, reply.Encode())
		case stomp.CommandDisconnect:
			return
		}
	}
}

func (b *broker) subscribed(dest string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[dest]
	return ok
}

func (b *broker) connectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

func (b *broker) received(command string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.commands {
		if c == command {
			return true
		}
	}
	return false
}

func (b *broker) publish(ctx context.Context, dest, body string) error {
	b.mu.Lock()
	conn, id := b.conn, b.subs[dest]
	b.mu.Unlock()

	f := stomp.NewFrame(stomp.CommandMessage,
		stomp.HeaderDestination, dest,
		stomp.HeaderSubscription, id,
		"message-id", uuid.NewString(),
	)
	f.Body = []byte(body)
	return conn.Write(ctx, websocket.MessageText, f.Encode())
}

// drop closes the current connection without a STOMP goodbye
func (b *broker) drop() {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()
	if conn != nil {
		_ = conn.CloseNow()
	}
}
