package stomp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tqrg-bot/ambari-sync/internal/telemetry"
)

const (
	// DefaultPath is the websocket endpoint of the server's STOMP broker
	DefaultPath = "/api/stomp/v1/websocket"

	// DefaultConnectTimeout bounds dialing plus the CONNECT handshake
	DefaultConnectTimeout = 10 * time.Second

	// MaxFrameSize is the largest frame accepted from the broker
	MaxFrameSize = 16 * 1024 * 1024

	stompVersion = "1.2"
)

var (
	// ErrClosed is returned by operations on a closed client
	ErrClosed = errors.New("stomp client closed")
	// ErrNotConnected is returned by Ping while no connection is up
	ErrNotConnected = errors.New("stomp client not connected")
	// ErrConnectRejected is returned when the broker answers CONNECT with an ERROR frame
	ErrConnectRejected = errors.New("stomp connect rejected")
)

// Handler receives the body of every MESSAGE frame on a destination
type Handler = func(body []byte)

type subscription struct {
	id      string
	handler Handler
}

// Client is a STOMP client that keeps its subscriptions across reconnects.
// Subscriptions made while disconnected are sent once the connection is up.
type Client struct {
	url            string
	host           string
	header         http.Header
	heartbeat      time.Duration
	connectTimeout time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	metrics        *telemetry.PushMetrics

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]*subscription
	byID    map[string]string
	closed  bool
	ready   chan struct{}
	stop    chan struct{}
	writeMu sync.Mutex
}

// Option configures a Client
type Option func(*Client)

// WithHeader adds an HTTP header to the websocket handshake
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// WithHost sets the virtual host sent in CONNECT
func WithHost(host string) Option {
	return func(c *Client) {
		c.host = host
	}
}

// WithHeartbeat sets the client heart-beat interval; zero disables heart-beats
func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) {
		c.heartbeat = d
	}
}

// WithConnectTimeout bounds each connection attempt
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithBackoff sets the reconnect backoff bounds
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = initial
		c.maxBackoff = maxInterval
	}
}

// WithMetrics sets the push metrics; nil disables them
func WithMetrics(m *telemetry.PushMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a disconnected client for the websocket URL
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		host:           "/",
		header:         http.Header{},
		connectTimeout: DefaultConnectTimeout,
		initialBackoff: time.Second,
		maxBackoff:     30 * time.Second,
		subs:           make(map[string]*subscription),
		byID:           make(map[string]string),
		ready:          make(chan struct{}),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run connects and reads frames until ctx is cancelled or the client is closed.
// Lost connections are re-established with exponential backoff and every
// subscription is sent again.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	first := true
	for {
		conn, err := c.connectWithRetry(ctx)
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return nil
			}
			return err
		}
		if !first {
			c.metrics.RecordReconnect(ctx)
		}
		first = false

		if err := c.attach(ctx, conn); err != nil {
			c.detach(conn)
			if errors.Is(err, ErrClosed) {
				return nil
			}
			slog.Warn("Failed to restore subscriptions", "url", c.url, "error", err)
			continue
		}

		err = c.readLoop(ctx, conn)
		c.detach(conn)
		if ctx.Err() != nil || c.isClosed() {
			return nil
		}
		slog.Warn("Push connection lost, reconnecting", "url", c.url, "error", err)
	}
}

// Ready is closed once the first connection is established
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Connected reports whether a connection is currently up
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Subscribe registers handler for destination. Subscribing to a destination
// that already has a subscription replaces its handler.
func (c *Client) Subscribe(ctx context.Context, destination string, handler Handler) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if sub, ok := c.subs[destination]; ok {
		sub.handler = handler
		c.mu.Unlock()
		return nil
	}

	sub := &subscription{id: uuid.NewString(), handler: handler}
	c.subs[destination] = sub
	c.byID[sub.id] = destination
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.send(ctx, conn, subscribeFrame(sub.id, destination))
}

// Unsubscribe removes the subscription for destination. Unknown destinations are ignored.
func (c *Client) Unsubscribe(ctx context.Context, destination string) error {
	c.mu.Lock()
	sub, ok := c.subs[destination]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.subs, destination)
	delete(c.byID, sub.id)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.send(ctx, conn, NewFrame(CommandUnsubscribe, HeaderID, sub.id))
}

// Destinations returns the subscribed destinations
func (c *Client) Destinations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	dests := make([]string, 0, len(c.subs))
	for d := range c.subs {
		dests = append(dests, d)
	}
	return dests
}

// Close sends DISCONNECT and closes the connection. Run returns afterwards.
// Closing a closed client is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	defer close(c.stop)

	if conn == nil {
		return nil
	}
	if err := c.send(ctx, conn, NewFrame(CommandDisconnect)); err != nil {
		slog.Debug("Failed to send DISCONNECT", "error", err)
	}
	// the broker may drop the socket on DISCONNECT before the close handshake
	if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		slog.Debug("Push connection closed without handshake", "error", err)
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) connectWithRetry(ctx context.Context) (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff

	operation := func() (*websocket.Conn, error) {
		if c.isClosed() {
			return nil, backoff.Permanent(ErrClosed)
		}
		return c.connect(ctx)
	}

	conn, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Push connection attempt failed", "url", c.url, "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	return conn, nil
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{HTTPHeader: c.header})
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	conn.SetReadLimit(MaxFrameSize)

	heartbeat := strconv.FormatInt(c.heartbeat.Milliseconds(), 10) + ",0"
	connect := NewFrame(CommandConnect,
		HeaderAcceptVersion, stompVersion,
		HeaderHost, c.host,
		HeaderHeartBeat, heartbeat,
	)
	if err := conn.Write(ctx, websocket.MessageText, connect.Encode()); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("failed to send CONNECT: %w", err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			_ = conn.Close(websocket.StatusInternalError, "")
			return nil, fmt.Errorf("failed to read CONNECTED: %w", err)
		}
		frame, err := Decode(data)
		if err != nil {
			_ = conn.Close(websocket.StatusProtocolError, "")
			return nil, err
		}
		if frame == nil {
			continue
		}
		switch frame.Command {
		case CommandConnected:
			slog.Info("Push connection established", "url", c.url, "version", frame.Header(HeaderVersion))
			return conn, nil
		case CommandError:
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrConnectRejected, frame.Header(HeaderMessage)))
		default:
			_ = conn.Close(websocket.StatusProtocolError, "")
			return nil, fmt.Errorf("%w: expected CONNECTED, got %s", ErrMalformedFrame, frame.Command)
		}
	}
}

// attach publishes conn and sends every registered subscription on it
func (c *Client) attach(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return ErrClosed
	}
	c.conn = conn
	frames := make([]*Frame, 0, len(c.subs))
	for dest, sub := range c.subs {
		frames = append(frames, subscribeFrame(sub.id, dest))
	}
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	c.mu.Unlock()

	for _, f := range frames {
		if err := c.send(ctx, conn, f); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.CloseNow()
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.heartbeat > 0 {
		go c.beat(ctx, conn)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		frame, err := Decode(data)
		if err != nil {
			slog.Warn("Dropping malformed push frame", "error", err)
			continue
		}
		if frame == nil {
			continue
		}

		switch frame.Command {
		case CommandMessage:
			c.dispatch(ctx, frame)
		case CommandError:
			slog.Warn("Push broker reported an error", "message", frame.Header(HeaderMessage), "body", string(frame.Body))
		case CommandReceipt:
			slog.Debug("Push receipt", "receipt_id", frame.Header(HeaderReceiptID))
		}
	}
}

func (c *Client) dispatch(ctx context.Context, frame *Frame) {
	c.mu.Lock()
	dest, ok := c.byID[frame.Header(HeaderSubscription)]
	var handler Handler
	if ok {
		handler = c.subs[dest].handler
	}
	c.mu.Unlock()

	if handler == nil {
		return
	}
	c.metrics.RecordMessage(ctx, dest)
	handler(frame.Body)
}

func (c *Client) beat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.Write(ctx, websocket.MessageText, []byte("\n"))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) send(ctx context.Context, conn *websocket.Conn, f *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, f.Encode()); err != nil {
		return fmt.Errorf("failed to send %s: %w", f.Command, err)
	}
	return nil
}

func subscribeFrame(id, destination string) *Frame {
	return NewFrame(CommandSubscribe, HeaderID, id, HeaderDestination, destination, HeaderAck, "auto")
}
