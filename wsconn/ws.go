package wsconn

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/apiwire/apiwire/conn"
	"github.com/apiwire/apiwire/observe"
)

// Defaults applied by NewDialer.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPingInterval     = 30 * time.Second

	controlWriteTimeout = 5 * time.Second
)

// ErrNotConnected is returned by Send before the handshake completes or
// after the socket is gone.
var ErrNotConnected = errors.New("wsconn: not connected")

// Options configure a Dialer.
type Options struct {
	// HandshakeTimeout bounds the WebSocket handshake.
	// Default: DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// PingInterval is the keepalive ping period. Zero means
	// DefaultPingInterval; negative disables pings.
	PingInterval time.Duration

	// Header is sent with the handshake request. Optional.
	Header http.Header

	// Logger receives transport-level logs. Default: no-op.
	Logger observe.Logger
}

// Dialer dials WebSocket transports.
type Dialer struct {
	opts Options
}

var _ conn.Dialer = (*Dialer)(nil)

// NewDialer creates a Dialer, filling defaults for zero options.
func NewDialer(opts Options) *Dialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.Logger == nil {
		opts.Logger = observe.NewNopLogger()
	}
	return &Dialer{opts: opts}
}

// Dial starts a WebSocket connection attempt against addr. It returns
// promptly; the handshake runs in the background and reports through ev.
func (d *Dialer) Dial(ctx context.Context, addr string, protocols []string, mode conn.BinaryMode, ev conn.Events) (conn.Transport, error) {
	pumpCtx, cancel := context.WithCancel(context.Background())
	t := &transport{
		ev:     ev,
		mode:   mode,
		log:    d.opts.Logger,
		ping:   d.opts.PingInterval,
		cancel: cancel,
	}

	wsd := &websocket.Dialer{
		HandshakeTimeout: d.opts.HandshakeTimeout,
		Subprotocols:     protocols,
	}

	go t.connect(ctx, pumpCtx, wsd, addr, d.opts.Header)
	return t, nil
}

// transport is one live WebSocket connection.
type transport struct {
	ev     conn.Events
	mode   conn.BinaryMode
	log    observe.Logger
	ping   time.Duration
	cancel context.CancelFunc

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

// connect performs the handshake and, on success, runs the pumps until
// the socket dies. OnClose fires exactly once per transport.
func (t *transport) connect(ctx, pumpCtx context.Context, wsd *websocket.Dialer, addr string, header http.Header) {
	ws, resp, err := wsd.DialContext(ctx, addr, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.log.Debug(ctx, "wsconn: handshake failed", observe.String("addr", addr), observe.Err(err))
		t.emitClose(err)
		return
	}

	t.mu.Lock()
	if t.closed {
		// Torn down while the handshake was in flight.
		t.mu.Unlock()
		ws.Close()
		t.emitClose(nil)
		return
	}
	t.ws = ws
	t.mu.Unlock()

	if t.ev.OnOpen != nil {
		t.ev.OnOpen()
	}

	eg, egCtx := errgroup.WithContext(pumpCtx)
	eg.Go(func() error { return t.readPump(ws) })
	eg.Go(func() error { return t.pingLoop(egCtx, ws) })
	err = eg.Wait()

	ws.Close()

	t.mu.Lock()
	intentional := t.closed
	t.mu.Unlock()

	if intentional || isNormalClosure(err) {
		t.emitClose(nil)
	} else {
		t.emitClose(err)
	}
}

// readPump delivers incoming frames until the socket errors.
func (t *transport) readPump(ws *websocket.Conn) error {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		var kind conn.PayloadKind
		switch mt {
		case websocket.TextMessage:
			kind = conn.Text
		case websocket.BinaryMessage:
			if t.mode == conn.ModeBuffer {
				kind = conn.BinaryBuffer
			} else {
				kind = conn.BinaryBlob
			}
		default:
			continue
		}

		if t.ev.OnMessage != nil {
			t.ev.OnMessage(conn.Message{Kind: kind, Data: data})
		}
	}
}

// pingLoop keeps the connection alive. Control writes are safe to issue
// concurrently with WriteMessage.
func (t *transport) pingLoop(ctx context.Context, ws *websocket.Conn) error {
	if t.ping < 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(t.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteTimeout)); err != nil {
				return err
			}
		}
	}
}

// Send transmits one payload. Text maps to a text frame; both binary
// kinds map to a binary frame.
func (t *transport) Send(msg conn.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ws == nil || t.closed {
		return ErrNotConnected
	}

	mt := websocket.TextMessage
	if msg.Kind != conn.Text {
		mt = websocket.BinaryMessage
	}
	return t.ws.WriteMessage(mt, msg.Data)
}

// Close tears the connection down. The close handshake is best-effort;
// OnClose fires from the pump teardown (or immediately when the
// handshake never completed).
func (t *transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	ws := t.ws
	t.mu.Unlock()

	t.cancel()
	if ws == nil {
		return nil
	}

	deadline := time.Now().Add(controlWriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		return ws.Close()
	}
	return ws.Close()
}

// emitClose fires OnClose at most once.
func (t *transport) emitClose(err error) {
	t.mu.Lock()
	if t.ev.OnClose == nil {
		t.mu.Unlock()
		return
	}
	fn := t.ev.OnClose
	t.ev.OnClose = nil
	t.mu.Unlock()

	fn(err)
}

func isNormalClosure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
