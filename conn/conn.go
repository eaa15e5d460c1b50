package conn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/apiwire/apiwire/observe"
	"github.com/apiwire/apiwire/ready"
)

// Defaults applied by New.
const (
	DefaultRetries        = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
)

// State is the lifecycle state of a Conn.
type State int

const (
	// StateDisabled is the initial and only terminal state.
	StateDisabled State = iota
	// StateConnecting means a dial or reconnect is in progress.
	StateConnecting
	// StateOpen means the transport is live and usable.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// SignalKind classifies a state-change notification.
type SignalKind int

const (
	// SignalOpened reports a successful (re)connect. Deduplicated.
	SignalOpened SignalKind = iota
	// SignalClosed reports a terminal closure. Deduplicated.
	SignalClosed
	// SignalErrored reports a fault. Always forwarded.
	SignalErrored
	// SignalTypeMismatch reports a filtered incoming payload. Always
	// forwarded.
	SignalTypeMismatch
)

func (k SignalKind) String() string {
	switch k {
	case SignalOpened:
		return "opened"
	case SignalClosed:
		return "closed"
	case SignalErrored:
		return "errored"
	case SignalTypeMismatch:
		return "type-mismatch"
	default:
		return "unknown"
	}
}

// Signal is a single state-change notification delivered to the state
// handler.
type Signal struct {
	Kind SignalKind
	Err  error
}

// Config configures a Conn.
type Config struct {
	// Addr is the target address. Required.
	Addr string

	// Protocols is the optional sub-protocol list offered on dial.
	Protocols []string

	// Retries is the maximum number of reconnect attempts after a
	// fault before the connection forces itself Disabled.
	// Default: DefaultRetries.
	Retries int

	// BackoffDelay maps a reconnect attempt number (starting at 1) to
	// the wait before that attempt. Default: exponential, 500ms base,
	// doubling, capped at 30s.
	BackoffDelay func(attempt int) time.Duration

	// Accepted is the set of payload kinds delivered to the receive
	// handler; anything else produces a type-mismatch signal.
	// Default: all kinds.
	Accepted []PayloadKind

	// OnReceive is the initial receive handler. Optional.
	OnReceive func(Message)

	// OnStateChange is the initial state handler. Optional.
	OnStateChange func(Signal)

	// Dialer produces transports. Required.
	Dialer Dialer

	// Logger receives connection lifecycle logs. Default: no-op.
	Logger observe.Logger

	// Clock drives the reconnect backoff timer. Default: the real
	// clock; tests inject a mock.
	Clock clock.Clock
}

// Conn maintains one logical persistent duplex connection with automatic
// reconnect, backoff, and readiness synchronization.
//
// A Conn persists across reconnects: the live transport handle is
// replaced wholesale on every attempt and discarded on every closure,
// while the Conn itself lives until the caller disables it. Disabled is
// both the initial state and the only state a caller can park the
// connection in.
type Conn struct {
	dialer Dialer
	log    observe.Logger
	clk    clock.Clock
	gate   *ready.Gate

	mu        sync.Mutex
	addr      string
	protocols []string
	accepted  map[PayloadKind]bool
	mode      BinaryMode
	retries   int
	backoff   func(int) time.Duration
	attempt   int
	enabled   bool
	state     State
	tr        Transport
	onReceive func(Message)
	onState   func(Signal)

	// gen identifies the current dial so events from replaced
	// transports are ignored; closedGen is the newest generation that
	// already reported closure.
	gen       uint64
	closedGen uint64

	retryTimer *clock.Timer

	lastSignal SignalKind
	hasSignal  bool
}

// New creates a disabled Conn from cfg.
func New(cfg Config) (*Conn, error) {
	if cfg.Dialer == nil {
		return nil, ErrDialerRequired
	}
	if cfg.Addr == "" {
		return nil, ErrAddrRequired
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.BackoffDelay == nil {
		cfg.BackoffDelay = DefaultBackoff
	}
	if len(cfg.Accepted) == 0 {
		cfg.Accepted = []PayloadKind{Text, BinaryBuffer, BinaryBlob}
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	accepted := make(map[PayloadKind]bool, len(cfg.Accepted))
	for _, k := range cfg.Accepted {
		accepted[k] = true
	}

	return &Conn{
		dialer:    cfg.Dialer,
		log:       cfg.Logger,
		clk:       cfg.Clock,
		gate:      ready.NewGate(),
		addr:      cfg.Addr,
		protocols: cfg.Protocols,
		accepted:  accepted,
		mode:      deriveBinaryMode(accepted),
		retries:   cfg.Retries,
		backoff:   cfg.BackoffDelay,
		state:     StateDisabled,
		onReceive: cfg.OnReceive,
		onState:   cfg.OnStateChange,
	}, nil
}

// DefaultBackoff is the default backoff-delay function: exponential with
// a 500ms base, doubling per attempt, capped at 30s.
func DefaultBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := defaultInitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= defaultMaxBackoff {
			return defaultMaxBackoff
		}
	}
	return d
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enable turns the connection on or off.
//
// Enable(true) moves a disabled connection to Connecting and dials; it is
// a no-op on an already-enabled connection. Enable(false) is synchronous
// from the caller's perspective: the state flips to Disabled and any
// pending reconnect timer is cleared before it returns, the readiness
// gate resolves false, and a single deduplicated closed signal fires.
// Teardown of the live transport completes in the background.
func (c *Conn) Enable(on bool) {
	if on {
		c.mu.Lock()
		if c.enabled {
			c.mu.Unlock()
			return
		}
		c.enabled = true
		c.attempt = 0
		c.state = StateConnecting
		c.mu.Unlock()

		c.dial()
		return
	}

	c.mu.Lock()
	c.enabled = false
	c.state = StateDisabled
	c.attempt = 0
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	tr := c.tr
	c.tr = nil
	c.gen++ // invalidate events from the outgoing transport
	c.mu.Unlock()

	if tr != nil {
		go tr.Close()
	}
	c.gate.Resolve(false)
	c.signal(SignalClosed, nil)
}

// Send attempts transmission and never throws: any underlying failure
// (error or panic) is caught, reported through an errored signal, and
// returned as a *SendError. Sending is only meaningful while the
// connection is open; that is the caller's responsibility.
func (c *Conn) Send(msg Message) error {
	if err := c.trySend(msg); err != nil {
		serr := &SendError{Cause: err}
		c.log.Warn(context.Background(), "conn: send failed",
			observe.String("addr", c.Addr()), observe.Err(err))
		c.signal(SignalErrored, serr)
		return serr
	}
	return nil
}

// MustSend attempts transmission and lets any underlying failure
// propagate uncaught as a panic. No signal is emitted.
func (c *Conn) MustSend(msg Message) {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()

	if tr == nil {
		panic(ErrNotOpen)
	}
	if err := tr.Send(msg); err != nil {
		panic(err)
	}
}

func (c *Conn) trySend(msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panicked: %v", r)
		}
	}()

	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()

	if tr == nil {
		return ErrNotOpen
	}
	return tr.Send(msg)
}

// ChangeURL updates the target for the next connection attempt. An
// already-open connection is unaffected until it reconnects. When
// protocols are supplied they replace the configured sub-protocol list.
func (c *Conn) ChangeURL(addr string, protocols ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addr = addr
	if len(protocols) > 0 {
		c.protocols = protocols
	}
}

// Addr returns the current target address.
func (c *Conn) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// SetReceiveHandler replaces the single active receive handler.
func (c *Conn) SetReceiveHandler(fn func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReceive = fn
}

// SetStateHandler replaces the single active state handler.
func (c *Conn) SetStateHandler(fn func(Signal)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// WhenReady reports whether the connection is usable. A disabled
// connection yields an already-resolved false future, an open one an
// already-resolved true future; while connecting, all callers share the
// gate's pending future, settled by the next success, exhaustion, or
// disable.
func (c *Conn) WhenReady() *ready.Future {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.enabled:
		return ready.ResolvedFuture(false)
	case c.state == StateOpen:
		return ready.ResolvedFuture(true)
	default:
		return c.gate.Charge()
	}
}

// dial starts one connection attempt against the current target.
func (c *Conn) dial() {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.retryTimer = nil
	c.gen++
	gen := c.gen
	addr, protocols, mode := c.addr, c.protocols, c.mode
	c.mu.Unlock()

	ev := Events{
		OnOpen:    func() { c.handleOpen(gen) },
		OnMessage: func(m Message) { c.handleMessage(gen, m) },
		OnClose:   func(err error) { c.handleClose(gen, err) },
		OnError:   func(err error) { c.handleError(gen, err) },
	}

	c.log.Debug(context.Background(), "conn: dialing",
		observe.String("addr", addr), observe.String("mode", mode.String()))

	tr, err := c.dialer.Dial(context.Background(), addr, protocols, mode, ev)
	if err != nil {
		c.fault(fmt.Errorf("dial %s: %w", addr, err))
		return
	}

	c.mu.Lock()
	if !c.enabled || c.gen != gen || c.closedGen >= gen {
		// Replaced or already closed while we were dialing.
		c.mu.Unlock()
		go tr.Close()
		return
	}
	c.tr = tr
	c.mu.Unlock()
}

// handleOpen records a successful open: the attempt counter resets,
// forgiving prior failures for future fault handling.
func (c *Conn) handleOpen(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || !c.enabled {
		c.mu.Unlock()
		return
	}
	c.state = StateOpen
	c.attempt = 0
	c.mu.Unlock()

	c.log.Info(context.Background(), "conn: opened", observe.String("addr", c.Addr()))
	c.signal(SignalOpened, nil)
	c.gate.Resolve(true)
}

// handleMessage filters an incoming payload against the accepted set.
func (c *Conn) handleMessage(gen uint64, msg Message) {
	c.mu.Lock()
	if c.gen != gen || !c.enabled {
		c.mu.Unlock()
		return
	}
	if !c.accepted[msg.Kind] {
		c.mu.Unlock()
		c.signal(SignalTypeMismatch, &TypeMismatchError{Kind: msg.Kind})
		return
	}
	h := c.onReceive
	c.mu.Unlock()

	if h != nil {
		h(msg)
	}
}

// handleError forwards a non-closing transport error. Every occurrence
// is independently actionable, so there is no de-duplication.
func (c *Conn) handleError(gen uint64, err error) {
	c.mu.Lock()
	stale := c.gen != gen
	c.mu.Unlock()
	if stale {
		return
	}
	c.signal(SignalErrored, err)
}

// handleClose reacts to the transport going away. While the connection
// is enabled, every closure is a fault.
func (c *Conn) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if gen > c.closedGen {
		c.closedGen = gen
	}
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.tr = nil
	if !c.enabled {
		// Intentional teardown; Enable(false) already reported it.
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err == nil {
		err = ErrConnectionClosed
	}
	c.fault(err)
}

// fault signals errored, then either schedules a reconnect after the
// backoff delay or, with attempts exhausted, forces Disabled with one
// deduplicated closed signal.
func (c *Conn) fault(err error) {
	c.signal(SignalErrored, err)

	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}

	if c.attempt < c.retries {
		c.attempt++
		delay := c.backoff(c.attempt)
		c.retryTimer = c.clk.AfterFunc(delay, c.dial)
		attempt := c.attempt
		c.mu.Unlock()

		c.log.Warn(context.Background(), "conn: fault, reconnecting",
			observe.String("addr", c.Addr()),
			observe.Int("attempt", attempt),
			observe.Duration("delay", delay),
			observe.Err(err))
		return
	}

	c.enabled = false
	c.state = StateDisabled
	c.attempt = 0
	c.mu.Unlock()

	c.log.Error(context.Background(), "conn: retries exhausted",
		observe.String("addr", c.Addr()), observe.Err(err))
	c.gate.Resolve(false)
	c.signal(SignalClosed, err)
}

// signal forwards a state-change notification to the active handler.
// Opened and closed are forwarded only when the kind differs from the
// last forwarded kind; errored and type-mismatch always go through.
func (c *Conn) signal(kind SignalKind, err error) {
	c.mu.Lock()
	if (kind == SignalOpened || kind == SignalClosed) && c.hasSignal && c.lastSignal == kind {
		c.mu.Unlock()
		return
	}
	c.lastSignal = kind
	c.hasSignal = true
	h := c.onState
	c.mu.Unlock()

	if h != nil {
		h(Signal{Kind: kind, Err: err})
	}
}
