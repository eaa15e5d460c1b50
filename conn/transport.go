package conn

import "context"

// PayloadKind classifies a payload crossing the duplex connection.
type PayloadKind int

const (
	// Text is a UTF-8 text payload.
	Text PayloadKind = iota
	// BinaryBuffer is a binary payload in buffer representation.
	BinaryBuffer
	// BinaryBlob is a binary payload in blob representation.
	BinaryBlob
)

func (k PayloadKind) String() string {
	switch k {
	case Text:
		return "text"
	case BinaryBuffer:
		return "binary-buffer"
	case BinaryBlob:
		return "binary-blob"
	default:
		return "unknown"
	}
}

// Message is a single payload received from or sent over a Transport.
type Message struct {
	Kind PayloadKind
	Data []byte
}

// BinaryMode is the single preferred binary representation negotiated for
// the underlying transport.
type BinaryMode int

const (
	// ModeBlob prefers the blob representation for binary payloads.
	ModeBlob BinaryMode = iota
	// ModeBuffer prefers the buffer representation.
	ModeBuffer
)

func (m BinaryMode) String() string {
	if m == ModeBuffer {
		return "buffer"
	}
	return "blob"
}

// deriveBinaryMode picks the transport's binary representation from the
// accepted payload kinds: blob unless only the buffer kind is accepted.
func deriveBinaryMode(accepted map[PayloadKind]bool) BinaryMode {
	if accepted[BinaryBuffer] && !accepted[BinaryBlob] {
		return ModeBuffer
	}
	return ModeBlob
}

// Events carries the callbacks through which a Transport reports its
// lifecycle. Implementations must deliver events asynchronously with
// respect to Dial and Send, from their own goroutines.
type Events struct {
	// OnOpen fires once when the connection becomes usable.
	OnOpen func()

	// OnMessage fires for every received payload.
	OnMessage func(Message)

	// OnClose fires once when the connection is gone, with the cause
	// (nil for a clean, intentional closure).
	OnClose func(err error)

	// OnError fires for errors that do not close the connection.
	OnError func(err error)
}

// Transport is one live instance of the platform's persistent duplex
// connection primitive. A Transport is single-use: the resilient layer
// discards it on every closure and dials a fresh one.
type Transport interface {
	// Send transmits a payload. It must not block indefinitely.
	Send(msg Message) error

	// Close tears the connection down. OnClose fires asynchronously.
	Close() error
}

// Dialer produces Transports. Dial returns promptly; handshake outcome is
// reported through ev (OnOpen on success, OnClose on failure), matching
// an event-driven connection primitive.
type Dialer interface {
	Dial(ctx context.Context, addr string, protocols []string, mode BinaryMode, ev Events) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr string, protocols []string, mode BinaryMode, ev Events) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, addr string, protocols []string, mode BinaryMode, ev Events) (Transport, error) {
	return f(ctx, addr, protocols, mode, ev)
}
