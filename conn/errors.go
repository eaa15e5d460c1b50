package conn

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrDialerRequired indicates Config.Dialer was nil.
	ErrDialerRequired = errors.New("conn: dialer is required")

	// ErrAddrRequired indicates Config.Addr was empty.
	ErrAddrRequired = errors.New("conn: address is required")

	// ErrNotOpen is the cause reported when sending without a live
	// transport.
	ErrNotOpen = errors.New("conn: connection is not open")

	// ErrConnectionClosed is the fault reported when the transport
	// closes without a cause of its own.
	ErrConnectionClosed = errors.New("conn: connection closed")
)

// SendError wraps a transmission failure returned by Send.
type SendError struct {
	Cause error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("conn: send failed: %v", e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }

// TypeMismatchError reports an incoming payload whose kind is outside the
// accepted set.
type TypeMismatchError struct {
	Kind PayloadKind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("conn: received payload of unaccepted kind %s", e.Kind)
}
