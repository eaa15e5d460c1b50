package health

import (
	"context"

	"github.com/apiwire/apiwire/conn"
)

// ConnChecker reports on a resilient connection. An open connection is
// healthy, a connecting (or reconnecting) one is degraded, and a
// disabled one is unhealthy.
type ConnChecker struct {
	name string
	c    *conn.Conn
}

// NewConnChecker wraps c. The checker name defaults to "conn".
func NewConnChecker(c *conn.Conn, name ...string) *ConnChecker {
	n := "conn"
	if len(name) > 0 && name[0] != "" {
		n = name[0]
	}
	return &ConnChecker{name: n, c: c}
}

func (ck *ConnChecker) Name() string { return ck.name }

func (ck *ConnChecker) Check(ctx context.Context) Result {
	state := ck.c.State()
	details := map[string]any{
		"addr":  ck.c.Addr(),
		"state": state.String(),
	}

	switch state {
	case conn.StateOpen:
		return Healthy("connection open").WithDetails(details)
	case conn.StateConnecting:
		return Degraded("connection attempt in progress").WithDetails(details)
	default:
		return Unhealthy("connection disabled", nil).WithDetails(details)
	}
}
