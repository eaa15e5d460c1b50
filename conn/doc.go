// Package conn maintains one logical persistent duplex connection with
// automatic reconnect, exponential backoff, and readiness
// synchronization.
//
// The package is transport-agnostic: it drives an injected Dialer that
// produces event-driven Transports (see the wsconn package for a
// WebSocket-backed implementation). Every closure that happens while the
// connection is enabled is treated as a fault and answered with a
// reconnect attempt, until the configured retry budget is spent or the
// caller disables the connection; both roads end in the Disabled state,
// where the connection idles until re-enabled.
//
// State-change notifications flow through a single replaceable handler.
// Opened and closed signals are de-duplicated across reconnect flapping;
// errored and type-mismatch signals are always delivered.
//
// # Usage
//
//	c, err := conn.New(conn.Config{
//	    Addr:    "wss://gateway.example.com/v1",
//	    Dialer:  wsconn.NewDialer(),
//	    Retries: 5,
//	    OnStateChange: func(s conn.Signal) {
//	        log.Printf("connection %s", s.Kind)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//
//	c.Enable(true)
//	if ok, _ := c.WhenReady().Wait(ctx); ok {
//	    _ = c.Send(conn.Message{Kind: conn.Text, Data: []byte("hello")})
//	}
//	c.Enable(false)
package conn
