// Package wsconn provides a WebSocket-backed implementation of the
// conn.Dialer boundary, built on gorilla/websocket.
//
// The dialer performs its handshake asynchronously and reports the
// outcome through the conn.Events callbacks, so the resilient layer sees
// the same event-driven contract a platform socket would give it: OnOpen
// on success, OnClose with the cause on failure or disconnect, OnMessage
// for every frame. Text frames map to conn.Text; binary frames map to
// the binary payload kind selected by the negotiated conn.BinaryMode.
//
//	c, err := conn.New(conn.Config{
//	    Addr:   "wss://gateway.example.com/v1",
//	    Dialer: wsconn.NewDialer(wsconn.Options{PingInterval: 20 * time.Second}),
//	})
package wsconn
