package netlink

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReadLimit caps one frame. A full 800×600 colour map is well under
// it.
const DefaultReadLimit = 32 << 20

const pingWriteWait = 5 * time.Second

// Conn is the read side of a websocket connection.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// PongNotifier is implemented by connections that report pong frames. The
// callback runs on the goroutine calling ReadMessage.
type PongNotifier interface {
	OnPong(fn func())
}

// Dialer opens connections to the server.
type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials with gorilla/websocket.
type WSDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
	// ReadLimit caps the size of one frame. Zero means DefaultReadLimit and
	// a negative value means no limit.
	ReadLimit int64
	// IdleTimeout is the read deadline, refreshed by every frame and pong.
	// Zero disables it.
	IdleTimeout time.Duration
	// PingInterval is how often pings are sent. Zero means a third of
	// IdleTimeout.
	PingInterval time.Duration
}

func (d WSDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake status %s: %w", resp.Status, err)
		}
		return nil, err
	}
	switch {
	case d.ReadLimit == 0:
		conn.SetReadLimit(DefaultReadLimit)
	case d.ReadLimit > 0:
		conn.SetReadLimit(d.ReadLimit)
	}

	c := &wsConn{Conn: conn, idle: d.IdleTimeout, stop: make(chan struct{})}
	conn.SetPongHandler(c.pong)
	interval := d.PingInterval
	if interval <= 0 {
		interval = d.IdleTimeout / 3
	}
	if interval > 0 {
		go c.pingLoop(interval)
	}
	return c, nil
}

// wsConn adds read deadlines and keepalive pings to a websocket.
type wsConn struct {
	*websocket.Conn
	idle time.Duration

	mu     sync.Mutex
	onPong func()

	closeOnce sync.Once
	stop      chan struct{}
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	if c.idle > 0 {
		c.SetReadDeadline(time.Now().Add(c.idle))
	}
	return c.Conn.ReadMessage()
}

func (c *wsConn) OnPong(fn func()) {
	c.mu.Lock()
	c.onPong = fn
	c.mu.Unlock()
}

func (c *wsConn) pong(string) error {
	if c.idle > 0 {
		c.SetReadDeadline(time.Now().Add(c.idle))
	}
	c.mu.Lock()
	fn := c.onPong
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (c *wsConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteWait)); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	return c.Conn.Close()
}
