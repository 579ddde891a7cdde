package netlink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"terrasync/world"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	c       chan time.Time
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), c: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves the clock and fires every due timer.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if t.stopped || t.fired || t.at.After(c.now) {
			continue
		}
		t.fired = true
		t.c <- c.now
	}
}

// Pending returns the number of armed timers.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeConn struct {
	mu     sync.Mutex
	onPong func()

	frames    chan []byte
	fail      chan error
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return 1, f, nil
	case err := <-c.fail:
		return 0, nil, err
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) OnPong(fn func()) {
	c.mu.Lock()
	c.onPong = fn
	c.mu.Unlock()
}

// pong delivers a pong as the websocket reader would.
func (c *fakeConn) pong() {
	c.mu.Lock()
	fn := c.onPong
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out queued results; with an empty queue it returns a
// fresh connection.
type fakeDialer struct {
	mu      sync.Mutex
	results []error
	conns   []*fakeConn
}

func (d *fakeDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.results) > 0 {
		err := d.results[0]
		d.results = d.results[1:]
		if err != nil {
			d.conns = append(d.conns, nil)
			return nil, err
		}
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type harness struct {
	t      *testing.T
	store  *world.Store
	link   *Link
	clock  *fakeClock
	dialer *fakeDialer
	states chan world.ConnState
	hook   *test.Hook
	done   chan error
	cancel context.CancelFunc
	once   sync.Once
}

func newHarness(t *testing.T, dialResults ...error) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h := &harness{
		t:      t,
		store:  world.NewStore(),
		clock:  newFakeClock(),
		dialer: &fakeDialer{results: dialResults},
		states: make(chan world.ConnState, 64),
		hook:   hook,
		done:   make(chan error, 1),
	}
	h.store.Subscribe(func(snap *world.Snapshot, changed world.Field) {
		if changed.Has(world.FieldConn) {
			h.states <- snap.Conn
		}
	})
	h.link = New(h.store, Options{
		URL:    "ws://game.test/ws",
		Dialer: h.dialer,
		Clock:  h.clock,
		Logger: logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.link.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.once.Do(func() {
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			h.t.Errorf("Run did not return after cancel")
		}
	})
}

// expect waits for the next status change and checks it.
func (h *harness) expect(want world.Status) world.ConnState {
	h.t.Helper()
	select {
	case cs := <-h.states:
		if cs.Status != want {
			h.t.Fatalf("status=%v, want %v", cs.Status, want)
		}
		return cs
	case <-time.After(2 * time.Second):
		h.t.Fatalf("timed out waiting for status %v", want)
	}
	return world.ConnState{}
}

func (h *harness) expectNone() {
	h.t.Helper()
	select {
	case cs := <-h.states:
		h.t.Fatalf("unexpected status %v", cs.Status)
	case <-time.After(50 * time.Millisecond):
	}
}

// waitFor polls the store until cond holds.
func (h *harness) waitFor(what string, cond func(*world.Snapshot) bool) *world.Snapshot {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := h.store.Snapshot(); cond(snap) {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %s", what)
	return nil
}

// lastAt returns the deadline of the most recently created timer.
func (c *fakeClock) lastAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return time.Time{}
	}
	return c.timers[len(c.timers)-1].at
}
