// Package netlink keeps the client connected to the game server. A Link owns
// a single websocket, feeds its frames into a world.Store and reconnects
// after a fixed delay whenever the connection is lost.
package netlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hako/durafmt"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"terrasync/wire"
	"terrasync/world"
)

const (
	// DefaultReconnectDelay is the wait between losing a connection and the
	// next attempt.
	DefaultReconnectDelay = time.Second
	// DefaultIdleTimeout is how long an open connection may stay silent,
	// neither frames nor pongs, before it is treated as lost.
	DefaultIdleTimeout = 30 * time.Second
)

var (
	ErrConnection     = errors.New("netlink: connection error")
	ErrAlreadyRunning = errors.New("netlink: link already running")
	ErrIdleTimeout    = errors.New("netlink: connection idle")
)

type Options struct {
	URL            string
	ReconnectDelay time.Duration
	// IdleTimeout bounds the silence on an open connection. Zero means
	// DefaultIdleTimeout and a negative value disables the check.
	IdleTimeout    time.Duration
	Dialer         Dialer
	Clock          Clock
	Logger         logrus.FieldLogger
	// Trace, when set, sees every raw frame before it is parsed. It runs on
	// the link's goroutine.
	Trace          func(frame []byte)
}

// Link is the connection manager. Run drives it; Connect and Disconnect may
// be called from any goroutine.
type Link struct {
	url    string
	delay  time.Duration
	idle   time.Duration
	dialer Dialer
	clock  Clock
	log    logrus.FieldLogger
	trace  func([]byte)
	store  *world.Store

	mu   sync.Mutex
	want bool
	wake chan struct{}

	running atomic.Bool
	drops   atomic.Uint64
	frames  atomic.Uint64
	dropLog *rate.Limiter
}

// New returns a link that will commit into store once Run is called. The
// link starts in the connecting state as soon as it runs.
func New(store *world.Store, opts Options) *Link {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Dialer == nil {
		d := WSDialer{}
		if opts.IdleTimeout > 0 {
			d.IdleTimeout = opts.IdleTimeout
		}
		opts.Dialer = d
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Link{
		url:     opts.URL,
		delay:   opts.ReconnectDelay,
		idle:    opts.IdleTimeout,
		dialer:  opts.Dialer,
		clock:   opts.Clock,
		log:     opts.Logger.WithField("component", "netlink"),
		trace:   opts.Trace,
		store:   store,
		want:    true,
		wake:    make(chan struct{}, 1),
		dropLog: rate.NewLimiter(rate.Every(5*time.Second), 3),
	}
}

// Connect asks the link to be connected. It is a no-op while a connection is
// being dialled or is open.
func (l *Link) Connect() { l.setWant(true) }

// Disconnect closes the connection and cancels any pending reconnection.
func (l *Link) Disconnect() { l.setWant(false) }

func (l *Link) setWant(v bool) {
	l.mu.Lock()
	l.want = v
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Link) wanted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.want
}

// Stats reports how many frames were applied and dropped.
func (l *Link) Stats() (applied, dropped uint64) {
	return l.frames.Load(), l.drops.Load()
}

type eventKind int

const (
	evDialed eventKind = iota
	evFrame
	evClosed
	evPong
)

type event struct {
	kind eventKind
	gen  uint64
	conn Conn
	data []byte
	err  error
}

// loop holds the state owned by the Run goroutine.
type loop struct {
	*Link
	ctx    context.Context
	events chan event
	done   chan struct{}

	gen        uint64
	conn       Conn
	dialing    bool
	dialCancel context.CancelFunc
	timer      Timer
	idleTimer  Timer
	attempts   int
	lastErr    error
	status     world.Status
}

// Run processes connection events until ctx is cancelled. Frames are applied
// to the store in the order they arrive.
func (l *Link) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	lp := &loop{
		Link:   l,
		ctx:    ctx,
		events: make(chan event),
		done:   make(chan struct{}),
	}
	defer lp.teardown()

	lp.reconcile()
	for {
		var timerC, idleC <-chan time.Time
		if lp.timer != nil {
			timerC = lp.timer.C()
		}
		if lp.idleTimer != nil {
			idleC = lp.idleTimer.C()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			lp.reconcile()
		case <-timerC:
			lp.timer = nil
			if l.wanted() {
				lp.dial()
			}
		case <-idleC:
			lp.idleTimer = nil
			lp.idleOut()
		case ev := <-lp.events:
			lp.handle(ev)
		}
	}
}

func (lp *loop) reconcile() {
	if lp.wanted() {
		if lp.conn == nil && !lp.dialing && lp.timer == nil {
			lp.dial()
		}
		return
	}
	if lp.conn == nil && !lp.dialing && lp.timer == nil {
		return
	}
	lp.release()
	lp.log.Info("disconnected")
	lp.setStatus(world.StatusClosed, 0)
}

// release drops the connection, the dial in flight and the retry timer.
func (lp *loop) release() {
	lp.gen++
	if lp.dialCancel != nil {
		lp.dialCancel()
		lp.dialCancel = nil
	}
	lp.dialing = false
	if lp.timer != nil {
		lp.timer.Stop()
		lp.timer = nil
	}
	lp.stopIdle()
	if lp.conn != nil {
		lp.conn.Close()
		lp.conn = nil
	}
}

func (lp *loop) teardown() {
	lp.release()
	close(lp.done)
	if lp.status != world.StatusIdle {
		lp.setStatus(world.StatusClosed, 0)
	}
}

func (lp *loop) dial() {
	lp.gen++
	gen := lp.gen
	lp.attempts++
	lp.dialing = true
	ctx, cancel := context.WithCancel(lp.ctx)
	lp.dialCancel = cancel
	lp.setStatus(world.StatusConnecting, 0)
	lp.log.WithField("attempt", lp.attempts).Debugf("dialing %s", lp.url)

	go func() {
		conn, err := lp.dialer.DialContext(ctx, lp.url)
		if err != nil {
			err = fmt.Errorf("%w: dial %s: %v", ErrConnection, lp.url, err)
		}
		select {
		case lp.events <- event{kind: evDialed, gen: gen, conn: conn, err: err}:
		case <-lp.done:
			if conn != nil {
				conn.Close()
			}
		}
	}()
}

func (lp *loop) handle(ev event) {
	if ev.gen != lp.gen {
		if ev.kind == evDialed && ev.conn != nil {
			ev.conn.Close()
		}
		return
	}
	switch ev.kind {
	case evDialed:
		lp.dialing = false
		if lp.dialCancel != nil {
			lp.dialCancel()
			lp.dialCancel = nil
		}
		if ev.err != nil {
			lp.lost(ev.err)
			return
		}
		lp.conn = ev.conn
		lp.attempts = 0
		lp.lastErr = nil
		if pn, ok := ev.conn.(PongNotifier); ok {
			gen := ev.gen
			pn.OnPong(func() {
				select {
				case lp.events <- event{kind: evPong, gen: gen}:
				case <-lp.done:
				}
			})
		}
		// The idle timer exists before open is published.
		lp.armIdle()
		lp.log.Infof("connected to %s", lp.url)
		lp.setStatus(world.StatusOpen, 0)
		go lp.read(ev.gen, ev.conn)
	case evFrame:
		lp.armIdle()
		lp.apply(ev.data)
	case evPong:
		lp.armIdle()
	case evClosed:
		lp.stopIdle()
		if lp.conn != nil {
			lp.conn.Close()
			lp.conn = nil
		}
		lp.lost(ev.err)
	}
}

// armIdle restarts the silence timer of the open connection.
func (lp *loop) armIdle() {
	if lp.idle <= 0 {
		return
	}
	lp.stopIdle()
	lp.idleTimer = lp.clock.NewTimer(lp.idle)
}

func (lp *loop) stopIdle() {
	if lp.idleTimer != nil {
		lp.idleTimer.Stop()
		lp.idleTimer = nil
	}
}

// idleOut drops a connection that has been silent for the idle timeout.
func (lp *loop) idleOut() {
	if lp.conn == nil {
		return
	}
	lp.release()
	lp.lost(fmt.Errorf("%w: %w: nothing received for %s", ErrConnection, ErrIdleTimeout, durafmt.Parse(lp.idle)))
}

// lost moves to closed and arms the retry timer. The timer exists before the
// closed state is published.
func (lp *loop) lost(err error) {
	lp.lastErr = err
	lp.timer = lp.clock.NewTimer(lp.delay)
	entry := lp.log.WithField("retry_in", durafmt.Parse(lp.delay).String())
	if err != nil {
		entry = entry.WithError(err)
	}
	if lp.attempts <= 1 {
		entry.Warn("connection lost")
	} else {
		entry.WithField("attempt", lp.attempts).Debug("connection attempt failed")
	}
	lp.setStatus(world.StatusClosed, lp.delay)
}

func (lp *loop) read(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = fmt.Errorf("%w: server closed: %v", ErrConnection, err)
			} else {
				err = fmt.Errorf("%w: read: %v", ErrConnection, err)
			}
			select {
			case lp.events <- event{kind: evClosed, gen: gen, err: err}:
			case <-lp.done:
			}
			return
		}
		select {
		case lp.events <- event{kind: evFrame, gen: gen, data: data}:
		case <-lp.done:
			return
		}
	}
}

func (lp *loop) apply(data []byte) {
	if lp.trace != nil {
		lp.trace(data)
	}
	msg, err := wire.Parse(data)
	if err != nil {
		n := lp.drops.Add(1)
		if lp.dropLog.Allow() {
			lp.log.WithError(err).WithField("dropped", n).Warn("dropping frame")
		}
		return
	}
	if msg.Ignored {
		lp.log.Debugf("ignoring frame type %q", msg.Type)
		return
	}
	lp.frames.Add(1)
	lp.store.Commit(msg.Update)
}

func (lp *loop) setStatus(s world.Status, retry time.Duration) {
	lp.status = s
	cs := world.ConnState{
		Status:     s,
		RetryDelay: retry,
		Attempts:   lp.attempts,
		Since:      lp.clock.Now(),
	}
	if lp.lastErr != nil {
		cs.LastError = lp.lastErr.Error()
	}
	lp.store.Commit(world.Update{Conn: &cs})
}
