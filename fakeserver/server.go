// Package fakeserver streams a synthetic territory world over websocket in
// the same format as the game server, so the client can run offline.
package fakeserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Width, Height int
	Players       int
	Seed          int64
	// Interval is the time between state frames.
	Interval time.Duration
	// InfoEvery sends a player_info frame every n state frames.
	InfoEvery int
	// Growth is the number of cells each player tries to claim per step.
	Growth int
	Logger logrus.FieldLogger
}

func (c *Config) defaults() {
	if c.Width <= 0 {
		c.Width = 160
	}
	if c.Height <= 0 {
		c.Height = 120
	}
	if c.Players <= 0 {
		c.Players = 8
	}
	if c.Interval <= 0 {
		c.Interval = 100 * time.Millisecond
	}
	if c.InfoEvery <= 0 {
		c.InfoEvery = 10
	}
	if c.Growth <= 0 {
		c.Growth = 4
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}

// Server is an http.Handler that upgrades requests to websocket and streams
// frames from a shared World.
type Server struct {
	cfg      Config
	world    *World
	log      logrus.FieldLogger
	upgrader websocket.Upgrader

	closeOnce sync.Once
	done      chan struct{}
}

func New(cfg Config) *Server {
	cfg.defaults()
	return &Server{
		cfg:   cfg,
		world: NewWorld(cfg.Width, cfg.Height, cfg.Players, cfg.Seed),
		log:   cfg.Logger.WithField("component", "fakeserver"),
		done:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) World() *World { return s.world }

// Close ends every stream with a going-away close frame.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Simulate steps the world every Interval until ctx is done.
func (s *Server) Simulate(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.world.Step(s.cfg.Growth)
		}
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("upgrade failed")
		return
	}
	defer conn.Close()
	s.log.Infof("client %s connected", r.RemoteAddr)

	// Client frames are ignored; reading keeps control frames flowing and
	// reports the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := s.send(conn, true, true); err != nil {
		s.log.WithError(err).Debug("initial write failed")
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for n := 1; ; n++ {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		case <-gone:
			s.log.Infof("client %s disconnected", r.RemoteAddr)
			return
		case <-ticker.C:
		}
		if err := s.send(conn, false, n%s.cfg.InfoEvery == 0); err != nil {
			s.log.WithError(err).Debug("write failed")
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, withTerrain, withInfo bool) error {
	frame, err := s.world.StateFrame(withTerrain)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}
	if !withInfo {
		return nil
	}
	info, err := s.world.PlayerInfoFrame()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, info)
}

// ListenAndServe serves the world on addr at /ws and simulates it until ctx
// is done. It returns the bound address once the listener is up.
func (s *Server) ListenAndServe(ctx context.Context, addr string) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go s.Simulate(ctx)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()
	go func() {
		<-ctx.Done()
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("fake server listening on %s", ln.Addr())
	return ln.Addr(), errc, nil
}
