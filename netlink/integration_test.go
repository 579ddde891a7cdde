package netlink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"

	"terrasync/fakeserver"
	"terrasync/world"
)

func TestLinkAgainstFakeServer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv := fakeserver.New(fakeserver.Config{
		Width: 24, Height: 12, Players: 4,
		Interval: 10 * time.Millisecond,
		Logger:   logger,
	})
	mux := http.NewServeMux()
	mux.Handle("/ws", srv)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	store := world.NewStore()
	link := New(store, Options{
		URL:    "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		Logger: logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	var snap *world.Snapshot
	for time.Now().Before(deadline) {
		snap = store.Snapshot()
		if snap.Grid != nil && snap.Terrain != nil && snap.Players.Len() == 4 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Grid == nil || snap.Terrain == nil {
		t.Fatalf("store never filled: %+v", snap)
	}
	if snap.Conn.Status != world.StatusOpen {
		t.Fatalf("status=%v, want open", snap.Conn.Status)
	}
	if snap.Grid.Width() != 24 || snap.Terrain.Width() != 24 {
		t.Fatalf("widths grid=%d terrain=%d, want 24", snap.Grid.Width(), snap.Terrain.Width())
	}

	// A server going away puts the link into the retry cycle.
	srv.Close()
	for time.Now().Before(deadline) {
		if store.Snapshot().Conn.Status != world.StatusOpen {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st := store.Snapshot().Conn.Status; st == world.StatusOpen {
		t.Fatalf("status still open after server close")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}
}

func TestLinkDropsSilentPeer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Never read or write, so pings go unanswered.
		<-release
	}))
	defer ts.Close()
	defer close(release)

	store := world.NewStore()
	var states []world.Status
	seen := make(chan world.Status, 64)
	store.Subscribe(func(snap *world.Snapshot, changed world.Field) {
		if changed.Has(world.FieldConn) {
			select {
			case seen <- snap.Conn.Status:
			default:
			}
		}
	})
	link := New(store, Options{
		URL:            "ws" + strings.TrimPrefix(ts.URL, "http"),
		IdleTimeout:    200 * time.Millisecond,
		ReconnectDelay: 50 * time.Millisecond,
		Logger:         logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go link.Run(ctx)

	want := []world.Status{world.StatusConnecting, world.StatusOpen, world.StatusClosed, world.StatusConnecting}
	timeout := time.After(3 * time.Second)
	for len(states) < len(want) {
		select {
		case st := <-seen:
			states = append(states, st)
		case <-timeout:
			t.Fatalf("statuses=%v, want prefix %v", states, want)
		}
	}
	for i, st := range want {
		if states[i] != st {
			t.Fatalf("statuses=%v, want prefix %v", states, want)
		}
	}
}

func TestReadLimitDropsOversizedFrame(t *testing.T) {
	logger, _ := test.NewNullLogger()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"player_info","data":[{"id":1,"name":"`+strings.Repeat("x", 256)+`"}]}`))
		conn.NextReader()
	}))
	defer ts.Close()

	store := world.NewStore()
	link := New(store, Options{
		URL:    "ws" + strings.TrimPrefix(ts.URL, "http"),
		Dialer: WSDialer{ReadLimit: 64},
		Logger: logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go link.Run(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cs := store.Snapshot().Conn; cs.Status == world.StatusClosed && cs.LastError != "" {
			if store.Snapshot().Players.Len() != 0 {
				t.Fatalf("oversized frame was applied")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("oversized frame did not close the connection: %+v", store.Snapshot().Conn)
}
