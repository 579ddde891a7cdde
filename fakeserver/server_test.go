package fakeserver

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"

	"terrasync/wire"
)

func TestServeStreamsFrames(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv := New(Config{Width: 12, Height: 6, Players: 3, Interval: 5 * time.Millisecond, InfoEvery: 2, Logger: logger})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var types []string
	var terrain int
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(types) < 6 {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		msg, err := wire.Parse(data)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if msg.Update.Terrain != nil {
			terrain++
		}
		types = append(types, msg.Type)
	}
	if types[0] != wire.TypeGameState || types[1] != wire.TypePlayerInfo {
		t.Fatalf("first frames=%v, want game_state then player_info", types[:2])
	}
	if terrain != 1 {
		t.Fatalf("terrain frames=%d, want only the first", terrain)
	}
}

func TestCloseEndsStreams(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv := New(Config{Width: 4, Height: 4, Players: 1, Interval: 5 * time.Millisecond, Logger: logger})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read: %v", err)
	}
	srv.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Fatalf("err=%v, want going away close", err)
		}
		return
	}
}
