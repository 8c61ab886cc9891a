package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.Serve(userID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Wait for registration to land before announcing.
	deadline := time.Now().Add(2 * time.Second)
	for hub.SessionCount(userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func TestHubAnnounceReachesRecipient(t *testing.T) {
	hub := NewHub(nil)
	conn := dialTestHub(t, hub, "alice")

	hub.Announce(context.Background(), []string{"alice", "bob"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected announcement frame: %v", err)
	}

	var event NewNotificationEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("announcement is not valid JSON: %v", err)
	}
	if event.Event != "new_notification" {
		t.Errorf("unexpected event name %q", event.Event)
	}
	if len(event.UserIDs) != 2 {
		t.Errorf("announcement must carry recipient ids, got %v", event.UserIDs)
	}
}

func TestHubAnnounceSkipsOtherUsers(t *testing.T) {
	hub := NewHub(nil)
	conn := dialTestHub(t, hub, "carol")

	hub.Announce(context.Background(), []string{"alice"})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("carol must not receive alice's announcement")
	}
}

func TestHubAnnounceWithoutSessions(t *testing.T) {
	hub := NewHub(nil)
	// Must not panic or block.
	hub.Announce(context.Background(), []string{"ghost"})
}

func TestMultiAnnouncer(t *testing.T) {
	first := &recordAnnouncer{}
	second := &recordAnnouncer{}
	multi := MultiAnnouncer{first, second}

	multi.Announce(context.Background(), []string{"a"})

	if len(first.calls) != 1 || len(second.calls) != 1 {
		t.Error("every transport must receive the announcement")
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	f.calls++
	return context.DeadlineExceeded
}

func TestAMQPAnnouncerSwallowsPublishErrors(t *testing.T) {
	pub := &failingPublisher{}
	a := NewAMQPAnnouncer(pub, AnnounceQueue, nil)

	// Best-effort: a broken broker must not panic or propagate.
	a.Announce(context.Background(), []string{"a"})
	if pub.calls != 1 {
		t.Errorf("expected one publish attempt, got %d", pub.calls)
	}
}
