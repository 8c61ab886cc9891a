package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sapliy/notification-center/pkg/observability"
)

const (
	eventNewNotification = "new_notification"

	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	sessionBacklog = 16
)

// Hub tracks connected WebSocket sessions per user and pushes
// new-notification announcements to them. Delivery is best-effort: a
// session that cannot keep up is dropped, and announcing to a user with no
// sessions is a no-op.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*session]struct{}
	logger   *observability.Logger
}

type session struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func NewHub(logger *observability.Logger) *Hub {
	if logger == nil {
		logger = observability.NewLogger("notifications")
	}
	return &Hub{
		sessions: make(map[string]map[*session]struct{}),
		logger:   logger,
	}
}

// Announce implements Announcer over the hub's live sessions.
func (h *Hub) Announce(ctx context.Context, userIDs []string) {
	payload, err := json.Marshal(NewNotificationEvent{
		Event:   eventNewNotification,
		UserIDs: userIDs,
	})
	if err != nil {
		h.logger.Error("failed to encode announcement", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range userIDs {
		for sess := range h.sessions[userID] {
			select {
			case sess.send <- payload:
				AnnouncementsSent.WithLabelValues("websocket").Inc()
			default:
				// Backlogged session; drop it rather than block dispatch.
				go h.drop(sess)
			}
		}
	}
}

// Serve registers a connection for a user and blocks until it closes.
func (h *Hub) Serve(userID string, conn *websocket.Conn) {
	sess := &session{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sessionBacklog),
	}
	h.register(sess)
	defer h.drop(sess)

	go sess.writePump()
	sess.readPump()
}

// SessionCount reports the number of live sessions for a user.
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

func (h *Hub) register(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sess.userID] == nil {
		h.sessions[sess.userID] = make(map[*session]struct{})
	}
	h.sessions[sess.userID][sess] = struct{}{}
	ConnectedSessions.Inc()
}

func (h *Hub) drop(sess *session) {
	h.mu.Lock()
	if set, ok := h.sessions[sess.userID]; ok {
		if _, live := set[sess]; live {
			delete(set, sess)
			if len(set) == 0 {
				delete(h.sessions, sess.userID)
			}
			ConnectedSessions.Dec()
		}
	}
	h.mu.Unlock()
	sess.close()
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.send)
		s.conn.Close()
	})
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed and
// returns when the peer goes away.
func (s *session) readPump() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// QueuePublisher is the slice of the messaging client the announcer needs.
type QueuePublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// AMQPAnnouncer publishes announcements to a queue so peer instances can
// fan out to their own connected sessions.
type AMQPAnnouncer struct {
	publisher QueuePublisher
	queue     string
	logger    *observability.Logger
}

func NewAMQPAnnouncer(publisher QueuePublisher, queue string, logger *observability.Logger) *AMQPAnnouncer {
	if logger == nil {
		logger = observability.NewLogger("notifications")
	}
	return &AMQPAnnouncer{publisher: publisher, queue: queue, logger: logger}
}

func (a *AMQPAnnouncer) Announce(ctx context.Context, userIDs []string) {
	body, err := json.Marshal(NewNotificationEvent{
		Event:   eventNewNotification,
		UserIDs: userIDs,
	})
	if err != nil {
		a.logger.Error("failed to encode announcement", "error", err)
		return
	}
	if err := a.publisher.Publish(ctx, a.queue, body); err != nil {
		// Push is best-effort; the committed dispatch stands regardless.
		a.logger.Warn("failed to publish announcement", "queue", a.queue, "error", err)
		return
	}
	AnnouncementsSent.WithLabelValues("amqp").Inc()
}

// MultiAnnouncer fans an announcement out to several transports.
type MultiAnnouncer []Announcer

func (m MultiAnnouncer) Announce(ctx context.Context, userIDs []string) {
	for _, a := range m {
		a.Announce(ctx, userIDs)
	}
}
