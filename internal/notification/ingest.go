package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sapliy/notification-center/pkg/observability"
)

// Queue names shared by the service and its producers.
const (
	DispatchQueue = "notifications.dispatch"
	AnnounceQueue = "notifications.announce"
)

// Consumer turns queued dispatch tasks into notification fan-outs and
// relays peer announcements into the local hub.
type Consumer struct {
	svc    *Service
	hub    *Hub
	logger *observability.Logger
}

func NewConsumer(svc *Service, hub *Hub, logger *observability.Logger) *Consumer {
	if logger == nil {
		logger = observability.NewLogger("notifications")
	}
	return &Consumer{svc: svc, hub: hub, logger: logger}
}

// HandleDispatch processes one DispatchTask message. Malformed payloads
// are acknowledged and dropped (poison messages must not cycle through the
// queue); store failures are returned so the message is redelivered.
func (c *Consumer) HandleDispatch(ctx context.Context, body []byte) error {
	var task DispatchTask
	if err := json.Unmarshal(body, &task); err != nil {
		c.logger.Error("dropping malformed dispatch task", "error", err)
		return nil
	}
	if !ValidType(task.Type) {
		c.logger.Error("dropping dispatch task with unknown type", "type", string(task.Type))
		return nil
	}

	if err := c.svc.Dispatch(ctx, &task); err != nil {
		return fmt.Errorf("failed to dispatch queued notification: %w", err)
	}
	return nil
}

// HandleAnnounce relays an announcement published by a peer instance to
// the sessions connected to this instance.
func (c *Consumer) HandleAnnounce(ctx context.Context, body []byte) error {
	var event NewNotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("dropping malformed announcement", "error", err)
		return nil
	}
	if c.hub != nil && len(event.UserIDs) > 0 {
		c.hub.Announce(ctx, event.UserIDs)
	}
	return nil
}
