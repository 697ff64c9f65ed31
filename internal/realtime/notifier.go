package realtime

import (
	"context"
	"time"

	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/orchestrator"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

// Publisher fans a message out to other instances.
type Publisher interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

// Notifier turns orchestrator events into SSE messages. With a Publisher the
// message goes through the bus and reaches the local hub via its forwarder;
// without one it is broadcast directly.
type Notifier struct {
	log *logger.Logger
	hub *SSEHub
	pub Publisher
}

func NewNotifier(hub *SSEHub, pub Publisher, baseLog *logger.Logger) *Notifier {
	return &Notifier{log: baseLog.With("service", "SSENotifier"), hub: hub, pub: pub}
}

// Handle is an orchestrator.Listener.
func (n *Notifier) Handle(ev orchestrator.Event) {
	n.Send(SSEMessage{Channel: ChannelGenerations, Event: eventFor(ev.Status), Data: ev})
}

func (n *Notifier) Send(msg SSEMessage) {
	if n.pub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := n.pub.Publish(ctx, msg)
		if err == nil {
			return
		}
		n.log.Warn("Bus publish failed; broadcasting locally", "event", msg.Event, "error", err)
	}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
}

func eventFor(s types.TaskStatus) SSEEvent {
	switch s {
	case types.TaskCompleted:
		return SSEEventTaskCompleted
	case types.TaskFailed:
		return SSEEventTaskFailed
	case types.TaskStopped:
		return SSEEventTaskStopped
	default:
		return SSEEventTaskUpdated
	}
}
