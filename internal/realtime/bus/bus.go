package bus

import (
	"context"

	"github.com/yungbote/artforge-backend/internal/realtime"
)

// Bus relays SSE messages between service instances.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
