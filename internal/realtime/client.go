package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

const outboundBuffer = 32

// SSEClient is one connected event-stream consumer.
type SSEClient struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
	once     sync.Once
	Logger   *logger.Logger
}
