package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/artforge-backend/internal/domain"
)

// Event is emitted at every task transition.
type Event struct {
	TaskID   uuid.UUID             `json:"taskId"`
	Status   types.TaskStatus      `json:"status"`
	Stage    string                `json:"stage"`
	Progress int                   `json:"progress"`
	Message  string                `json:"message,omitempty"`
	Task     *types.GenerationTask `json:"task,omitempty"`
	At       time.Time             `json:"at"`
}

// Listener must not block; deliveries happen on the runner goroutine.
type Listener func(Event)

type listeners struct {
	mu   sync.RWMutex
	next int
	fns  map[int]Listener
}

func (l *listeners) add(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = map[int]Listener{}
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) emit(ev Event) {
	l.mu.RLock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
