package broadcast

import (
	"context"
	"sync"

	"github.com/Maxim80/devman-async-sms-mailings/internal/metrics"
	"github.com/Maxim80/devman-async-sms-mailings/internal/util"
	"go.uber.org/zap"
)

// Subscriber receives status frames. Send must be safe to call while Close runs.
type Subscriber interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Hub is the registry of open subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{subs: make(map[string]Subscriber), log: log}
}

// Add registers s and returns its id.
func (h *Hub) Add(s Subscriber) string {
	id := util.NewID()

	h.mu.Lock()
	h.subs[id] = s
	n := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
	h.log.Debug("subscriber added", zap.String("subscriber", id), zap.Int("subscribers", n))
	return id
}

// Remove unregisters and closes the subscriber. It reports whether id was registered.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return false
	}

	metrics.Subscribers.Set(float64(n))
	if err := s.Close(); err != nil {
		h.log.Debug("subscriber close", zap.String("subscriber", id), zap.Error(err))
	}
	return true
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish sends payload to every subscriber concurrently and returns how many
// accepted it. Subscribers that fail are removed; the rest are unaffected.
func (h *Hub) Publish(ctx context.Context, payload []byte) int {
	h.mu.RLock()
	snapshot := make(map[string]Subscriber, len(h.subs))
	for id, s := range h.subs {
		snapshot[id] = s
	}
	h.mu.RUnlock()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for id, s := range snapshot {
		wg.Add(1)
		go func(id string, s Subscriber) {
			defer wg.Done()
			if err := s.Send(ctx, payload); err != nil {
				h.log.Info("drop subscriber", zap.String("subscriber", id), zap.Error(err))
				h.Remove(id)
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		}(id, s)
	}
	wg.Wait()

	return delivered
}

// CloseAll removes and closes every subscriber.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	snapshot := h.subs
	h.subs = make(map[string]Subscriber)
	h.mu.Unlock()

	metrics.Subscribers.Set(0)
	for id, s := range snapshot {
		if err := s.Close(); err != nil {
			h.log.Debug("subscriber close", zap.String("subscriber", id), zap.Error(err))
		}
	}
}
