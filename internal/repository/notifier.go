package repository

import (
	"context"
	"sync"

	"portfolio-tracker/internal/dto"
	"portfolio-tracker/pkg/logger"

	"github.com/google/uuid"
)

// ChangeNotifier pushes document changes between processes that share a
// store.
type ChangeNotifier interface {
	Publish(ctx context.Context, n dto.ChangeNotification) error
	Subscribe(ctx context.Context, userID string, handler func(dto.ChangeNotification)) (Subscription, error)
	Close() error
}

type Subscription interface {
	Unsubscribe()
}

// subscribers fans notifications out to handlers registered per user.
type subscribers struct {
	mu       sync.RWMutex
	handlers map[string]map[string]func(dto.ChangeNotification)
	log      *logger.Logger
}

func newSubscribers(log *logger.Logger) *subscribers {
	return &subscribers{
		handlers: make(map[string]map[string]func(dto.ChangeNotification)),
		log:      log,
	}
}

func (s *subscribers) add(userID string, handler func(dto.ChangeNotification)) Subscription {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers[userID] == nil {
		s.handlers[userID] = make(map[string]func(dto.ChangeNotification))
	}
	s.handlers[userID][id] = handler
	return &subscription{parent: s, userID: userID, id: id}
}

func (s *subscribers) remove(userID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers[userID], id)
	if len(s.handlers[userID]) == 0 {
		delete(s.handlers, userID)
	}
}

func (s *subscribers) dispatch(n dto.ChangeNotification) {
	s.mu.RLock()
	handlers := make([]func(dto.ChangeNotification), 0, len(s.handlers[n.UserID]))
	for _, h := range s.handlers[n.UserID] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		s.call(h, n)
	}
}

// call runs one handler in the dispatch goroutine so notifications for a
// user arrive in order.
func (s *subscribers) call(handler func(dto.ChangeNotification), n dto.ChangeNotification) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Change handler panicked",
				logger.StringField("user_id", n.UserID),
				logger.Field("panic", r),
			)
		}
	}()
	handler(n)
}

type subscription struct {
	parent *subscribers
	userID string
	id     string
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.parent.remove(s.userID, s.id) })
}

// noopNotifier is used when realtime notifications are disabled.
type noopNotifier struct{}

func NewNoopNotifier() ChangeNotifier { return noopNotifier{} }

func (noopNotifier) Publish(context.Context, dto.ChangeNotification) error { return nil }

func (noopNotifier) Subscribe(context.Context, string, func(dto.ChangeNotification)) (Subscription, error) {
	return noopSubscription{}, nil
}

func (noopNotifier) Close() error { return nil }

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}
