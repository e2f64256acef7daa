package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"portfolio-tracker/internal/dto"
	"portfolio-tracker/pkg/logger"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// postgresNotifier uses LISTEN/NOTIFY. NOTIFY payloads are limited to 8000
// bytes, so only the user and origin travel; subscribers reload the document.
type postgresNotifier struct {
	db       *gorm.DB
	listener *pq.Listener
	channel  string
	subs     *subscribers
	logger   *logger.Logger
	done     chan struct{}
}

func NewPostgresNotifier(db *gorm.DB, dsn, channel string, log *logger.Logger) (ChangeNotifier, error) {
	eventCallback := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
			log.Warn("Change listener connection problem", logger.ErrorField(err))
		case pq.ListenerEventReconnected:
			log.Info("Change listener reconnected")
		}
	}

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, eventCallback)
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	n := &postgresNotifier{
		db:       db,
		listener: listener,
		channel:  channel,
		subs:     newSubscribers(log),
		logger:   log,
		done:     make(chan struct{}),
	}
	go n.loop()
	return n, nil
}

func (n *postgresNotifier) loop() {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-n.done:
			return
		case msg, ok := <-n.listener.Notify:
			if !ok {
				return
			}
			// nil is sent after a reconnect; changes in between are lost.
			if msg == nil {
				continue
			}
			var change dto.ChangeNotification
			if err := json.Unmarshal([]byte(msg.Extra), &change); err != nil {
				n.logger.Warn("Invalid change notification payload", logger.ErrorField(err))
				continue
			}
			n.subs.dispatch(change)
		case <-ping.C:
			go func() {
				if err := n.listener.Ping(); err != nil {
					n.logger.Warn("Change listener ping failed", logger.ErrorField(err))
				}
			}()
		}
	}
}

func (n *postgresNotifier) Publish(ctx context.Context, change dto.ChangeNotification) error {
	change.Document = nil
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change notification: %w", err)
	}
	if err := n.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", n.channel, string(payload)).Error; err != nil {
		return fmt.Errorf("failed to notify %s: %w", n.channel, err)
	}
	return nil
}

func (n *postgresNotifier) Subscribe(_ context.Context, userID string, handler func(dto.ChangeNotification)) (Subscription, error) {
	return n.subs.add(userID, handler), nil
}

func (n *postgresNotifier) Close() error {
	close(n.done)
	return n.listener.Close()
}
