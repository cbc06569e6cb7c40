package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

var _ ports.EventSubscriber = (*Subscriber)(nil)

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string, log *slog.Logger) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{conn: conn, js: js, log: log}, nil
}

// SubscribeRideUpdates delivers every new ride update to handler. The consumer is
// ephemeral: each instance sees every update published after it subscribed, because
// each instance serves its own map sessions.
func (s *Subscriber) SubscribeRideUpdates(ctx context.Context, handler func(ctx context.Context, ev *domain.RideUpdate) error) error {
	sub, err := s.js.Subscribe(RideUpdatesSubject, func(msg *nats.Msg) {
		var ev domain.RideUpdate
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			s.log.Warn("dropping malformed ride update", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &ev); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return nil
}

// Unsubscribe drops every subscription and keeps the connection open, so the
// subscriber can subscribe again.
func (s *Subscriber) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}

// Connected reports whether the connection is up.
func (s *Subscriber) Connected() bool {
	return s.conn.IsConnected()
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	s.Unsubscribe()
	_ = s.conn.Drain()
}
