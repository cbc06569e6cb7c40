package services

import (
	"context"
	"fmt"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// RideUpdateHandler receives ride updates from the broker.
type RideUpdateHandler func(ctx context.Context, ev *domain.RideUpdate) error

// RideUpdateSubscriber matches natsadapter.Subscriber.
type RideUpdateSubscriber interface {
	SubscribeRideUpdates(ctx context.Context, handler func(ctx context.Context, ev *domain.RideUpdate) error) error
	Unsubscribe()
}

// SubscriptionService keeps a ride update subscription open while it runs.
type SubscriptionService struct {
	sub     RideUpdateSubscriber
	handler RideUpdateHandler
	name    string
}

func NewSubscriptionService(sub RideUpdateSubscriber, handler RideUpdateHandler) *SubscriptionService {
	return &SubscriptionService{sub: sub, handler: handler, name: "ride-update-subscription"}
}

// Serve subscribes and holds the subscription until ctx is canceled. A failed
// subscribe is returned so the supervisor retries with backoff.
func (s *SubscriptionService) Serve(ctx context.Context) error {
	if err := s.sub.SubscribeRideUpdates(ctx, s.handler); err != nil {
		return fmt.Errorf("subscribe ride updates: %w", err)
	}
	<-ctx.Done()
	s.sub.Unsubscribe()
	return ctx.Err()
}

func (s *SubscriptionService) String() string {
	return s.name
}
