package dispatch

import (
	"context"
	"fmt"
	kafkax "github.com/ariefcatur/stars-storefront/internal/kafka"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	"github.com/ariefcatur/stars-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Service delivers OrderNotification events published by the API.
type Service struct {
	Notifier    orders.Notifier
	Redis       *redis.Client
	ServiceName string
	Log         *zap.SugaredLogger
}

// HandleNotification is installed as the consumer handler. Malformed and
// foreign events are logged and committed. A delivery failure is returned
// and logged by the consumer but not retried: its offset stays uncommitted
// only until a later message on the same partition commits past it.
func (s *Service) HandleNotification(ctx context.Context, m kafkago.Message) error {
	// 1) skip foreign events before decoding
	if typ, ok := kafkax.Header(m, orders.HeaderEventType); ok && typ != orders.EventOrderNotification {
		s.Log.Debugw("foreign event skipped", "event_type", typ, "offset", m.Offset)
		return nil
	}
	env, err := kafkax.Decode[orders.Envelope](m)
	if err != nil {
		s.Log.Errorw("drop malformed envelope", "offset", m.Offset, "error", err)
		return nil
	}
	if env.EventType != orders.EventOrderNotification {
		return nil
	}

	// 2) dedup by event_id
	first, err := redisx.Claim(ctx, s.Redis, s.ServiceName, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup claim: %w", err)
	}
	if !first {
		s.Log.Debugw("duplicate event skipped", "event_id", env.EventID)
		return nil
	}

	// 3) decode payload
	note, err := kafkax.UnwrapPayload[orders.Notification](env.Payload)
	if err != nil {
		s.Log.Errorw("drop malformed payload", "event_id", env.EventID, "error", err)
		return nil
	}

	// 4) deliver; on failure free the claim in case the group rebalances
	// and the same offset is fetched again
	if err := s.Notifier.Notify(ctx, note); err != nil {
		if rerr := redisx.Release(context.WithoutCancel(ctx), s.Redis, s.ServiceName, env.EventID); rerr != nil {
			s.Log.Warnw("dedup release failed", "event_id", env.EventID, "error", rerr)
		}
		return fmt.Errorf("notify order %s: %w", env.CorrelationID, err)
	}
	s.Log.Infow("notification delivered", "event_id", env.EventID, "order_id", env.CorrelationID, "variant", note.Variant)
	return nil
}
