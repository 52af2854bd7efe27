package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber on conn. An empty durable name gives
// an ephemeral consumer that only sees new events.
func NewSubscriber(conn *nats.Conn, durable string) (*Subscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

func (s *Subscriber) SubscribeJobEvents(ctx context.Context, handler func(ctx context.Context, ev *domain.JobEvent) error) error {
	opts := []nats.SubOpt{nats.ManualAck(), nats.MaxDeliver(3)}
	if s.durable != "" {
		opts = append(opts, nats.Durable(s.durable))
	} else {
		opts = append(opts, nats.DeliverNew())
	}
	sub, err := s.js.Subscribe(SubjectAll, func(msg *nats.Msg) {
		ev, err := decodeEvent(msg.Data)
		if err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, ev); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, opts...)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func decodeEvent(data []byte) (*domain.JobEvent, error) {
	var ev domain.JobEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode job event: %w", err)
	}
	if ev.JobID == "" {
		return nil, fmt.Errorf("decode job event: missing job_id")
	}
	return &ev, nil
}

// Close unsubscribes all consumers. The shared connection is left open.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}
