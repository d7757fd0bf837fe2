package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is where generation records are published.
const DefaultSubject = "tripgen.metrics.generation"

// Publisher is the subset of *nats.Conn used by NATSStore.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSStore publishes each record as JSON to a subject.
type NATSStore struct {
	pub     Publisher
	subject string
	closeFn func() error
}

// NewNATSStore wraps an existing publisher.
func NewNATSStore(pub Publisher, subject string) *NATSStore {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSStore{pub: pub, subject: subject}
}

// DialNATS connects to url and returns a store that drains the connection on
// Close.
func DialNATS(url, subject string) (*NATSStore, error) {
	nc, err := nats.Connect(url,
		nats.Name("tripgen-metrics"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	s := NewNATSStore(nc, subject)
	s.closeFn = nc.Drain
	return s, nil
}

// Insert publishes the record.
func (s *NATSStore) Insert(ctx context.Context, m GenerationMetrics) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", s.subject, err)
	}
	return nil
}

// Close drains the connection when the store owns it.
func (s *NATSStore) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
