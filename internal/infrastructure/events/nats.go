package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/ports"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes article events as JSON on "<prefix>.<event type>",
// e.g. "phoneverse.article.created".
type NATSNotifier struct {
	conn   publisher
	closer func()
	prefix string
}

var _ ports.Notifier = (*NATSNotifier)(nil)

// NewNATSNotifier connects to the configured server.
func NewNATSNotifier(cfg config.NATSConfig) (*NATSNotifier, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("phoneverse"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSNotifier{conn: nc, closer: nc.Close, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject an event type is published on.
func (n *NATSNotifier) Subject(typ domain.ArticleEventType) string {
	if n.prefix == "" {
		return string(typ)
	}
	return strings.TrimSuffix(n.prefix, ".") + "." + string(typ)
}

// NotifyArticle publishes the event. Delivery is fire-and-forget.
func (n *NATSNotifier) NotifyArticle(_ context.Context, event domain.ArticleEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(n.Subject(event.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close drops the connection.
func (n *NATSNotifier) Close() {
	if n.closer != nil {
		n.closer()
	}
}
