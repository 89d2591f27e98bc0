package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"budgee-monitor/src/monitor"
)

const DefaultSubjectPrefix = "budgee.notify"

// Publisher is the part of *nats.Conn the dispatcher needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSDispatcher publishes each notification as JSON on
// <prefix>.<kind>, e.g. budgee.notify.BudgetExceeded.
type NATSDispatcher struct {
	pub    Publisher
	prefix string
}

func NewNATSDispatcher(pub Publisher, prefix string) *NATSDispatcher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSDispatcher{pub: pub, prefix: prefix}
}

func (d *NATSDispatcher) Name() string { return "nats" }

func (d *NATSDispatcher) Subject(kind monitor.EventKind) string {
	return d.prefix + "." + string(kind)
}

func (d *NATSDispatcher) Dispatch(ctx context.Context, n monitor.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := d.pub.Publish(d.Subject(n.Kind), data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// ConnectNATS dials url and keeps reconnecting for the life of the process.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("budgee-monitor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}
