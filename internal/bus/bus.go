// Package bus optionally mirrors session events onto NATS subjects for
// external dashboards. When no NATS URL is configured, Publisher is a
// no-op so the orchestrator never depends on a broker being present.
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/common/events"
	"github.com/kspringfield13/xenosync/internal/common/logger"
)

// Publisher mirrors events onto a messaging subject.
type Publisher interface {
	Publish(ev events.Event) error
	Close()
}

// noopPublisher is used when no broker URL is configured.
type noopPublisher struct{}

func (noopPublisher) Publish(events.Event) error { return nil }
func (noopPublisher) Close()                     {}

// natsPublisher publishes events to "<namespace>.events.<session_id>".
type natsPublisher struct {
	conn      *nats.Conn
	namespace string
	log       *logger.Logger
}

// New connects to url (if non-empty) and returns a Publisher. An empty
// url yields a no-op publisher; a connection failure is logged and also
// degrades to a no-op so a missing broker never blocks orchestration.
func New(url, namespace string, log *logger.Logger) Publisher {
	if url == "" {
		return noopPublisher{}
	}
	if namespace == "" {
		namespace = "xenosync"
	}
	conn, err := nats.Connect(url, nats.Name("xenosync-orchestrator"), nats.MaxReconnects(10))
	if err != nil {
		log.Warn("nats connection failed, falling back to no-op event bus", zap.Error(err))
		return noopPublisher{}
	}
	return &natsPublisher{conn: conn, namespace: namespace, log: log}
}

func (p *natsPublisher) Publish(ev events.Event) error {
	subject := fmt.Sprintf("%s.events.%s", p.namespace, ev.SessionID)
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, payload)
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}
