// Package events publishes activity outcomes onto NATS so external
// consumers (dashboards, alerting) can watch runs. A nil bus is a no-op,
// so the engine never depends on a broker being up.
package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"rewardsbot/botlog"
)

const defaultSubject = "rewards.events.activity"

// ActivityEvent is the wire shape of one activity outcome.
type ActivityEvent struct {
	RunID     string    `json:"run_id"`
	Email     string    `json:"email"`
	OfferID   string    `json:"offer_id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus is a thin NATS publisher.
type Bus struct {
	nc      *nats.Conn
	subject string
	log     botlog.Logger
}

// Connect dials NATS. An empty URL returns a nil bus, which publishes
// nothing.
func Connect(url string, log botlog.Logger) (*Bus, error) {
	if url == "" {
		return nil, nil
	}
	if log == nil {
		log = botlog.Nop{}
	}
	nc, err := nats.Connect(url,
		nats.Name("rewardsbot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Bus{nc: nc, subject: defaultSubject, log: log}, nil
}

// Publish emits one event. Failures are logged, never propagated; event
// delivery must not affect the run.
func (b *Bus) Publish(evt ActivityEvent) {
	if b == nil || b.nc == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Warnf("event marshal: %v", err)
		return
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		b.log.Warnf("event publish: %v", err)
	}
}

// Close drains the connection.
func (b *Bus) Close() {
	if b == nil || b.nc == nil {
		return
	}
	_ = b.nc.Drain()
}
