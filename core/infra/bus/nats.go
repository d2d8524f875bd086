// Package bus publishes dispatch events to NATS for downstream consumers.
package bus

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectDispatch carries one event per handled user input.
const SubjectDispatch = "flowgate.dispatch"

var (
	errNilBus   = errors.New("nats bus not initialized")
	errNilEvent = errors.New("nil dispatch event")
)

// DispatchEvent describes the outcome of a single intent resolution.
type DispatchEvent struct {
	RequestID    string    `json:"request_id"`
	Input        string    `json:"input,omitempty"`
	Intent       string    `json:"intent"`
	Score        int       `json:"score"`
	IsFallback   bool      `json:"is_fallback"`
	Success      bool      `json:"success"`
	WorkflowPath string    `json:"workflow_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher emits dispatch events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishDispatch(ev *DispatchEvent) error
	Close()
}

// Noop discards all events.
type Noop struct{}

func (Noop) PublishDispatch(*DispatchEvent) error { return nil }
func (Noop) Close()                               {}

// NatsBus is a thin wrapper over a NATS connection that speaks JSON events.
type NatsBus struct {
	nc *nats.Conn
}

// NewNatsBus dials NATS at the provided URL.
func NewNatsBus(url string) (*NatsBus, error) {
	opts := []nats.Option{
		nats.Name("flowgate-bus"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[BUS] disconnected from NATS: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[BUS] reconnected to NATS at %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("[BUS] connection closed")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsBus{nc: nc}, nil
}

// PublishDispatch sends a JSON-encoded dispatch event.
func (b *NatsBus) PublishDispatch(ev *DispatchEvent) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	if ev == nil {
		return errNilEvent
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.nc.Publish(SubjectDispatch, data)
}

// Close shuts down the underlying NATS connection.
func (b *NatsBus) Close() {
	if b != nil && b.nc != nil {
		b.nc.Close()
	}
}

// IsConnected reports whether the bus currently has a live connection.
func (b *NatsBus) IsConnected() bool {
	return b != nil && b.nc != nil && b.nc.IsConnected()
}
