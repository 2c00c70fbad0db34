package service

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// DoorOpener drives the physical opener. One call is one handshake attempt.
type DoorOpener interface {
	Open(ctx context.Context, relay uint8) error
}

// Notifier talks to users over chat.
type Notifier interface {
	// RequestConfirmation sends the open/report prompt for door to userID.
	RequestConfirmation(ctx context.Context, userID string, door types.Door, callbackID string) (types.MessageHandle, error)

	// MarkExpired rewrites a prompt so that only the report action remains.
	MarkExpired(ctx context.Context, handle types.MessageHandle, door types.Door, callbackID string) error

	NotifyUser(ctx context.Context, userID, text string) error

	// Report escalates a rejected attempt to the operators.
	Report(ctx context.Context, userID string, door types.Door, attemptedAt time.Time) error
}

// Event is a scan or action outcome published for observers.
type Event struct {
	Kind    string    `json:"kind"`
	DoorID  string    `json:"door_id"`
	UserID  string    `json:"user_id,omitempty"`
	Outcome string    `json:"outcome"`
	At      time.Time `json:"at"`
}

const (
	EventScan   = "scan"
	EventAction = "action"
)

// EventSink receives outcome events. Publishing is best effort.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}

// Metrics records opener handshake results.
type Metrics interface {
	ObserveHandshake(doorID string, ok bool, took time.Duration)
}

// EventSinks fans one event out to several sinks.
type EventSinks []EventSink

func (s EventSinks) Publish(ctx context.Context, ev Event) {
	for _, sink := range s {
		sink.Publish(ctx, ev)
	}
}

type nopEvents struct{}

func (nopEvents) Publish(context.Context, Event) {}

type nopMetrics struct{}

func (nopMetrics) ObserveHandshake(string, bool, time.Duration) {}
