// Package feed notifies subscribers that a table changed.
//
// Events say which table changed and how, never what the new rows are.
// Subscribers are expected to re-read the table on every event, so a
// dropped or duplicated event only costs a redundant read.
package feed

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind is the row operation that triggered an event
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event is a change notification for one table
type Event struct {
	ID    string    `json:"id"`
	Table string    `json:"table"`
	Kind  Kind      `json:"kind"`
	At    time.Time `json:"at"`
}

// NewEvent stamps a new event for table
func NewEvent(table string, kind Kind) Event {
	return Event{
		ID:    ulid.Make().String(),
		Table: table,
		Kind:  kind,
		At:    time.Now().UTC(),
	}
}

// Handler receives events for a subscription
type Handler func(Event)

// Publisher emits change events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber registers handlers for a table. An empty table receives every event.
// The returned function removes the subscription and may be called more than once.
type Subscriber interface {
	Subscribe(table string, handler Handler) (unsubscribe func())
}

// Feed is both sides of the change feed
type Feed interface {
	Publisher
	Subscriber
	Close() error
}
