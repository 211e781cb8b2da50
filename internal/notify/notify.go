// Package notify publishes registration lifecycle events to downstream subscribers.
package notify

import (
	"context"
	"time"

	"github.com/noah-isme/lesson-registration-api/internal/models"
)

// Event types.
const (
	EventRegistrationCreated   = "registration.created"
	EventRegistrationCancelled = "registration.cancelled"
)

// Event is the payload published for each registration mutation.
type Event struct {
	Type         string              `json:"type"`
	Table        string              `json:"table"`
	Registration models.Registration `json:"registration"`
	PerformedBy  string              `json:"performed_by"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

// Publisher delivers one event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
