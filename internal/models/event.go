package models

import "time"

// EventType enumerates lifecycle notifications.
type EventType string

const (
	EventDeliveryReceived  EventType = "delivery_received"
	EventDeliveryApproved  EventType = "delivery_approved"
	EventRevisionRequested EventType = "revision_requested"
)

// LifecycleEvent is emitted after the causing state change commits.
type LifecycleEvent struct {
	ID                  string    `json:"id"`
	Type                EventType `json:"type"`
	Scope               ScopeRef  `json:"scope"`
	DeliveryID          string    `json:"deliveryId"`
	Batch               bool      `json:"batch"`
	PendingCommentCount *int      `json:"pendingCommentCount,omitempty"`
	OccurredAt          time.Time `json:"occurredAt"`
}
