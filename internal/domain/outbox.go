package domain

// Outbox event types, carried in the "event_type" header.
const (
	EventSubscriptionCreated = "subscription.created"
	EventDeliveryRequested   = "delivery.requested"
)

// OutboxMessage is an event destined for the alerts topic.
type OutboxMessage struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
