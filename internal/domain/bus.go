package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (single node) or NATS (multi-node).
// All methods require tenantID for strict multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `koanf:"type"`

	// Channel settings
	ChannelBufferSize int `koanf:"channel_buffer_size"`

	// NATS settings
	NATSUrl           string `koanf:"nats_url"`
	NATSToken         string `koanf:"nats_token"`
	NATSMaxReconnects int    `koanf:"nats_max_reconnects"`
	NATSReconnectWait int    `koanf:"nats_reconnect_wait"` // seconds

	// Name is the subject prefix; defaults to "fuelguard".
	Name string `koanf:"name"`
}

// Standard topic names for the detection pipeline. The bus prefixes
// each topic with its subject namespace and the tenant id.
const (
	TopicTransactionIngested = "transaction.ingested"
	TopicAnomalyDetected     = "anomaly.detected"
	TopicAlert               = "alert.raised"
	TopicProviderSynced      = "provider.synced"
)
