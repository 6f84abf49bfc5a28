package pubsub

import (
	"context"
	"encoding/json"
)

// Well-known topics published by the bundler.
const (
	// TopicBuildStatus carries rebuild lifecycle events.
	TopicBuildStatus = "build_status"
	// TopicBundle carries bundle-ready notifications with shake stats.
	TopicBundle = "bundle"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "build_status", "bundle")
	Type    string          `json:"type"`    // Event type (e.g., "watching", "rebuilding", "ready", "failed")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// BuildStatus describes where a rebuild currently is.
type BuildStatus struct {
	State   string `json:"state"`   // watching, loading, shaking, serializing, ready, failed
	Message string `json:"message"` // Human-readable status message
}

// BundleData summarizes a finished bundle for subscribers.
type BundleData struct {
	EntryPoint     string `json:"entry_point"`
	ModulesCount   int    `json:"modules_count"`
	ExportsRemoved int    `json:"exports_removed"`
	ImportsRemoved int    `json:"imports_removed"`
	Orphans        int    `json:"orphans"`
	Passes         int    `json:"passes"`
}
