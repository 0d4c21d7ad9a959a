package event

import "time"

// Event is a track call as delivered by the inbound adapter.
type Event struct {
	Event       string                 `json:"event"`
	UserID      string                 `json:"userId,omitempty"`
	AnonymousID string                 `json:"anonymousId,omitempty"`
	MessageID   string                 `json:"messageId,omitempty"`
	Timestamp   *time.Time             `json:"timestamp,omitempty"` // nil = processing time
	Properties  map[string]interface{} `json:"properties"`
	Context     map[string]interface{} `json:"context,omitempty"` // carries "traits"
}

// Traits returns context.traits, or nil when absent.
func (e *Event) Traits() map[string]interface{} {
	traits, _ := e.Context["traits"].(map[string]interface{})
	return traits
}

// Identify associates traits with a user id.
type Identify struct {
	UserID string                 `json:"userId"`
	Traits map[string]interface{} `json:"traits"`
}
