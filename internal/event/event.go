// Package event defines the persisted event record and the session
// aggregation identifier shared by the codec, store, and engine layers.
package event

// Stored is the internally adapted, persisted form of a submitted event.
// It is immutable once created; the JSON field names are the wire names
// used both for persistence and for the KAPE request body.
type Stored struct {
	// AggregatedID correlates events submitted within the same
	// session-aggregation window.
	AggregatedID string `json:"aggregated_id"`

	// UniqueID is a per-event UUID v4, usable for deduplication downstream.
	UniqueID string `json:"event_unique_id"`

	// Country is an optional ISO 3166-1 alpha-2 country code.
	Country string `json:"event_country,omitempty"`

	// Name is the event type identifier.
	Name string `json:"event_name"`

	// Properties are product-specific string key/value pairs.
	Properties map[string]string `json:"event_properties"`

	// Time is the event instant as UTC epoch milliseconds.
	Time int64 `json:"event_time"`

	// Token identifies the product/project the event belongs to.
	Token string `json:"event_token"`
}

// Identifier is the current session-aggregation window. One active instance
// exists per engine; it is rotated once its age exceeds the rotation
// threshold and persisted so it survives restarts within the window.
type Identifier struct {
	AggregatedID string `json:"aggregated_id"`

	// CreatedAt is the window creation instant, ISO-8601 in UTC.
	CreatedAt string `json:"created_at"`
}
