// Package codec adapts client-supplied events into persisted records and
// serializes batches into one of the two supported wire formats.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/SebastienMelki/pulse/internal/event"
	"github.com/SebastienMelki/pulse/timeunit"
)

// Format selects how a batch is encoded in the request body.
type Format int

const (
	// FormatKape serializes the batch as a JSON array of stored events.
	FormatKape Format = iota
	// FormatElastic serializes the batch as form-url-encoded base64 JSON.
	FormatElastic
)

// ContentType returns the Content-Type header value for the format.
func (f Format) ContentType() string {
	if f == FormatElastic {
		return "application/x-www-form-urlencoded"
	}
	return "application/json"
}

func (f Format) String() string {
	if f == FormatElastic {
		return "elastic"
	}
	return "kape"
}

// ErrMissingProjectToken is returned when the elastic format is selected
// without a project token configured.
var ErrMissingProjectToken = errors.New("project token must not be null")

// ClientEvent is the client-facing input to Adapt.
type ClientEvent struct {
	// Country is an optional ISO 3166-1 alpha-2 country code.
	Country string

	// Name is the event type identifier.
	Name string

	// Properties are product-specific string key/value pairs.
	Properties map[string]string

	// Time is the event instant.
	Time time.Time
}

// IDSource supplies the aggregated identifier for the active session window.
type IDSource interface {
	CurrentAggregateID() string
}

// Adapt converts a client event into its persisted form: a fresh UUID v4
// unique id, the current aggregated id, the project token, and the event
// instant normalized to UTC epoch milliseconds. The property map is copied.
func Adapt(ev ClientEvent, ids IDSource, projectToken string) event.Stored {
	props := make(map[string]string, len(ev.Properties))
	for k, v := range ev.Properties {
		props[k] = v
	}
	return event.Stored{
		AggregatedID: ids.CurrentAggregateID(),
		UniqueID:     uuid.NewString(),
		Country:      ev.Country,
		Name:         ev.Name,
		Properties:   props,
		Time:         ev.Time.UTC().UnixMilli(),
		Token:        projectToken,
	}
}

// EncodeKape serializes events as a JSON array of stored records with their
// times re-mapped through the round and send granularities.
func EncodeKape(events []event.Stored, round, send timeunit.Unit) ([]byte, error) {
	out := make([]event.Stored, len(events))
	for i, ev := range events {
		ev.Time = AdjustSendTime(ev.Time, round, send)
		out[i] = ev
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode kape batch: %w", err)
	}
	return data, nil
}

// elasticEvent is the {event, properties} pair the elastic format serializes.
type elasticEvent struct {
	Event      string            `json:"event"`
	Properties map[string]string `json:"properties"`
}

// EncodeElastic serializes events as the literal body
// "data=<base64(json)>", where the JSON is an array of {event, properties}
// pairs with time, token, and the optional country injected into the
// property map. A project token is required.
func EncodeElastic(events []event.Stored, projectToken string, round, send timeunit.Unit) ([]byte, error) {
	if projectToken == "" {
		return nil, ErrMissingProjectToken
	}
	out := make([]elasticEvent, len(events))
	for i, ev := range events {
		out[i] = elasticEvent{
			Event:      ev.Name,
			Properties: elasticProperties(ev, projectToken, round, send),
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode elastic batch: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return []byte("data=" + encoded), nil
}

func elasticProperties(ev event.Stored, token string, round, send timeunit.Unit) map[string]string {
	props := make(map[string]string, len(ev.Properties)+3)
	for k, v := range ev.Properties {
		props[k] = v
	}
	props["time"] = strconv.FormatInt(AdjustSendTime(ev.Time, round, send), 10)
	props["token"] = token
	if ev.Country != "" {
		props["country"] = ev.Country
	}
	return props
}

// AdjustSendTime re-maps a UTC epoch-millisecond event time through a
// two-step unit conversion: truncate to the round granularity, then express
// the result in the send granularity. Both steps use integer-truncating
// conversion, so sub-granularity precision is dropped, not rounded.
func AdjustSendTime(eventTimeMillis int64, round, send timeunit.Unit) int64 {
	return send.Convert(round.Convert(eventTimeMillis, timeunit.Milliseconds), round)
}
