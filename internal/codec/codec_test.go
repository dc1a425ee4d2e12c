package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/SebastienMelki/pulse/internal/event"
	"github.com/SebastienMelki/pulse/timeunit"
)

type staticIDs string

func (s staticIDs) CurrentAggregateID() string { return string(s) }

func TestAdapt(t *testing.T) {
	at := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	ev := ClientEvent{
		Country:    "DE",
		Name:       "connection_established",
		Properties: map[string]string{"platform": "linux"},
		Time:       at,
	}

	stored := Adapt(ev, staticIDs("agg-1"), "project-token")
	if stored.AggregatedID != "agg-1" {
		t.Fatalf("unexpected aggregated id: %q", stored.AggregatedID)
	}
	if stored.UniqueID == "" {
		t.Fatal("expected a unique id")
	}
	if stored.Country != "DE" || stored.Name != "connection_established" {
		t.Fatalf("unexpected identity fields: %+v", stored)
	}
	if stored.Time != at.UnixMilli() {
		t.Fatalf("unexpected time: %d", stored.Time)
	}
	if stored.Token != "project-token" {
		t.Fatalf("unexpected token: %q", stored.Token)
	}

	// The property map is copied, not aliased.
	ev.Properties["platform"] = "mutated"
	if stored.Properties["platform"] != "linux" {
		t.Fatal("expected adapted properties to be independent of the input map")
	}

	other := Adapt(ev, staticIDs("agg-1"), "project-token")
	if other.UniqueID == stored.UniqueID {
		t.Fatal("expected unique ids to differ per event")
	}
}

func TestEncodeKapeRoundTrip(t *testing.T) {
	events := []event.Stored{
		{
			AggregatedID: "agg-1",
			UniqueID:     "uid-1",
			Country:      "DE",
			Name:         "ev-1",
			Properties:   map[string]string{"k": "v"},
			Time:         1700000000123,
			Token:        "token",
		},
		{
			AggregatedID: "agg-1",
			UniqueID:     "uid-2",
			Name:         "ev-2",
			Properties:   map[string]string{},
			Time:         1700000000456,
			Token:        "token",
		},
	}

	body, err := EncodeKape(events, timeunit.Milliseconds, timeunit.Milliseconds)
	if err != nil {
		t.Fatalf("EncodeKape: %v", err)
	}

	var decoded []event.Stored
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 events, got %d", len(decoded))
	}
	if decoded[0].UniqueID != "uid-1" || decoded[1].UniqueID != "uid-2" {
		t.Fatalf("unexpected order: %+v", decoded)
	}
	// Millisecond granularity in both steps is lossless.
	if decoded[0].Time != 1700000000123 {
		t.Fatalf("unexpected time: %d", decoded[0].Time)
	}
	// The country field is omitted entirely when empty.
	if bytes.Contains(body, []byte(`"event_country":""`)) {
		t.Fatalf("expected empty country omitted: %s", body)
	}
}

func TestEncodeKapeFieldNames(t *testing.T) {
	events := []event.Stored{{
		AggregatedID: "agg-1",
		UniqueID:     "uid-1",
		Country:      "DE",
		Name:         "ev",
		Properties:   map[string]string{"k": "v"},
		Time:         1,
		Token:        "token",
	}}

	body, err := EncodeKape(events, timeunit.Milliseconds, timeunit.Milliseconds)
	if err != nil {
		t.Fatalf("EncodeKape: %v", err)
	}
	for _, field := range []string{
		`"aggregated_id"`, `"event_unique_id"`, `"event_country"`,
		`"event_name"`, `"event_properties"`, `"event_time"`, `"event_token"`,
	} {
		if !bytes.Contains(body, []byte(field)) {
			t.Fatalf("expected field %s in body: %s", field, body)
		}
	}
}

func TestEncodeKapeGranularity(t *testing.T) {
	events := []event.Stored{{UniqueID: "uid-1", Time: 1700000000999}}

	// Round to seconds, send as seconds: milliseconds truncated away.
	body, err := EncodeKape(events, timeunit.Seconds, timeunit.Seconds)
	if err != nil {
		t.Fatalf("EncodeKape: %v", err)
	}
	var decoded []event.Stored
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded[0].Time != 1700000000 {
		t.Fatalf("expected seconds truncation, got %d", decoded[0].Time)
	}

	// Round to seconds but send as milliseconds: truncated, then scaled back.
	body, err = EncodeKape(events, timeunit.Seconds, timeunit.Milliseconds)
	if err != nil {
		t.Fatalf("EncodeKape: %v", err)
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded[0].Time != 1700000000000 {
		t.Fatalf("expected millisecond rescale after truncation, got %d", decoded[0].Time)
	}
}

func TestEncodeKapeEmptyBatch(t *testing.T) {
	body, err := EncodeKape(nil, timeunit.Milliseconds, timeunit.Milliseconds)
	if err != nil {
		t.Fatalf("EncodeKape: %v", err)
	}
	if string(body) != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestEncodeElastic(t *testing.T) {
	events := []event.Stored{
		{
			Country:    "DE",
			Name:       "ev-1",
			Properties: map[string]string{"platform": "linux"},
			Time:       1700000000123,
		},
		{
			Name:       "ev-2",
			Properties: map[string]string{},
			Time:       1700000000456,
		},
	}

	body, err := EncodeElastic(events, "project-token", timeunit.Milliseconds, timeunit.Milliseconds)
	if err != nil {
		t.Fatalf("EncodeElastic: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("data=")) {
		t.Fatalf("expected data= prefix, got %s", body)
	}

	raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimPrefix(body, []byte("data="))))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	var decoded []struct {
		Event      string            `json:"event"`
		Properties map[string]string `json:"properties"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 events, got %d", len(decoded))
	}
	if decoded[0].Event != "ev-1" {
		t.Fatalf("unexpected event name: %q", decoded[0].Event)
	}
	if decoded[0].Properties["time"] != "1700000000123" {
		t.Fatalf("unexpected injected time: %q", decoded[0].Properties["time"])
	}
	if decoded[0].Properties["token"] != "project-token" {
		t.Fatalf("unexpected injected token: %q", decoded[0].Properties["token"])
	}
	if decoded[0].Properties["country"] != "DE" {
		t.Fatalf("unexpected injected country: %q", decoded[0].Properties["country"])
	}
	if decoded[0].Properties["platform"] != "linux" {
		t.Fatalf("expected original properties kept: %+v", decoded[0].Properties)
	}
	// Country is injected only when present.
	if _, ok := decoded[1].Properties["country"]; ok {
		t.Fatalf("expected no country for the second event: %+v", decoded[1].Properties)
	}
}

func TestEncodeElasticRequiresProjectToken(t *testing.T) {
	_, err := EncodeElastic(nil, "", timeunit.Milliseconds, timeunit.Milliseconds)
	if !errors.Is(err, ErrMissingProjectToken) {
		t.Fatalf("expected ErrMissingProjectToken, got %v", err)
	}
	if err.Error() != "project token must not be null" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestAdjustSendTime(t *testing.T) {
	tests := []struct {
		name   string
		millis int64
		round  timeunit.Unit
		send   timeunit.Unit
		want   int64
	}{
		{"identity", 1700000000123, timeunit.Milliseconds, timeunit.Milliseconds, 1700000000123},
		{"truncate to seconds", 1700000000999, timeunit.Seconds, timeunit.Seconds, 1700000000},
		{"truncate then rescale", 1700000000999, timeunit.Seconds, timeunit.Milliseconds, 1700000000000},
		{"hours", 3_600_000, timeunit.Hours, timeunit.Hours, 1},
		{"sub-unit truncates to zero", 999, timeunit.Seconds, timeunit.Seconds, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := AdjustSendTime(tc.millis, tc.round, tc.send); got != tc.want {
				t.Fatalf("AdjustSendTime(%d, %v, %v) = %d, want %d", tc.millis, tc.round, tc.send, got, tc.want)
			}
		})
	}
}

func TestFormatContentType(t *testing.T) {
	if got := FormatKape.ContentType(); got != "application/json" {
		t.Fatalf("kape content type: %q", got)
	}
	if got := FormatElastic.ContentType(); got != "application/x-www-form-urlencoded" {
		t.Fatalf("elastic content type: %q", got)
	}
}
