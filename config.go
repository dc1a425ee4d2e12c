package pulse

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/SebastienMelki/pulse/timeunit"
)

// SendMode selects when submitted events are flushed to the endpoints.
type SendMode int

const (
	// SendPerEvent flushes after every submitted event.
	SendPerEvent SendMode = iota
	// SendPerBatch flushes once EventsBatchSize events are queued.
	SendPerBatch
)

// RequestFormat selects how event batches are encoded on the wire.
type RequestFormat int

const (
	// FormatKape sends the batch as a JSON array of event records.
	FormatKape RequestFormat = iota
	// FormatElastic sends the batch as a form-url-encoded "data" field
	// holding base64 JSON; it requires a project token.
	FormatElastic
)

// Default configuration values.
const (
	DefaultEventsBatchSize   = 20
	DefaultEventsHistorySize = 50
	DefaultRequestTimeout    = 3 * time.Second
)

// Config holds the SDK configuration. Provider and PreferenceName are
// required; everything else has a working default.
type Config struct {
	// Provider supplies endpoints and tokens, consulted fresh on every
	// submit and flush (required).
	Provider StateProvider

	// SendMode selects per-event or per-batch flushing (default: per event).
	SendMode SendMode

	// Format selects the wire encoding (default: kape).
	Format RequestFormat

	// Certificate is the PEM certificate used for endpoints that request
	// pinning. Optional; endpoints demanding pinning are skipped without it.
	Certificate string

	// PreferenceName is the persistence namespace the engine's state is
	// scoped to (required). One engine instance per preference scope.
	PreferenceName string

	// UserAgent is sent on every request when set.
	UserAgent string

	// EventsBatchSize is the queue length that triggers a flush in
	// per-batch mode (default: 20, minimum: 1).
	EventsBatchSize int

	// EventsHistorySize caps the diagnostic sample history
	// (default: 50, minimum: 1).
	EventsHistorySize int

	// RequestTimeout bounds each delivery attempt (default: 3s).
	RequestTimeout time.Duration

	// RoundGranularity is the unit event times are truncated to before
	// sending (default: milliseconds).
	RoundGranularity timeunit.Unit

	// SendGranularity is the unit event times are expressed in on the
	// wire (default: milliseconds).
	SendGranularity timeunit.Unit

	// Store is the durable backing for engine state. When nil, StorePath
	// selects a SQLite store; when that is empty too, state lives in
	// memory only.
	Store Store

	// StorePath is the SQLite database path used when Store is nil.
	StorePath string

	// LoggingEnabled turns on diagnostic logging.
	LoggingEnabled bool

	// LogSink receives log output; the process default logger when nil.
	LogSink *log.Logger

	// Meter supplies metric instruments. Recording is a no-op when nil.
	Meter otelmetric.Meter
}

// validate checks required fields and value ranges.
func (c *Config) validate() error {
	if c.Provider == nil {
		return fmt.Errorf("pulse: client state provider missing")
	}
	if c.PreferenceName == "" {
		return fmt.Errorf("pulse: preference scope name missing")
	}
	if c.EventsBatchSize < 0 {
		return fmt.Errorf("pulse: events batch size invalid, minimum supported is 1")
	}
	if c.EventsHistorySize < 0 {
		return fmt.Errorf("pulse: events history size invalid, minimum supported is 1")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("pulse: request timeout invalid, minimum supported is 1ms")
	}
	if c.RoundGranularity != 0 && !c.RoundGranularity.Valid() {
		return fmt.Errorf("pulse: round granularity invalid")
	}
	if c.SendGranularity != 0 && !c.SendGranularity.Valid() {
		return fmt.Errorf("pulse: send granularity invalid")
	}
	return nil
}

// applyDefaults fills in default values for unset optional fields.
func (c *Config) applyDefaults() {
	if c.EventsBatchSize == 0 {
		c.EventsBatchSize = DefaultEventsBatchSize
	}
	if c.EventsHistorySize == 0 {
		c.EventsHistorySize = DefaultEventsHistorySize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RoundGranularity == 0 {
		c.RoundGranularity = timeunit.Milliseconds
	}
	if c.SendGranularity == 0 {
		c.SendGranularity = timeunit.Milliseconds
	}
}

// envConfig mirrors Config for environment parsing.
type envConfig struct {
	PreferenceName    string        `env:"PULSE_PREFERENCE_NAME" envDefault:"pulse"`
	SendMode          string        `env:"PULSE_SEND_MODE" envDefault:"per_batch"`
	Format            string        `env:"PULSE_REQUEST_FORMAT" envDefault:"kape"`
	Certificate       string        `env:"PULSE_CERTIFICATE"`
	UserAgent         string        `env:"PULSE_USER_AGENT"`
	EventsBatchSize   int           `env:"PULSE_EVENTS_BATCH_SIZE" envDefault:"20"`
	EventsHistorySize int           `env:"PULSE_EVENTS_HISTORY_SIZE" envDefault:"50"`
	RequestTimeout    time.Duration `env:"PULSE_REQUEST_TIMEOUT" envDefault:"3s"`
	RoundGranularity  string        `env:"PULSE_TIME_ROUND_GRANULARITY" envDefault:"milliseconds"`
	SendGranularity   string        `env:"PULSE_TIME_SEND_GRANULARITY" envDefault:"milliseconds"`
	StorePath         string        `env:"PULSE_STORE_PATH"`
	LoggingEnabled    bool          `env:"PULSE_LOGGING_ENABLED" envDefault:"false"`
}

// ConfigFromEnv builds a Config from PULSE_* environment variables. The
// caller still has to set Provider before passing the result to New.
func ConfigFromEnv() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("pulse: parse environment: %w", err)
	}

	mode, err := parseSendMode(ec.SendMode)
	if err != nil {
		return Config{}, err
	}
	format, err := parseFormat(ec.Format)
	if err != nil {
		return Config{}, err
	}
	round, err := timeunit.Parse(ec.RoundGranularity)
	if err != nil {
		return Config{}, fmt.Errorf("pulse: round granularity: %w", err)
	}
	send, err := timeunit.Parse(ec.SendGranularity)
	if err != nil {
		return Config{}, fmt.Errorf("pulse: send granularity: %w", err)
	}

	return Config{
		PreferenceName:    ec.PreferenceName,
		SendMode:          mode,
		Format:            format,
		Certificate:       ec.Certificate,
		UserAgent:         ec.UserAgent,
		EventsBatchSize:   ec.EventsBatchSize,
		EventsHistorySize: ec.EventsHistorySize,
		RequestTimeout:    ec.RequestTimeout,
		RoundGranularity:  round,
		SendGranularity:   send,
		StorePath:         ec.StorePath,
		LoggingEnabled:    ec.LoggingEnabled,
	}, nil
}

func parseSendMode(s string) (SendMode, error) {
	switch s {
	case "per_event":
		return SendPerEvent, nil
	case "per_batch":
		return SendPerBatch, nil
	}
	return 0, fmt.Errorf("pulse: unknown send mode %q", s)
}

func parseFormat(s string) (RequestFormat, error) {
	switch s {
	case "kape":
		return FormatKape, nil
	case "elastic":
		return FormatElastic, nil
	}
	return 0, fmt.Errorf("pulse: unknown request format %q", s)
}
