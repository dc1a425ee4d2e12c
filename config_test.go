package pulse

import (
	"strings"
	"testing"
	"time"

	"github.com/SebastienMelki/pulse/timeunit"
)

func TestValidateRejectsNegativeValues(t *testing.T) {
	base := Config{Provider: &staticProvider{}, PreferenceName: "test"}

	cfg := base
	cfg.EventsBatchSize = -1
	if err := cfg.validate(); err == nil {
		t.Fatal("expected batch size error")
	}

	cfg = base
	cfg.EventsHistorySize = -1
	if err := cfg.validate(); err == nil {
		t.Fatal("expected history size error")
	}

	cfg = base
	cfg.RequestTimeout = -time.Second
	if err := cfg.validate(); err == nil {
		t.Fatal("expected timeout error")
	}

	cfg = base
	cfg.RoundGranularity = timeunit.Unit(99)
	if err := cfg.validate(); err == nil {
		t.Fatal("expected granularity error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Provider: &staticProvider{}, PreferenceName: "test"}
	cfg.applyDefaults()

	if cfg.EventsBatchSize != DefaultEventsBatchSize {
		t.Fatalf("unexpected batch size: %d", cfg.EventsBatchSize)
	}
	if cfg.EventsHistorySize != DefaultEventsHistorySize {
		t.Fatalf("unexpected history size: %d", cfg.EventsHistorySize)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Fatalf("unexpected timeout: %v", cfg.RequestTimeout)
	}
	if cfg.RoundGranularity != timeunit.Milliseconds || cfg.SendGranularity != timeunit.Milliseconds {
		t.Fatalf("unexpected granularities: %v/%v", cfg.RoundGranularity, cfg.SendGranularity)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		EventsBatchSize:   5,
		EventsHistorySize: 10,
		RequestTimeout:    time.Second,
		RoundGranularity:  timeunit.Seconds,
		SendGranularity:   timeunit.Seconds,
	}
	cfg.applyDefaults()

	if cfg.EventsBatchSize != 5 || cfg.EventsHistorySize != 10 {
		t.Fatalf("explicit sizes overridden: %d/%d", cfg.EventsBatchSize, cfg.EventsHistorySize)
	}
	if cfg.RequestTimeout != time.Second {
		t.Fatalf("explicit timeout overridden: %v", cfg.RequestTimeout)
	}
	if cfg.RoundGranularity != timeunit.Seconds || cfg.SendGranularity != timeunit.Seconds {
		t.Fatalf("explicit granularities overridden: %v/%v", cfg.RoundGranularity, cfg.SendGranularity)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.PreferenceName != "pulse" {
		t.Fatalf("unexpected preference name: %q", cfg.PreferenceName)
	}
	if cfg.SendMode != SendPerBatch {
		t.Fatalf("unexpected send mode: %v", cfg.SendMode)
	}
	if cfg.Format != FormatKape {
		t.Fatalf("unexpected format: %v", cfg.Format)
	}
	if cfg.EventsBatchSize != 20 || cfg.EventsHistorySize != 50 {
		t.Fatalf("unexpected sizes: %d/%d", cfg.EventsBatchSize, cfg.EventsHistorySize)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.RequestTimeout)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("PULSE_PREFERENCE_NAME", "vpn-client")
	t.Setenv("PULSE_SEND_MODE", "per_event")
	t.Setenv("PULSE_REQUEST_FORMAT", "elastic")
	t.Setenv("PULSE_EVENTS_BATCH_SIZE", "5")
	t.Setenv("PULSE_EVENTS_HISTORY_SIZE", "7")
	t.Setenv("PULSE_REQUEST_TIMEOUT", "10s")
	t.Setenv("PULSE_TIME_ROUND_GRANULARITY", "seconds")
	t.Setenv("PULSE_TIME_SEND_GRANULARITY", "seconds")
	t.Setenv("PULSE_STORE_PATH", "/tmp/pulse.db")
	t.Setenv("PULSE_LOGGING_ENABLED", "true")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.PreferenceName != "vpn-client" {
		t.Fatalf("unexpected preference name: %q", cfg.PreferenceName)
	}
	if cfg.SendMode != SendPerEvent || cfg.Format != FormatElastic {
		t.Fatalf("unexpected mode/format: %v/%v", cfg.SendMode, cfg.Format)
	}
	if cfg.EventsBatchSize != 5 || cfg.EventsHistorySize != 7 {
		t.Fatalf("unexpected sizes: %d/%d", cfg.EventsBatchSize, cfg.EventsHistorySize)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.RequestTimeout)
	}
	if cfg.RoundGranularity != timeunit.Seconds || cfg.SendGranularity != timeunit.Seconds {
		t.Fatalf("unexpected granularities: %v/%v", cfg.RoundGranularity, cfg.SendGranularity)
	}
	if cfg.StorePath != "/tmp/pulse.db" {
		t.Fatalf("unexpected store path: %q", cfg.StorePath)
	}
	if !cfg.LoggingEnabled {
		t.Fatal("expected logging enabled")
	}
}

func TestConfigFromEnvRejectsUnknownValues(t *testing.T) {
	t.Setenv("PULSE_SEND_MODE", "sometimes")
	if _, err := ConfigFromEnv(); err == nil || !strings.Contains(err.Error(), "send mode") {
		t.Fatalf("expected send mode error, got %v", err)
	}

	t.Setenv("PULSE_SEND_MODE", "per_batch")
	t.Setenv("PULSE_REQUEST_FORMAT", "xml")
	if _, err := ConfigFromEnv(); err == nil || !strings.Contains(err.Error(), "request format") {
		t.Fatalf("expected format error, got %v", err)
	}

	t.Setenv("PULSE_REQUEST_FORMAT", "kape")
	t.Setenv("PULSE_TIME_ROUND_GRANULARITY", "fortnights")
	if _, err := ConfigFromEnv(); err == nil || !strings.Contains(err.Error(), "granularity") {
		t.Fatalf("expected granularity error, got %v", err)
	}
}
