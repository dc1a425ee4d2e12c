// Package engine implements the event batching and delivery core: it
// accepts adapted events, mirrors them between memory and durable storage,
// decides when to flush, walks the endpoint fallback chain, and reconciles
// state after success or failure.
//
// The engine is not internally synchronized. All operations are expected to
// run sequentially on one logical worker; the public SDK facade provides
// that serialization.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/SebastienMelki/pulse/internal/codec"
	"github.com/SebastienMelki/pulse/internal/event"
	"github.com/SebastienMelki/pulse/internal/identity"
	"github.com/SebastienMelki/pulse/internal/logging"
	"github.com/SebastienMelki/pulse/internal/observability"
	"github.com/SebastienMelki/pulse/internal/store"
	"github.com/SebastienMelki/pulse/internal/transport"
	"github.com/SebastienMelki/pulse/timeunit"
)

// Endpoint is re-exported from the transport layer; the endpoint list's
// order defines fallback priority.
type Endpoint = transport.Endpoint

// SendMode selects when submitted events are flushed.
type SendMode int

const (
	// SendPerEvent flushes after every submitted event.
	SendPerEvent SendMode = iota
	// SendPerBatch flushes once the batch size threshold is reached.
	SendPerBatch
)

// StateProvider supplies the client-side request state. It is consulted
// fresh on every send so callers can rotate tokens live.
type StateProvider interface {
	AuthToken() string
	ProjectToken() string
}

// Config carries the engine-level settings resolved by the SDK facade.
type Config struct {
	SendMode          SendMode
	Format            codec.Format
	Certificate       string
	EventsBatchSize   int
	EventsHistorySize int
	RoundGranularity  timeunit.Unit
	SendGranularity   timeunit.Unit
}

// Engine is the batching core. It owns the in-memory batch and sample
// queues mirroring the persisted state.
type Engine struct {
	cfg         Config
	persistence *store.Persistence
	ids         *identity.Manager
	clients     Factory
	state       StateProvider
	metrics     *observability.Metrics
	log         *logging.Logger

	batched []event.Stored
	sample  []event.Stored
	started bool
}

// Factory builds a delivery client per endpoint.
type Factory interface {
	Client(ep Endpoint) (transport.Delivery, error)
}

// New creates an Engine. metrics may be nil, in which case recording is a
// no-op.
func New(cfg Config, persistence *store.Persistence, ids *identity.Manager, clients Factory, state StateProvider, metrics *observability.Metrics, log *logging.Logger) *Engine {
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Engine{
		cfg:         cfg,
		persistence: persistence,
		ids:         ids,
		clients:     clients,
		state:       state,
		metrics:     metrics,
		log:         log,
	}
}

// Start loads the persisted batch and sample queues into memory and enables
// event submission. Calling Start while already started reloads from the
// store and is not an error.
func (e *Engine) Start() {
	e.batched = e.persistence.Events()
	e.sample = e.persistence.SampleEvents()
	e.started = true
	e.log.Debugf("started with %d batched and %d sample events", len(e.batched), len(e.sample))
}

// Stop clears the persisted batch, sample, and identifier state and resets
// the in-memory queues. Storage failures are returned but never prevent the
// in-memory reset or the transition to stopped.
func (e *Engine) Stop() error {
	err := e.persistence.ClearAll()
	e.batched = nil
	e.sample = nil
	e.started = false
	if err != nil {
		e.log.Errorf("clear persisted state on stop: %v", err)
		return &Error{Description: err.Error()}
	}
	return nil
}

// Started reports whether the engine accepts submissions.
func (e *Engine) Started() bool {
	return e.started
}

// Submit adapts, persists, and queues one event, then flushes if the send
// mode calls for it. The endpoint list's order defines fallback priority.
func (e *Engine) Submit(ctx context.Context, ev codec.ClientEvent, endpoints []Endpoint) error {
	if len(endpoints) == 0 {
		return ErrNoEndpoints
	}
	if !e.started {
		return ErrNotStarted
	}

	adapted := codec.Adapt(ev, e.ids, e.state.ProjectToken())
	e.persistAndQueue(adapted)
	e.metrics.EventsSubmitted.Add(ctx, 1)

	shouldSend := e.cfg.SendMode == SendPerEvent ||
		(e.cfg.SendMode == SendPerBatch && len(e.batched) >= e.cfg.EventsBatchSize)
	if !shouldSend {
		return nil
	}

	if err := e.SendEvents(ctx, endpoints); err != nil {
		return err
	}
	e.clearBatched()
	return nil
}

// Flush sends whatever is currently batched, regardless of the batch size
// threshold. No endpoint is contacted when nothing is queued.
func (e *Engine) Flush(ctx context.Context, endpoints []Endpoint) error {
	if len(e.batched) == 0 {
		return ErrNoEventsQueued
	}
	if err := e.SendEvents(ctx, endpoints); err != nil {
		return err
	}
	e.clearBatched()
	return nil
}

// SendEvents delivers the current batch, trying endpoints in order until
// one succeeds. The batch is taken atomically; on total failure it is
// requeued ahead of anything submitted in the meantime, and the last
// recorded error is returned. SendEvents never touches persisted storage;
// clearing the durable copy is the caller's responsibility.
func (e *Engine) SendEvents(ctx context.Context, endpoints []Endpoint) error {
	if len(endpoints) == 0 {
		return ErrNoEndpoints
	}
	if !e.started {
		return ErrNotStarted
	}

	inflight := e.batched
	e.batched = nil

	var lastErr *Error
	for i, ep := range endpoints {
		if i > 0 {
			e.metrics.EndpointFallbacks.Add(ctx, 1,
				otelmetric.WithAttributes(attribute.String("endpoint", ep.Address)))
		}

		if ep.UsePinnedCertificate && e.cfg.Certificate == "" {
			lastErr = ErrNoCertificateForPinning
			continue
		}
		lastErr = nil

		body, contentType, err := e.encode(inflight)
		if err != nil {
			// A configuration error; no endpoint can succeed.
			lastErr = asEngineError(err)
			break
		}

		client, err := e.clients.Client(ep)
		if err != nil {
			e.log.Errorf("build client for %s: %v", ep.Address, err)
			lastErr = transportError(err)
			continue
		}

		headers := map[string]string{
			"Authorization": "Token " + e.state.AuthToken(),
			"Content-Type":  contentType,
		}
		resp, err := client.Post(ctx, transport.Request{URL: ep.URL(), Headers: headers, Body: body})
		if err != nil {
			e.log.Debugf("POST %s failed: %v", ep.Address, err)
			lastErr = transportError(err)
			continue
		}
		if resp.StatusCode >= 400 {
			e.log.Debugf("POST %s rejected: %d %s", ep.Address, resp.StatusCode, resp.Status)
			lastErr = statusError(resp.StatusCode, resp.Status)
			continue
		}

		// First success wins; remaining endpoints are not tried.
		e.metrics.BatchesSent.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("endpoint", ep.Address),
			attribute.String("format", e.cfg.Format.String()),
		))
		e.metrics.BatchSize.Record(ctx, int64(len(inflight)))
		break
	}

	if lastErr != nil {
		// Requeue the in-flight batch ahead of anything submitted during
		// the attempt, preserving relative order.
		e.batched = append(inflight, e.batched...)
		e.metrics.SendFailures.Add(ctx, 1)
		e.metrics.EventsRequeued.Add(ctx, int64(len(inflight)))
		return lastErr
	}
	return nil
}

// RecentEvents renders the sample history as human-readable diagnostic
// lines, most recent last. Safe to call in any engine state.
func (e *Engine) RecentEvents() []string {
	token := e.state.ProjectToken()
	lines := make([]string, 0, len(e.sample))
	for _, ev := range e.sample {
		lines = append(lines, formatEvent(ev, token))
	}
	return lines
}

// BatchedLen reports the current in-memory batch length.
func (e *Engine) BatchedLen() int {
	return len(e.batched)
}

// SampleLen reports the current in-memory sample history length.
func (e *Engine) SampleLen() int {
	return len(e.sample)
}

func (e *Engine) encode(events []event.Stored) (body []byte, contentType string, err error) {
	switch e.cfg.Format {
	case codec.FormatElastic:
		body, err = codec.EncodeElastic(events, e.state.ProjectToken(), e.cfg.RoundGranularity, e.cfg.SendGranularity)
	default:
		body, err = codec.EncodeKape(events, e.cfg.RoundGranularity, e.cfg.SendGranularity)
	}
	return body, e.cfg.Format.ContentType(), err
}

// persistAndQueue persists the adapted event and mirrors it into the
// in-memory queues. The batch size only decides when to trigger a request,
// not how many events may queue, so the batch list grows without bound; the
// sample list evicts its oldest entry at capacity.
func (e *Engine) persistAndQueue(ev event.Stored) {
	if err := e.persistence.PersistEvent(ev, e.cfg.EventsHistorySize); err != nil {
		e.log.Errorf("persist event %s: %v", ev.UniqueID, err)
	}

	e.batched = append(e.batched, ev)

	if len(e.sample) >= e.cfg.EventsHistorySize {
		e.sample = e.sample[1:]
	}
	e.sample = append(e.sample, ev)
}

// clearBatched drops the delivered batch from storage and memory. The
// sample history is kept for diagnostics.
func (e *Engine) clearBatched() {
	if err := e.persistence.ClearBatched(); err != nil {
		e.log.Errorf("clear persisted batch: %v", err)
	}
	e.batched = nil
}

func asEngineError(err error) *Error {
	if engErr, ok := err.(*Error); ok {
		return engErr
	}
	if err == codec.ErrMissingProjectToken {
		return ErrMissingProjectToken
	}
	return &Error{Description: err.Error()}
}

// formatEvent renders one sample event as a fixed diagnostic line.
func formatEvent(ev event.Stored, token string) string {
	keys := make([]string, 0, len(ev.Properties))
	for k := range ev.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := make([]string, 0, len(keys))
	for _, k := range keys {
		props = append(props, fmt.Sprintf("%s=%s", k, ev.Properties[k]))
	}

	return fmt.Sprintf("EventName: %s EventToken: %s EventTime: %d EventProperties: %s",
		ev.Name, token, ev.Time, strings.Join(props, " "))
}
