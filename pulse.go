// Package pulse is a client-side analytics event batching SDK. Applications
// submit discrete events; the SDK aggregates them in memory and in durable
// local storage, then flushes them to one of several fallback endpoints on a
// batch-size or manual trigger. Delivery is at-least-once: every event
// carries a unique id so collectors can deduplicate.
//
// All operations are asynchronous: each is dispatched to a single worker
// goroutine, runs to completion, and resolves exactly one callback. One
// Client instance serves one product/token scope.
package pulse

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SebastienMelki/pulse/internal/codec"
	"github.com/SebastienMelki/pulse/internal/engine"
	"github.com/SebastienMelki/pulse/internal/identity"
	"github.com/SebastienMelki/pulse/internal/logging"
	"github.com/SebastienMelki/pulse/internal/observability"
	"github.com/SebastienMelki/pulse/internal/store"
	"github.com/SebastienMelki/pulse/internal/transport"
)

// ClientEvent is one event submitted by the application. Instances are
// created per submission and never mutated by the SDK.
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

// Endpoint is one remote collection target. Order in the list returned by
// the StateProvider defines fallback priority.
type Endpoint struct {
	// Address is the host (and optional path) requests are sent to,
	// without scheme; requests always use https.
	Address string

	// UsePinnedCertificate enables certificate pinning for this endpoint
	// using the certificate configured on the Client.
	UsePinnedCertificate bool

	// CertificateCommonName is the common name expected on the presented
	// certificate when pinning is enabled.
	CertificateCommonName string
}

// StateProvider supplies the client-side request state. It is consulted
// fresh on every submit and flush, so endpoints and tokens can rotate live.
type StateProvider interface {
	// Endpoints returns the collection targets in fallback order.
	Endpoints() []Endpoint

	// AuthToken returns the value sent as "Authorization: Token <value>".
	AuthToken() string

	// ProjectToken identifies the product events belong to. Required for
	// the elastic request format.
	ProjectToken() string
}

// Store is the durable key/value backing for engine state. Implementations
// must tolerate missing keys and may degrade to invalid, in which case
// persistence becomes a logged no-op.
type Store interface {
	GetString(key, def string) (string, error)
	PutString(key, value string) error
	Remove(key string) error
	Clear() error
	IsValid() bool
}

// ErrClosed is delivered to callbacks for operations dispatched after Close.
var ErrClosed = errors.New("pulse: client is closed")

// Client is the public SDK handle. Create one with New and release it with
// Close.
type Client struct {
	cfg    Config
	engine *engine.Engine

	ownedStore *store.SQLiteStore

	mu     sync.Mutex
	closed bool
	ops    chan func()
	done   chan struct{}
}

// New creates a Client from the configuration. The client owns a background
// worker goroutine that serializes all operations; Close stops it.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	logger := logging.New("Engine", func() bool { return cfg.LoggingEnabled }, cfg.LogSink)

	var backing store.Store
	var owned *store.SQLiteStore
	switch {
	case cfg.Store != nil:
		backing = cfg.Store
	case cfg.StorePath != "":
		sqliteStore, err := store.NewSQLiteStore(cfg.StorePath, cfg.PreferenceName)
		if err != nil {
			return nil, err
		}
		backing = sqliteStore
		owned = sqliteStore
	default:
		backing = store.NewMemoryStore()
	}

	persistence := store.NewPersistence(backing, logger.WithTag("Store"))
	ids := identity.NewManager(persistence, nil, logger.WithTag("Identity"))

	factory := &transport.HTTPFactory{
		Certificate: cfg.Certificate,
		UserAgent:   cfg.UserAgent,
		Timeout:     cfg.RequestTimeout,
		Log:         logger.WithTag("Transport"),
	}

	var metrics *observability.Metrics
	if cfg.Meter != nil {
		m, err := observability.NewMetrics(cfg.Meter)
		if err != nil {
			return nil, err
		}
		metrics = m
	}

	eng := engine.New(engine.Config{
		SendMode:          engineSendMode(cfg.SendMode),
		Format:            engineFormat(cfg.Format),
		Certificate:       cfg.Certificate,
		EventsBatchSize:   cfg.EventsBatchSize,
		EventsHistorySize: cfg.EventsHistorySize,
		RoundGranularity:  cfg.RoundGranularity,
		SendGranularity:   cfg.SendGranularity,
	}, persistence, ids, factory, cfg.Provider, metrics, logger)

	c := &Client{
		cfg:        cfg,
		engine:     eng,
		ownedStore: owned,
		ops:        make(chan func(), 16),
		done:       make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Start enables the client for event submission, loading any state
// persisted by a previous run. Safe to call while already started.
func (c *Client) Start() {
	c.dispatch(func() {
		c.engine.Start()
	}, nil)
}

// Stop disables event submission and clears all persisted and in-memory
// state. The callback receives a storage error if clearing failed; the
// client is stopped either way. cb may be nil.
func (c *Client) Stop(cb func(error)) {
	c.dispatch(func() {
		deliver(cb, c.engine.Stop())
	}, func() { deliver(cb, ErrClosed) })
}

// Submit queues one event for delivery. Depending on the configured send
// mode the batch is flushed immediately or once the batch size threshold is
// reached. The client has to be started. cb may be nil.
func (c *Client) Submit(ev ClientEvent, cb func(error)) {
	c.dispatch(func() {
		err := c.engine.Submit(context.Background(), codecEvent(ev), c.endpoints())
		deliver(cb, err)
	}, func() { deliver(cb, ErrClosed) })
}

// Flush sends all currently batched events regardless of the batch size
// threshold. The client has to be started. cb may be nil.
func (c *Client) Flush(cb func(error)) {
	c.dispatch(func() {
		err := c.engine.Flush(context.Background(), c.endpoints())
		deliver(cb, err)
	}, func() { deliver(cb, ErrClosed) })
}

// RecentEvents delivers a human-readable sample of the most recent events.
// Events are only collected while started and cleared on Stop.
func (c *Client) RecentEvents(cb func([]string)) {
	c.dispatch(func() {
		if cb != nil {
			cb(c.engine.RecentEvents())
		}
	}, func() {
		if cb != nil {
			cb(nil)
		}
	})
}

// Close stops the worker goroutine after draining dispatched operations and
// releases any store owned by the client. It does not clear persisted
// state; use Stop for that. Close is safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	close(c.ops)
	c.mu.Unlock()

	<-c.done

	if c.ownedStore != nil {
		return c.ownedStore.Close()
	}
	return nil
}

// run is the single worker loop serializing all engine access.
func (c *Client) run() {
	defer close(c.done)
	for op := range c.ops {
		op()
	}
}

// dispatch enqueues op for the worker, or invokes onClosed when the client
// is already closed.
func (c *Client) dispatch(op func(), onClosed func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if onClosed != nil {
			onClosed()
		}
		return
	}
	c.ops <- op
	c.mu.Unlock()
}

// endpoints fetches the fallback chain from the provider at execution time.
func (c *Client) endpoints() []engine.Endpoint {
	provided := c.cfg.Provider.Endpoints()
	eps := make([]engine.Endpoint, len(provided))
	for i, ep := range provided {
		eps[i] = engine.Endpoint{
			Address:               ep.Address,
			UsePinnedCertificate:  ep.UsePinnedCertificate,
			CertificateCommonName: ep.CertificateCommonName,
		}
	}
	return eps
}

func deliver(cb func(error), err error) {
	if cb != nil {
		cb(err)
	}
}

func codecEvent(ev ClientEvent) codec.ClientEvent {
	return codec.ClientEvent{
		Country:    ev.Country,
		Name:       ev.Name,
		Properties: ev.Properties,
		Time:       ev.Time,
	}
}

func engineSendMode(m SendMode) engine.SendMode {
	if m == SendPerBatch {
		return engine.SendPerBatch
	}
	return engine.SendPerEvent
}

func engineFormat(f RequestFormat) codec.Format {
	if f == FormatElastic {
		return codec.FormatElastic
	}
	return codec.FormatKape
}
