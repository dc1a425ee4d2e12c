// Package identity maintains the rolling session aggregation identifier.
// Events submitted within one rotation window share the same aggregated id;
// rotating the window also resets all persisted event history, so rotation
// and full-history-clear always happen together.
package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/SebastienMelki/pulse/internal/event"
	"github.com/SebastienMelki/pulse/internal/logging"
)

// RotationThreshold is the maximum age of an aggregation window. An
// identifier strictly older than this is replaced on the next lookup.
const RotationThreshold = 24 * time.Hour

// Persistence is the slice of the persistence layer the manager needs.
type Persistence interface {
	Identifier() *event.Identifier
	PersistIdentifier(event.Identifier) error
	ClearAll() error
}

// Manager resolves the current aggregated identifier against persisted
// state. It is not internally synchronized; the engine's single worker
// serializes access.
type Manager struct {
	persistence Persistence
	now         func() time.Time
	log         *logging.Logger
}

// NewManager creates a Manager over the given persistence layer.
// now may be nil, in which case time.Now is used; tests inject a clock.
func NewManager(p Persistence, now func() time.Time, log *logging.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{persistence: p, now: now, log: log}
}

// CurrentAggregateID returns the aggregated id for the active window,
// creating or rotating the persisted identifier as needed. The identifier is
// re-persisted on every call to keep the store write path idempotent.
// Rotation clears all persisted state (batch, sample, identifier) before the
// fresh identifier is written.
func (m *Manager) CurrentAggregateID() string {
	id := m.persistence.Identifier()
	if id == nil {
		fresh := m.newIdentifier()
		id = &fresh
	} else if m.expired(*id) {
		m.log.Debugf("aggregation window expired, rotating %s", id.AggregatedID)
		if err := m.persistence.ClearAll(); err != nil {
			m.log.Errorf("clear state on rotation: %v", err)
		}
		fresh := m.newIdentifier()
		id = &fresh
	}

	if err := m.persistence.PersistIdentifier(*id); err != nil {
		m.log.Errorf("persist identifier: %v", err)
	}
	return id.AggregatedID
}

// expired reports whether the identifier's window is strictly older than
// RotationThreshold. An unparseable creation instant counts as expired.
func (m *Manager) expired(id event.Identifier) bool {
	createdAt, err := time.Parse(time.RFC3339Nano, id.CreatedAt)
	if err != nil {
		m.log.Errorf("parse identifier createdAt %q: %v", id.CreatedAt, err)
		return true
	}
	return m.now().UTC().Sub(createdAt) > RotationThreshold
}

func (m *Manager) newIdentifier() event.Identifier {
	return event.Identifier{
		AggregatedID: uuid.NewString(),
		CreatedAt:    m.now().UTC().Format(time.RFC3339Nano),
	}
}
