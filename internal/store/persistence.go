package store

import (
	"encoding/json"
	"fmt"

	"github.com/SebastienMelki/pulse/internal/event"
	"github.com/SebastienMelki/pulse/internal/logging"
)

// Persisted key layout. Values are JSON-serialized; the keys live inside the
// preference scope the Store is bound to.
const (
	aggregatedIDKey = "AGGREGATED_ID"
	eventsBatchKey  = "EVENTS_BATCH"
	eventsSampleKey = "EVENTS_SAMPLE"
)

// Persistence serializes engine state to a Store. Durability is best-effort:
// an invalid store or a storage failure degrades to no-ops and empty results
// with logged errors; corrupt values are dropped from the store.
type Persistence struct {
	store Store
	log   *logging.Logger
}

// NewPersistence wraps the given Store. log may be nil.
func NewPersistence(s Store, log *logging.Logger) *Persistence {
	return &Persistence{store: s, log: log}
}

// PersistIdentifier stores the session aggregation identifier.
func (p *Persistence) PersistIdentifier(id event.Identifier) error {
	if !p.store.IsValid() {
		p.log.Debugf("store is invalid, identifier not persisted")
		return nil
	}
	data, err := json.Marshal(id)
	if err != nil {
		p.log.Errorf("encode identifier: %v", err)
		return fmt.Errorf("encode identifier: %w", err)
	}
	if err := p.store.PutString(aggregatedIDKey, string(data)); err != nil {
		p.log.Errorf("persist identifier: %v", err)
		return fmt.Errorf("persist identifier: %w", err)
	}
	return nil
}

// Identifier returns the persisted aggregation identifier, or nil if absent.
// A value that fails to decode is removed and treated as absent.
func (p *Persistence) Identifier() *event.Identifier {
	if !p.store.IsValid() {
		p.log.Debugf("store is invalid, no identifier")
		return nil
	}
	raw, err := p.store.GetString(aggregatedIDKey, "")
	if err != nil {
		p.log.Errorf("read identifier: %v", err)
		return nil
	}
	if raw == "" {
		return nil
	}
	var id event.Identifier
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		p.log.Errorf("decode identifier, dropping: %v", err)
		_ = p.store.Remove(aggregatedIDKey)
		return nil
	}
	return &id
}

// PersistEvent appends ev to the stored batch and to the stored sample list,
// evicting the oldest sample entry once historySize is reached.
func (p *Persistence) PersistEvent(ev event.Stored, historySize int) error {
	if !p.store.IsValid() {
		p.log.Debugf("store is invalid, event not persisted")
		return nil
	}

	batch := append(p.Events(), ev)
	if err := p.writeEvents(eventsBatchKey, batch); err != nil {
		return err
	}

	sample := p.SampleEvents()
	if len(sample) >= historySize {
		sample = sample[1:]
	}
	sample = append(sample, ev)
	return p.writeEvents(eventsSampleKey, sample)
}

// Events returns the persisted batch, oldest first.
func (p *Persistence) Events() []event.Stored {
	return p.eventsForKey(eventsBatchKey)
}

// SampleEvents returns the persisted sample history, oldest first.
func (p *Persistence) SampleEvents() []event.Stored {
	return p.eventsForKey(eventsSampleKey)
}

// ClearBatched removes the persisted batch. The sample history is kept.
func (p *Persistence) ClearBatched() error {
	if !p.store.IsValid() {
		p.log.Debugf("store is invalid, nothing to clear")
		return nil
	}
	if err := p.store.Remove(eventsBatchKey); err != nil {
		p.log.Errorf("clear batched events: %v", err)
		return fmt.Errorf("clear batched events: %w", err)
	}
	return nil
}

// ClearAll removes the batch, the sample history, and the identifier.
func (p *Persistence) ClearAll() error {
	if !p.store.IsValid() {
		p.log.Debugf("store is invalid, nothing to clear")
		return nil
	}
	var firstErr error
	for _, key := range []string{eventsBatchKey, eventsSampleKey, aggregatedIDKey} {
		if err := p.store.Remove(key); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("clear %s: %w", key, err)
		}
	}
	if firstErr != nil {
		p.log.Errorf("clear all: %v", firstErr)
	}
	return firstErr
}

func (p *Persistence) writeEvents(key string, events []event.Stored) error {
	data, err := json.Marshal(events)
	if err != nil {
		p.log.Errorf("encode events for %s: %v", key, err)
		return fmt.Errorf("encode events: %w", err)
	}
	if err := p.store.PutString(key, string(data)); err != nil {
		p.log.Errorf("persist events for %s: %v", key, err)
		return fmt.Errorf("persist events: %w", err)
	}
	return nil
}

func (p *Persistence) eventsForKey(key string) []event.Stored {
	if !p.store.IsValid() {
		p.log.Debugf("store is invalid, no events for %s", key)
		return nil
	}
	raw, err := p.store.GetString(key, "")
	if err != nil {
		p.log.Errorf("read events for %s: %v", key, err)
		return nil
	}
	if raw == "" {
		return nil
	}
	var events []event.Stored
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		p.log.Errorf("decode events for %s, dropping: %v", key, err)
		_ = p.store.Remove(key)
		return nil
	}
	return events
}
