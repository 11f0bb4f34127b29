// Package analytics carries search and autocomplete events from the
// searcher to Kafka and aggregates them on the consuming side.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventSearch       EventType = "search"
	EventAutocomplete EventType = "autocomplete"
)

// SearchEvent describes one answered keyword query.
type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	TotalHits   int       `json:"total_hits"`
	RowsScanned int       `json:"rows_scanned"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// AutocompleteEvent describes one answered prefix lookup.
type AutocompleteEvent struct {
	Type        EventType `json:"type"`
	Prefix      string    `json:"prefix"`
	Suggestions int       `json:"suggestions"`
	LatencyMs   int64     `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Event is implemented by the event types above.
type Event interface {
	eventType() EventType
	key() string
}

func (e SearchEvent) eventType() EventType       { return EventSearch }
func (e SearchEvent) key() string                { return e.Query }
func (e AutocompleteEvent) eventType() EventType { return EventAutocomplete }
func (e AutocompleteEvent) key() string          { return e.Prefix }

// DecodeEvent parses a message produced by the Collector.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding event type: %w", err)
	}
	switch head.Type {
	case EventSearch:
		var e SearchEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding search event: %w", err)
		}
		return e, nil
	case EventAutocomplete:
		var e AutocompleteEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding autocomplete event: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
}
