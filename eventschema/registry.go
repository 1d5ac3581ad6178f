package eventschema

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

// Registry holds the schema for every event type, backed by the
// event_schemas table. Reads are served from memory; Put persists first
// and swaps the in-memory copy only on success.
type Registry struct {
	db      *sql.DB
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry creates an empty registry. Call LoadAll before serving.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{
		db:      db,
		schemas: make(map[string]Schema),
	}
}

// LoadAll replaces the in-memory registry with every schema from the
// database.
func (r *Registry) LoadAll() error {
	rows, err := r.db.Query(`SELECT event_type, definition FROM event_schemas`)
	if err != nil {
		return fmt.Errorf("failed to load event schemas: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]Schema)
	for rows.Next() {
		var eventType string
		var definition []byte
		if err := rows.Scan(&eventType, &definition); err != nil {
			return fmt.Errorf("failed to scan event schema: %w", err)
		}
		var schema Schema
		if err := json.Unmarshal(definition, &schema); err != nil {
			return fmt.Errorf("failed to parse schema for event type %s: %w", eventType, err)
		}
		loaded[eventType] = schema
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating event schemas: %w", err)
	}

	r.mu.Lock()
	r.schemas = loaded
	r.mu.Unlock()
	return nil
}

// Lookup returns the schema for an event type, if one is registered.
func (r *Registry) Lookup(eventType string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[eventType]
	return s, ok
}

// EventTypes lists the registered event types.
func (r *Registry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	return types
}

// Put validates, persists, and installs a schema for an event type.
// Existing rules keep referencing the event type; the rules service
// re-validates trees against the new schema on their next update.
func (r *Registry) Put(eventType string, schema Schema) error {
	if eventType == "" {
		return fmt.Errorf("event type is required")
	}
	if err := ValidateSchema(schema); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	definition, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO event_schemas (event_type, definition, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_type)
		DO UPDATE SET definition = EXCLUDED.definition, updated_at = NOW()
	`, eventType, definition)
	if err != nil {
		return fmt.Errorf("failed to persist schema: %w", err)
	}

	r.mu.Lock()
	r.schemas[eventType] = schema
	r.mu.Unlock()
	return nil
}
