package rules

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/badgekit/badgerules/celexport"
	"github.com/badgekit/badgerules/eventschema"
	"github.com/badgekit/badgerules/ruletree"
)

// SchemaSource resolves an event type to its payload schema. Satisfied
// by *eventschema.Registry.
type SchemaSource interface {
	Lookup(eventType string) (eventschema.Schema, bool)
}

// Service validates and stores rule definitions. A rule is validated
// against the event schema and compile-checked for the downstream engine
// before it touches the store, so an invalid rule is never persisted.
type Service struct {
	store   RuleStore
	schemas SchemaSource
	cache   RulesCache
}

// NewService creates a rule service over a store and schema source.
func NewService(store RuleStore, schemas SchemaSource) *Service {
	return &Service{
		store:   store,
		schemas: schemas,
		cache:   NewInMemoryRulesCache(DefaultCacheConfig()),
	}
}

// ValidateTree checks a condition tree against the schema of the event
// type that triggers it: structural invariants first, then the
// downstream engine's compile check.
func (s *Service) ValidateTree(eventType string, tree ruletree.Node) error {
	schema, ok := s.schemas.Lookup(eventType)
	if !ok {
		return fmt.Errorf("no schema registered for event type %q", eventType)
	}
	if err := ruletree.NewValidator(schema).Validate(tree); err != nil {
		return err
	}
	if err := celexport.Check(tree, schema); err != nil {
		return fmt.Errorf("rule is not accepted by the engine: %w", err)
	}
	return nil
}

func (s *Service) checkEnvelope(r *Rule) error {
	if r.RuleCode == "" || r.Name == "" || r.EventType == "" {
		return fmt.Errorf("ruleCode, name, and eventType are required")
	}
	if r.Tree == nil {
		return fmt.Errorf("rule has no condition tree")
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("rule has no actions")
	}
	if r.MaxCountPerUser != nil && *r.MaxCountPerUser < 0 {
		return fmt.Errorf("maxCountPerUser cannot be negative")
	}
	if r.GlobalQuota != nil && *r.GlobalQuota < 0 {
		return fmt.Errorf("globalQuota cannot be negative")
	}
	return nil
}

// Create validates a new rule and adds it to the store. An ID is
// assigned when the caller did not supply one.
func (s *Service) Create(r *Rule) error {
	if err := s.checkEnvelope(r); err != nil {
		return err
	}
	if err := s.ValidateTree(r.EventType, r.Tree); err != nil {
		return err
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.store.Add(r); err != nil {
		return err
	}

	// Invalidate cache since rules list changed
	s.cache.Invalidate()
	return nil
}

// Update validates the new definition and updates the store.
func (s *Service) Update(r *Rule) error {
	if err := s.checkEnvelope(r); err != nil {
		return err
	}
	if err := s.ValidateTree(r.EventType, r.Tree); err != nil {
		return err
	}

	if err := s.store.Update(r); err != nil {
		return err
	}

	s.cache.Invalidate()
	return nil
}

// Delete removes a rule.
func (s *Service) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// Get retrieves a rule by ID.
func (s *Service) Get(id string) (*Rule, error) {
	return s.store.Get(id)
}

// GetByCode retrieves a rule by its code.
func (s *Service) GetByCode(code string) (*Rule, error) {
	return s.store.GetByCode(code)
}

// List returns all rules.
func (s *Service) List() ([]*Rule, error) {
	return s.store.List()
}

// ListActiveForEvent returns the active rules for an event type, served
// from cache when possible.
func (s *Service) ListActiveForEvent(eventType string) ([]*Rule, error) {
	if cached := s.cache.Get(eventType); cached != nil {
		return cached, nil
	}

	rules, err := s.store.ListActiveForEvent(eventType)
	if err != nil {
		return nil, err
	}
	s.cache.Set(eventType, rules)
	return rules, nil
}
