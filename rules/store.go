package rules

import (
	"fmt"
	"sync"
	"time"
)

// RuleStore manages rule persistence and retrieval.
type RuleStore interface {
	// Add a new rule
	Add(rule *Rule) error

	// Get a rule by ID
	Get(id string) (*Rule, error)

	// GetByCode retrieves a rule by its human-assigned code
	GetByCode(code string) (*Rule, error)

	// List all rules
	List() ([]*Rule, error)

	// ListActiveForEvent lists active rules triggered by an event type
	ListActiveForEvent(eventType string) ([]*Rule, error)

	// Update an existing rule
	Update(rule *Rule) error

	// Delete a rule
	Delete(id string) error
}

// InMemoryRuleStore implements RuleStore using in-memory maps.
// Thread-safe with RWMutex.
type InMemoryRuleStore struct {
	rules  map[string]*Rule
	byCode map[string]string // rule code -> id
	mu     sync.RWMutex
}

// NewInMemoryRuleStore creates a new in-memory rule store.
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules:  make(map[string]*Rule),
		byCode: make(map[string]string),
	}
}

// Add adds a new rule to the store, enforcing unique IDs and rule codes
// and setting the timestamps.
func (s *InMemoryRuleStore) Add(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}
	if _, exists := s.byCode[rule.RuleCode]; exists {
		return fmt.Errorf("rule with code %s already exists", rule.RuleCode)
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = rule
	s.byCode[rule.RuleCode] = rule.ID
	return nil
}

// Get retrieves a rule by ID.
func (s *InMemoryRuleStore) Get(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule with ID %s not found", id)
	}
	return rule, nil
}

// GetByCode retrieves a rule by its code.
func (s *InMemoryRuleStore) GetByCode(code string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byCode[code]
	if !exists {
		return nil, fmt.Errorf("rule with code %s not found", code)
	}
	return s.rules[id], nil
}

// List returns all rules.
func (s *InMemoryRuleStore) List() ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		all = append(all, rule)
	}
	return all, nil
}

// ListActiveForEvent returns the active rules for one event type.
func (s *InMemoryRuleStore) ListActiveForEvent(eventType string) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Rule
	for _, rule := range s.rules {
		if rule.Active && rule.EventType == eventType {
			active = append(active, rule)
		}
	}
	return active, nil
}

// Update updates an existing rule, preserving CreatedAt.
func (s *InMemoryRuleStore) Update(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.ID]
	if !exists {
		return fmt.Errorf("rule with ID %s not found", rule.ID)
	}
	if other, taken := s.byCode[rule.RuleCode]; taken && other != rule.ID {
		return fmt.Errorf("rule with code %s already exists", rule.RuleCode)
	}

	delete(s.byCode, existing.RuleCode)
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	s.rules[rule.ID] = rule
	s.byCode[rule.RuleCode] = rule.ID
	return nil
}

// Delete removes a rule from the store.
func (s *InMemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[id]
	if !exists {
		return fmt.Errorf("rule with ID %s not found", id)
	}

	delete(s.byCode, rule.RuleCode)
	delete(s.rules, id)
	return nil
}
