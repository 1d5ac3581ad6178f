package rules

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/badgekit/badgerules/ruletree"
)

// PostgresRuleStore implements RuleStore backed by PostgreSQL. The
// condition tree and action list are stored as JSONB columns in their
// wire shapes.
type PostgresRuleStore struct {
	db *sql.DB
}

// NewPostgresRuleStore creates a PostgreSQL-backed RuleStore.
func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

func encodeRule(rule *Rule) (treeJSON, actionsJSON []byte, err error) {
	treeJSON, err = ruletree.Marshal(rule.Tree)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode rule tree: %w", err)
	}
	actions := rule.Actions
	if actions == nil {
		actions = []ruletree.Action{}
	}
	actionsJSON, err = json.Marshal(actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode rule actions: %w", err)
	}
	return treeJSON, actionsJSON, nil
}

func scanRule(scan func(dest ...any) error) (*Rule, error) {
	var rule Rule
	var treeJSON, actionsJSON []byte
	if err := scan(
		&rule.ID,
		&rule.RuleCode,
		&rule.Name,
		&rule.EventType,
		&treeJSON,
		&actionsJSON,
		&rule.MaxCountPerUser,
		&rule.GlobalQuota,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	tree, err := ruletree.Unmarshal(treeJSON)
	if err != nil {
		return nil, fmt.Errorf("stored rule %s has a corrupt tree: %w", rule.ID, err)
	}
	rule.Tree = tree

	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &rule.Actions); err != nil {
			return nil, fmt.Errorf("stored rule %s has corrupt actions: %w", rule.ID, err)
		}
	}
	return &rule, nil
}

const ruleColumns = `id, rule_code, name, event_type, rule_json, actions, max_count_per_user, global_quota, active, created_at, updated_at`

// Add inserts a new rule into the database.
func (s *PostgresRuleStore) Add(rule *Rule) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rules WHERE id = $1 OR rule_code = $2)
	`, rule.ID, rule.RuleCode).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("rule with ID %s or code %s already exists", rule.ID, rule.RuleCode)
	}

	treeJSON, actionsJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO rules (id, rule_code, name, event_type, rule_json, actions, max_count_per_user, global_quota, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rule.ID, rule.RuleCode, rule.Name, rule.EventType, treeJSON, actionsJSON,
		rule.MaxCountPerUser, rule.GlobalQuota, rule.Active, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// Get retrieves a rule by ID.
func (s *PostgresRuleStore) Get(id string) (*Rule, error) {
	row := s.db.QueryRow(`SELECT `+ruleColumns+` FROM rules WHERE id = $1`, id)
	rule, err := scanRule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// GetByCode retrieves a rule by its code.
func (s *PostgresRuleStore) GetByCode(code string) (*Rule, error) {
	row := s.db.QueryRow(`SELECT `+ruleColumns+` FROM rules WHERE rule_code = $1`, code)
	rule, err := scanRule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule with code %s not found", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List returns all rules, newest first.
func (s *PostgresRuleStore) List() ([]*Rule, error) {
	return s.queryRules(`SELECT ` + ruleColumns + ` FROM rules ORDER BY created_at DESC`)
}

// ListActiveForEvent returns the active rules for one event type in
// creation order.
func (s *PostgresRuleStore) ListActiveForEvent(eventType string) ([]*Rule, error) {
	return s.queryRules(`
		SELECT `+ruleColumns+`
		FROM rules
		WHERE event_type = $1 AND active = true
		ORDER BY created_at ASC
	`, eventType)
}

func (s *PostgresRuleStore) queryRules(query string, args ...any) ([]*Rule, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rulesList []*Rule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rulesList = append(rulesList, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rulesList, nil
}

// Update modifies an existing rule.
func (s *PostgresRuleStore) Update(rule *Rule) error {
	if _, err := s.Get(rule.ID); err != nil {
		return err
	}

	treeJSON, actionsJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}

	rule.UpdatedAt = time.Now()
	result, err := s.db.Exec(`
		UPDATE rules
		SET rule_code = $1, name = $2, event_type = $3, rule_json = $4, actions = $5,
		    max_count_per_user = $6, global_quota = $7, active = $8, updated_at = $9
		WHERE id = $10
	`, rule.RuleCode, rule.Name, rule.EventType, treeJSON, actionsJSON,
		rule.MaxCountPerUser, rule.GlobalQuota, rule.Active, rule.UpdatedAt, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s not found", rule.ID)
	}
	return nil
}

// Delete removes a rule from the database.
func (s *PostgresRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s not found", id)
	}
	return nil
}
