// Package rules defines the persisted rule entity of the badge platform
// and its storage, caching, and save-time validation. A rule pairs an
// event trigger with a boolean condition tree (see ruletree) and one or
// more badge/benefit-granting actions; the evaluation of stored rules
// against live events happens in the downstream rule engine.
package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/badgekit/badgerules/ruletree"
)

// Rule is the persisted rule definition. MaxCountPerUser and GlobalQuota
// are frequency limits enforced by the downstream engine; they travel on
// the envelope and are only bounds-checked here.
type Rule struct {
	ID              string
	RuleCode        string
	Name            string
	EventType       string
	Tree            ruletree.Node
	Actions         []ruletree.Action
	MaxCountPerUser *int
	GlobalQuota     *int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ruleWire is the JSON envelope crossing the persistence boundary.
// ruleJson carries the condition tree in its canonical wire shape.
type ruleWire struct {
	ID              string            `json:"id,omitempty"`
	RuleCode        string            `json:"ruleCode"`
	EventType       string            `json:"eventType"`
	Name            string            `json:"name"`
	RuleJSON        json.RawMessage   `json:"ruleJson"`
	Actions         []ruletree.Action `json:"actions,omitempty"`
	MaxCountPerUser *int              `json:"maxCountPerUser,omitempty"`
	GlobalQuota     *int              `json:"globalQuota,omitempty"`
	Active          bool              `json:"active,omitempty"`
	CreatedAt       *time.Time        `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time        `json:"updatedAt,omitempty"`
}

// MarshalJSON encodes the rule envelope, serializing the tree through
// the canonical codec.
func (r *Rule) MarshalJSON() ([]byte, error) {
	var ruleJSON json.RawMessage
	if r.Tree != nil {
		data, err := ruletree.Marshal(r.Tree)
		if err != nil {
			return nil, fmt.Errorf("failed to encode rule tree: %w", err)
		}
		ruleJSON = data
	}

	w := ruleWire{
		ID:              r.ID,
		RuleCode:        r.RuleCode,
		EventType:       r.EventType,
		Name:            r.Name,
		RuleJSON:        ruleJSON,
		Actions:         r.Actions,
		MaxCountPerUser: r.MaxCountPerUser,
		GlobalQuota:     r.GlobalQuota,
		Active:          r.Active,
	}
	if !r.CreatedAt.IsZero() {
		w.CreatedAt = &r.CreatedAt
	}
	if !r.UpdatedAt.IsZero() {
		w.UpdatedAt = &r.UpdatedAt
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the rule envelope. A malformed ruleJson payload
// surfaces the tree codec's ParseError unchanged.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("malformed rule envelope: %w", err)
	}

	var tree ruletree.Node
	if len(w.RuleJSON) > 0 {
		var err error
		tree, err = ruletree.Unmarshal(w.RuleJSON)
		if err != nil {
			return err
		}
	}

	r.ID = w.ID
	r.RuleCode = w.RuleCode
	r.EventType = w.EventType
	r.Name = w.Name
	r.Tree = tree
	r.Actions = w.Actions
	r.MaxCountPerUser = w.MaxCountPerUser
	r.GlobalQuota = w.GlobalQuota
	r.Active = w.Active
	if w.CreatedAt != nil {
		r.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		r.UpdatedAt = *w.UpdatedAt
	}
	return nil
}
