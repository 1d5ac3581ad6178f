package main

import (
	"encoding/json"

	"github.com/badgekit/badgerules/canvas"
	"github.com/badgekit/badgerules/eventschema"
	"github.com/badgekit/badgerules/ruletree"
)

// API request and response models.

// TranslateCanvasRequest carries an editor graph to convert into the
// canonical rule tree. EventType is optional; when present the tree is
// also validated against that event's schema.
type TranslateCanvasRequest struct {
	EventType string       `json:"eventType,omitempty"`
	Graph     canvas.Graph `json:"graph"`
}

// TranslateCanvasResponse returns either the translated tree and its
// actions, or the full list of conversion problems.
type TranslateCanvasResponse struct {
	RuleJSON json.RawMessage       `json:"ruleJson,omitempty"`
	Actions  []ruletree.Action     `json:"actions,omitempty"`
	Errors   []ConversionErrorView `json:"errors,omitempty"`
}

// ConversionErrorView is one canvas problem, with the offending node or
// edge identified so the editor can highlight it.
type ConversionErrorView struct {
	Kind    string `json:"kind"`
	NodeID  string `json:"nodeId,omitempty"`
	EdgeID  string `json:"edgeId,omitempty"`
	Message string `json:"message"`
}

// PutSchemaRequest replaces the payload schema of an event type.
type PutSchemaRequest struct {
	Definition eventschema.Schema `json:"definition"`
}

// SchemaResponse returns an event type's payload schema.
type SchemaResponse struct {
	EventType  string             `json:"eventType"`
	Definition eventschema.Schema `json:"definition"`
}
