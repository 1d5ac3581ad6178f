package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// translateServer wires just the routes; the translate endpoint only
// touches the database when an event type is given.
func translateServer() *Server {
	s := &Server{}
	s.setupRoutes()
	return s
}

func TestHandleTranslateCanvas(t *testing.T) {
	body := `{
		"graph": {
			"nodes": [
				{"id": "c1", "kind": "condition", "data": {"field": "amount", "operator": "gte", "value": 100}},
				{"id": "a1", "kind": "action", "data": {"effect": "grant_badge", "targetCode": "big-spender"}}
			],
			"edges": [
				{"id": "e1", "source": "c1", "target": "a1"}
			]
		}
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/canvas/translate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	translateServer().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp TranslateCanvasResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Errors) != 0 {
		t.Fatalf("unexpected conversion errors: %+v", resp.Errors)
	}

	var tree map[string]any
	if err := json.Unmarshal(resp.RuleJSON, &tree); err != nil {
		t.Fatalf("ruleJson is not valid JSON: %v", err)
	}
	if tree["type"] != "condition" || tree["field"] != "amount" {
		t.Errorf("unexpected tree: %s", resp.RuleJSON)
	}
	if len(resp.Actions) != 1 || resp.Actions[0].TargetCode != "big-spender" {
		t.Errorf("unexpected actions: %+v", resp.Actions)
	}
}

func TestHandleTranslateCanvasReportsAllErrors(t *testing.T) {
	body := `{
		"graph": {
			"nodes": [
				{"id": "c1", "kind": "condition", "data": {"field": "amount", "operator": "gte", "value": 100}},
				{"id": "floating", "kind": "condition", "data": {"field": "x", "operator": "eq", "value": 1}},
				{"id": "a1", "kind": "action", "data": {"effect": "grant_badge", "targetCode": "b"}}
			],
			"edges": [
				{"id": "e1", "source": "c1", "target": "a1"},
				{"id": "e2", "source": "ghost", "target": "a1"}
			]
		}
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/canvas/translate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	translateServer().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp TranslateCanvasResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	kinds := map[string]bool{}
	for _, e := range resp.Errors {
		kinds[e.Kind] = true
	}
	for _, want := range []string{"dangling_edge", "disconnected_node"} {
		if !kinds[want] {
			t.Errorf("error kind %q missing from %+v", want, resp.Errors)
		}
	}
}

func TestHandleTranslateCanvasBadBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/canvas/translate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	translateServer().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
