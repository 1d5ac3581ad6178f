package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/badgekit/badgerules/canvas"
	"github.com/badgekit/badgerules/rules"
	"github.com/badgekit/badgerules/ruletree"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"eventTypes": len(s.registry.EventTypes()),
	})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.service.Create(&rule); err != nil {
		respondError(w, statusForRuleError(err), "failed to create rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, &rule)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	var (
		list []*rules.Rule
		err  error
	)
	if eventType := r.URL.Query().Get("eventType"); eventType != "" {
		list, err = s.service.ListActiveForEvent(eventType)
	} else {
		list, err = s.service.List()
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if list == nil {
		list = []*rules.Rule{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"rules": list})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.service.Get(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	rule.ID = chi.URLParam(r, "ruleId")

	if err := s.service.Update(&rule); err != nil {
		respondError(w, statusForRuleError(err), "failed to update rule", err)
		return
	}

	respondJSON(w, http.StatusOK, &rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(chi.URLParam(r, "ruleId")); err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetRuleCanvas lays a stored rule out for the visual editor.
func (s *Server) handleGetRuleCanvas(w http.ResponseWriter, r *http.Request) {
	rule, err := s.service.Get(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}

	respondJSON(w, http.StatusOK, canvas.FromTree(rule.Tree, rule.Actions))
}

// handleTranslateCanvas converts an editor graph into the canonical
// tree. Conversion problems come back as a complete list so the editor
// can highlight every one of them in a single pass.
func (s *Server) handleTranslateCanvas(w http.ResponseWriter, r *http.Request) {
	var req TranslateCanvasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	tree, actions, err := canvas.ToTree(req.Graph)
	if err != nil {
		var convErrs canvas.ConversionErrors
		if errors.As(err, &convErrs) {
			respondJSON(w, http.StatusBadRequest, TranslateCanvasResponse{
				Errors: conversionErrorViews(convErrs),
			})
			return
		}
		respondError(w, http.StatusInternalServerError, "canvas translation failed", err)
		return
	}

	// With an event type the tree is also checked against its schema.
	if req.EventType != "" {
		if err := s.service.ValidateTree(req.EventType, tree); err != nil {
			respondJSON(w, http.StatusBadRequest, TranslateCanvasResponse{
				Errors: []ConversionErrorView{{Kind: "invalid_tree", Message: err.Error()}},
			})
			return
		}
	}

	treeJSON, err := ruletree.Marshal(tree)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode rule tree", err)
		return
	}

	respondJSON(w, http.StatusOK, TranslateCanvasResponse{
		RuleJSON: treeJSON,
		Actions:  actions,
	})
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "eventType")

	schema, ok := s.registry.Lookup(eventType)
	if !ok {
		respondError(w, http.StatusNotFound, "schema not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, SchemaResponse{
		EventType:  eventType,
		Definition: schema,
	})
}

func (s *Server) handlePutSchema(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "eventType")

	var req PutSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.registry.Put(eventType, req.Definition); err != nil {
		respondError(w, http.StatusBadRequest, "failed to update schema", err)
		return
	}

	respondJSON(w, http.StatusOK, SchemaResponse{
		EventType:  eventType,
		Definition: req.Definition,
	})
}

// statusForRuleError maps validation and parse failures to 400 and
// everything else (store conflicts, lookups) to 409/500-ish defaults.
func statusForRuleError(err error) int {
	var verr *ruletree.ValidationError
	var perr *ruletree.ParseError
	if errors.As(err, &verr) || errors.As(err, &perr) {
		return http.StatusBadRequest
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "already exists"):
		return http.StatusConflict
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "required"),
		strings.Contains(msg, "cannot be negative"),
		strings.Contains(msg, "no schema registered"),
		strings.Contains(msg, "not accepted by the engine"),
		strings.Contains(msg, "has no"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func conversionErrorViews(errs canvas.ConversionErrors) []ConversionErrorView {
	views := make([]ConversionErrorView, len(errs))
	for i, e := range errs {
		views[i] = ConversionErrorView{
			Kind:    string(e.Kind),
			NodeID:  e.NodeID,
			EdgeID:  e.EdgeID,
			Message: e.Message,
		}
	}
	return views
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
