package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/netfield/fleetacl/internal/domain"
	"github.com/netfield/fleetacl/internal/storage"
	"github.com/netfield/fleetacl/internal/validation"
)

// RuleSetHandler handles rule-set endpoints.
type RuleSetHandler struct {
	store storage.Storage
}

// NewRuleSetHandler creates a new RuleSetHandler.
func NewRuleSetHandler(store storage.Storage) *RuleSetHandler {
	return &RuleSetHandler{store: store}
}

// Create creates a new rule set.
func (h *RuleSetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRuleSetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.ValidateRuleSetName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validation.ValidateRuleList(req.Terms); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	now := time.Now().UTC()
	rs := &domain.RuleSet{
		ID:        generateID(),
		Name:      req.Name,
		Terms:     req.Terms,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateRuleSet(r.Context(), rs); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rs)
}

// Get returns one rule set by name.
func (h *RuleSetHandler) Get(w http.ResponseWriter, r *http.Request) {
	rs, err := h.store.GetRuleSetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rs)
}

// List returns all rule sets.
func (h *RuleSetHandler) List(w http.ResponseWriter, r *http.Request) {
	sets, err := h.store.ListRuleSets(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sets)
}

// Update replaces a rule set's terms.
func (h *RuleSetHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req domain.UpdateRuleSetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validation.ValidateRuleList(req.Terms); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	rs, err := h.store.GetRuleSetByName(r.Context(), name)
	if err != nil {
		handleError(w, err)
		return
	}
	rs.Terms = req.Terms
	rs.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateRuleSet(r.Context(), rs); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rs)
}

// Delete removes a rule set.
func (h *RuleSetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteRuleSet(r.Context(), chi.URLParam(r, "name")); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
