package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netfield/fleetacl/internal/domain"
	"github.com/netfield/fleetacl/internal/engine"
	"github.com/netfield/fleetacl/internal/storage"
	"github.com/netfield/fleetacl/internal/validation"
)

// CheckHandler exposes the access decision logic over a stored rule
// set: is this flow already covered, and if not, which terms would
// close the gap.
type CheckHandler struct {
	store       storage.Storage
	synthesizer *engine.Synthesizer
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(store storage.Storage, synthesizer *engine.Synthesizer) *CheckHandler {
	return &CheckHandler{store: store, synthesizer: synthesizer}
}

// CheckRequest asks whether a flow is covered by a rule set.
type CheckRequest struct {
	Flow  domain.FlowRequest `json:"flow"`
	Trace bool               `json:"trace,omitempty"`
}

// CheckResponse carries the decision and, when requested, the audit
// trail of hitting terms.
type CheckResponse struct {
	Decision engine.Decision     `json:"decision"`
	Trace    []engine.TraceEntry `json:"trace,omitempty"`
}

// Check evaluates a flow against a stored rule set.
func (h *CheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	rs, err := h.store.GetRuleSetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleError(w, err)
		return
	}

	var req CheckRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validation.ValidateFlowRequest(req.Flow); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	resp := CheckResponse{}
	if req.Trace {
		resp.Decision, resp.Trace = engine.EvaluateTrace(rs.Terms, req.Flow)
	} else {
		resp.Decision = engine.Evaluate(rs.Terms, req.Flow)
	}
	respondJSON(w, http.StatusOK, resp)
}

// SynthesizeRequest asks for the terms missing from a rule set for a
// (possibly multi-valued) flow.
type SynthesizeRequest struct {
	Flow domain.FlowRequest `json:"flow"`
}

// SynthesizeResponse lists the terms that would need to be appended.
type SynthesizeResponse struct {
	Terms []domain.Term `json:"terms"`
}

// Synthesize computes the minimal missing terms for a flow.
func (h *CheckHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	rs, err := h.store.GetRuleSetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleError(w, err)
		return
	}

	var req SynthesizeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validation.ValidateFlowRequest(req.Flow); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	terms, err := h.synthesizer.Synthesize(rs.Terms, req.Flow)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SynthesizeResponse{Terms: terms})
}
