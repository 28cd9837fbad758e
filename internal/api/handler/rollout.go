package handler

import (
	"net/http"

	"github.com/netfield/fleetacl/internal/domain"
	"github.com/netfield/fleetacl/internal/rollout"
	"github.com/netfield/fleetacl/internal/service"
)

// RolloutHandler exposes the fleet census and the admission controller.
type RolloutHandler struct {
	service *service.ACLService
}

// NewRolloutHandler creates a new RolloutHandler.
func NewRolloutHandler(svc *service.ACLService) *RolloutHandler {
	return &RolloutHandler{service: svc}
}

// ThrottleRequest carries one rollout batch: the queued work per device
// and whether every assigned rule set (not just high fan-out ones)
// should be throttled.
type ThrottleRequest struct {
	Queue    map[string][]string `json:"queue"`
	ForceAll bool                `json:"force_all,omitempty"`
}

// ThrottleResponse returns the queue after admission plus the removal
// log.
type ThrottleResponse struct {
	Queue    map[string][]string `json:"queue"`
	Removals []rollout.Removal   `json:"removals"`
}

// Throttle runs one admission pass over the posted work queue.
func (h *RolloutHandler) Throttle(w http.ResponseWriter, r *http.Request) {
	var req ThrottleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	queue := domain.WorkQueue{}
	for dev, acls := range req.Queue {
		queue[dev] = domain.NewNameSet(acls...)
	}

	removals, err := h.service.ThrottleQueue(r.Context(), queue, req.ForceAll)
	if err != nil {
		handleError(w, err)
		return
	}

	out := make(map[string][]string, len(queue))
	for dev, acls := range queue {
		out[dev] = sortedNames(acls)
	}
	if removals == nil {
		removals = []rollout.Removal{}
	}
	respondJSON(w, http.StatusOK, ThrottleResponse{Queue: out, Removals: removals})
}

// Census returns the per-rule-set usage count over the full inventory.
func (h *RolloutHandler) Census(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Census(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// Bulk returns the high fan-out rule sets.
func (h *RolloutHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	bulk, err := h.service.BulkACLs(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sortedNames(bulk))
}

// Matching returns the devices carrying any of the queried rule sets.
func (h *RolloutHandler) Matching(w http.ResponseWriter, r *http.Request) {
	wanted := r.URL.Query()["acl"]
	if len(wanted) == 0 {
		respondError(w, http.StatusBadRequest, "at least one acl query parameter is required")
		return
	}
	exact := r.URL.Query().Get("exact") != "false"

	matches, err := h.service.MatchingACLs(r.Context(), wanted, exact)
	if err != nil {
		handleError(w, err)
		return
	}
	if matches == nil {
		matches = []service.DeviceMatch{}
	}
	respondJSON(w, http.StatusOK, matches)
}
