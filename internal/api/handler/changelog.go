package handler

import (
	"net/http"
	"strconv"

	"github.com/netfield/fleetacl/internal/domain"
	"github.com/netfield/fleetacl/internal/service"
	"github.com/netfield/fleetacl/internal/storage"
)

// ChangeLogHandler handles the worklog endpoints.
type ChangeLogHandler struct {
	store   storage.Storage
	service *service.ACLService
}

// NewChangeLogHandler creates a new ChangeLogHandler.
func NewChangeLogHandler(store storage.Storage, svc *service.ACLService) *ChangeLogHandler {
	return &ChangeLogHandler{store: store, service: svc}
}

// Create records a titled diff in the worklog.
func (h *ChangeLogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateChangeRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.service.RecordChange(r.Context(), req.Title, req.Diff, req.Author)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// List returns worklog entries, newest first.
func (h *ChangeLogHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.store.ListChangeRecords(r.Context(), limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	if records == nil {
		records = []*domain.ChangeRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}
