package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/netfield/fleetacl/internal/domain"
	"github.com/netfield/fleetacl/internal/service"
	"github.com/netfield/fleetacl/internal/storage"
	"github.com/netfield/fleetacl/internal/validation"
)

// DeviceHandler handles inventory and assignment endpoints.
type DeviceHandler struct {
	store   storage.Storage
	service *service.ACLService
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(store storage.Storage, svc *service.ACLService) *DeviceHandler {
	return &DeviceHandler{store: store, service: svc}
}

// Create adds a device to the inventory.
func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.ValidateDeviceName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateDeviceType(req.DeviceType); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	dev := &domain.Device{
		ID:           generateID(),
		Name:         req.Name,
		OwningTeam:   req.OwningTeam,
		DeviceType:   req.DeviceType,
		Manufacturer: req.Manufacturer,
		Make:         req.Make,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.CreateDevice(r.Context(), dev); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dev)
}

// Get returns one device by name.
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	dev, err := h.store.GetDeviceByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dev)
}

// List returns the full inventory.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.ListDevices(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, devices)
}

// Update modifies device attributes.
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req domain.UpdateDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dev, err := h.store.GetDeviceByName(r.Context(), name)
	if err != nil {
		handleError(w, err)
		return
	}
	if req.OwningTeam != nil {
		dev.OwningTeam = *req.OwningTeam
	}
	if req.DeviceType != nil {
		if err := validation.ValidateDeviceType(*req.DeviceType); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		dev.DeviceType = *req.DeviceType
	}
	if req.Manufacturer != nil {
		dev.Manufacturer = *req.Manufacturer
	}
	if req.Make != nil {
		dev.Make = *req.Make
	}
	dev.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateDevice(r.Context(), dev); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dev)
}

// Delete removes a device and its explicit assignments.
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteDevice(r.Context(), chi.URLParam(r, "name")); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// aclSetsResponse renders the explicit/implicit/all breakdown with
// sorted name lists.
type aclSetsResponse struct {
	Explicit []string `json:"explicit"`
	Implicit []string `json:"implicit"`
	All      []string `json:"all"`
}

// ACLSets returns the device's rule-set associations by origin.
func (h *DeviceHandler) ACLSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.service.GetACLSets(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, aclSetsResponse{
		Explicit: sortedNames(sets.Explicit),
		Implicit: sortedNames(sets.Implicit),
		All:      sortedNames(sets.All),
	})
}

// AddACL explicitly associates a rule set with a device.
func (h *DeviceHandler) AddACL(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	acl := chi.URLParam(r, "acl")
	if err := validation.ValidateRuleSetName(acl); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.AddDeviceACL(r.Context(), name, acl); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "added acl " + acl + " to " + name,
	})
}

// RemoveACL removes an explicit association.
func (h *DeviceHandler) RemoveACL(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	acl := chi.URLParam(r, "acl")
	if err := h.store.RemoveDeviceACL(r.Context(), name, acl); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "removed acl " + acl + " from " + name,
	})
}

func sortedNames(s domain.NameSet) []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
