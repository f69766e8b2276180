/*
handlers.go - HTTP handlers for the roster service

PURPOSE:
  Exposes the roster engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the engine and the store.

ENDPOINTS:
  Shifts:
    GET    /api/shifts                 List shift templates
    POST   /api/shifts                 Create a template
    GET    /api/shifts/{id}            Get a template
    PUT    /api/shifts/{id}            Update a template (re-resolves referencing allocations)
    DELETE /api/shifts/{id}            Delete a template (409 while referenced)

  Allocations:
    GET    /api/allocations            List allocations with resolved intervals
    POST   /api/allocations            Create an allocation
    GET    /api/allocations/{id}       Get one allocation
    PUT    /api/allocations/{id}       Update an allocation
    DELETE /api/allocations/{id}       Delete an allocation

  Schedule queries:
    GET    /api/schedule/active?at=...                    IDs active at an instant
    GET    /api/schedule/overlapping?from=...&to=...      IDs intersecting a window
    GET    /api/schedule/coverage?from=...&to=...         Per-subject scheduled hours

WRITE FLOW:
  1. Decode and validate the DTO (validator tags, then time/date parsing)
  2. Pre-check engine semantics (shift exists, template resolvable)
  3. Persist to the store
  4. Notify the engine; queries see the change when the call returns

ERROR MAPPING:
  400  invalid body, unparseable times/dates, invalid query windows
  404  unknown shift/allocation
  409  deleting a shift still referenced by allocations
  422  allocation referencing a shift the engine does not know
  500  storage failures

SEE ALSO:
  - dto.go:    request/response shapes
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/warp/roster-engine/report"
	"github.com/warp/roster-engine/roster"
	"github.com/warp/roster-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *roster.Engine

	validate *validator.Validate
	log      zerolog.Logger
}

func NewHandler(store *sqlite.Store, engine *roster.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Engine:   engine,
		validate: validator.New(),
		log:      log,
	}
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	shifts := h.Engine.Shifts()
	dtos := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		dtos[i] = toShiftDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	id := roster.ShiftID(chi.URLParam(r, "id"))
	shift, ok := h.Engine.Shift(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Shift not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	h.saveShift(w, r, "", http.StatusCreated)
}

func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	h.saveShift(w, r, roster.ShiftID(chi.URLParam(r, "id")), http.StatusOK)
}

func (h *Handler) saveShift(w http.ResponseWriter, r *http.Request, pathID roster.ShiftID, okStatus int) {
	var req SaveShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if pathID != "" {
		req.ID = string(pathID)
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	shift, err := shiftFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift definition", err)
		return
	}

	_, exists := h.Engine.Shift(shift.ID)
	if pathID == "" && exists {
		writeError(w, http.StatusConflict, "Shift already exists", nil)
		return
	}
	if pathID != "" && !exists {
		writeError(w, http.StatusNotFound, "Shift not found", nil)
		return
	}

	if err := h.Store.SaveShift(r.Context(), shift); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save shift", err)
		return
	}
	if err := h.Engine.OnShiftUpdated(shift); err != nil {
		// Pre-validated above; reaching this means the store and engine
		// now disagree, which the next boot (or audit) reconciles.
		h.log.Error().Err(err).Str("shift", string(shift.ID)).Msg("engine rejected persisted shift")
		writeError(w, statusForEngineError(err), "Failed to apply shift", err)
		return
	}

	writeJSON(w, okStatus, toShiftDTO(shift))
}

func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	id := roster.ShiftID(chi.URLParam(r, "id"))

	if err := h.Engine.OnShiftDeleted(id); err != nil {
		writeError(w, statusForEngineError(err), "Cannot delete shift", err)
		return
	}
	if err := h.Store.DeleteShift(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete shift", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func shiftFromRequest(req SaveShiftRequest) (roster.ShiftDefinition, error) {
	start, err := roster.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return roster.ShiftDefinition{}, err
	}
	finish, err := roster.ParseTimeOfDay(req.FinishTime)
	if err != nil {
		return roster.ShiftDefinition{}, err
	}
	return roster.ShiftDefinition{
		ID:     roster.ShiftID(req.ID),
		Name:   req.Name,
		Start:  start,
		Finish: finish,
	}, nil
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	allocations := h.Engine.Allocations()
	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = h.allocationDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	id := roster.AllocationID(chi.URLParam(r, "id"))
	a, ok := h.Engine.Allocation(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Allocation not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.allocationDTO(a))
}

func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	h.saveAllocation(w, r, "", http.StatusCreated)
}

func (h *Handler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	h.saveAllocation(w, r, roster.AllocationID(chi.URLParam(r, "id")), http.StatusOK)
}

func (h *Handler) saveAllocation(w http.ResponseWriter, r *http.Request, pathID roster.AllocationID, okStatus int) {
	var req SaveAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if pathID != "" {
		req.ID = string(pathID)
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	alloc, err := allocationFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid allocation", err)
		return
	}

	_, exists := h.Engine.Allocation(alloc.ID)
	if pathID == "" && exists {
		writeError(w, http.StatusConflict, "Allocation already exists", nil)
		return
	}
	if pathID != "" && !exists {
		writeError(w, http.StatusNotFound, "Allocation not found", nil)
		return
	}

	// Dangling references are rejected before anything is persisted.
	if _, ok := h.Engine.Shift(alloc.ShiftID); !ok {
		writeError(w, http.StatusUnprocessableEntity, "Allocation references unknown shift",
			&roster.DanglingShiftError{AllocationID: alloc.ID, ShiftID: alloc.ShiftID})
		return
	}

	if err := h.Store.SaveAllocation(r.Context(), alloc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save allocation", err)
		return
	}
	if err := h.Engine.OnAllocationUpdated(alloc); err != nil {
		h.log.Error().Err(err).Str("allocation", string(alloc.ID)).Msg("engine rejected persisted allocation")
		writeError(w, statusForEngineError(err), "Failed to apply allocation", err)
		return
	}

	writeJSON(w, okStatus, h.allocationDTO(alloc))
}

func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	id := roster.AllocationID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteAllocation(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete allocation", err)
		return
	}
	h.Engine.OnAllocationDeleted(id)
	w.WriteHeader(http.StatusNoContent)
}

func allocationFromRequest(req SaveAllocationRequest) (roster.Allocation, error) {
	d, err := roster.ParseDate(req.Date)
	if err != nil {
		return roster.Allocation{}, err
	}
	alloc := roster.Allocation{
		ID:      roster.AllocationID(req.ID),
		ShiftID: roster.ShiftID(req.ShiftID),
		Date:    d,
	}
	for _, s := range req.Assignees {
		alloc.Assignees = append(alloc.Assignees, roster.SubjectID(s))
	}
	return alloc, nil
}

func (h *Handler) allocationDTO(a roster.Allocation) AllocationDTO {
	if iv, ok := h.Engine.Interval(a.ID); ok {
		return toAllocationDTO(a, &iv)
	}
	return toAllocationDTO(a, nil)
}

// =============================================================================
// SCHEDULE QUERY HANDLERS
// =============================================================================

func (h *Handler) ActiveAt(w http.ResponseWriter, r *http.Request) {
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'at' instant (use RFC 3339)", err)
		return
	}
	writeJSON(w, http.StatusOK, toQueryResultDTO(h.Engine.ActiveAt(at)))
}

func (h *Handler) Overlapping(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window (use RFC 3339 'from' and 'to')", err)
		return
	}
	ids, err := h.Engine.Overlapping(from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}
	writeJSON(w, http.StatusOK, toQueryResultDTO(ids))
}

func (h *Handler) Coverage(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window (use RFC 3339 'from' and 'to')", err)
		return
	}
	cov, err := report.Compute(h.Engine, from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}
	writeJSON(w, http.StatusOK, toCoverageDTO(cov))
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func statusForEngineError(err error) int {
	switch {
	case roster.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrShiftInUse):
		return http.StatusConflict
	case errors.Is(err, roster.ErrDanglingShiftReference):
		return http.StatusUnprocessableEntity
	case roster.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
