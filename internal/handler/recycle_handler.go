package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Progenics2025/LIMS-sub003/internal/model"
	"github.com/Progenics2025/LIMS-sub003/internal/service"
	"github.com/Progenics2025/LIMS-sub003/pkg/apierror"
)

type RecycleHandler struct {
	service *service.RecycleService
}

func NewRecycleHandler(service *service.RecycleService) *RecycleHandler {
	return &RecycleHandler{service: service}
}

func (h *RecycleHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context(), model.RecycleQuery{
		EntityType: strings.TrimSpace(r.URL.Query().Get("entity_type")),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, records)
}

func (h *RecycleHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, record)
}

func (h *RecycleHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.CreateRecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", err.Error()))
		return
	}

	record, err := h.service.Create(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, record)
}

func (h *RecycleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		writeError(w, apierror.BadRequest("recycle id is required", "id"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
