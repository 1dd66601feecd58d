package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

// POST /admin/train?force=true
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	if err := h.service.Train(r.Context(), force); err != nil {
		if errors.Is(err, domain.ErrEmptyCatalog) {
			writeError(w, http.StatusConflict, "empty_catalog", "No movies in the catalog, cannot train")
			return
		}
		writeError(w, http.StatusInternalServerError, "training_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TrainResponse{Status: "trained", Model: h.service.Info()})
}

// GET /admin/model
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Info())
}

// DELETE /admin/cache?user_id=N
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if s := r.URL.Query().Get("user_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid user_id parameter")
			return
		}
		userID = &id
	}

	if err := h.service.ClearCache(r.Context(), userID); err != nil {
		h.logger.Error().Err(err).Msg("could not clear cache")
		writeError(w, http.StatusInternalServerError, "cache_error", "Could not clear the recommendation cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
