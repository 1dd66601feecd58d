package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

// POST /users/{userID}/ratings
func (h *Handler) PostRating(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid user_id parameter")
		return
	}

	var req RatingRequest
	if err := decodeJSON(r, &req); err != nil || req.MovieID <= 0 || req.Rating == nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Body must contain movie_id and rating")
		return
	}

	err := h.service.RateMovie(r.Context(), userID, req.MovieID, *req.Rating)
	if err != nil {
		h.writeFeedbackError(w, err, req.MovieID)
		return
	}

	writeJSON(w, http.StatusCreated, FeedbackResponse{UserID: userID, MovieID: req.MovieID, Status: "recorded"})
}

// POST /users/{userID}/interactions
func (h *Handler) PostInteraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid user_id parameter")
		return
	}

	var req InteractionRequest
	if err := decodeJSON(r, &req); err != nil || req.MovieID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_body", "Body must contain movie_id and type")
		return
	}

	err := h.service.RecordInteraction(r.Context(), userID, req.MovieID, req.Type)
	if err != nil {
		h.writeFeedbackError(w, err, req.MovieID)
		return
	}

	writeJSON(w, http.StatusCreated, FeedbackResponse{UserID: userID, MovieID: req.MovieID, Status: "recorded"})
}

func (h *Handler) writeFeedbackError(w http.ResponseWriter, err error, movieID int64) {
	switch {
	case errors.Is(err, domain.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "invalid_rating",
			fmt.Sprintf("Rating must be between %.1f and %.1f", domain.MinRating, domain.MaxRating))
	case errors.Is(err, domain.ErrInvalidInteraction):
		writeError(w, http.StatusBadRequest, "invalid_interaction", err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", "User does not exist")
	case errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "movie_not_found",
			fmt.Sprintf("Movie with ID %d does not exist", movieID))
	default:
		h.logger.Error().Err(err).Int64("item_id", movieID).Msg("could not record feedback")
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
