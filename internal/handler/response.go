package handler

import "github.com/actuallystonmai/movie-recommender/internal/domain"

type RecommendationResponse struct {
	UserID          int64                         `json:"user_id"`
	Recommendations []domain.ScoredRecommendation `json:"recommendations"`
	Metadata        domain.RecommendationMeta     `json:"metadata"`
}

type RatingRequest struct {
	MovieID int64    `json:"movie_id"`
	Rating  *float64 `json:"rating"`
}

type InteractionRequest struct {
	MovieID int64                  `json:"movie_id"`
	Type    domain.InteractionType `json:"type"`
}

type FeedbackResponse struct {
	UserID  int64  `json:"user_id"`
	MovieID int64  `json:"movie_id"`
	Status  string `json:"status"`
}

type TrainResponse struct {
	Status string `json:"status"`
	Model  any    `json:"model"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
