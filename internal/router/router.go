package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/actuallystonmai/movie-recommender/internal/handler"
)

func Setup(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/users/{userID}/recommendations", h.GetRecommendations)
		r.Post("/users/{userID}/ratings", h.PostRating)
		r.Post("/users/{userID}/interactions", h.PostInteraction)
		r.Get("/recommendations/batch", h.GetBatchRecommendations)
	})

	// Training can outlast the request timeout.
	r.Route("/admin", func(r chi.Router) {
		r.Post("/train", h.Train)
		r.Get("/model", h.ModelInfo)
		r.Delete("/cache", h.ClearCache)
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
