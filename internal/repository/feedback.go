package repository

import (
	"context"
	"fmt"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

// ListFeedback returns the feedback snapshot: implicit interactions first
// (oldest first), then explicit ratings, so an explicit rating wins
// last-write-wins against implicit signals for the same pair.
func (r *Repository) ListFeedback(ctx context.Context) ([]domain.FeedbackRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, movie_id, interaction_type
		FROM user_interactions
		ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var records []domain.FeedbackRecord
	for rows.Next() {
		var rec domain.FeedbackRecord
		var kind string
		if err := rows.Scan(&rec.UserID, &rec.ItemID, &kind); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		strength, err := domain.InteractionType(kind).ImplicitStrength()
		if err != nil {
			continue
		}
		rec.Strength = strength
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over interactions: %w", err)
	}

	ratings, err := r.pool.Query(ctx,
		`SELECT user_id, movie_id, rating
		FROM ratings
		ORDER BY updated_at, user_id, movie_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer ratings.Close()

	for ratings.Next() {
		var rec domain.FeedbackRecord
		if err := ratings.Scan(&rec.UserID, &rec.ItemID, &rec.Strength); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		records = append(records, rec)
	}
	if err := ratings.Err(); err != nil {
		return nil, fmt.Errorf("iterate over ratings: %w", err)
	}
	return records, nil
}

// UpsertRating stores an explicit rating; a second rating for the same pair
// overwrites the first.
func (r *Repository) UpsertRating(ctx context.Context, rating domain.Rating) error {
	if err := domain.ValidateRating(rating.Rating); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ratings (user_id, movie_id, rating, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, movie_id)
		DO UPDATE SET rating = EXCLUDED.rating, updated_at = EXCLUDED.updated_at`,
		rating.UserID, rating.MovieID, rating.Rating,
	)
	if err != nil {
		return fmt.Errorf("upsert rating user=%d movie=%d: %w", rating.UserID, rating.MovieID, err)
	}
	return nil
}

func (r *Repository) AddInteraction(ctx context.Context, in domain.Interaction) error {
	if _, err := in.Type.ImplicitStrength(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_interactions (user_id, movie_id, interaction_type, created_at)
		VALUES ($1, $2, $3, NOW())`,
		in.UserID, in.MovieID, string(in.Type),
	)
	if err != nil {
		return fmt.Errorf("insert interaction user=%d movie=%d: %w", in.UserID, in.MovieID, err)
	}
	return nil
}
