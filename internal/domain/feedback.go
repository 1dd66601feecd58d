package domain

import (
	"fmt"
	"time"
)

const (
	MinRating = 0.5
	MaxRating = 5.0
)

// FeedbackRecord is a single (user, item, strength) signal. Strength is either
// an explicit rating or the implicit weight of an interaction type.
type FeedbackRecord struct {
	UserID   int64   `json:"user_id"`
	ItemID   int64   `json:"item_id"`
	Strength float64 `json:"strength"`
}

type InteractionType string

const (
	InteractionView            InteractionType = "view"
	InteractionLike            InteractionType = "like"
	InteractionDislike         InteractionType = "dislike"
	InteractionShare           InteractionType = "share"
	InteractionWatchlistAdd    InteractionType = "watchlist_add"
	InteractionWatchlistRemove InteractionType = "watchlist_remove"
)

var implicitStrengths = map[InteractionType]float64{
	InteractionView:            1.0,
	InteractionLike:            4.0,
	InteractionDislike:         2.0,
	InteractionShare:           3.0,
	InteractionWatchlistAdd:    3.0,
	InteractionWatchlistRemove: 3.0,
}

// ImplicitStrength returns the fixed feedback strength for an interaction type.
func (t InteractionType) ImplicitStrength() (float64, error) {
	s, ok := implicitStrengths[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInteraction, string(t))
	}
	return s, nil
}

// ValidateRating checks an explicit rating against the inclusive [0.5, 5.0] scale.
func ValidateRating(r float64) error {
	if r < MinRating || r > MaxRating || r != r {
		return fmt.Errorf("%w: %v not in [%.1f, %.1f]", ErrInvalidRating, r, MinRating, MaxRating)
	}
	return nil
}

type Rating struct {
	UserID    int64     `json:"user_id"`
	MovieID   int64     `json:"movie_id"`
	Rating    float64   `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Interaction struct {
	UserID    int64           `json:"user_id"`
	MovieID   int64           `json:"movie_id"`
	Type      InteractionType `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
}
