package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrInvalidRating      = errors.New("invalid rating")
	ErrInvalidInteraction = errors.New("invalid interaction type")
	ErrEmptyCatalog       = errors.New("catalog is empty")
	ErrNotTrained         = errors.New("model not trained")
)
