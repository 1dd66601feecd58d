package domain

import (
	"errors"
	"math"
	"testing"
)

func TestValidateRating(t *testing.T) {
	valid := []float64{0.5, 1, 3.5, 5.0}
	for _, r := range valid {
		if err := ValidateRating(r); err != nil {
			t.Errorf("rating %v: unexpected error %v", r, err)
		}
	}

	invalid := []float64{0.3, 0, -1, 5.01, math.NaN()}
	for _, r := range invalid {
		err := ValidateRating(r)
		if !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %v: expected ErrInvalidRating, got %v", r, err)
		}
	}
}

func TestImplicitStrength(t *testing.T) {
	like, err := InteractionLike.ImplicitStrength()
	if err != nil || like != 4.0 {
		t.Errorf("like: got %v, %v", like, err)
	}
	view, _ := InteractionView.ImplicitStrength()
	if view != 1.0 {
		t.Errorf("view: expected 1.0, got %v", view)
	}

	if _, err := InteractionType("rewind").ImplicitStrength(); !errors.Is(err, ErrInvalidInteraction) {
		t.Errorf("expected ErrInvalidInteraction, got %v", err)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" Action | |Drama|")
	if len(got) != 2 || got[0] != "Action" || got[1] != "Drama" {
		t.Errorf("unexpected split: %q", got)
	}
	if SplitList("") != nil {
		t.Error("empty field should split to nil")
	}
}
