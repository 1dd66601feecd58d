// Package model blends content similarity with collaborative factors into a
// single ranked list per user, and persists the trained result.
package model

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuallystonmai/movie-recommender/internal/collab"
	"github.com/actuallystonmai/movie-recommender/internal/content"
	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

const (
	DefaultContentWeight       = 0.3
	DefaultCollaborativeWeight = 0.7

	// MinFeedbackRecords is the smallest corpus that enables collaborative training.
	MinFeedbackRecords = 10

	coldStartSeeds     = 5
	historySeeds       = 5
	seedNeighbours     = 20
	candidateMultiple  = 3
	defaultPaddedScore = 0.5
)

type Options struct {
	ContentWeight       float64
	CollaborativeWeight float64
	Factors             int
	Content             content.Options
}

func DefaultOptions() Options {
	return Options{
		ContentWeight:       DefaultContentWeight,
		CollaborativeWeight: DefaultCollaborativeWeight,
		Factors:             collab.DefaultFactors,
	}
}

// InferenceError reports a failure while generating recommendations from a
// trained model.
type InferenceError struct {
	Msg string
	Err error
}

func (e *InferenceError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *InferenceError) Unwrap() error { return e.Err }

func IsInferenceError(err error) bool {
	var target *InferenceError
	return errors.As(err, &target)
}

// Hybrid owns one content index and one factorizer from the same training
// pass. A fitted Hybrid is never mutated, so it is safe for concurrent reads.
type Hybrid struct {
	logger zerolog.Logger
	opts   Options

	content *content.Index
	collab  *collab.Factorizer

	catalog   []domain.CatalogItem
	byID      map[int64]int
	byRecency []int

	trained              bool
	hasCollaborativeData bool
	trainedAt            time.Time
}

func NewHybrid(logger zerolog.Logger, opts Options) *Hybrid {
	if opts.ContentWeight < 0 || opts.CollaborativeWeight < 0 {
		opts.ContentWeight, opts.CollaborativeWeight = DefaultContentWeight, DefaultCollaborativeWeight
	}
	return &Hybrid{
		logger: logger.With().Str("component", "model").Logger(),
		opts:   opts,
	}
}

// Fit trains the content index on the full catalog and, when at least
// MinFeedbackRecords usable records exist, the collaborative factorizer.
func (h *Hybrid) Fit(items []domain.CatalogItem, feedback []domain.FeedbackRecord) error {
	start := time.Now()

	idx := content.NewIndex(h.logger, h.opts.Content)
	if err := idx.Build(items); err != nil {
		return fmt.Errorf("build content index: %w", err)
	}
	h.content = idx
	h.setCatalog(items)

	usable := h.filterFeedback(feedback)
	h.collab = nil
	h.hasCollaborativeData = false
	if len(usable) >= MinFeedbackRecords {
		f := collab.NewFactorizer(h.logger, h.opts.Factors)
		if err := f.Build(usable); err != nil {
			return fmt.Errorf("build collaborative model: %w", err)
		}
		h.collab = f
		h.hasCollaborativeData = true
	} else {
		h.logger.Info().
			Int("records", len(usable)).
			Msg("insufficient feedback, trained content-based only")
	}

	h.trained = true
	h.trainedAt = time.Now()

	h.logger.Info().
		Int("items", len(items)).
		Int("feedback", len(usable)).
		Bool("collaborative", h.hasCollaborativeData).
		Dur("duration", time.Since(start)).
		Msg("hybrid model trained")
	return nil
}

// filterFeedback drops records that reference items outside the catalog or
// carry strengths outside the rating scale.
func (h *Hybrid) filterFeedback(feedback []domain.FeedbackRecord) []domain.FeedbackRecord {
	out := make([]domain.FeedbackRecord, 0, len(feedback))
	var unknown, invalid int
	for _, r := range feedback {
		if _, ok := h.byID[r.ItemID]; !ok {
			unknown++
			continue
		}
		if domain.ValidateRating(r.Strength) != nil {
			invalid++
			continue
		}
		out = append(out, r)
	}
	if unknown > 0 || invalid > 0 {
		h.logger.Warn().
			Int("unknown_items", unknown).
			Int("invalid_strength", invalid).
			Msg("dropped feedback records before training")
	}
	return out
}

func (h *Hybrid) setCatalog(items []domain.CatalogItem) {
	h.catalog = items
	h.byID = make(map[int64]int, len(items))
	h.byRecency = make([]int, len(items))
	for i, item := range items {
		h.byID[item.ID] = i
		h.byRecency[i] = i
	}
	// Most recent first; items without a year go last.
	slices.SortStableFunc(h.byRecency, func(a, b int) int {
		ya, yb := items[a].Year, items[b].Year
		switch {
		case ya == nil && yb == nil:
			return 0
		case ya == nil:
			return 1
		case yb == nil:
			return -1
		}
		return cmp.Compare(*yb, *ya)
	})
}

func (h *Hybrid) IsTrained() bool            { return h != nil && h.trained }
func (h *Hybrid) HasCollaborativeData() bool { return h != nil && h.hasCollaborativeData }
func (h *Hybrid) TrainedAt() time.Time       { return h.trainedAt }
func (h *Hybrid) CatalogSize() int           { return len(h.catalog) }

// KnowsUser reports whether the collaborative side has any history for the user.
func (h *Hybrid) KnowsUser(userID int64) bool {
	return h.hasCollaborativeData && h.collab.HasUser(userID)
}

// CollaborativeSize returns the number of users and items in the factor model.
func (h *Hybrid) CollaborativeSize() (users, items int) {
	if !h.hasCollaborativeData {
		return 0, 0
	}
	return h.collab.NumUsers(), h.collab.NumItems()
}

// RecommendForUser returns up to n ranked recommendations for a user.
// New users and sparse corpora fall back to content-seeded recommendations.
func (h *Hybrid) RecommendForUser(userID int64, n int) ([]domain.ScoredRecommendation, error) {
	if !h.IsTrained() {
		return nil, domain.ErrNotTrained
	}
	if n <= 0 {
		return nil, nil
	}

	if !h.hasCollaborativeData {
		return h.contentSeeded(n), nil
	}

	candidates := h.collab.Recommend(userID, n*candidateMultiple, true)
	if len(candidates) == 0 {
		return h.contentSeeded(n), nil
	}

	return h.blend(userID, candidates, n), nil
}

func (h *Hybrid) blend(userID int64, candidates []collab.Scored, n int) []domain.ScoredRecommendation {
	history := h.collab.History(userID)
	seen := make(map[int64]struct{}, len(history))
	for _, s := range history {
		seen[s.ItemID] = struct{}{}
	}

	scores := newScoreBoard()
	for _, c := range candidates {
		scores.set(c.ItemID, h.opts.CollaborativeWeight*c.Score)
	}

	contentScores := newScoreBoard()
	for _, seed := range history[:min(historySeeds, len(history))] {
		for _, sim := range h.content.SimilarItems(seed.ItemID, seedNeighbours) {
			if _, ok := seen[sim.ItemID]; ok {
				continue
			}
			contentScores.max(sim.ItemID, sim.Score)
		}
	}
	for _, id := range contentScores.order {
		scores.add(id, h.opts.ContentWeight*contentScores.values[id])
	}

	return h.attachMetadata(scores.top(n))
}

// contentSeeded expands the most recent catalog items through the content
// index and pads with further recent items so a non-empty catalog always
// yields min(n, catalog size) results.
func (h *Hybrid) contentSeeded(n int) []domain.ScoredRecommendation {
	if len(h.catalog) == 0 {
		return nil
	}

	scores := newScoreBoard()
	for _, pos := range h.byRecency[:min(coldStartSeeds, len(h.byRecency))] {
		for _, sim := range h.content.SimilarItems(h.catalog[pos].ID, n) {
			scores.max(sim.ItemID, sim.Score)
		}
	}

	for _, pos := range h.byRecency {
		if len(scores.order) >= n {
			break
		}
		id := h.catalog[pos].ID
		if _, ok := scores.values[id]; !ok {
			scores.set(id, defaultPaddedScore)
		}
	}

	return h.attachMetadata(scores.top(n))
}

func (h *Hybrid) attachMetadata(ranked []scoredID) []domain.ScoredRecommendation {
	out := make([]domain.ScoredRecommendation, 0, len(ranked))
	for _, r := range ranked {
		pos, ok := h.byID[r.id]
		if !ok {
			h.logger.Warn().Int64("item_id", r.id).Msg("recommended item missing from catalog snapshot")
			continue
		}
		item := h.catalog[pos]
		out = append(out, domain.ScoredRecommendation{
			ItemID: item.ID,
			Score:  r.score,
			Title:  item.Title,
			Genres: item.Genres,
			Year:   item.Year,
		})
	}
	return out
}

// LogFeedback records a feedback event. The model is not updated online.
func (h *Hybrid) LogFeedback(userID, itemID int64, strength float64) {
	h.logger.Info().
		Int64("user_id", userID).
		Int64("item_id", itemID).
		Float64("strength", strength).
		Msg("feedback received")
}

type scoredID struct {
	id    int64
	score float64
}

// scoreBoard accumulates scores per item while remembering first-seen order.
type scoreBoard struct {
	values map[int64]float64
	order  []int64
}

func newScoreBoard() *scoreBoard {
	return &scoreBoard{values: make(map[int64]float64)}
}

func (b *scoreBoard) set(id int64, v float64) {
	if _, ok := b.values[id]; !ok {
		b.order = append(b.order, id)
	}
	b.values[id] = v
}

func (b *scoreBoard) add(id int64, v float64) {
	b.set(id, b.values[id]+v)
}

func (b *scoreBoard) max(id int64, v float64) {
	if cur, ok := b.values[id]; !ok || v > cur {
		b.set(id, v)
	}
}

// top returns the n best entries, ties kept in first-seen order.
func (b *scoreBoard) top(n int) []scoredID {
	out := make([]scoredID, len(b.order))
	for i, id := range b.order {
		out[i] = scoredID{id: id, score: b.values[id]}
	}
	slices.SortStableFunc(out, func(x, y scoredID) int {
		return cmp.Compare(y.score, x.score)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
