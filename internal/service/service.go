// Package service owns the installed recommendation model: it decides when to
// retrain, persists and restores trained artifacts, and serves cached,
// model-generated or popularity-fallback recommendation lists.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/actuallystonmai/movie-recommender/internal/cache"
	"github.com/actuallystonmai/movie-recommender/internal/domain"
	"github.com/actuallystonmai/movie-recommender/internal/metrics"
	"github.com/actuallystonmai/movie-recommender/internal/model"
)

const (
	defaultLimit  = 10
	maxLimit      = 50
	fallbackScore = 0.5
	epochStripes  = 64
)

// Store is the persistence the service reads snapshots from and writes
// feedback to.
type Store interface {
	ListCatalog(ctx context.Context) ([]domain.CatalogItem, error)
	ListFeedback(ctx context.Context) ([]domain.FeedbackRecord, error)
	PopularItems(ctx context.Context, limit int) ([]domain.CatalogItem, error)

	MovieExists(ctx context.Context, movieID int64) (bool, error)
	UpsertRating(ctx context.Context, rating domain.Rating) error
	AddInteraction(ctx context.Context, in domain.Interaction) error

	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)
	GetUserIDsPaginated(ctx context.Context, page, limit int) ([]int64, error)
	GetRatedUserIDs(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int, error)
}

// ArtifactStore persists the trained model between restarts.
type ArtifactStore interface {
	Save(a *model.Artifact) error
	Load() (*model.Artifact, error)
	Location() string
	ModifiedAt() (time.Time, error)
}

type Options struct {
	CacheTTL         time.Duration
	FallbackCacheTTL time.Duration
	StaleAfter       time.Duration
	// TrainWaitTimeout bounds how long a recommendation request waits for a
	// training run it triggered. Zero waits for completion.
	TrainWaitTimeout time.Duration
	BatchConcurrency int
	Model            model.Options
}

func DefaultOptions() Options {
	return Options{
		CacheTTL:         60 * time.Minute,
		FallbackCacheTTL: 30 * time.Minute,
		StaleAfter:       24 * time.Hour,
		BatchConcurrency: 10,
		Model:            model.DefaultOptions(),
	}
}

type Service struct {
	logger    zerolog.Logger
	store     Store
	cache     *cache.Cache
	artifacts ArtifactStore
	opts      Options
	now       func() time.Time

	// current is swapped whole after a successful fit; readers never lock.
	current atomic.Pointer[model.Hybrid]
	trainMu sync.Mutex

	// Invalidation counters. A list built while either counter moved is not
	// cached.
	epoch      atomic.Uint64
	userEpochs [epochStripes]atomic.Uint64

	stats usage
}

func NewService(logger zerolog.Logger, store Store, c *cache.Cache, artifacts ArtifactStore, opts Options) *Service {
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = DefaultOptions().BatchConcurrency
	}
	return &Service{
		logger:    logger.With().Str("component", "service").Logger(),
		store:     store,
		cache:     c,
		artifacts: artifacts,
		opts:      opts,
		now:       time.Now,
	}
}

// Initialize installs the persisted artifact when it loads cleanly, and
// trains otherwise.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.LoadPersisted(); err != nil {
		s.logger.Warn().Err(err).Str("path", s.artifacts.Location()).Msg("could not load model artifact, training a new one")
	} else if !s.ShouldRetrain() {
		return nil
	}
	return s.Train(ctx, false)
}

// LoadPersisted installs the persisted artifact without training.
func (s *Service) LoadPersisted() error {
	a, err := s.artifacts.Load()
	if err != nil {
		return err
	}
	h, err := model.FromArtifact(s.logger, s.opts.Model, a)
	if err != nil {
		return err
	}
	s.install(h)
	s.logger.Info().
		Time("trained_at", h.TrainedAt()).
		Bool("collaborative", h.HasCollaborativeData()).
		Msg("loaded model artifact")
	return nil
}

// Current returns the installed model, or nil before the first training.
func (s *Service) Current() *model.Hybrid {
	return s.current.Load()
}

// generation changes whenever the user's cached lists are invalidated.
func (s *Service) generation(userID int64) uint64 {
	return s.epoch.Load() + s.userEpochs[uint64(userID)%epochStripes].Load()
}

func (s *Service) invalidateUser(userID int64) {
	s.userEpochs[uint64(userID)%epochStripes].Add(1)
}

func (s *Service) install(h *model.Hybrid) {
	s.current.Store(h)
	users, items := h.CollaborativeSize()
	metrics.ModelInfo.WithLabelValues("catalog").Set(float64(h.CatalogSize()))
	metrics.ModelInfo.WithLabelValues("users").Set(float64(users))
	metrics.ModelInfo.WithLabelValues("items").Set(float64(items))
}

// ShouldRetrain reports whether no model is installed or the installed one is
// older than the staleness threshold.
func (s *Service) ShouldRetrain() bool {
	h := s.current.Load()
	if !h.IsTrained() {
		return true
	}
	return s.now().Sub(h.TrainedAt()) > s.opts.StaleAfter
}

// Train fits a new model from fresh snapshots and installs it. Concurrent
// callers serialize on the training lock; a caller that waited re-checks
// staleness and returns without training when the model is already fresh,
// unless force is set. On failure the previously installed model stays.
func (s *Service) Train(ctx context.Context, force bool) error {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	if !force && !s.ShouldRetrain() {
		s.logger.Debug().Msg("model already fresh, skipping training")
		return nil
	}

	// Training is not cancellable mid-flight.
	ctx = context.WithoutCancel(ctx)
	start := s.now()
	s.logger.Info().Bool("force", force).Msg("starting model training")

	err := s.train(ctx)
	elapsed := s.now().Sub(start)
	s.stats.recordTraining(elapsed, err)
	metrics.TrainingDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("failure").Inc()
		s.logger.Error().Err(err).Dur("duration", elapsed).Msg("model training failed")
		return err
	}
	metrics.TrainingRuns.WithLabelValues("success").Inc()
	s.logger.Info().Dur("duration", elapsed).Msg("model training completed")
	return nil
}

func (s *Service) train(ctx context.Context) error {
	var (
		items    []domain.CatalogItem
		feedback []domain.FeedbackRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.ListCatalog(gctx)
		if err != nil {
			return fmt.Errorf("load catalog snapshot: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		feedback, err = s.store.ListFeedback(gctx)
		if err != nil {
			return fmt.Errorf("load feedback snapshot: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if len(items) == 0 {
		return domain.ErrEmptyCatalog
	}
	if len(feedback) == 0 {
		s.logger.Warn().Msg("no feedback recorded, training content-based only")
	}

	h := model.NewHybrid(s.logger, s.opts.Model)
	if err := h.Fit(items, feedback); err != nil {
		return fmt.Errorf("fit hybrid model: %w", err)
	}

	if a, err := h.Artifact(); err != nil {
		s.logger.Error().Err(err).Msg("could not capture model artifact")
	} else if err := s.artifacts.Save(a); err != nil {
		s.logger.Error().Err(err).Str("path", s.artifacts.Location()).Msg("could not persist model artifact")
	} else {
		s.logger.Info().Str("path", s.artifacts.Location()).Msg("model artifact saved")
	}

	s.install(h)
	s.epoch.Add(1)

	if err := s.cache.ClearAll(ctx); err != nil {
		metrics.CacheErrors.WithLabelValues("clear").Inc()
		s.logger.Warn().Err(err).Msg("could not clear recommendation cache after training")
	}
	return nil
}

// ensureFresh retrains a stale model on behalf of a request. With a wait
// timeout the request gives up waiting after the timeout and training
// finishes in the background.
func (s *Service) ensureFresh(ctx context.Context) {
	if !s.ShouldRetrain() {
		return
	}
	if s.opts.TrainWaitTimeout <= 0 {
		_ = s.Train(ctx, false)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Train(context.WithoutCancel(ctx), false)
	}()

	timer := time.NewTimer(s.opts.TrainWaitTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn().Dur("timeout", s.opts.TrainWaitTimeout).Msg("training still running, serving installed model")
	case <-ctx.Done():
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}

// GetRecommendations serves up to limit recommendations for a user. It never
// fails: cache or store errors and failures inside the model degrade to the
// popularity fallback.
func (s *Service) GetRecommendations(ctx context.Context, userID int64, limit int) *domain.RecommendationResult {
	limit = clampLimit(limit)
	s.stats.requests.Add(1)

	cached, found, err := s.cache.Get(ctx, userID, limit)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("cache get failed, treating as miss")
	}
	if found && len(cached) > 0 {
		s.stats.cacheHits.Add(1)
		metrics.CacheHits.Inc()
		metrics.RecommendationRequests.WithLabelValues(string(domain.SourceCache)).Inc()
		s.logger.Debug().Int64("user_id", userID).Int("n", limit).Msg("cache hit")
		return &domain.RecommendationResult{
			Recommendations: cached,
			CacheHit:        true,
			Source:          domain.SourceCache,
		}
	}
	s.stats.cacheMisses.Add(1)
	metrics.CacheMisses.Inc()

	s.ensureFresh(ctx)

	gen := s.generation(userID)
	recs, source := s.generate(ctx, userID, limit)
	ttl := s.opts.CacheTTL
	if source == domain.SourceFallback {
		ttl = s.opts.FallbackCacheTTL
		s.stats.fallbacks.Add(1)
	}
	metrics.RecommendationRequests.WithLabelValues(string(source)).Inc()

	s.cacheList(ctx, userID, limit, recs, ttl, gen)

	return &domain.RecommendationResult{
		Recommendations: recs,
		Source:          source,
	}
}

// cacheList stores a generated list unless the user's lists were invalidated
// since gen was taken. An invalidation that lands during the write removes
// the entry again.
func (s *Service) cacheList(ctx context.Context, userID int64, limit int, recs []domain.ScoredRecommendation, ttl time.Duration, gen uint64) {
	if s.generation(userID) != gen {
		s.logger.Debug().Int64("user_id", userID).Msg("cache invalidated during generation, not storing")
		return
	}
	if err := s.cache.Set(ctx, userID, limit, recs, ttl); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("cache set failed")
		return
	}
	if s.generation(userID) == gen {
		return
	}
	if err := s.cache.Delete(ctx, userID, limit); err != nil {
		metrics.CacheErrors.WithLabelValues("invalidate").Inc()
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("could not drop list invalidated during write")
	}
}

func (s *Service) generate(ctx context.Context, userID int64, limit int) (recs []domain.ScoredRecommendation, source domain.RecommendationSource) {
	h := s.current.Load()
	if !h.IsTrained() {
		s.logger.Info().Int64("user_id", userID).Msg("no trained model available, using fallback")
		return s.fallback(ctx, limit), domain.SourceFallback
	}
	if !h.KnowsUser(userID) {
		s.logger.Info().Int64("user_id", userID).Msg("new user, using fallback")
		return s.fallback(ctx, limit), domain.SourceFallback
	}

	defer func() {
		if r := recover(); r != nil {
			err := &model.InferenceError{Msg: fmt.Sprintf("panic during inference: %v", r)}
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("recommendation generation failed, using fallback")
			recs, source = s.fallback(ctx, limit), domain.SourceFallback
		}
	}()

	recs, err := h.RecommendForUser(userID, limit)
	if err != nil {
		err = &model.InferenceError{Msg: "recommend for user", Err: err}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("recommendation generation failed, using fallback")
		return s.fallback(ctx, limit), domain.SourceFallback
	}
	if len(recs) == 0 {
		s.logger.Info().Int64("user_id", userID).Msg("no recommendations found, using fallback")
		return s.fallback(ctx, limit), domain.SourceFallback
	}
	return recs, domain.SourceModel
}

// fallback lists the best-rated catalog items at a neutral score. A store
// failure yields an empty list.
func (s *Service) fallback(ctx context.Context, limit int) []domain.ScoredRecommendation {
	items, err := s.store.PopularItems(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("could not load fallback recommendations")
		return []domain.ScoredRecommendation{}
	}
	out := make([]domain.ScoredRecommendation, 0, len(items))
	for _, item := range items {
		out = append(out, domain.ScoredRecommendation{
			ItemID: item.ID,
			Score:  fallbackScore,
			Title:  item.Title,
			Genres: item.Genres,
			Year:   item.Year,
		})
	}
	return out
}

// RecordFeedbackUpdate drops every cached list of the user and forwards the
// event to the model log. The model is not retrained.
func (s *Service) RecordFeedbackUpdate(ctx context.Context, userID, itemID int64, strength float64) {
	s.invalidateUser(userID)
	if err := s.cache.ClearUserCache(ctx, userID); err != nil {
		metrics.CacheErrors.WithLabelValues("invalidate").Inc()
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("cache invalidation failed")
	}
	metrics.FeedbackUpdates.Inc()
	if h := s.current.Load(); h != nil {
		h.LogFeedback(userID, itemID, strength)
	}
}

// RateMovie validates and persists an explicit rating, then invalidates the
// user's cached lists.
func (s *Service) RateMovie(ctx context.Context, userID, movieID int64, rating float64) error {
	if err := domain.ValidateRating(rating); err != nil {
		return err
	}
	if err := s.requireTargets(ctx, userID, movieID); err != nil {
		return err
	}
	if err := s.store.UpsertRating(ctx, domain.Rating{UserID: userID, MovieID: movieID, Rating: rating}); err != nil {
		return err
	}
	s.RecordFeedbackUpdate(ctx, userID, movieID, rating)
	return nil
}

// RecordInteraction persists an implicit interaction and invalidates the
// user's cached lists.
func (s *Service) RecordInteraction(ctx context.Context, userID, movieID int64, kind domain.InteractionType) error {
	strength, err := kind.ImplicitStrength()
	if err != nil {
		return err
	}
	if err := s.requireTargets(ctx, userID, movieID); err != nil {
		return err
	}
	if err := s.store.AddInteraction(ctx, domain.Interaction{UserID: userID, MovieID: movieID, Type: kind}); err != nil {
		return err
	}
	s.RecordFeedbackUpdate(ctx, userID, movieID, strength)
	return nil
}

// requireTargets checks that both sides of a feedback event exist.
func (s *Service) requireTargets(ctx context.Context, userID, movieID int64) error {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}
	ok, err := s.store.MovieExists(ctx, movieID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: id %d", domain.ErrItemNotFound, movieID)
	}
	return nil
}

// ClearCache drops one user's cached lists, or every list when userID is nil.
func (s *Service) ClearCache(ctx context.Context, userID *int64) error {
	if userID != nil {
		s.invalidateUser(*userID)
		return s.cache.ClearUserCache(ctx, *userID)
	}
	s.epoch.Add(1)
	return s.cache.ClearAll(ctx)
}

// ModelInfo describes the installed model.
type ModelInfo struct {
	Trained              bool       `json:"trained"`
	HasCollaborativeData bool       `json:"has_collaborative_data"`
	CatalogSize          int        `json:"catalog_size"`
	Users                int        `json:"users"`
	Items                int        `json:"items"`
	TrainedAt            *time.Time `json:"trained_at,omitempty"`
	Stale                bool       `json:"stale"`
	ArtifactPath         string     `json:"artifact_path"`
	ArtifactSavedAt      *time.Time `json:"artifact_saved_at,omitempty"`
	Stats                Stats      `json:"stats"`
}

func (s *Service) Info() ModelInfo {
	info := ModelInfo{
		Stale:        s.ShouldRetrain(),
		ArtifactPath: s.artifacts.Location(),
		Stats:        s.Stats(),
	}
	if savedAt, err := s.artifacts.ModifiedAt(); err == nil {
		info.ArtifactSavedAt = &savedAt
	}
	h := s.current.Load()
	if !h.IsTrained() {
		return info
	}
	trainedAt := h.TrainedAt()
	info.Trained = true
	info.HasCollaborativeData = h.HasCollaborativeData()
	info.CatalogSize = h.CatalogSize()
	info.Users, info.Items = h.CollaborativeSize()
	info.TrainedAt = &trainedAt
	return info
}
