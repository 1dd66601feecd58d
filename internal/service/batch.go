package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

const batchRecLimit = 10

func (s *Service) GetBatchRecommendations(ctx context.Context, page, limit int) (*domain.BatchResponse, error) {
	start := time.Now()

	// Fetch paginated user IDs
	userIDs, err := s.store.GetUserIDsPaginated(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch user ids: %w", err)
	}

	// Fetch total user
	totalUsers, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	results := s.recommendForUsers(ctx, userIDs, batchRecLimit)

	summary := summarize(results)
	summary.ProcessingTimeMs = time.Since(start).Milliseconds()

	return &domain.BatchResponse{
		Page:       page,
		Limit:      limit,
		TotalUsers: totalUsers,
		Results:    results,
		Summary:    summary,
		Metadata: domain.BatchMeta{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// RecommendForRatedUsers runs the recommendation path for every user with at
// least one rating.
func (s *Service) RecommendForRatedUsers(ctx context.Context, count int) ([]domain.BatchUserResult, error) {
	userIDs, err := s.store.GetRatedUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch rated user ids: %w", err)
	}
	return s.recommendForUsers(ctx, userIDs, count), nil
}

// recommendForUsers fans out over userIDs with bounded concurrency. Results
// keep the input order.
func (s *Service) recommendForUsers(ctx context.Context, userIDs []int64, count int) []domain.BatchUserResult {
	results := make([]domain.BatchUserResult, len(userIDs))

	var g errgroup.Group
	g.SetLimit(s.opts.BatchConcurrency)
	for i, userID := range userIDs {
		g.Go(func() error {
			results[i] = s.processUserForBatch(ctx, userID, count)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Generates recommendations for a single user, capturing errors.
func (s *Service) processUserForBatch(ctx context.Context, userID int64, count int) domain.BatchUserResult {
	if err := ctx.Err(); err != nil {
		code, msg := categorizeError(err)
		return domain.BatchUserResult{
			UserID:  userID,
			Status:  domain.StatusFailed,
			Error:   code,
			Message: msg,
		}
	}

	result := s.GetRecommendations(ctx, userID, count)
	return domain.BatchUserResult{
		UserID:          userID,
		Recommendations: result.Recommendations,
		Status:          domain.StatusSuccess,
	}
}

func summarize(results []domain.BatchUserResult) domain.BatchSummary {
	var summary domain.BatchSummary
	for _, r := range results {
		if r.Status == domain.StatusSuccess {
			summary.SuccessCount++
		} else {
			summary.FailedCount++
		}
	}
	return summary
}

// Handle response error
func categorizeError(err error) (string, string) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "request_timeout", "request timed out before recommendations were generated"
	}
	return "internal_error", "an unexpected error occurred"
}
