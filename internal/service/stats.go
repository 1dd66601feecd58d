package service

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats are usage counters since process start.
type Stats struct {
	Requests         int64   `json:"requests"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
	Fallbacks        int64   `json:"fallbacks"`
	Trainings        int64   `json:"trainings"`
	TrainingFailures int64   `json:"training_failures"`
	LastTrainingMs   int64   `json:"last_training_ms"`
	LastTrainingErr  string  `json:"last_training_error,omitempty"`
}

type usage struct {
	requests    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	fallbacks   atomic.Int64

	mu               sync.Mutex
	trainings        int64
	trainingFailures int64
	lastTraining     time.Duration
	lastTrainingErr  string
}

func (u *usage) recordTraining(d time.Duration, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lastTraining = d
	if err != nil {
		u.trainingFailures++
		u.lastTrainingErr = err.Error()
		return
	}
	u.trainings++
	u.lastTrainingErr = ""
}

func (s *Service) Stats() Stats {
	st := Stats{
		Requests:    s.stats.requests.Load(),
		CacheHits:   s.stats.cacheHits.Load(),
		CacheMisses: s.stats.cacheMisses.Load(),
		Fallbacks:   s.stats.fallbacks.Load(),
	}
	if lookups := st.CacheHits + st.CacheMisses; lookups > 0 {
		st.CacheHitRate = float64(st.CacheHits) / float64(lookups)
	}

	s.stats.mu.Lock()
	st.Trainings = s.stats.trainings
	st.TrainingFailures = s.stats.trainingFailures
	st.LastTrainingMs = s.stats.lastTraining.Milliseconds()
	st.LastTrainingErr = s.stats.lastTrainingErr
	s.stats.mu.Unlock()
	return st
}
