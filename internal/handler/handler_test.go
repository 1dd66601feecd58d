package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/movie-recommender/internal/cache"
	"github.com/actuallystonmai/movie-recommender/internal/domain"
	"github.com/actuallystonmai/movie-recommender/internal/handler"
	"github.com/actuallystonmai/movie-recommender/internal/model"
	"github.com/actuallystonmai/movie-recommender/internal/router"
	"github.com/actuallystonmai/movie-recommender/internal/service"
)

type memoryStore struct {
	mu       sync.Mutex
	catalog  []domain.CatalogItem
	feedback []domain.FeedbackRecord
	ratings  []domain.Rating
}

func (m *memoryStore) ListCatalog(context.Context) ([]domain.CatalogItem, error) {
	return m.catalog, nil
}

func (m *memoryStore) ListFeedback(context.Context) ([]domain.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feedback, nil
}

func (m *memoryStore) PopularItems(_ context.Context, limit int) ([]domain.CatalogItem, error) {
	return m.catalog[:min(limit, len(m.catalog))], nil
}

func (m *memoryStore) MovieExists(_ context.Context, id int64) (bool, error) {
	for _, item := range m.catalog {
		if item.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) UpsertRating(_ context.Context, r domain.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings = append(m.ratings, r)
	return nil
}

func (m *memoryStore) AddInteraction(context.Context, domain.Interaction) error { return nil }

func (m *memoryStore) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	if id > 4 {
		return nil, domain.ErrUserNotFound
	}
	return &domain.User{ID: id, Username: "user"}, nil
}

func (m *memoryStore) GetUserIDsPaginated(_ context.Context, page, limit int) ([]int64, error) {
	ids := []int64{1, 2, 3, 4}
	start := min((page-1)*limit, len(ids))
	return ids[start:min(start+limit, len(ids))], nil
}

func (m *memoryStore) GetRatedUserIDs(context.Context) ([]int64, error) {
	return []int64{1, 2, 3, 4}, nil
}
func (m *memoryStore) CountUsers(context.Context) (int, error) { return 4, nil }

func newServer(t *testing.T) (*httptest.Server, *memoryStore) {
	t.Helper()
	var items []domain.CatalogItem
	for i, g := range []string{"Horror", "Comedy", "Western", "Crime", "Animation", "Drama"} {
		items = append(items, domain.CatalogItem{ID: int64(i + 1), Title: g + " film", Genres: g})
	}
	store := &memoryStore{
		catalog: items,
		feedback: []domain.FeedbackRecord{
			{UserID: 1, ItemID: 1, Strength: 5}, {UserID: 1, ItemID: 2, Strength: 4},
			{UserID: 2, ItemID: 1, Strength: 4}, {UserID: 2, ItemID: 3, Strength: 5},
			{UserID: 2, ItemID: 5, Strength: 3}, {UserID: 3, ItemID: 2, Strength: 3},
			{UserID: 3, ItemID: 4, Strength: 4}, {UserID: 3, ItemID: 5, Strength: 5},
			{UserID: 4, ItemID: 3, Strength: 3}, {UserID: 4, ItemID: 6, Strength: 5},
		},
	}
	svc := service.NewService(zerolog.Nop(), store, cache.NewCache(cache.NewMemoryStore()),
		model.NewFileStore(filepath.Join(t.TempDir(), "model.bin")), service.DefaultOptions())
	srv := httptest.NewServer(router.Setup(handler.NewHandler(svc, zerolog.Nop())))
	t.Cleanup(srv.Close)
	return srv, store
}

func TestGetRecommendations(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/users/1/recommendations?limit=3")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body handler.RecommendationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.UserID != 1 || len(body.Recommendations) != 3 || body.Metadata.TotalCount != 3 {
		t.Errorf("unexpected response: %+v", body)
	}
	for _, r := range body.Recommendations {
		if r.ItemID == 1 || r.ItemID == 2 {
			t.Errorf("recommended already rated item %d", r.ItemID)
		}
	}
}

func TestGetRecommendationsValidation(t *testing.T) {
	srv, _ := newServer(t)
	for _, path := range []string{
		"/users/abc/recommendations",
		"/users/0/recommendations",
		"/users/1/recommendations?limit=0",
		"/users/1/recommendations?limit=51",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, resp.StatusCode)
		}
	}
}

func TestPostRating(t *testing.T) {
	srv, store := newServer(t)

	tests := []struct {
		name string
		user string
		body string
		want int
	}{
		{"valid", "1", `{"movie_id": 3, "rating": 4.5}`, http.StatusCreated},
		{"below scale", "1", `{"movie_id": 3, "rating": 0.4}`, http.StatusBadRequest},
		{"above scale", "1", `{"movie_id": 3, "rating": 5.5}`, http.StatusBadRequest},
		{"missing rating", "1", `{"movie_id": 3}`, http.StatusBadRequest},
		{"unknown movie", "1", `{"movie_id": 99, "rating": 3}`, http.StatusNotFound},
		{"unknown user", "9", `{"movie_id": 3, "rating": 3}`, http.StatusNotFound},
		{"malformed", "1", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/users/"+tt.user+"/ratings", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	if len(store.ratings) != 1 || store.ratings[0].Rating != 4.5 {
		t.Errorf("expected exactly the valid rating stored, got %+v", store.ratings)
	}
}

func TestPostInteraction(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Post(srv.URL+"/users/1/interactions", "application/json",
		strings.NewReader(`{"movie_id": 2, "type": "share"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/users/1/interactions", "application/json",
		strings.NewReader(`{"movie_id": 2, "type": "bookmark"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", resp.StatusCode)
	}
}

func TestAdminTrainAndInfo(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Post(srv.URL+"/admin/train?force=true", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/admin/model")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var info service.ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !info.Trained || !info.HasCollaborativeData || info.CatalogSize != 6 {
		t.Errorf("unexpected model info: %+v", info)
	}
}

func TestAdminClearCache(t *testing.T) {
	srv, _ := newServer(t)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/admin/cache?user_id=1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/admin/cache?user_id=x", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBatchRecommendations(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/recommendations/batch?page=1&limit=2")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body domain.BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalUsers != 4 || len(body.Results) != 2 || body.Summary.SuccessCount != 2 {
		t.Errorf("unexpected batch response: %+v", body)
	}

	bad, err := http.Get(srv.URL + "/recommendations/batch?limit=101")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", bad.StatusCode)
	}
}
