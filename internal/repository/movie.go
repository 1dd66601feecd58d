package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

const movieColumns = `id, title, COALESCE(overview, ''), COALESCE(genres, ''), COALESCE(director, ''),
	COALESCE(actors, ''), COALESCE(plot_keywords, ''), year, popularity, vote_average, vote_count`

func scanMovie(row pgx.Row) (domain.CatalogItem, error) {
	var m domain.CatalogItem
	err := row.Scan(&m.ID, &m.Title, &m.Overview, &m.Genres, &m.Director,
		&m.Actors, &m.PlotKeywords, &m.Year, &m.Popularity, &m.VoteAverage, &m.VoteCount)
	return m, err
}

// ListCatalog returns the full catalog snapshot in id order. Nullable text
// columns are normalized to empty strings; a missing year stays nil.
func (r *Repository) ListCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+movieColumns+`
		FROM movies
		WHERE NOT adult
		ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over catalog: %w", err)
	}
	return items, nil
}

// PopularItems returns the fallback list ordered by rating average, then vote count.
func (r *Repository) PopularItems(ctx context.Context, limit int) ([]domain.CatalogItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+movieColumns+`
		FROM movies
		WHERE NOT adult
		ORDER BY vote_average DESC, vote_count DESC, id
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query popular movies: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over popular movies: %w", err)
	}
	return items, nil
}

func (r *Repository) MovieExists(ctx context.Context, movieID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM movies WHERE id = $1)`, movieID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check movie id=%d: %w", movieID, err)
	}
	return exists, nil
}
