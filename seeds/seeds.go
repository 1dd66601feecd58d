package seeds

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	numUsers        = 20
	numRatings      = 200
	numInteractions = 150
)

type seedMovie struct {
	title    string
	genres   string
	director string
	actors   string
	keywords string
	year     int
}

var movies = []seedMovie{
	{"Die Hard", "Action|Thriller", "John McTiernan", "Bruce Willis|Alan Rickman", "heist|skyscraper|hostage", 1988},
	{"Mad Max: Fury Road", "Action|Adventure|Science Fiction", "George Miller", "Tom Hardy|Charlize Theron", "desert|chase|post-apocalyptic", 2015},
	{"John Wick", "Action|Thriller", "Chad Stahelski", "Keanu Reeves|Michael Nyqvist", "revenge|assassin|dog", 2014},
	{"The Dark Knight", "Action|Crime|Drama", "Christopher Nolan", "Christian Bale|Heath Ledger", "vigilante|joker|gotham", 2008},
	{"Gladiator", "Action|Drama|Adventure", "Ridley Scott", "Russell Crowe|Joaquin Phoenix", "rome|arena|revenge", 2000},
	{"The Shawshank Redemption", "Drama|Crime", "Frank Darabont", "Tim Robbins|Morgan Freeman", "prison|friendship|escape", 1994},
	{"Forrest Gump", "Drama|Romance|Comedy", "Robert Zemeckis", "Tom Hanks|Robin Wright", "vietnam|running|friendship", 1994},
	{"The Godfather", "Drama|Crime", "Francis Ford Coppola", "Marlon Brando|Al Pacino", "mafia|family|new york", 1972},
	{"Parasite", "Drama|Thriller|Comedy", "Bong Joon-ho", "Song Kang-ho|Choi Woo-shik", "class|con|basement", 2019},
	{"Whiplash", "Drama|Music", "Damien Chazelle", "Miles Teller|J.K. Simmons", "jazz|drummer|obsession", 2014},
	{"Superbad", "Comedy", "Greg Mottola", "Jonah Hill|Michael Cera", "high school|party|friendship", 2007},
	{"The Hangover", "Comedy", "Todd Phillips", "Bradley Cooper|Ed Helms", "las vegas|bachelor party|hangover", 2009},
	{"Hot Fuzz", "Comedy|Action|Crime", "Edgar Wright", "Simon Pegg|Nick Frost", "police|village|buddy cop", 2007},
	{"Groundhog Day", "Comedy|Romance|Fantasy", "Harold Ramis", "Bill Murray|Andie MacDowell", "time loop|weatherman|small town", 1993},
	{"The Grand Budapest Hotel", "Comedy|Drama", "Wes Anderson", "Ralph Fiennes|Tony Revolori", "hotel|concierge|painting", 2014},
	{"Se7en", "Thriller|Crime|Mystery", "David Fincher", "Brad Pitt|Morgan Freeman", "serial killer|detective|sins", 1995},
	{"Gone Girl", "Thriller|Mystery|Drama", "David Fincher", "Ben Affleck|Rosamund Pike", "disappearance|marriage|media", 2014},
	{"Zodiac", "Thriller|Crime|Mystery", "David Fincher", "Jake Gyllenhaal|Robert Downey Jr.", "serial killer|journalist|cipher", 2007},
	{"Prisoners", "Thriller|Crime|Drama", "Denis Villeneuve", "Hugh Jackman|Jake Gyllenhaal", "kidnapping|detective|father", 2013},
	{"No Country for Old Men", "Thriller|Crime|Western", "Joel Coen", "Josh Brolin|Javier Bardem", "hitman|texas|money", 2007},
	{"Blade Runner 2049", "Science Fiction|Drama|Mystery", "Denis Villeneuve", "Ryan Gosling|Harrison Ford", "replicant|dystopia|memory", 2017},
	{"Interstellar", "Science Fiction|Drama|Adventure", "Christopher Nolan", "Matthew McConaughey|Anne Hathaway", "space|wormhole|time", 2014},
	{"The Matrix", "Science Fiction|Action", "Lana Wachowski", "Keanu Reeves|Laurence Fishburne", "simulation|hacker|chosen one", 1999},
	{"Arrival", "Science Fiction|Drama|Mystery", "Denis Villeneuve", "Amy Adams|Jeremy Renner", "alien|language|time", 2016},
	{"Alien", "Science Fiction|Horror", "Ridley Scott", "Sigourney Weaver|Tom Skerritt", "spaceship|creature|survival", 1979},
	{"Inception", "Science Fiction|Action|Thriller", "Christopher Nolan", "Leonardo DiCaprio|Joseph Gordon-Levitt", "dream|heist|subconscious", 2010},
	{"Toy Story", "Animation|Comedy|Family", "John Lasseter", "Tom Hanks|Tim Allen", "toys|friendship|rivalry", 1995},
	{"Spirited Away", "Animation|Fantasy|Family", "Hayao Miyazaki", "Rumi Hiiragi|Miyu Irino", "spirit world|bathhouse|witch", 2001},
	{"Heat", "Crime|Thriller|Action", "Michael Mann", "Al Pacino|Robert De Niro", "heist|detective|los angeles", 1995},
	{"Unforgiven", "Western|Drama", "Clint Eastwood", "Clint Eastwood|Gene Hackman", "gunslinger|bounty|revenge", 1992},
}

var interactionTypes = []string{"view", "like", "dislike", "share", "watchlist_add", "watchlist_remove"}
var interactionWeights = []float64{0.5, 0.2, 0.05, 0.05, 0.15, 0.05}

func Setup(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "seed").Logger()
	rng := rand.New(rand.NewSource(42))

	// Truncate existing data before insert
	logger.Info().Msg("truncating existing data")
	if _, err := pool.Exec(ctx, `
		TRUNCATE user_interactions, ratings, movies, users RESTART IDENTITY CASCADE
	`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	logger.Info().Int("users", numUsers).Msg("inserting users")
	if err := seedUsers(ctx, pool, rng, numUsers); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	logger.Info().Int("movies", len(movies)).Msg("inserting movies")
	if err := seedMovies(ctx, pool, rng); err != nil {
		return fmt.Errorf("seed movies: %w", err)
	}

	logger.Info().Int("ratings", numRatings).Msg("inserting ratings")
	if err := seedRatings(ctx, pool, rng, numRatings); err != nil {
		return fmt.Errorf("seed ratings: %w", err)
	}

	logger.Info().Int("interactions", numInteractions).Msg("inserting interactions")
	if err := seedInteractions(ctx, pool, rng, numInteractions); err != nil {
		return fmt.Errorf("seed interactions: %w", err)
	}

	logger.Info().Msg("seeding complete")
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, n int) error {
	rows := []string{}
	args := []any{}

	for i := range n {
		createdAt := time.Now().AddDate(0, 0, -rng.Intn(365))

		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d)", base+1, base+2))
		args = append(args, fmt.Sprintf("user%02d", i+1), createdAt)
	}

	if len(rows) == 0 {
		return nil
	}

	query := "INSERT INTO users (username, created_at) VALUES " + strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

func seedMovies(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand) error {
	rows := []string{}
	args := []any{}

	for _, m := range movies {
		popularity := powerLawScore(rng) * 100
		voteAverage := math.Round((5.5+rng.Float64()*3.5)*10) / 10
		voteCount := 100 + rng.Intn(20000)

		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args, m.title, m.genres, m.director, m.actors, m.keywords, m.year,
			popularity, voteAverage, voteCount)
	}

	query := "INSERT INTO movies (title, genres, director, actors, plot_keywords, year, popularity, vote_average, vote_count) VALUES " +
		strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

// seedRatings skews towards low user ids and low movie ids so a few users
// and titles carry most of the signal.
func seedRatings(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, n int) error {
	seen := make(map[[2]int64]bool)

	rows := []string{}
	args := []any{}

	for range n {
		userID, movieID := skewedPair(rng)

		key := [2]int64{userID, movieID}
		if seen[key] {
			continue
		}
		seen[key] = true

		// half-star steps in [0.5, 5.0], centered around 3.5
		rating := math.Round(max(0.5, min(5.0, 3.5+rng.NormFloat64()))*2) / 2
		updatedAt := time.Now().AddDate(0, 0, -rng.Intn(180))

		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, userID, movieID, rating, updatedAt)
	}

	if len(rows) == 0 {
		return nil
	}

	query := "INSERT INTO ratings (user_id, movie_id, rating, updated_at) VALUES " +
		strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

func seedInteractions(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, n int) error {
	rows := []string{}
	args := []any{}

	for range n {
		userID, movieID := skewedPair(rng)
		kind := weightedChoice(rng, interactionTypes, interactionWeights)
		createdAt := time.Now().AddDate(0, 0, -rng.Intn(180))

		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, userID, movieID, kind, createdAt)
	}

	if len(rows) == 0 {
		return nil
	}

	query := "INSERT INTO user_interactions (user_id, movie_id, interaction_type, created_at) VALUES " +
		strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

func skewedPair(rng *rand.Rand) (int64, int64) {
	userID := int64(math.Ceil(math.Pow(rng.Float64(), 1.5) * numUsers))
	userID = max(1, min(userID, numUsers))

	movieID := int64(math.Ceil(math.Pow(rng.Float64(), 1.3) * float64(len(movies))))
	movieID = max(1, min(movieID, int64(len(movies))))
	return userID, movieID
}

func powerLawScore(rng *rand.Rand) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.001
	}
	raw := math.Pow(u, 2.0)
	if raw < 0.01 {
		raw = 0.01
	}
	return math.Round(raw*100) / 100
}

func weightedChoice(rng *rand.Rand, choices []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}
