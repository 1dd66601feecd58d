package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

// Repetition weights applied when assembling the feature soup.
const (
	genreWeight    = 3
	directorWeight = 2
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// FeatureSoup flattens an item's categorical metadata into a weighted bag of
// words: genres x3, directors x2, actors and keywords once, plus a decade token.
// Multi-word names are joined with underscores so they stay a single term.
func FeatureSoup(item domain.CatalogItem) string {
	var parts []string

	if genres := domain.SplitList(item.Genres); len(genres) > 0 {
		g := strings.ToLower(strings.Join(genres, " "))
		for range genreWeight {
			parts = append(parts, g)
		}
	}

	if directors := joinNames(item.Director); directors != "" {
		for range directorWeight {
			parts = append(parts, directors)
		}
	}

	if actors := joinNames(item.Actors); actors != "" {
		parts = append(parts, actors)
	}

	if keywords := domain.SplitList(item.PlotKeywords); len(keywords) > 0 {
		parts = append(parts, strings.ToLower(strings.Join(keywords, " ")))
	}

	if item.Year != nil {
		parts = append(parts, fmt.Sprintf("decade_%ds", *item.Year/10*10))
	}

	return strings.Join(parts, " ")
}

func joinNames(field string) string {
	names := domain.SplitList(field)
	for i, n := range names {
		names[i] = strings.ReplaceAll(strings.ToLower(n), " ", "_")
	}
	return strings.Join(names, " ")
}

// analyze tokenizes a soup into unigrams and bigrams. Stop words are removed
// before bigrams are formed.
func analyze(soup string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(soup), -1)

	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}

	terms := make([]string, 0, 2*len(tokens))
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}
