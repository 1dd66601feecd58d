package domain

import "strings"

// CatalogItem is one movie as captured in a training snapshot.
// Multi-valued text fields are pipe-delimited ("Action|Drama").
type CatalogItem struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	Genres       string  `json:"genres"`
	Director     string  `json:"director"`
	Actors       string  `json:"actors"`
	PlotKeywords string  `json:"plot_keywords"`
	Year         *int    `json:"year"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
}

// ListSeparator delimits values inside multi-valued catalog fields.
const ListSeparator = "|"

// SplitList splits a delimited field, trimming blanks and dropping empty values.
func SplitList(field string) []string {
	if field == "" {
		return nil
	}
	parts := strings.Split(field, ListSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
