// Package content builds TF-IDF feature vectors from catalog metadata and
// answers item-to-item similarity queries.
package content

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

const (
	DefaultMaxFeatures     = 5000
	DefaultPrecomputeLimit = 10000
)

// Options tunes index construction. Zero values fall back to the defaults.
type Options struct {
	// MaxFeatures caps the vocabulary to the most frequent terms.
	MaxFeatures int
	// PrecomputeLimit is the corpus size below which the full pairwise
	// similarity matrix is computed at build time. Negative disables it.
	PrecomputeLimit int
}

func (o Options) withDefaults() Options {
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = DefaultMaxFeatures
	}
	if o.PrecomputeLimit == 0 {
		o.PrecomputeLimit = DefaultPrecomputeLimit
	}
	return o
}

// Vector is an L2-normalized sparse term vector. Terms are sorted ascending.
type Vector struct {
	Terms   []int32
	Weights []float64
}

type posting struct {
	item   int32
	weight float64
}

// Scored is an item id paired with its similarity to a query item.
type Scored struct {
	ItemID int64
	Score  float64
}

// Index is the content similarity index. It is immutable once built and safe
// for concurrent reads.
type Index struct {
	logger zerolog.Logger
	opts   Options

	itemIDs    []int64
	positions  map[int64]int
	vocabulary []string
	idf        []float64
	vectors    []Vector

	postings   [][]posting
	similarity [][]float32
}

func NewIndex(logger zerolog.Logger, opts Options) *Index {
	return &Index{
		logger: logger.With().Str("component", "content").Logger(),
		opts:   opts.withDefaults(),
	}
}

// Build vectorizes the full catalog snapshot, replacing any previous state.
func (ix *Index) Build(items []domain.CatalogItem) error {
	if len(items) == 0 {
		return domain.ErrEmptyCatalog
	}

	docs := make([][]string, len(items))
	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for i, item := range items {
		docs[i] = analyze(FeatureSoup(item))
		seen := make(map[string]struct{}, len(docs[i]))
		for _, term := range docs[i] {
			termFreq[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				docFreq[term]++
			}
		}
	}

	vocabulary := selectVocabulary(termFreq, ix.opts.MaxFeatures)
	termIndex := make(map[string]int32, len(vocabulary))
	for i, term := range vocabulary {
		termIndex[term] = int32(i)
	}

	n := float64(len(items))
	idf := make([]float64, len(vocabulary))
	for i, term := range vocabulary {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	vectors := make([]Vector, len(items))
	for i, doc := range docs {
		counts := make(map[int32]float64)
		for _, term := range doc {
			if t, ok := termIndex[term]; ok {
				counts[t]++
			}
		}
		vectors[i] = weightVector(counts, idf)
	}

	itemIDs := make([]int64, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
	}

	if err := ix.install(itemIDs, vocabulary, idf, vectors); err != nil {
		return err
	}

	ix.logger.Info().
		Int("items", len(items)).
		Int("terms", len(vocabulary)).
		Bool("precomputed", ix.similarity != nil).
		Msg("content index built")
	return nil
}

// install sets the vectorized state and derives postings and, for small
// corpora, the pairwise similarity matrix.
func (ix *Index) install(itemIDs []int64, vocabulary []string, idf []float64, vectors []Vector) error {
	positions := make(map[int64]int, len(itemIDs))
	for i, id := range itemIDs {
		if _, dup := positions[id]; dup {
			return fmt.Errorf("duplicate item id %d in catalog", id)
		}
		positions[id] = i
	}

	postings := make([][]posting, len(vocabulary))
	for i, v := range vectors {
		for k, t := range v.Terms {
			if int(t) < 0 || int(t) >= len(vocabulary) {
				return fmt.Errorf("item %d: term %d outside vocabulary", itemIDs[i], t)
			}
			postings[t] = append(postings[t], posting{item: int32(i), weight: v.Weights[k]})
		}
	}

	ix.itemIDs = itemIDs
	ix.positions = positions
	ix.vocabulary = vocabulary
	ix.idf = idf
	ix.vectors = vectors
	ix.postings = postings
	ix.similarity = nil

	if ix.opts.PrecomputeLimit > 0 && len(itemIDs) < ix.opts.PrecomputeLimit {
		ix.similarity = make([][]float32, len(itemIDs))
		for i := range itemIDs {
			row := ix.scoreRow(i)
			ix.similarity[i] = make([]float32, len(row))
			for j, s := range row {
				ix.similarity[i][j] = float32(s)
			}
		}
	}
	return nil
}

// SimilarItems returns up to n items most similar to itemID, excluding the
// item itself. Ties are broken by catalog order. An unknown id yields nil.
func (ix *Index) SimilarItems(itemID int64, n int) []Scored {
	if n <= 0 {
		return nil
	}
	pos, ok := ix.positions[itemID]
	if !ok {
		ix.logger.Warn().Int64("item_id", itemID).Msg("item not found for content similarity")
		return nil
	}

	var scores []float64
	if ix.similarity != nil {
		row := ix.similarity[pos]
		scores = make([]float64, len(row))
		for j, s := range row {
			scores[j] = float64(s)
		}
	} else {
		scores = ix.scoreRow(pos)
	}

	order := make([]int, 0, len(scores)-1)
	for j := range scores {
		if j != pos {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if len(order) > n {
		order = order[:n]
	}

	out := make([]Scored, len(order))
	for i, j := range order {
		out[i] = Scored{ItemID: ix.itemIDs[j], Score: scores[j]}
	}
	return out
}

// Contains reports whether the item was part of the indexed snapshot.
func (ix *Index) Contains(itemID int64) bool {
	_, ok := ix.positions[itemID]
	return ok
}

func (ix *Index) Len() int { return len(ix.itemIDs) }

// Vocabulary returns the selected terms in feature-index order.
func (ix *Index) Vocabulary() []string { return ix.vocabulary }

// Precomputed reports whether similarity lookups use the pairwise matrix.
func (ix *Index) Precomputed() bool { return ix.similarity != nil }

// scoreRow computes cosine similarity of item i against every item.
// Vectors are normalized, so cosine reduces to a sparse dot product.
func (ix *Index) scoreRow(i int) []float64 {
	row := make([]float64, len(ix.itemIDs))
	v := ix.vectors[i]
	for k, t := range v.Terms {
		w := v.Weights[k]
		for _, p := range ix.postings[t] {
			row[p.item] += w * p.weight
		}
	}
	return row
}

// selectVocabulary keeps the maxFeatures most frequent terms (ties broken
// alphabetically) and returns them sorted alphabetically.
func selectVocabulary(termFreq map[string]int, maxFeatures int) []string {
	terms := make([]string, 0, len(termFreq))
	for t := range termFreq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if termFreq[terms[i]] != termFreq[terms[j]] {
			return termFreq[terms[i]] > termFreq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)
	return terms
}

func weightVector(counts map[int32]float64, idf []float64) Vector {
	terms := make([]int32, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i] < terms[j] })

	weights := make([]float64, len(terms))
	var norm float64
	for i, t := range terms {
		weights[i] = counts[t] * idf[t]
		norm += weights[i] * weights[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range weights {
			weights[i] /= norm
		}
	}
	return Vector{Terms: terms, Weights: weights}
}

// Snapshot is the serializable form of a built index. The similarity matrix
// is derived and therefore not part of it.
type Snapshot struct {
	ItemIDs    []int64
	Vocabulary []string
	IDF        []float64
	Vectors    []Vector
}

func (ix *Index) Snapshot() Snapshot {
	return Snapshot{
		ItemIDs:    ix.itemIDs,
		Vocabulary: ix.vocabulary,
		IDF:        ix.idf,
		Vectors:    ix.vectors,
	}
}

var errInvalidSnapshot = errors.New("invalid content snapshot")

// Restore rebuilds an index from a snapshot, recomputing derived structures.
func Restore(logger zerolog.Logger, opts Options, s Snapshot) (*Index, error) {
	if len(s.ItemIDs) == 0 {
		return nil, fmt.Errorf("%w: no items", errInvalidSnapshot)
	}
	if len(s.Vectors) != len(s.ItemIDs) || len(s.IDF) != len(s.Vocabulary) {
		return nil, fmt.Errorf("%w: %d items, %d vectors, %d terms, %d idf values",
			errInvalidSnapshot, len(s.ItemIDs), len(s.Vectors), len(s.Vocabulary), len(s.IDF))
	}
	for i, v := range s.Vectors {
		if len(v.Terms) != len(v.Weights) {
			return nil, fmt.Errorf("%w: vector %d has mismatched terms and weights", errInvalidSnapshot, i)
		}
	}

	ix := NewIndex(logger, opts)
	if err := ix.install(s.ItemIDs, s.Vocabulary, s.IDF, s.Vectors); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidSnapshot, err)
	}
	return ix, nil
}
