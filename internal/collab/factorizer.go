// Package collab fits a truncated SVD to the user x item feedback matrix and
// serves affinity predictions from the resulting factors.
package collab

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

const DefaultFactors = 100

var (
	ErrNoFeedback      = errors.New("no feedback records")
	ErrFactorizeFailed = errors.New("svd factorization failed")
)

// Scored is an item id with its predicted affinity.
type Scored struct {
	ItemID int64
	Score  float64
}

// entry is one observed matrix cell.
type entry struct {
	Item     int32
	Strength float64
}

// Factorizer holds the fitted low-rank model. Positions are assigned in order
// of first appearance and are not stable across fits.
type Factorizer struct {
	logger  zerolog.Logger
	factors int

	userIDs   []int64
	itemIDs   []int64
	userIndex map[int64]int
	itemIndex map[int64]int

	// rows[u] holds the user's observed cells sorted by item position.
	rows [][]entry

	userFactors *mat.Dense
	itemFactors *mat.Dense
	globalMean  float64
}

func NewFactorizer(logger zerolog.Logger, factors int) *Factorizer {
	if factors <= 0 {
		factors = DefaultFactors
	}
	return &Factorizer{
		logger:  logger.With().Str("component", "collab").Logger(),
		factors: factors,
	}
}

// Build assigns positions, assembles the sparse feedback matrix (later records
// for the same pair overwrite earlier ones) and fits the factors.
func (f *Factorizer) Build(feedback []domain.FeedbackRecord) error {
	if len(feedback) == 0 {
		return ErrNoFeedback
	}

	userIndex := make(map[int64]int)
	itemIndex := make(map[int64]int)
	var userIDs, itemIDs []int64
	cells := make(map[[2]int]float64)

	for _, r := range feedback {
		u, ok := userIndex[r.UserID]
		if !ok {
			u = len(userIDs)
			userIndex[r.UserID] = u
			userIDs = append(userIDs, r.UserID)
		}
		i, ok := itemIndex[r.ItemID]
		if !ok {
			i = len(itemIDs)
			itemIndex[r.ItemID] = i
			itemIDs = append(itemIDs, r.ItemID)
		}
		cells[[2]int{u, i}] = r.Strength
	}

	rows := make([][]entry, len(userIDs))
	var sum float64
	for cell, strength := range cells {
		rows[cell[0]] = append(rows[cell[0]], entry{Item: int32(cell[1]), Strength: strength})
		sum += strength
	}
	for _, row := range rows {
		sort.Slice(row, func(a, b int) bool { return row[a].Item < row[b].Item })
	}

	userFactors, itemFactors, err := truncatedSVD(rows, len(itemIDs), f.factors)
	if err != nil {
		return err
	}

	f.userIDs = userIDs
	f.itemIDs = itemIDs
	f.userIndex = userIndex
	f.itemIndex = itemIndex
	f.rows = rows
	f.userFactors = userFactors
	f.itemFactors = itemFactors
	f.globalMean = sum / float64(len(cells))

	_, k := userFactors.Dims()
	f.logger.Info().
		Int("users", len(userIDs)).
		Int("items", len(itemIDs)).
		Int("observed", len(cells)).
		Int("rank", k).
		Msg("collaborative model trained")
	return nil
}

// Predict returns the factor dot product, or the global mean when either id
// is unknown to the model.
func (f *Factorizer) Predict(userID, itemID int64) float64 {
	u, okU := f.userIndex[userID]
	i, okI := f.itemIndex[itemID]
	if !okU || !okI {
		return f.globalMean
	}
	return mat.Dot(f.userFactors.RowView(u), f.itemFactors.RowView(i))
}

// Recommend returns the top-n items by predicted affinity, best first, ties
// by item position. With excludeSeen the user's observed items never appear.
// Unknown users get nil.
func (f *Factorizer) Recommend(userID int64, n int, excludeSeen bool) []Scored {
	u, ok := f.userIndex[userID]
	if !ok || n <= 0 {
		return nil
	}

	scores := make([]float64, len(f.itemIDs))
	var preds mat.VecDense
	preds.MulVec(f.itemFactors, f.userFactors.RowView(u))
	for i := range scores {
		scores[i] = preds.AtVec(i)
	}
	if excludeSeen {
		for _, e := range f.rows[u] {
			scores[e.Item] = math.Inf(-1)
		}
	}

	order := make([]int, 0, len(scores))
	for i, s := range scores {
		if !math.IsInf(s, -1) {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if len(order) > n {
		order = order[:n]
	}

	out := make([]Scored, len(order))
	for rank, i := range order {
		out[rank] = Scored{ItemID: f.itemIDs[i], Score: scores[i]}
	}
	return out
}

// History returns the user's observed items, strongest first, ties by item
// position.
func (f *Factorizer) History(userID int64) []Scored {
	u, ok := f.userIndex[userID]
	if !ok {
		return nil
	}
	out := make([]Scored, len(f.rows[u]))
	for i, e := range f.rows[u] {
		out[i] = Scored{ItemID: f.itemIDs[e.Item], Score: e.Strength}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

func (f *Factorizer) HasUser(userID int64) bool {
	_, ok := f.userIndex[userID]
	return ok
}

func (f *Factorizer) GlobalMean() float64 { return f.globalMean }
func (f *Factorizer) NumUsers() int       { return len(f.userIDs) }
func (f *Factorizer) NumItems() int       { return len(f.itemIDs) }

// ItemIDs returns item ids in factor-position order.
func (f *Factorizer) ItemIDs() []int64 { return f.itemIDs }

// Snapshot is the serializable form of a fitted model.
type Snapshot struct {
	Factors     int
	UserIDs     []int64
	ItemIDs     []int64
	Rows        [][]Cell
	UserFactors []float64
	ItemFactors []float64
	Rank        int
	GlobalMean  float64
}

// Cell is one observed (item position, strength) pair of a user row.
type Cell struct {
	Item     int32
	Strength float64
}

func (f *Factorizer) Snapshot() Snapshot {
	rows := make([][]Cell, len(f.rows))
	for u, row := range f.rows {
		rows[u] = make([]Cell, len(row))
		for i, e := range row {
			rows[u][i] = Cell(e)
		}
	}
	_, k := f.userFactors.Dims()
	return Snapshot{
		Factors:     f.factors,
		UserIDs:     f.userIDs,
		ItemIDs:     f.itemIDs,
		Rows:        rows,
		UserFactors: f.userFactors.RawMatrix().Data,
		ItemFactors: f.itemFactors.RawMatrix().Data,
		Rank:        k,
		GlobalMean:  f.globalMean,
	}
}

// Restore rebuilds a factorizer from a snapshot after validating dimensions.
func Restore(logger zerolog.Logger, s Snapshot) (*Factorizer, error) {
	nu, ni := len(s.UserIDs), len(s.ItemIDs)
	if nu == 0 || ni == 0 || s.Rank <= 0 {
		return nil, fmt.Errorf("collab snapshot: empty model (%d users, %d items, rank %d)", nu, ni, s.Rank)
	}
	if len(s.UserFactors) != nu*s.Rank || len(s.ItemFactors) != ni*s.Rank {
		return nil, fmt.Errorf("collab snapshot: factor size mismatch for %d users, %d items, rank %d", nu, ni, s.Rank)
	}
	if len(s.Rows) != nu {
		return nil, fmt.Errorf("collab snapshot: %d rows for %d users", len(s.Rows), nu)
	}

	f := NewFactorizer(logger, s.Factors)
	f.userIDs = s.UserIDs
	f.itemIDs = s.ItemIDs
	f.userIndex = make(map[int64]int, nu)
	for i, id := range s.UserIDs {
		f.userIndex[id] = i
	}
	f.itemIndex = make(map[int64]int, ni)
	for i, id := range s.ItemIDs {
		f.itemIndex[id] = i
	}
	if len(f.userIndex) != nu || len(f.itemIndex) != ni {
		return nil, errors.New("collab snapshot: duplicate ids in mapping")
	}

	f.rows = make([][]entry, nu)
	for u, row := range s.Rows {
		f.rows[u] = make([]entry, len(row))
		for i, c := range row {
			if int(c.Item) < 0 || int(c.Item) >= ni {
				return nil, fmt.Errorf("collab snapshot: user %d references item position %d", s.UserIDs[u], c.Item)
			}
			f.rows[u][i] = entry(c)
		}
	}
	f.userFactors = mat.NewDense(nu, s.Rank, s.UserFactors)
	f.itemFactors = mat.NewDense(ni, s.Rank, s.ItemFactors)
	f.globalMean = s.GlobalMean
	return f, nil
}
