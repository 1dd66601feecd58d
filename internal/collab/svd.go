package collab

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	oversamples     = 10
	powerIterations = 5
	svdSeed         = 42
)

// truncatedSVD fits the top-k singular triplets of the sparse matrix held in
// rows with a randomized range finder, so cost follows the observed cells and
// k rather than users x items. It returns U*S and V, so that
// userFactors * itemFactors^T approximates the matrix. When k plus
// oversampling covers min(users, items) the projection is exact.
func truncatedSVD(rows [][]entry, items, k int) (*mat.Dense, *mat.Dense, error) {
	users := len(rows)
	k = min(k, users, items)
	l := min(k+oversamples, users, items)

	rng := rand.New(rand.NewSource(svdSeed))
	omega := mat.NewDense(items, l, nil)
	raw := omega.RawMatrix().Data
	for i := range raw {
		raw[i] = rng.NormFloat64()
	}

	q := mulRows(rows, omega)
	orthonormalize(q)
	for range powerIterations {
		z := mulRowsT(rows, items, q)
		orthonormalize(z)
		q = mulRows(rows, z)
		orthonormalize(q)
	}
	orthonormalize(q) // second pass keeps Q orthogonal to working precision

	// z = A^T Q = (Q^T A)^T, so A ~ Q (Q^T A) = (Q Vz) S Uz^T.
	z := mulRowsT(rows, items, q)
	var svd mat.SVD
	if ok := svd.Factorize(z, mat.SVDThin); !ok {
		return nil, nil, ErrFactorizeFailed
	}
	var uz, vz, left mat.Dense
	svd.UTo(&uz)
	svd.VTo(&vz)
	left.Mul(q, &vz)
	values := svd.Values(nil)

	userFactors := mat.NewDense(users, k, nil)
	itemFactors := mat.NewDense(items, k, nil)
	for j := 0; j < k; j++ {
		for i := 0; i < users; i++ {
			userFactors.Set(i, j, left.At(i, j)*values[j])
		}
		for i := 0; i < items; i++ {
			itemFactors.Set(i, j, uz.At(i, j))
		}
	}
	return userFactors, itemFactors, nil
}

// mulRows returns A*m for the sparse users x items matrix A.
func mulRows(rows [][]entry, m *mat.Dense) *mat.Dense {
	_, l := m.Dims()
	out := mat.NewDense(len(rows), l, nil)
	for u, row := range rows {
		dst := out.RawRowView(u)
		for _, e := range row {
			floats.AddScaled(dst, e.Strength, m.RawRowView(int(e.Item)))
		}
	}
	return out
}

// mulRowsT returns A^T*m for the sparse users x items matrix A.
func mulRowsT(rows [][]entry, items int, m *mat.Dense) *mat.Dense {
	_, l := m.Dims()
	out := mat.NewDense(items, l, nil)
	for u, row := range rows {
		src := m.RawRowView(u)
		for _, e := range row {
			floats.AddScaled(out.RawRowView(int(e.Item)), e.Strength, src)
		}
	}
	return out
}

// orthonormalize replaces the columns of m with an orthonormal basis of their
// span using modified Gram-Schmidt. Columns that are linearly dependent on
// earlier ones become zero.
func orthonormalize(m *mat.Dense) {
	_, l := m.Dims()
	cols := make([][]float64, l)
	for j := range cols {
		cols[j] = mat.Col(nil, j, m)
	}
	for j, col := range cols {
		before := floats.Norm(col, 2)
		for i := 0; i < j; i++ {
			floats.AddScaled(col, -floats.Dot(cols[i], col), cols[i])
		}
		norm := floats.Norm(col, 2)
		if before == 0 || norm <= 1e-10*before {
			for i := range col {
				col[i] = 0
			}
			continue
		}
		floats.Scale(1/norm, col)
	}
	for j, col := range cols {
		m.SetCol(j, col)
	}
}
