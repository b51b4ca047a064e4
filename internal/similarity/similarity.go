package similarity

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Errors returned by similarity functions
var (
	ErrEmptyInput        = errors.New("similarity: empty input")
	ErrDimensionMismatch = errors.New("similarity: vector dimensions differ")
)

// Func computes the pairwise similarity of every row of a against every row of b.
// The result has len(a) rows and len(b) columns.
type Func func(a, b [][]float32) ([][]float64, error)

// Cosine is the default Func. Rows with zero norm produce NaN entries so
// callers can drop them as unusable.
func Cosine(a, b [][]float32) ([][]float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, ErrEmptyInput
	}

	dim := len(a[0])
	if dim == 0 {
		return nil, ErrEmptyInput
	}

	left, leftZero, err := normalizedDense(a, dim)
	if err != nil {
		return nil, err
	}
	right, rightZero, err := normalizedDense(b, dim)
	if err != nil {
		return nil, err
	}

	var product mat.Dense
	product.Mul(left, right.T())

	out := make([][]float64, len(a))
	for i := range out {
		row := make([]float64, len(b))
		for j := range row {
			if leftZero[i] || rightZero[j] {
				row[j] = math.NaN()
				continue
			}
			row[j] = product.At(i, j)
		}
		out[i] = row
	}
	return out, nil
}

// Matrix returns the square similarity matrix of vectors against themselves
func Matrix(fn Func, vectors [][]float32) ([][]float64, error) {
	if fn == nil {
		fn = Cosine
	}
	m, err := fn(vectors, vectors)
	if err != nil {
		return nil, err
	}
	if len(m) != len(vectors) {
		return nil, fmt.Errorf("similarity: got %d rows, want %d", len(m), len(vectors))
	}
	for i, row := range m {
		if len(row) != len(vectors) {
			return nil, fmt.Errorf("similarity: row %d has %d columns, want %d", i, len(row), len(vectors))
		}
	}
	return m, nil
}

// Vector returns the cosine similarity of two vectors, or NaN if either has zero norm
func Vector(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, ErrEmptyInput
	}

	va := toVec(a)
	vb := toVec(b)
	na := mat.Norm(va, 2)
	nb := mat.Norm(vb, 2)
	if na == 0 || nb == 0 {
		return math.NaN(), nil
	}
	return mat.Dot(va, vb) / (na * nb), nil
}

// normalizedDense copies rows into a dense matrix scaled to unit length
func normalizedDense(rows [][]float32, dim int) (*mat.Dense, []bool, error) {
	m := mat.NewDense(len(rows), dim, nil)
	zero := make([]bool, len(rows))

	for i, row := range rows {
		if len(row) != dim {
			return nil, nil, fmt.Errorf("%w: row %d has %d, want %d", ErrDimensionMismatch, i, len(row), dim)
		}

		var sum float64
		for _, v := range row {
			sum += float64(v) * float64(v)
		}
		norm := math.Sqrt(sum)
		if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			zero[i] = true
			continue
		}
		for j, v := range row {
			m.Set(i, j, float64(v)/norm)
		}
	}

	return m, zero, nil
}

func toVec(v []float32) *mat.VecDense {
	data := make([]float64, len(v))
	for i, x := range v {
		data[i] = float64(x)
	}
	return mat.NewVecDense(len(data), data)
}
