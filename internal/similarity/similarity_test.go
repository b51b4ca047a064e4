package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CosineSuite struct {
	suite.Suite
	vectors [][]float32
}

func (s *CosineSuite) SetupTest() {
	s.vectors = [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
		{0, 0, 0},
	}
}

func (s *CosineSuite) TestDiagonalIsOne() {
	m, err := Matrix(Cosine, s.vectors[:3])
	s.Require().NoError(err)

	for i := range m {
		s.InDelta(1.0, m[i][i], 1e-9)
	}
}

func (s *CosineSuite) TestSymmetric() {
	m, err := Matrix(Cosine, s.vectors[:3])
	s.Require().NoError(err)

	for i := range m {
		for j := range m {
			s.InDelta(m[i][j], m[j][i], 1e-9)
		}
	}
}

func (s *CosineSuite) TestOrthogonalIsZero() {
	m, err := Cosine(s.vectors[:1], s.vectors[2:3])
	s.Require().NoError(err)
	s.InDelta(0.0, m[0][0], 1e-9)
}

func (s *CosineSuite) TestZeroVectorYieldsNaN() {
	m, err := Matrix(Cosine, s.vectors)
	s.Require().NoError(err)

	for j := range m[3] {
		s.True(math.IsNaN(m[3][j]))
		s.True(math.IsNaN(m[j][3]))
	}
}

func (s *CosineSuite) TestRectangular() {
	m, err := Cosine(s.vectors[:2], s.vectors[:3])
	s.Require().NoError(err)
	s.Len(m, 2)
	s.Len(m[0], 3)
}

func TestCosineSuite(t *testing.T) {
	suite.Run(t, new(CosineSuite))
}

func TestCosineErrors(t *testing.T) {
	_, err := Cosine(nil, [][]float32{{1}})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Cosine([][]float32{{1, 2}}, [][]float32{{1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Cosine([][]float32{{1, 2}, {1}}, [][]float32{{1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMatrixRejectsWrongShape(t *testing.T) {
	bad := func(a, b [][]float32) ([][]float64, error) {
		return [][]float64{{1}}, nil
	}
	_, err := Matrix(bad, [][]float32{{1}, {2}})
	assert.Error(t, err)
}

func TestVector(t *testing.T) {
	got, err := Vector([]float32{1, 1}, []float32{2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-9)

	got, err = Vector([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, got, 1e-9)

	got, err = Vector([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))

	_, err = Vector([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
