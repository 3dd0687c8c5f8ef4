package risk

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNoSeries is returned when there is nothing to correlate
	ErrNoSeries = errors.New("no return series supplied")
	// ErrRaggedSeries is returned when series were not aligned first
	ErrRaggedSeries = errors.New("return series have different lengths")
	// ErrInsufficientObservations is returned when a correlation is undefined
	ErrInsufficientObservations = errors.New("at least two observations per series are required")
)

// AlignReturns truncates every series to the shortest length, keeping the
// most recent observations (the tail of each series).
func AlignReturns(series [][]float64) [][]float64 {
	if len(series) == 0 {
		return nil
	}

	minLen := len(series[0])
	for _, s := range series[1:] {
		if len(s) < minLen {
			minLen = len(s)
		}
	}

	aligned := make([][]float64, len(series))
	for i, s := range series {
		aligned[i] = s[len(s)-minLen:]
	}
	return aligned
}

// CorrelationMatrix computes the Pearson correlation of every pair of
// aligned series. The diagonal is exactly 1. A pair involving a constant
// series has no defined correlation and is reported as 0.
func CorrelationMatrix(series [][]float64) ([][]float64, error) {
	if len(series) == 0 {
		return nil, ErrNoSeries
	}

	length := len(series[0])
	for i, s := range series {
		if len(s) != length {
			return nil, fmt.Errorf("series %d has %d observations, expected %d: %w", i, len(s), length, ErrRaggedSeries)
		}
	}
	if length < 2 {
		return nil, fmt.Errorf("got %d: %w", length, ErrInsufficientObservations)
	}

	n := len(series)
	corr := IdentityMatrix(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := stat.Correlation(series[i], series[j], nil)
			switch {
			case math.IsNaN(c):
				c = 0
			case c > 1:
				c = 1
			case c < -1:
				c = -1
			}
			corr[i][j] = c
			corr[j][i] = c
		}
	}
	return corr, nil
}

// IdentityMatrix returns the n x n identity (zero cross-correlation)
func IdentityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1.0
	}
	return m
}

// MaxOffDiagonal returns the largest strictly upper-triangular entry. ok is
// false when the matrix has fewer than two rows.
func MaxOffDiagonal(corr [][]float64) (value float64, ok bool) {
	value = math.Inf(-1)
	for i := range corr {
		for j := i + 1; j < len(corr[i]); j++ {
			if corr[i][j] > value {
				value = corr[i][j]
			}
			ok = true
		}
	}
	return value, ok
}
