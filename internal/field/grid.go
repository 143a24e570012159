package field

import (
	"math"

	"github.com/san-kum/synchro/internal/dynamo"
)

// SampleGrid samples a rectangular grid at a fixed time. The result is
// indexed [len(ys)][len(xs)] and every value equals Sample(xs[j], ys[i], t).
// Rows are filled concurrently.
func (f *Field) SampleGrid(xs, ys []float64, t float64) [][]float64 {
	grid := make([][]float64, len(ys))
	dynamo.ParallelFor(len(ys), 4, func(start, end int) {
		for i := start; i < end; i++ {
			row := make([]float64, len(xs))
			for j, x := range xs {
				row[j] = f.Sample(x, ys[i], t)
			}
			grid[i] = row
		}
	})
	return grid
}

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

type GridStats struct {
	Mean float64
	Min  float64
	Max  float64
	Std  float64
}

func Stats(grid [][]float64) GridStats {
	var s GridStats
	n := 0
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	for _, row := range grid {
		for _, v := range row {
			s.Mean += v
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
			n++
		}
	}
	if n == 0 {
		return GridStats{}
	}
	s.Mean /= float64(n)

	for _, row := range grid {
		for _, v := range row {
			d := v - s.Mean
			s.Std += d * d
		}
	}
	s.Std = math.Sqrt(s.Std / float64(n))
	return s
}
