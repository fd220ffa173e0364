package instance

import "math"

// EuclideanMatrix returns the symmetric pairwise distance matrix of pts.
// decimals >= 0 rounds every entry to that many decimal places; a negative value keeps full precision.
func EuclideanMatrix(pts []Point, decimals int) [][]float64 {
	n := len(pts)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := round(math.Hypot(pts[i].X-pts[j].X, pts[i].Y-pts[j].Y), decimals)
			m[i][j], m[j][i] = d, d
		}
	}
	return m
}

func round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
