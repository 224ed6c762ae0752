package analytics

import (
	"math"
)

// fixedScale sets the precision at which scores compare equal.
const fixedScale = 1_000_000

// fixed is a score in fixed point, so float noise below 1e-6 never decides an order.
type fixed int64

func toFixed(x float64) fixed {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * fixedScale
	if scaled >= math.MaxInt64 {
		return fixed(math.MaxInt64)
	}
	if scaled <= math.MinInt64 {
		return fixed(math.MinInt64)
	}
	return fixed(math.Round(scaled))
}

// cmpDesc orders higher scores first: negative when a ranks before b.
func cmpDesc(a, b float64) int {
	fa, fb := toFixed(a), toFixed(b)
	switch {
	case fa > fb:
		return -1
	case fa < fb:
		return 1
	}
	return 0
}

// cmpAsc orders lower scores first.
func cmpAsc(a, b float64) int {
	return -cmpDesc(a, b)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// round3 trims a score for presentation. Ordering never uses the rounded value.
func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func ptr[T any](v T) *T { return &v }
