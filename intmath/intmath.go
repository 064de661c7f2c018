// Package intmath holds the small saturating integer helpers the fixed-point
// motor model is built on.
package intmath

import "math"

// Clamp bounds x to [-max, max]. max must be non-negative.
func Clamp(x, max int32) int32 {
	if x > max {
		return max
	}
	if x < -max {
		return -max
	}
	return x
}

// Sign returns -1, 0 or 1.
func Sign(x int32) int32 {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}

// Abs returns |x|. Abs(math.MinInt32) saturates to math.MaxInt32 instead of
// overflowing back to a negative value.
func Abs(x int32) int32 {
	if x == math.MinInt32 {
		return math.MaxInt32
	}
	if x < 0 {
		return -x
	}
	return x
}

// Saturate narrows a 64-bit intermediate to int32, clipping at the limits.
func Saturate(x int64) int32 {
	if x > math.MaxInt32 {
		return math.MaxInt32
	}
	if x < math.MinInt32 {
		return math.MinInt32
	}
	return int32(x)
}
