package intmath

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		x, max, want int32
	}{
		{0, 10, 0},
		{10, 10, 10},
		{11, 10, 10},
		{-11, 10, -10},
		{math.MaxInt32, 12000, 12000},
		{math.MinInt32, 12000, -12000},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := Clamp(tt.x, tt.max); got != tt.want {
			t.Errorf("Clamp(%d, %d) = %d, want %d", tt.x, tt.max, got, tt.want)
		}
	}
}

func TestSign(t *testing.T) {
	tests := map[int32]int32{
		0:              0,
		1:              1,
		-1:             -1,
		math.MaxInt32:  1,
		math.MinInt32:  -1,
		-2500000:       -1,
	}
	for x, want := range tests {
		if got := Sign(x); got != want {
			t.Errorf("Sign(%d) = %d, want %d", x, got, want)
		}
	}
}

func TestAbs(t *testing.T) {
	tests := map[int32]int32{
		0:             0,
		7:             7,
		-7:            7,
		math.MaxInt32: math.MaxInt32,
		math.MinInt32: math.MaxInt32,
	}
	for x, want := range tests {
		if got := Abs(x); got != want {
			t.Errorf("Abs(%d) = %d, want %d", x, got, want)
		}
	}
}

func TestSaturate(t *testing.T) {
	if got := Saturate(1 << 40); got != math.MaxInt32 {
		t.Errorf("Saturate(1<<40) = %d", got)
	}
	if got := Saturate(-(1 << 40)); got != math.MinInt32 {
		t.Errorf("Saturate(-(1<<40)) = %d", got)
	}
	if got := Saturate(-42); got != -42 {
		t.Errorf("Saturate(-42) = %d", got)
	}
}
