package angle

import (
	"math"
	"testing"
)

func TestFromMdegNormalizes(t *testing.T) {
	tests := []struct {
		mdeg int64
		want Angle
	}{
		{0, Angle{0, 0}},
		{359999, Angle{0, 359999}},
		{360000, Angle{1, 0}},
		{720001, Angle{2, 1}},
		{-1, Angle{0, -1}},
		{-360000, Angle{-1, 0}},
		{-400000, Angle{-1, -40000}},
	}

	for _, tt := range tests {
		got := FromMdeg(tt.mdeg)
		if got != tt.want {
			t.Errorf("FromMdeg(%d) = %+v, want %+v", tt.mdeg, got, tt.want)
		}
		if got.Mdeg() != tt.mdeg {
			t.Errorf("FromMdeg(%d).Mdeg() = %d", tt.mdeg, got.Mdeg())
		}
	}
}

func TestFromCounts(t *testing.T) {
	tests := []struct {
		counts int64
		cpr    uint32
		want   int64
	}{
		{0, 1440, 0},
		{1440, 1440, 360000},
		{720, 1440, 180000},
		{-4, 1440, -1000},
		{1441, 1440, 360250},
		{100, 0, 0},
	}

	for _, tt := range tests {
		got := FromCounts(tt.counts, tt.cpr).Mdeg()
		if got != tt.want {
			t.Errorf("FromCounts(%d, %d) = %d mdeg, want %d", tt.counts, tt.cpr, got, tt.want)
		}
	}
}

func TestDiffMdeg(t *testing.T) {
	a := Angle{Rotations: 2, Millidegrees: 1000}
	b := Angle{Rotations: 1, Millidegrees: 359000}
	if d := DiffMdeg(a, b); d != 2000 {
		t.Errorf("DiffMdeg = %d, want 2000", d)
	}
	if d := DiffMdeg(b, a); d != -2000 {
		t.Errorf("DiffMdeg reversed = %d, want -2000", d)
	}
}

func TestDiffMdegSaturates(t *testing.T) {
	far := Angle{Rotations: 100000}
	if d := DiffMdeg(far, Angle{}); d != math.MaxInt32 {
		t.Errorf("DiffMdeg(far, 0) = %d, want MaxInt32", d)
	}
	if d := DiffMdeg(Angle{}, far); d != math.MinInt32 {
		t.Errorf("DiffMdeg(0, far) = %d, want MinInt32", d)
	}
}

func TestAddMdegWrapsRotations(t *testing.T) {
	var a Angle
	for i := 0; i < 10; i++ {
		a.AddMdeg(90000)
	}
	if a.Rotations != 2 || a.Millidegrees != 180000 {
		t.Errorf("after 10 quarter turns got %+v", a)
	}

	a.AddMdeg(-1000000)
	if a.Mdeg() != -100000 {
		t.Errorf("Mdeg after negative add = %d, want -100000", a.Mdeg())
	}
	if a.Millidegrees <= -MdegPerRotation || a.Millidegrees >= MdegPerRotation {
		t.Errorf("millidegrees not normalized: %d", a.Millidegrees)
	}
}

func TestAddMdegLongSession(t *testing.T) {
	// 10000 rotations would overflow a plain int32 mdeg counter.
	var a Angle
	for i := 0; i < 10000; i++ {
		a.AddMdeg(MdegPerRotation)
	}
	if a.Rotations != 10000 || a.Millidegrees != 0 {
		t.Errorf("got %+v, want 10000 rotations", a)
	}
	if !(Angle{}).IsZero() || a.IsZero() {
		t.Error("IsZero mismatch")
	}
}
