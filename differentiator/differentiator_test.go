package differentiator

import (
	"testing"

	"dcservo/angle"
)

func TestResetGivesZeroSpeed(t *testing.T) {
	d := New(5)
	start := angle.Angle{Rotations: 3, Millidegrees: 12000}
	d.Reset(start)

	if s := d.Speed(start); s != 0 {
		t.Errorf("speed after reset = %d, want 0", s)
	}
}

func TestConstantSpeed(t *testing.T) {
	d := New(5)
	d.Reset(angle.Angle{})

	// 500 mdeg per 5 ms loop is 100000 mdeg/s.
	var a angle.Angle
	var got int32
	for i := 0; i < 3*Window; i++ {
		a.AddMdeg(500)
		got = d.Speed(a)
	}
	if got != 100000 {
		t.Errorf("steady speed = %d, want 100000", got)
	}
}

func TestRampUpAveragesOverWindow(t *testing.T) {
	d := New(10)
	d.Reset(angle.Angle{})

	// One jump of 8000 mdeg shows up averaged over the full window.
	got := d.Speed(angle.Angle{Millidegrees: 8000})
	want := int32(8000 * 1000 / (Window * 10))
	if got != want {
		t.Errorf("speed = %d, want %d", got, want)
	}

	// It drops out again once the window has passed.
	for i := 0; i < Window; i++ {
		got = d.Speed(angle.Angle{Millidegrees: 8000})
	}
	if got != 0 {
		t.Errorf("speed after window = %d, want 0", got)
	}
}

func TestNegativeAndSaturated(t *testing.T) {
	d := New(1)
	d.Reset(angle.Angle{})

	if s := d.Speed(angle.Angle{Millidegrees: -800}); s != -100000 {
		t.Errorf("negative speed = %d, want -100000", s)
	}

	d.Reset(angle.Angle{})
	if s := d.Speed(angle.Angle{Rotations: 1000000}); s != 2147483647 {
		t.Errorf("huge jump = %d, want saturation", s)
	}
}

func TestZeroLoopTime(t *testing.T) {
	d := New(0)
	if d.LoopTimeMs() != 1 {
		t.Errorf("loop time = %d, want fallback of 1", d.LoopTimeMs())
	}
}
