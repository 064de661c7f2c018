package observer

import (
	"math"
	"testing"

	"dcservo/angle"
)

func mediumType(t *testing.T) *MotorType {
	t.Helper()
	mt, ok := LookupType("medium")
	if !ok {
		t.Fatal("medium motor type missing from catalog")
	}
	return mt
}

func newMedium(t *testing.T) *Observer {
	mt := mediumType(t)
	return New(&mt.Model, &mt.Settings, LoopTimeMs)
}

func mdeg(v int64) angle.Angle {
	return angle.FromMdeg(v)
}

func TestResetReadBack(t *testing.T) {
	o := newMedium(t)
	o.speed = 123456
	o.current = 789
	o.stalled = true

	start := angle.Angle{Rotations: 4, Millidegrees: -1500}
	o.Reset(start)

	num, a, speed := o.EstimatedState()
	if a != start || speed != 0 || num != 0 {
		t.Errorf("EstimatedState = (%d, %+v, %d), want (0, %+v, 0)", num, a, speed, start)
	}
	if o.Current() != 0 {
		t.Errorf("current after reset = %d", o.Current())
	}
	if stalled, d := o.IsStalled(100000); stalled || d != 0 {
		t.Errorf("IsStalled after reset = (%v, %d)", stalled, d)
	}
}

func TestFeedbackVoltage(t *testing.T) {
	o := newMedium(t)

	tests := []struct {
		err  int64
		want int32
	}{
		{0, 0},
		{1, 0},
		{-1, 0},
		{1000, 150},
		{-1000, -150},
		{19999, 2999},
		{20000, 3000},
		{20001, 3001},
		{-20001, -3001},
		{100000, 12000},
		{-100000, -12000},
		{1000000000, 12000},
		{-1000000000, -12000},
		{1 << 40, 12000},
	}

	for _, tt := range tests {
		if got := o.FeedbackVoltage(mdeg(tt.err)); got != tt.want {
			t.Errorf("FeedbackVoltage(%d) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFeedbackGainSlopes(t *testing.T) {
	s := &mediumType(t).Settings
	thr := s.FeedbackGainThreshold

	below := feedbackVoltageAbs(thr, s) - feedbackVoltageAbs(thr-10000, s)
	above := feedbackVoltageAbs(thr+10000, s) - feedbackVoltageAbs(thr, s)
	if above <= below {
		t.Errorf("slope above threshold %d not steeper than below %d", above, below)
	}

	// Both formulas agree at the knee.
	atKnee := thr * s.FeedbackGainLow / 1000
	if got := feedbackVoltageAbs(thr, s); got != atKnee {
		t.Errorf("feedback at threshold = %d, want %d", got, atKnee)
	}

	if got := feedbackVoltageAbs(math.MaxInt32, s); got != math.MaxInt32 {
		t.Errorf("unclamped magnitude for MaxInt32 = %d, want saturation", got)
	}
}

func TestUpdateWithoutSignChange(t *testing.T) {
	o := newMedium(t)
	o.speed = 100000

	o.Update(0, angle.Angle{}, ActuationVoltage, 6000)

	_, a, speed := o.EstimatedState()
	if a.Mdeg() != 1410 || speed != 489940 || o.Current() != 933 {
		t.Errorf("state = (%d, %d, %d), want (1410, 489940, 933)", a.Mdeg(), speed, o.Current())
	}
}

// rawSpeedRow evaluates the speed row for the next Update without the zero
// crossing correction.
func rawSpeedRow(o *Observer, measured angle.Angle, voltage int32) int32 {
	m := o.model
	mv := voltage + o.FeedbackVoltage(measured)
	return row(o.speed, o.current, mv, o.coulombFriction(),
		m.DSpeedDSpeed, m.DSpeedDCurrent, m.DSpeedDVoltage, m.DSpeedDTorque)
}

func TestAntiChatterAppliedOnce(t *testing.T) {
	o := newMedium(t)
	o.speed = 300

	// Speed crosses zero on the first tick, so the friction term is removed.
	raw := rawSpeedRow(o, angle.Angle{}, -12000)
	if raw != -922785 {
		t.Fatalf("raw speed row = %d, want -922785", raw)
	}
	o.Update(0, angle.Angle{}, ActuationVoltage, -12000)
	_, a, speed := o.EstimatedState()
	if a.Mdeg() != -2180 || speed != -909001 || o.Current() != -1967 {
		t.Fatalf("tick 1 = (%d, %d, %d), want (-2180, -909001, -1967)", a.Mdeg(), speed, o.Current())
	}
	if speed == raw {
		t.Error("zero crossing did not apply the friction correction")
	}

	// Later ticks keep the sign, so the row value is used as is.
	raw = rawSpeedRow(o, a, -12000)
	o.Update(5, a, ActuationVoltage, -12000)
	_, a, speed = o.EstimatedState()
	if speed != raw {
		t.Errorf("tick 2 speed %d differs from row %d", speed, raw)
	}
	if a.Mdeg() != -8353 || speed != -1497976 || o.Current() != -1130 {
		t.Fatalf("tick 2 = (%d, %d, %d), want (-8353, -1497976, -1130)", a.Mdeg(), speed, o.Current())
	}

	raw = rawSpeedRow(o, a, -12000)
	o.Update(10, a, ActuationVoltage, -12000)
	_, a, speed = o.EstimatedState()
	if speed != raw {
		t.Errorf("tick 3 speed %d differs from row %d", speed, raw)
	}
	if a.Mdeg() != -16696 || speed != -1806799 || o.Current() != -682 {
		t.Errorf("tick 3 = (%d, %d, %d), want (-16696, -1806799, -682)", a.Mdeg(), speed, o.Current())
	}
}

func TestEndToEndConvergence(t *testing.T) {
	mt := mediumType(t)

	// The plant is an observer that always agrees with itself. The observer
	// under test only sees its angle quantized to whole degrees.
	plant := New(&mt.Model, &mt.Settings, LoopTimeMs)
	o := New(&mt.Model, &mt.Settings, LoopTimeMs)

	var maxSpeed int32
	for k := 0; k < 400; k++ {
		now := uint32(k * LoopTimeMs)
		measured := angle.FromMdeg(plant.angle.Mdeg() / 1000 * 1000)
		plant.Update(now, plant.angle, ActuationVoltage, 6000)
		o.Update(now, measured, ActuationVoltage, 6000)

		if o.speed > maxSpeed {
			maxSpeed = o.speed
		}
		if stalled, _ := o.IsStalled(now); stalled || o.stalled {
			t.Fatalf("stall flagged at tick %d", k)
		}
	}

	steady := plant.speed
	if steady != 1048466 {
		t.Errorf("plant steady speed = %d, want 1048466", steady)
	}
	if diff := o.speed - steady; diff > steady/50 || diff < -steady/50 {
		t.Errorf("observer speed %d not within 2%% of %d", o.speed, steady)
	}
	if int64(maxSpeed)*100 > int64(steady)*102 {
		t.Errorf("observer overshoot %d exceeds 2%% of %d", maxSpeed, steady)
	}

	// Whole-degree quantization over the differentiator window costs a few
	// percent on the numeric speed.
	num, _, _ := o.EstimatedState()
	if diff := num - steady; diff > steady/20 || diff < -steady/20 {
		t.Errorf("numeric speed %d not within 5%% of %d", num, steady)
	}
}

func TestSmallMotorConverges(t *testing.T) {
	mt, ok := LookupType("small")
	if !ok {
		t.Fatal("small motor type missing")
	}
	plant := New(&mt.Model, &mt.Settings, LoopTimeMs)
	o := New(&mt.Model, &mt.Settings, LoopTimeMs)

	for k := 0; k < 200; k++ {
		now := uint32(k * LoopTimeMs)
		measured := angle.FromMdeg(plant.angle.Mdeg() / 1000 * 1000)
		plant.Update(now, plant.angle, ActuationVoltage, 6000)
		o.Update(now, measured, ActuationVoltage, 6000)
	}

	if plant.speed != 1922941 || o.speed != 1919257 {
		t.Errorf("speeds = (%d, %d), want (1922941, 1919257)", plant.speed, o.speed)
	}
	if stalled, _ := o.IsStalled(1000); stalled {
		t.Error("small motor flagged as stalled")
	}
}

func TestClampingIsTotal(t *testing.T) {
	o := newMedium(t)
	extremes := []int32{math.MinInt32, -1000000, 0, 1000000, math.MaxInt32}

	for i, v := range extremes {
		for _, meas := range []int64{-1 << 40, 0, 1 << 40} {
			o.Update(uint32(i), mdeg(meas), ActuationVoltage, v)
			_, _, speed := o.EstimatedState()
			if speed > MaxSpeed || speed < -MaxSpeed {
				t.Fatalf("speed %d out of range", speed)
			}
			if c := o.Current(); c > MaxCurrent || c < -MaxCurrent {
				t.Fatalf("current %d out of range", c)
			}
			if fb := o.FeedbackVoltage(mdeg(meas)); fb > MaxVoltage || fb < -MaxVoltage {
				t.Fatalf("feedback %d out of range", fb)
			}
		}
	}

	m := o.Model()
	for _, a := range extremes {
		for _, b := range extremes {
			if tq := m.FeedforwardTorque(a, b); tq > MaxTorque || tq < -MaxTorque {
				t.Errorf("FeedforwardTorque(%d, %d) = %d", a, b, tq)
			}
		}
		if v := m.TorqueToVoltage(a); v > MaxVoltage || v < -MaxVoltage {
			t.Errorf("TorqueToVoltage(%d) = %d", a, v)
		}
		if tq := m.VoltageToTorque(a); tq > MaxTorque || tq < -MaxTorque {
			t.Errorf("VoltageToTorque(%d) = %d", a, tq)
		}
	}
}

func TestZeroFrictionCutoff(t *testing.T) {
	mt := mediumType(t)
	settings := mt.Settings
	settings.CoulombFrictionSpeedCutoff = 0
	o := New(&mt.Model, &settings, LoopTimeMs)

	if f := o.coulombFriction(); f != 0 {
		t.Errorf("friction at standstill = %d, want 0", f)
	}
	o.speed = -1
	if f := o.coulombFriction(); f != -mt.Model.TorqueFriction {
		t.Errorf("friction when moving = %d, want %d", f, -mt.Model.TorqueFriction)
	}
}

func TestNumericSpeedLimited(t *testing.T) {
	o := newMedium(t)
	o.Reset(angle.Angle{})

	// A jump of many turns in one period would read far above MaxSpeed.
	o.Update(LoopTimeMs, mdeg(50_000_000), ActuationCoast, 0)
	if num, _, _ := o.EstimatedState(); num != MaxSpeed {
		t.Errorf("numeric speed after forward jump = %d, want %d", num, MaxSpeed)
	}

	o.Reset(angle.Angle{})
	o.Update(LoopTimeMs, mdeg(-50_000_000), ActuationCoast, 0)
	if num, _, _ := o.EstimatedState(); num != -MaxSpeed {
		t.Errorf("numeric speed after reverse jump = %d, want %d", num, -MaxSpeed)
	}
}
