package observer

import "testing"

func TestVoltageToTorque(t *testing.T) {
	m := &mediumType(t).Model

	tests := map[int32]int32{
		0:       0,
		1000:    75002,
		6000:    450015,
		-6000:   -450015,
		12000:   900030,
		1000000: 900030,
	}
	for v, want := range tests {
		if got := m.VoltageToTorque(v); got != want {
			t.Errorf("VoltageToTorque(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestTorqueToVoltage(t *testing.T) {
	m := &mediumType(t).Model

	tests := map[int32]int32{
		0:          0,
		100000:     1333,
		450000:     6000,
		-450000:    -6000,
		900000:     12000,
		1000000000: 12000,
	}
	for tq, want := range tests {
		if got := m.TorqueToVoltage(tq); got != want {
			t.Errorf("TorqueToVoltage(%d) = %d, want %d", tq, got, want)
		}
	}
}

func TestConversionRoundTrip(t *testing.T) {
	m := &mediumType(t).Model

	for v := int32(-11000); v <= 11000; v += 250 {
		if back := m.TorqueToVoltage(m.VoltageToTorque(v)); back-v > 1 || v-back > 1 {
			t.Errorf("voltage %d round trips to %d", v, back)
		}
	}
	for tq := int32(-800000); tq <= 800000; tq += 12500 {
		if back := m.VoltageToTorque(m.TorqueToVoltage(tq)); back-tq > 150 || tq-back > 150 {
			t.Errorf("torque %d round trips to %d", tq, back)
		}
	}
}

func TestFeedforwardTorque(t *testing.T) {
	m := &mediumType(t).Model

	tests := []struct {
		rate, accel, want int32
	}{
		{0, 0, 0},
		{100000, 0, 51013},
		{-100000, 0, -51013},
		{0, 1000000, 3490},
		{1048466, 0, 440011},
		{1000000000, 1000000000, MaxTorque},
		{-1000000000, -1000000000, -MaxTorque},
	}
	for _, tt := range tests {
		if got := m.FeedforwardTorque(tt.rate, tt.accel); got != tt.want {
			t.Errorf("FeedforwardTorque(%d, %d) = %d, want %d", tt.rate, tt.accel, got, tt.want)
		}
	}
}

func TestMaxTorque(t *testing.T) {
	if got := newMedium(t).MaxTorque(); got != MaxTorque {
		t.Errorf("MaxTorque() = %d, want %d", got, MaxTorque)
	}
}

func TestCatalog(t *testing.T) {
	names := TypeNames()
	if len(names) < 2 || names[0] != "medium" {
		t.Fatalf("TypeNames() = %v", names)
	}
	for i, name := range names {
		byIndex, ok := TypeByIndex(i)
		if !ok || byIndex.Name != name {
			t.Errorf("TypeByIndex(%d) mismatch for %s", i, name)
		}
		byName, ok := LookupType(name)
		if !ok || byName != byIndex {
			t.Errorf("LookupType(%s) mismatch", name)
		}
	}
	if _, ok := TypeByIndex(len(names)); ok {
		t.Error("TypeByIndex past the end succeeded")
	}
	if _, ok := LookupType("huge"); ok {
		t.Error("LookupType found an unknown type")
	}
	if ActuationVoltage.String() != "voltage" || Actuation(99).String() != "unknown" {
		t.Error("Actuation.String mismatch")
	}
}
