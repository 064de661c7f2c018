package core

import (
	"testing"

	"dcservo/protocol"
)

type sentMessage struct {
	name string
	data []byte
}

// recorder captures responses instead of framing them.
type recorder struct {
	msgs []sentMessage
}

func (r *recorder) SendCommand(cmdID uint16, args func(output protocol.OutputBuffer)) {
	out := protocol.NewScratchOutput()
	if args != nil {
		args(out)
	}
	cmd, _ := globalRegistry.GetCommand(cmdID)
	r.msgs = append(r.msgs, sentMessage{
		name: cmd.Name,
		data: append([]byte(nil), out.Result()...),
	})
}

func (r *recorder) named(name string) []sentMessage {
	var out []sentMessage
	for _, m := range r.msgs {
		if m.name == name {
			out = append(out, m)
		}
	}
	return out
}

// ints decodes a message whose arguments are all integers.
func (m sentMessage) ints(t *testing.T) []int32 {
	t.Helper()
	data := m.data
	var vals []int32
	for len(data) > 0 {
		v, err := protocol.DecodeVLQInt(&data)
		if err != nil {
			t.Fatalf("decode %s: %v", m.name, err)
		}
		vals = append(vals, v)
	}
	return vals
}

type mockDriver struct {
	pinA, pinB uint32
	state      string
	duty       int32
}

func (d *mockDriver) Configure(pinA, pinB uint32) error {
	d.pinA, d.pinB = pinA, pinB
	return nil
}

func (d *mockDriver) SetDuty(duty int32) error {
	d.state, d.duty = "duty", duty
	return nil
}

func (d *mockDriver) Coast() error {
	d.state, d.duty = "coast", 0
	return nil
}

func (d *mockDriver) Brake() error {
	d.state, d.duty = "brake", 0
	return nil
}

type mockEncoder struct {
	pinA, pinB uint32
	count      int32
	released   int
}

func (e *mockEncoder) Configure(pinA, pinB uint32) error {
	e.pinA, e.pinB = pinA, pinB
	return nil
}

func (e *mockEncoder) Count() int32         { return e.count }
func (e *mockEncoder) SetCount(count int32) { e.count = count }
func (e *mockEncoder) Release()             { e.released++ }

type testRig struct {
	rec      *recorder
	drivers  []*mockDriver
	encoders []*mockEncoder
}

// newTestRig resets every package global and registers the firmware
// commands against mock backends.
func newTestRig(t *testing.T) *testRig {
	t.Helper()
	globalRegistry = NewCommandRegistry()
	globalDictionary = NewDictionary(globalRegistry)
	resetTimers()
	resetDCMotors()
	ResetFirmwareState()
	ClearTimingRing()
	SetTime(0)
	TimerInit()
	supplyMillivolts = 12000

	InitCoreCommands()
	RegisterDCMotorCommands()

	rig := &testRig{rec: &recorder{}}
	SetGlobalTransport(rig.rec)
	SetDCDriverFactory(func() DCDriver {
		d := &mockDriver{}
		rig.drivers = append(rig.drivers, d)
		return d
	})
	SetEncoderFactory(func() EncoderDriver {
		e := &mockEncoder{}
		rig.encoders = append(rig.encoders, e)
		return e
	})
	t.Cleanup(func() {
		resetTimers()
		resetDCMotors()
		SetGlobalTransport(nil)
		SetDCDriverFactory(nil)
		SetEncoderFactory(nil)
	})
	return rig
}

// send encodes args and dispatches the named command.
func send(name string, args ...int32) error {
	cmd, ok := globalRegistry.GetCommandByName(name)
	if !ok {
		panic("unknown command " + name)
	}
	out := protocol.NewScratchOutput()
	for _, a := range args {
		protocol.EncodeVLQInt(out, a)
	}
	data := out.Result()
	return globalRegistry.Dispatch(cmd.ID, &data)
}

func mustSend(t *testing.T, name string, args ...int32) {
	t.Helper()
	if err := send(name, args...); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
}
