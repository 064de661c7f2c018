package mcu

import (
	"strings"
	"testing"

	"dcservo/protocol"
)

var testEnums = map[string]map[string]int{
	"dc_model": {"medium": 0, "small": 1},
}

func TestParseFormat(t *testing.T) {
	mf, err := ParseFormat("config_dc_motor oid=%c pin_a=%u counts_per_rev=%u model=%c", 12, testEnums)
	if err != nil {
		t.Fatal(err)
	}
	if mf.Name != "config_dc_motor" || mf.ID != 12 || len(mf.Params) != 4 {
		t.Fatalf("format = %+v", mf)
	}
	if mf.Params[0].Type != ParamByte || mf.Params[1].Type != ParamUint {
		t.Errorf("param types = %+v", mf.Params)
	}
	if mf.Params[3].Enum == nil {
		t.Error("model not matched to dc_model enumeration")
	}
	if mf.Params[0].Enum != nil {
		t.Error("oid matched an enumeration")
	}

	if _, err := ParseFormat("bad oid=%q", 1, nil); err == nil {
		t.Error("unknown type accepted")
	}
	if _, err := ParseFormat("bad oid", 1, nil); err == nil {
		t.Error("parameter without type accepted")
	}
}

func TestEncodeDecode(t *testing.T) {
	mf, err := ParseFormat("msg oid=%c clock=%u voltage=%i model=%c reason=%*s", 7, testEnums)
	if err != nil {
		t.Fatal(err)
	}

	out := protocol.NewScratchOutput()
	err = mf.Encode(out, Args{
		"oid":     uint8(2),
		"clock":   "0x10000",
		"voltage": -12000,
		"model":   "small",
		"reason":  "emergency stop",
	})
	if err != nil {
		t.Fatal(err)
	}

	data := out.Result()
	id, _ := protocol.DecodeVLQUint(&data)
	if id != 7 {
		t.Fatalf("id = %d", id)
	}
	msg, err := mf.Decode(&data)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("%d bytes left over", len(data))
	}
	if msg.Int("oid") != 2 || msg.Int("clock") != 0x10000 || msg.Int("voltage") != -12000 || msg.Int("model") != 1 {
		t.Errorf("values = %v", msg.Values)
	}
	if msg.Text("reason") != "emergency stop" {
		t.Errorf("reason = %q", msg.Text("reason"))
	}

	want := `msg oid=2 clock=65536 voltage=-12000 model=small reason="emergency stop"`
	if s := msg.String(); s != want {
		t.Errorf("String() = %s\nwant       %s", s, want)
	}
}

func TestEncodeUintWraps(t *testing.T) {
	mf, _ := ParseFormat("msg clock=%u", 3, nil)
	out := protocol.NewScratchOutput()
	if err := mf.Encode(out, Args{"clock": -1}); err != nil {
		t.Fatal(err)
	}
	data := out.Result()[1:]
	if v, _ := protocol.DecodeVLQUint(&data); v != 0xFFFFFFFF {
		t.Errorf("clock = %#x", v)
	}
}

func TestEncodeErrors(t *testing.T) {
	mf, _ := ParseFormat("msg oid=%c voltage=%i model=%c", 3, testEnums)
	tests := []struct {
		args Args
		want string
	}{
		{Args{"oid": 0, "voltage": 1}, "missing model"},
		{Args{"oid": 256, "voltage": 1, "model": 0}, "out of range"},
		{Args{"oid": 0, "voltage": int64(1) << 40, "model": 0}, "out of range"},
		{Args{"oid": 0, "voltage": "1.5", "model": 0}, "bad integer"},
		{Args{"oid": 0, "voltage": 1, "model": "huge"}, "unknown value"},
		{Args{"oid": 0, "voltage": 1.5, "model": 0}, "unsupported"},
	}
	for _, tt := range tests {
		err := mf.Encode(protocol.NewScratchOutput(), tt.args)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Encode(%v) = %v, want error containing %q", tt.args, err, tt.want)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	mf, _ := ParseFormat("msg a=%u b=%i", 3, nil)
	data := []byte{0x05}
	if _, err := mf.Decode(&data); err == nil {
		t.Error("truncated message decoded")
	}
}

func TestParseLine(t *testing.T) {
	name, args, err := ParseLine([]string{"dc_motor_set_voltage", "oid=0", "voltage=-3000"})
	if err != nil {
		t.Fatal(err)
	}
	if name != "dc_motor_set_voltage" || args["oid"] != "0" || args["voltage"] != "-3000" {
		t.Errorf("ParseLine = %s %v", name, args)
	}
	if _, _, err := ParseLine([]string{"x", "novalue"}); err == nil {
		t.Error("argument without = accepted")
	}
	if _, _, err := ParseLine(nil); err == nil {
		t.Error("empty line accepted")
	}
}
