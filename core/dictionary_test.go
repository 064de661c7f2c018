package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"

	"dcservo/protocol"
)

type dictJSON struct {
	Version      string                    `json:"version"`
	Config       map[string]string         `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Responses    map[string]int            `json:"responses"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

// downloadDictionary fetches the dictionary through identify the way a
// host does, in 40 byte chunks until an empty chunk comes back.
func downloadDictionary(t *testing.T, rec *recorder) []byte {
	t.Helper()
	var blob []byte
	for {
		before := len(rec.msgs)
		mustSend(t, "identify", int32(len(blob)), 40)
		if len(rec.msgs) != before+1 || rec.msgs[before].name != "identify_response" {
			t.Fatalf("identify produced no identify_response")
		}
		data := rec.msgs[before].data
		offset, err := protocol.DecodeVLQUint(&data)
		if err != nil || int(offset) != len(blob) {
			t.Fatalf("identify_response offset %d err %v, want %d", offset, err, len(blob))
		}
		chunk, err := protocol.DecodeVLQBytes(&data)
		if err != nil {
			t.Fatalf("identify_response data: %v", err)
		}
		if len(chunk) == 0 {
			return blob
		}
		blob = append(blob, chunk...)
	}
}

func TestDictionaryDownload(t *testing.T) {
	rig := newTestRig(t)
	RegisterConstant("MCU", "rp2040")
	RegisterConstant("CLOCK_FREQ", uint32(TimerFreq))
	GetGlobalDictionary().BuildDictionary()

	blob := downloadDictionary(t, rig.rec)
	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("dictionary is not zlib: %v", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if !bytes.Equal(raw, GetGlobalDictionary().JSON()) {
		t.Error("downloaded dictionary differs from JSON()")
	}

	var dict dictJSON
	if err := json.Unmarshal(raw, &dict); err != nil {
		t.Fatalf("dictionary is not JSON: %v\n%s", err, raw)
	}

	if dict.Responses["identify_response offset=%u data=%*s"] != 0 {
		t.Error("identify_response is not ID 0")
	}
	if dict.Commands["identify offset=%u count=%c"] != 1 {
		t.Error("identify is not ID 1")
	}
	if _, ok := dict.Commands["dc_motor_set_voltage oid=%c voltage=%i"]; !ok {
		t.Error("dc_motor_set_voltage missing")
	}
	if _, ok := dict.Responses["dc_motor_stall oid=%c clock=%u duration=%u"]; !ok {
		t.Error("dc_motor_stall missing")
	}

	wantConfig := map[string]string{
		"MCU":            "rp2040",
		"CLOCK_FREQ":     "1000000",
		"DC_MAX_VOLTAGE": "12000",
		"DC_MAX_TORQUE":  "1000000",
		"DC_SUPPLY_MV":   "12000",
		"DC_LOOP_MS":     "5",
	}
	for k, want := range wantConfig {
		if got := dict.Config[k]; got != want {
			t.Errorf("config %s = %q, want %q", k, got, want)
		}
	}

	models := dict.Enumerations["dc_model"]
	if models["medium"] != 0 || models["small"] != 1 {
		t.Errorf("dc_model enumeration = %v", models)
	}
}

func TestDictionaryRebuildsAfterChange(t *testing.T) {
	newTestRig(t)
	d := GetGlobalDictionary()
	first := d.Generate()

	d.AddConstant("EXTRA", 7)
	if bytes.Equal(first, d.Generate()) {
		t.Error("dictionary not rebuilt after AddConstant")
	}
	if !bytes.Contains(d.JSON(), []byte(`"EXTRA":"7"`)) {
		t.Errorf("constant missing from %s", d.JSON())
	}
}

func TestGetChunkBounds(t *testing.T) {
	newTestRig(t)
	d := GetGlobalDictionary()
	size := uint32(len(d.Generate()))

	if n := len(d.GetChunk(size-5, 40)); n != 5 {
		t.Errorf("tail chunk len = %d, want 5", n)
	}
	if n := len(d.GetChunk(size, 40)); n != 0 {
		t.Errorf("chunk past end len = %d", n)
	}
	if n := len(d.GetChunk(size+100, 40)); n != 0 {
		t.Errorf("chunk far past end len = %d", n)
	}
}

func TestAppendJSONStringEscapes(t *testing.T) {
	got := string(appendJSONString(nil, "a\"b\\c\nd"))
	if got != `"a\"b\\c d"` {
		t.Errorf("escaped = %s", got)
	}
}
