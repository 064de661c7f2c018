package protocol

import (
	"bytes"
	"testing"
)

func TestCRC16(t *testing.T) {
	tests := []struct {
		data []byte
		want uint16
	}{
		{nil, 0xffff},
		{[]byte{0x00}, 0x0f87},
		{[]byte{0xff}, 0x00ff},
		{[]byte{0x05, 0x10}, 0x9e81},
		{[]byte{1, 2, 3, 4, 5}, 0xdd13},
		{[]byte("123456789"), 0x6f91},
	}
	for _, tt := range tests {
		if got := CRC16(tt.data); got != tt.want {
			t.Errorf("CRC16(% x) = %#04x, want %#04x", tt.data, got, tt.want)
		}
	}
}

func TestAppendFrameAck(t *testing.T) {
	got := AppendFrame(nil, MessageDest, nil)
	want := []byte{0x05, 0x10, 0x9e, 0x81, 0x7e}
	if !bytes.Equal(got, want) {
		t.Errorf("ACK block = % x, want % x", got, want)
	}
}

func TestScanFrameRoundTrip(t *testing.T) {
	payload := []byte{3, 0x87, 0x68}
	block := AppendFrame([]byte{0xAA}, 0x13, payload)[1:]

	f, n, res := ScanFrame(block)
	if res != ScanFound {
		t.Fatalf("result = %d, want ScanFound", res)
	}
	if n != len(block) {
		t.Errorf("n = %d, want %d", n, len(block))
	}
	if f.Sequence != 0x13 || !bytes.Equal(f.Payload, payload) || f.IsAck() {
		t.Errorf("frame = %+v", f)
	}
}

func TestScanFrameIncomplete(t *testing.T) {
	block := AppendFrame(nil, MessageDest, []byte{1, 2, 3})
	for i := 1; i < len(block); i++ {
		if _, _, res := ScanFrame(block[:i]); res != ScanNeedMore {
			t.Errorf("prefix of %d bytes: result %d, want ScanNeedMore", i, res)
		}
	}
}

func TestScanFrameRejects(t *testing.T) {
	good := AppendFrame(nil, MessageDest, []byte{1, 2})

	corrupt := func(i int, v byte) []byte {
		b := append([]byte(nil), good...)
		b[i] = v
		return b
	}
	cases := map[string][]byte{
		"short length": {0x02, 0x10, 0, 0, 0x7e},
		"long length":  {0x41, 0x10},
		"bad seq":      corrupt(1, 0x20),
		"bad crc":      corrupt(len(good)-2, good[len(good)-2]^0xFF),
		"bad sync":     corrupt(len(good)-1, 0x00),
		"bad payload":  corrupt(2, 9),
	}
	for name, data := range cases {
		if _, _, res := ScanFrame(data); res != ScanBad {
			t.Errorf("%s: result %d, want ScanBad", name, res)
		}
	}
}

func TestSkipToSync(t *testing.T) {
	rest, ok := SkipToSync([]byte{1, 2, 0x7e, 5, 6})
	if !ok || !bytes.Equal(rest, []byte{5, 6}) {
		t.Errorf("SkipToSync = % x, %v", rest, ok)
	}
	if _, ok := SkipToSync([]byte{1, 2, 3}); ok {
		t.Error("found sync in data without one")
	}
}

func TestNextSequence(t *testing.T) {
	if got := NextSequence(0x10); got != 0x11 {
		t.Errorf("NextSequence(0x10) = %#x", got)
	}
	if got := NextSequence(0x1F); got != 0x10 {
		t.Errorf("NextSequence(0x1F) = %#x, want wrap to 0x10", got)
	}
}
