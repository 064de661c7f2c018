package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})
	if buf.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", buf.Available())
	}

	buf.Pop(2)
	if d := buf.Data(); len(d) != 3 || d[0] != 3 {
		t.Errorf("after Pop(2) data = %v", d)
	}
	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past end left %d bytes", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})

	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}
	scratch.Update(0, 99)
	if r := scratch.Result(); !bytes.Equal(r, []byte{99, 2, 3, 4, 5}) {
		t.Errorf("Result = %v", r)
	}
	if since := scratch.DataSince(2); !bytes.Equal(since, []byte{3, 4, 5}) {
		t.Errorf("DataSince(2) = %v", since)
	}
	if scratch.DataSince(9) != nil {
		t.Error("DataSince past end should be nil")
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 {
		t.Errorf("After reset, expected position 0, got %d", scratch.CurPosition())
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax+10))
	if scratch.CurPosition() != MessageMax {
		t.Errorf("position = %d, want %d", scratch.CurPosition(), MessageMax)
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)
	if !fifo.IsEmpty() || fifo.Free() != 10 {
		t.Fatal("new FIFO not empty")
	}

	if n := fifo.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Errorf("wrote %d, want 5", n)
	}
	readBuf := make([]byte, 3)
	if n := fifo.Read(readBuf); n != 3 || !bytes.Equal(readBuf, []byte{1, 2, 3}) {
		t.Errorf("read %d %v", n, readBuf)
	}
	fifo.Pop(1)
	if fifo.Available() != 1 {
		t.Errorf("available = %d, want 1", fifo.Available())
	}

	fifo.Reset()
	if n := fifo.Write(make([]byte, 12)); n != 10 {
		t.Errorf("wrote %d bytes to size-10 FIFO, want 10", n)
	}
}

func TestFifoBufferCompacts(t *testing.T) {
	fifo := NewFifoBuffer(6)
	fifo.Write([]byte{1, 2, 3, 4, 5})
	fifo.Pop(3)

	// Only one slot is free at the end, so the write moves 4 and 5 down.
	if n := fifo.Write([]byte{6, 7, 8}); n != 3 {
		t.Fatalf("wrote %d, want 3", n)
	}
	if d := fifo.Data(); !bytes.Equal(d, []byte{4, 5, 6, 7, 8}) {
		t.Errorf("Data = %v, want [4 5 6 7 8]", d)
	}
}
