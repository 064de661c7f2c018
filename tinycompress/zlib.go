// Package tinycompress writes zlib streams made of stored DEFLATE blocks.
// The output is not smaller than the input, but any zlib reader accepts it
// and the encoder needs no tables, which suits a TinyGo firmware image.
package tinycompress

import (
	"errors"
	"hash"
	"hash/adler32"
	"io"
)

const maxStoredBlock = 0xFFFF

// zlib header for deflate with a 32K window and default level, FCHECK valid.
var zlibHeader = [2]byte{0x78, 0x9C}

var ErrClosed = errors.New("tinycompress: write after close")

// Writer buffers one stored block at a time and flushes it to the
// underlying writer.
type Writer struct {
	w       io.Writer
	adler   hash.Hash32
	block   []byte
	started bool
	closed  bool
	err     error
}

// NewWriter returns a Writer that emits a zlib stream to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		adler: adler32.New(),
	}
}

// Write buffers p, flushing full blocks as they fill.
func (z *Writer) Write(p []byte) (int, error) {
	if z.closed {
		return 0, ErrClosed
	}
	if z.err != nil {
		return 0, z.err
	}
	z.adler.Write(p)

	n := 0
	for len(p) > 0 {
		room := maxStoredBlock - len(z.block)
		chunk := p
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		z.block = append(z.block, chunk...)
		p = p[len(chunk):]
		n += len(chunk)

		if len(z.block) == maxStoredBlock {
			if err := z.flushBlock(false); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Close writes the final block and the Adler-32 trailer. It does not close
// the underlying writer.
func (z *Writer) Close() error {
	if z.closed {
		return z.err
	}
	z.closed = true
	if z.err != nil {
		return z.err
	}
	if err := z.flushBlock(true); err != nil {
		return err
	}
	sum := z.adler.Sum32()
	_, z.err = z.w.Write([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
	return z.err
}

func (z *Writer) flushBlock(final bool) error {
	if !z.started {
		if _, z.err = z.w.Write(zlibHeader[:]); z.err != nil {
			return z.err
		}
		z.started = true
	}

	var bfinal byte
	if final {
		bfinal = 1
	}
	n := uint16(len(z.block))
	header := [5]byte{bfinal, byte(n), byte(n >> 8), byte(^n), byte(^n >> 8)}
	if _, z.err = z.w.Write(header[:]); z.err != nil {
		return z.err
	}
	if _, z.err = z.w.Write(z.block); z.err != nil {
		return z.err
	}
	z.block = z.block[:0]
	return nil
}

// Compress returns data wrapped in a zlib stream.
func Compress(data []byte) []byte {
	blocks := len(data)/maxStoredBlock + 1
	out := &sliceWriter{buf: make([]byte, 0, len(data)+2+5*blocks+4)}
	w := NewWriter(out)
	w.Write(data)
	w.Close()
	return out.buf
}

type sliceWriter struct {
	buf []byte
}

func (s *sliceWriter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}
