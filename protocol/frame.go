package protocol

// ScanResult says what ScanFrame found at the start of a buffer.
type ScanResult uint8

const (
	// ScanFound means a complete, valid frame was found.
	ScanFound ScanResult = iota
	// ScanNeedMore means the buffer holds the start of a frame.
	ScanNeedMore
	// ScanBad means the buffer does not start with a valid frame; the
	// caller should drop bytes up to the next sync byte.
	ScanBad
)

// Frame is one decoded block.
type Frame struct {
	Sequence uint8
	Payload  []byte // aliases the scanned buffer
}

// IsAck reports whether the frame carries no messages.
func (f Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// ScanFrame checks the block at the start of data. On ScanFound, n is the
// number of bytes the block occupies. Leading sync bytes are not skipped.
func ScanFrame(data []byte) (f Frame, n int, res ScanResult) {
	if len(data) < MessageLengthMin {
		if len(data) > 0 && (data[0] < MessageLengthMin || data[0] > MessageLengthMax) {
			return f, 0, ScanBad
		}
		return f, 0, ScanNeedMore
	}
	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return f, 0, ScanBad
	}
	seq := data[MessagePositionSeq]
	if seq&^MessageSeqMask != MessageDest {
		return f, 0, ScanBad
	}
	if len(data) < msgLen {
		return f, 0, ScanNeedMore
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return f, 0, ScanBad
	}
	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return f, 0, ScanBad
	}
	return Frame{
		Sequence: seq,
		Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
	}, msgLen, ScanFound
}

// SkipToSync drops bytes up to and including the next sync byte. It
// reports false when there is none.
func SkipToSync(data []byte) ([]byte, bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}

// AppendFrame appends a complete block around payload.
func AppendFrame(dst []byte, seq uint8, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, uint8(MessageHeaderSize+len(payload)+MessageTrailerSize), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync)
}

// NextSequence advances a sequence byte within the 0x10-0x1F window.
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// CRC16 is the CRC-16/MCRF4XX checksum (poly 0x1021 reflected, init
// 0xFFFF) used by the block trailer.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}
