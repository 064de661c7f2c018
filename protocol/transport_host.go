//go:build !tinygo

package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ResponseHandler handles one message from the MCU. It must consume the
// message arguments from data so the next message in the block can be read.
type ResponseHandler func(cmdID uint16, data *[]byte) error

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrAckTimeout      = errors.New("ack timeout")
)

// ackRetries bounds retransmissions after a NAK.
const ackRetries = 3

// HostTransport is the host end of the link. Commands are sent one block
// at a time and each waits for its ACK; responses go to the handler from
// the read goroutine.
type HostTransport struct {
	port io.ReadWriteCloser

	sendMu sync.Mutex // serializes SendCommand
	seq    uint8      // next sequence to send; guarded by sendMu

	ackChan  chan uint8
	respChan chan *Message

	handlerMu sync.RWMutex
	handler   ResponseHandler

	badFrames uint64 // guarded by statsMu
	statsMu   sync.Mutex

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
	readErr  error
}

// Message is one block received from the MCU.
type Message struct {
	Sequence uint8
	Payload  []byte
}

// NewHostTransport starts reading from port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:     port,
		seq:      MessageDest,
		ackChan:  make(chan uint8, 4),
		respChan: make(chan *Message, 16),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends a command and waits up to two seconds for its ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

// SendCommandWithTimeout sends a command and waits for its ACK. A NAK
// realigns the sequence and retransmits.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	payload := NewScratchOutput()
	EncodeVLQUint(payload, uint32(cmdID))
	if args != nil {
		args(payload)
	}
	if n := MessageHeaderSize + len(payload.Result()) + MessageTrailerSize; n > MessageLengthMax {
		return fmt.Errorf("message too long: %d bytes (max %d)", n, MessageLengthMax)
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	for attempt := 0; attempt < ackRetries; attempt++ {
		block := AppendFrame(nil, t.seq, payload.Result())
		if _, err := t.port.Write(block); err != nil {
			return fmt.Errorf("write block: %w", err)
		}

		ack, err := t.waitForAck(timeout)
		if err != nil {
			return err
		}
		if ack == NextSequence(t.seq) {
			t.seq = ack
			return nil
		}
		// The MCU expects another sequence; adopt it and resend.
		t.seq = ack
	}
	return fmt.Errorf("command %d not acknowledged after %d attempts", cmdID, ackRetries)
}

func (t *HostTransport) waitForAck(timeout time.Duration) (uint8, error) {
	select {
	case seq := <-t.ackChan:
		return seq, nil
	case <-time.After(timeout):
		return 0, fmt.Errorf("%w after %v", ErrAckTimeout, timeout)
	case <-t.stopChan:
		return 0, ErrTransportClosed
	}
}

// ReceiveResponse returns the next response block.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	select {
	case resp := <-t.respChan:
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return nil, ErrTransportClosed
	}
}

// SetResponseHandler sets the callback for every message the MCU sends.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.handler = handler
	t.handlerMu.Unlock()
}

// BadFrames returns how many corrupt or misaligned blocks were dropped.
func (t *HostTransport) BadFrames() uint64 {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.badFrames
}

// Err returns the error that ended the read loop, if any.
func (t *HostTransport) Err() error {
	select {
	case <-t.doneChan:
		return t.readErr
	default:
		return nil
	}
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	var pending []byte
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = t.processBlocks(pending)
		}
		if err != nil {
			select {
			case <-t.stopChan:
			default:
				if err != io.EOF {
					t.readErr = err
				}
			}
			t.stopOnce.Do(func() { close(t.stopChan) })
			return
		}
	}
}

// processBlocks dispatches every complete block and returns the rest.
func (t *HostTransport) processBlocks(data []byte) []byte {
	for len(data) > 0 {
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		frame, n, res := ScanFrame(data)
		switch res {
		case ScanNeedMore:
			return append([]byte(nil), data...)
		case ScanBad:
			t.statsMu.Lock()
			t.badFrames++
			t.statsMu.Unlock()
			data, _ = SkipToSync(data)
			continue
		}
		data = data[n:]
		t.dispatch(frame)
	}
	return nil
}

func (t *HostTransport) dispatch(frame Frame) {
	if frame.IsAck() {
		select {
		case t.ackChan <- frame.Sequence:
		default:
		}
		return
	}

	payload := append([]byte(nil), frame.Payload...)

	t.handlerMu.RLock()
	handler := t.handler
	t.handlerMu.RUnlock()
	if handler != nil {
		data := payload
		for len(data) > 0 {
			cmdID, err := DecodeVLQUint(&data)
			if err != nil || handler(uint16(cmdID), &data) != nil {
				break
			}
		}
	}

	msg := &Message{Sequence: frame.Sequence, Payload: payload}
	select {
	case t.respChan <- msg:
	default:
		// Drop the oldest so a slow reader sees recent blocks.
		select {
		case <-t.respChan:
		default:
		}
		select {
		case t.respChan <- msg:
		default:
		}
	}
}

// Close stops the read loop and closes the port.
func (t *HostTransport) Close() error {
	t.stopOnce.Do(func() { close(t.stopChan) })
	err := t.port.Close()
	<-t.doneChan
	return err
}

// Sequence returns the next sequence to be sent.
func (t *HostTransport) Sequence() uint8 {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.seq
}
