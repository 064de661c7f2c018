// Package mcu is the host-side client for a dcservo board: it downloads
// the data dictionary, encodes commands from their format strings and
// hands decoded responses to subscribers.
package mcu

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dcservo/host/serial"
	"dcservo/protocol"
)

// Bootstrap IDs every firmware registers first.
const (
	identifyResponseID = 0
	identifyID         = 1
	identifyChunk      = 40
)

var (
	ErrNotConnected  = errors.New("not connected to MCU")
	ErrNoDictionary  = errors.New("dictionary not loaded")
	ErrQueryTimeout  = errors.New("query timed out")
	errUnknownMsgID  = errors.New("unknown response ID")
	errShortIdentify = errors.New("identify returned no data")
)

type subscription struct {
	id int
	fn func(*Message)
}

// MCU is a connection to one board.
type MCU struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser
	log       zerolog.Logger

	dictionary     *Dictionary
	dictionaryData []byte

	mu        sync.RWMutex
	commands  map[string]*MessageFormat
	responses map[int]*MessageFormat
	subs      map[string][]subscription
	nextSub   int

	connected bool
}

// NewMCU creates an unconnected MCU.
func NewMCU() *MCU {
	return &MCU{
		log:  log.With().Str("component", "mcu").Logger(),
		subs: make(map[string][]subscription),
	}
}

// Connect opens a serial device with the default settings.
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens the port described by cfg.
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	m.log.Info().Str("device", cfg.Device).Msg("port open")
	m.Attach(port)
	return nil
}

// Attach starts talking over an already open link.
func (m *MCU) Attach(port io.ReadWriteCloser) {
	m.port = port
	m.transport = protocol.NewHostTransport(port)
	m.transport.SetResponseHandler(m.handleResponse)
	m.connected = true
}

// Close shuts the link down.
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.transport.Close()
}

// IsConnected reports whether a link is attached.
func (m *MCU) IsConnected() bool {
	return m.connected
}

// RetrieveDictionary downloads and parses the data dictionary.
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return ErrNotConnected
	}

	var raw []byte
	for {
		chunk, err := m.sendIdentify(uint32(len(raw)), identifyChunk)
		if err != nil {
			return fmt.Errorf("identify at offset %d: %w", len(raw), err)
		}
		raw = append(raw, chunk...)
		if len(chunk) < identifyChunk {
			break
		}
	}
	if len(raw) == 0 {
		return errShortIdentify
	}

	dict, err := ParseDictionary(raw)
	if err != nil {
		return err
	}
	commands, responses, err := dict.Formats()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.dictionaryData = raw
	m.dictionary = dict
	m.commands = commands
	m.responses = responses
	m.mu.Unlock()

	m.log.Info().
		Str("version", dict.Version).
		Int("bytes", len(raw)).
		Int("commands", len(commands)).
		Int("responses", len(responses)).
		Msg("dictionary loaded")
	return nil
}

// sendIdentify fetches one dictionary chunk. The dictionary is not known
// yet, so the response is read from the raw block queue.
func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := m.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(time.Second)
	for {
		resp, err := m.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return nil, err
		}
		payload := resp.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil || cmdID != identifyResponseID {
			continue
		}
		respOffset, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, err
		}
		if respOffset != offset {
			continue
		}
		return protocol.DecodeVLQBytes(&payload)
	}
}

// handleResponse runs on the transport's read goroutine for every message.
func (m *MCU) handleResponse(cmdID uint16, data *[]byte) error {
	m.mu.RLock()
	mf := m.responses[int(cmdID)]
	m.mu.RUnlock()
	if mf == nil {
		// Without the format the rest of the block cannot be parsed.
		return errUnknownMsgID
	}

	msg, err := mf.Decode(data)
	if err != nil {
		m.log.Warn().Err(err).Msg("bad response")
		return err
	}

	switch msg.Name {
	case "shutdown":
		m.log.Warn().Str("reason", msg.Text("reason")).Int64("clock", msg.Int("clock")).Msg("MCU shutdown")
	case "dc_motor_stall":
		m.log.Warn().Int64("oid", msg.Int("oid")).Int64("duration_ms", msg.Int("duration")).Msg("motor stalled")
	default:
		m.log.Debug().Str("msg", msg.String()).Msg("response")
	}

	m.mu.RLock()
	subs := append([]subscription(nil), m.subs[msg.Name]...)
	m.mu.RUnlock()
	for _, s := range subs {
		s.fn(msg)
	}
	return nil
}

// Subscribe calls fn for every response with the given name. fn runs on
// the read goroutine and must not block. The returned func unsubscribes.
func (m *MCU) Subscribe(name string, fn func(*Message)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[name] = append(m.subs[name], subscription{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		list := m.subs[name]
		for i, s := range list {
			if s.id == id {
				m.subs[name] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Lookup returns the format of a command.
func (m *MCU) Lookup(name string) (*MessageFormat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.commands == nil {
		return nil, ErrNoDictionary
	}
	mf, ok := m.commands[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	return mf, nil
}

// Send encodes a command by name and waits for its ACK.
func (m *MCU) Send(name string, args Args) error {
	if !m.connected {
		return ErrNotConnected
	}
	mf, err := m.Lookup(name)
	if err != nil {
		return err
	}

	// Encode first so argument errors are reported before anything is sent.
	payload := protocol.NewScratchOutput()
	if err := mf.Encode(payload, args); err != nil {
		return err
	}
	body := payload.Result()
	if _, err := protocol.DecodeVLQUint(&body); err != nil {
		return err
	}
	return m.transport.SendCommand(uint16(mf.ID), func(output protocol.OutputBuffer) {
		output.Output(body)
	})
}

// SendLine sends a command typed as "name key=value ...".
func (m *MCU) SendLine(fields []string) error {
	name, args, err := ParseLine(fields)
	if err != nil {
		return err
	}
	return m.Send(name, args)
}

// Query sends a command and returns the first response named resp that
// match accepts. A nil match accepts any.
func (m *MCU) Query(name string, args Args, resp string, match func(*Message) bool, timeout time.Duration) (*Message, error) {
	got := make(chan *Message, 1)
	cancel := m.Subscribe(resp, func(msg *Message) {
		if match != nil && !match(msg) {
			return
		}
		select {
		case got <- msg:
		default:
		}
	})
	defer cancel()

	if err := m.Send(name, args); err != nil {
		return nil, err
	}
	select {
	case msg := <-got:
		return msg, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: %s waiting for %s", ErrQueryTimeout, name, resp)
	}
}

// GetDictionary returns the parsed dictionary, nil before retrieval.
func (m *MCU) GetDictionary() *Dictionary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dictionary
}

// GetDictionaryRaw returns the identify data as received.
func (m *MCU) GetDictionaryRaw() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dictionaryData
}

// ClockFreq is the MCU timer rate, defaulting to 1 MHz.
func (m *MCU) ClockFreq() uint32 {
	if d := m.GetDictionary(); d != nil {
		if f, ok := d.ConfigInt("CLOCK_FREQ"); ok && f > 0 {
			return uint32(f)
		}
	}
	return 1000000
}

// Clock reads the MCU's current clock.
func (m *MCU) Clock() (uint32, error) {
	msg, err := m.Query("get_clock", nil, "clock", nil, time.Second)
	if err != nil {
		return 0, err
	}
	return uint32(msg.Int("clock")), nil
}
