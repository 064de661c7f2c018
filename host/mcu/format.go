package mcu

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"dcservo/protocol"
)

// ParamType is how a parameter is carried on the wire.
type ParamType uint8

const (
	ParamUint   ParamType = iota // %u, %hu
	ParamInt                     // %i, %hi
	ParamByte                    // %c
	ParamBuffer                  // %*s, %.*s, %s
)

// Param is one named field of a message.
type Param struct {
	Name string
	Type ParamType
	Enum map[string]int // nil unless the field is enumerated
}

// MessageFormat is a command or response as listed in the dictionary.
type MessageFormat struct {
	Name   string
	ID     int
	Params []Param
}

// Args are the values of an outgoing command. Values may be any integer
// type, a string holding a number or enum name, or []byte for buffers.
type Args map[string]interface{}

// Message is a decoded response.
type Message struct {
	Name    string
	ID      int
	Values  map[string]int64
	Buffers map[string][]byte

	format *MessageFormat
}

// ParseFormat builds the format for a dictionary signature such as
// "dc_motor_set_voltage oid=%c voltage=%i". A parameter is enumerated when
// an enumeration shares its name or suffix.
func ParseFormat(signature string, id int, enums map[string]map[string]int) (*MessageFormat, error) {
	fields := strings.Fields(signature)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty message signature")
	}
	mf := &MessageFormat{Name: fields[0], ID: id}
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("%s: bad parameter %q", mf.Name, f)
		}
		p := Param{Name: kv[0]}
		switch kv[1] {
		case "%u", "%hu":
			p.Type = ParamUint
		case "%i", "%hi":
			p.Type = ParamInt
		case "%c":
			p.Type = ParamByte
		case "%*s", "%.*s", "%s":
			p.Type = ParamBuffer
		default:
			return nil, fmt.Errorf("%s: unknown type %q for %s", mf.Name, kv[1], p.Name)
		}
		if p.Type != ParamBuffer {
			p.Enum = findEnum(p.Name, enums)
		}
		mf.Params = append(mf.Params, p)
	}
	return mf, nil
}

func findEnum(name string, enums map[string]map[string]int) map[string]int {
	for _, enumName := range sortedNames(enums) {
		if name == enumName || strings.HasSuffix(name, "_"+enumName) || strings.HasSuffix(enumName, "_"+name) {
			return enums[enumName]
		}
	}
	return nil
}

// Encode writes the message ID and every parameter in order.
func (mf *MessageFormat) Encode(out protocol.OutputBuffer, args Args) error {
	protocol.EncodeVLQUint(out, uint32(mf.ID))
	for _, p := range mf.Params {
		raw, ok := args[p.Name]
		if !ok {
			return fmt.Errorf("%s: missing %s", mf.Name, p.Name)
		}
		if p.Type == ParamBuffer {
			b, err := toBytes(raw)
			if err != nil {
				return fmt.Errorf("%s: %s: %w", mf.Name, p.Name, err)
			}
			protocol.EncodeVLQBytes(out, b)
			continue
		}
		v, err := p.toInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", mf.Name, p.Name, err)
		}
		switch p.Type {
		case ParamInt:
			if v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("%s: %s=%d out of range", mf.Name, p.Name, v)
			}
			protocol.EncodeVLQInt(out, int32(v))
		case ParamByte:
			if v < 0 || v > math.MaxUint8 {
				return fmt.Errorf("%s: %s=%d out of range", mf.Name, p.Name, v)
			}
			protocol.EncodeVLQUint(out, uint32(v))
		default:
			// Negative values wrap, which clock arithmetic relies on.
			if v < math.MinInt32 || v > math.MaxUint32 {
				return fmt.Errorf("%s: %s=%d out of range", mf.Name, p.Name, v)
			}
			protocol.EncodeVLQUint(out, uint32(v))
		}
	}
	return nil
}

func (p *Param) toInt(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		if p.Enum != nil {
			if n, ok := p.Enum[v]; ok {
				return int64(n), nil
			}
		}
		n, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			if p.Enum != nil {
				return 0, fmt.Errorf("unknown value %q", v)
			}
			return 0, fmt.Errorf("bad integer %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}

func toBytes(raw interface{}) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported buffer type %T", raw)
	}
}

// Decode reads the parameters that follow the message ID.
func (mf *MessageFormat) Decode(data *[]byte) (*Message, error) {
	msg := &Message{
		Name:   mf.Name,
		ID:     mf.ID,
		Values: make(map[string]int64, len(mf.Params)),
		format: mf,
	}
	for _, p := range mf.Params {
		switch p.Type {
		case ParamInt:
			v, err := protocol.DecodeVLQInt(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", mf.Name, p.Name, err)
			}
			msg.Values[p.Name] = int64(v)
		case ParamBuffer:
			b, err := protocol.DecodeVLQBytes(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", mf.Name, p.Name, err)
			}
			if msg.Buffers == nil {
				msg.Buffers = make(map[string][]byte)
			}
			msg.Buffers[p.Name] = append([]byte(nil), b...)
		default:
			v, err := protocol.DecodeVLQUint(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", mf.Name, p.Name, err)
			}
			msg.Values[p.Name] = int64(v)
		}
	}
	return msg, nil
}

// Int returns a numeric parameter, 0 if absent.
func (m *Message) Int(name string) int64 {
	return m.Values[name]
}

// Text returns a buffer parameter as a string.
func (m *Message) Text(name string) string {
	return string(m.Buffers[name])
}

// String renders the message the way it would be typed.
func (m *Message) String() string {
	var sb strings.Builder
	sb.WriteString(m.Name)
	if m.format == nil {
		return sb.String()
	}
	for _, p := range m.format.Params {
		sb.WriteByte(' ')
		sb.WriteString(p.Name)
		sb.WriteByte('=')
		if p.Type == ParamBuffer {
			sb.WriteString(strconv.Quote(string(m.Buffers[p.Name])))
			continue
		}
		v := m.Values[p.Name]
		if name, ok := enumName(p.Enum, v); ok {
			sb.WriteString(name)
			continue
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	}
	return sb.String()
}

func enumName(enum map[string]int, v int64) (string, bool) {
	for name, n := range enum {
		if int64(n) == v {
			return name, true
		}
	}
	return "", false
}

// ParseLine splits "name key=value ..." fields, as typed at the prompt,
// into a command name and its arguments.
func ParseLine(fields []string) (string, Args, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	args := make(Args, len(fields)-1)
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return "", nil, fmt.Errorf("bad argument %q, want key=value", f)
		}
		args[kv[0]] = kv[1]
	}
	return fields[0], args, nil
}
