package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Dictionary is the data dictionary an MCU reports through identify.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// ParseDictionary decodes identify data, inflating it first when it is
// zlib compressed.
func ParseDictionary(raw []byte) (*Dictionary, error) {
	data := raw
	if isZlib(raw) {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("inflate dictionary: %w", err)
		}
		data, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("inflate dictionary: %w", err)
		}
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	return dict, nil
}

// isZlib checks for a deflate zlib header (CMF 0x78 with a valid FCHECK).
func isZlib(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x78 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

// Formats builds encoders for every command, keyed by name, and decoders
// for every response, keyed by ID.
func (d *Dictionary) Formats() (map[string]*MessageFormat, map[int]*MessageFormat, error) {
	commands := make(map[string]*MessageFormat, len(d.Commands))
	for sig, id := range d.Commands {
		mf, err := ParseFormat(sig, id, d.Enumerations)
		if err != nil {
			return nil, nil, err
		}
		commands[mf.Name] = mf
	}
	responses := make(map[int]*MessageFormat, len(d.Responses))
	for sig, id := range d.Responses {
		mf, err := ParseFormat(sig, id, d.Enumerations)
		if err != nil {
			return nil, nil, err
		}
		responses[id] = mf
	}
	return commands, responses, nil
}

// ConfigInt returns a numeric constant.
func (d *Dictionary) ConfigInt(name string) (int64, bool) {
	s, ok := d.Config[name]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Print writes a summary of the dictionary.
func (d *Dictionary) Print(w io.Writer) {
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build:   %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedNames(d.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}

	printIDs(w, "Commands", d.Commands)
	printIDs(w, "Responses", d.Responses)

	if len(d.Enumerations) > 0 {
		fmt.Fprintln(w, "\nEnumerations:")
		for _, name := range sortedNames(d.Enumerations) {
			fmt.Fprintf(w, "  %s:", name)
			values := d.Enumerations[name]
			for _, v := range sortedNames(values) {
				fmt.Fprintf(w, " %s=%d", v, values[v])
			}
			fmt.Fprintln(w)
		}
	}
}

func printIDs(w io.Writer, title string, m map[string]int) {
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(m))
	sigs := sortedNames(m)
	sortByID(sigs, m)
	for _, sig := range sigs {
		fmt.Fprintf(w, "  [%2d] %s\n", m[sig], sig)
	}
}
