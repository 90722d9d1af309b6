// ABOUTME: Frame types and wire encoding for the research event stream
// ABOUTME: Each frame is "data: " + JSON({type, data}) + "\n\n"

package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// Marker prefixes every frame on the wire.
	Marker = "data: "
	// Delimiter terminates every frame on the wire.
	Delimiter = "\n\n"
)

// Type discriminates the payload carried by a frame.
type Type string

const (
	TypeProgress Type = "progress"
	TypeFinal    Type = "final"
	TypeError    Type = "error"
)

// Frame is one decoded unit of the event stream. Data is kept raw so the
// consumer decides how to interpret it for each type.
type Frame struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode errors
var (
	ErrMissingMarker = errors.New("missing data marker")
	ErrMissingType   = errors.New("missing frame type")
)

// DecodeError reports a single malformed frame. The stream it came from is
// still usable; callers skip the frame and keep reading.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Unmarshal decodes the frame payload into v.
func (f Frame) Unmarshal(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s frame has no data", f.Type)
	}
	return json.Unmarshal(f.Data, v)
}

// Text returns the payload as display text: JSON strings are unquoted,
// anything else is returned as compact JSON.
func (f Frame) Text() string {
	if len(f.Data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.Data, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, f.Data); err != nil {
		return string(f.Data)
	}
	return buf.String()
}

// Parse decodes one delimited segment (without its trailing delimiter).
func Parse(segment []byte) (Frame, error) {
	payload, ok := bytes.CutPrefix(segment, []byte(Marker))
	if !ok {
		return Frame{}, &DecodeError{Raw: string(segment), Err: ErrMissingMarker}
	}

	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Frame{}, &DecodeError{Raw: string(segment), Err: err}
	}
	if f.Type == "" {
		return Frame{}, &DecodeError{Raw: string(segment), Err: ErrMissingType}
	}
	return f, nil
}

// wireFrame is the JSON envelope written by Encode.
type wireFrame struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Encode renders a frame in its exact wire shape.
func Encode(typ Type, data any) ([]byte, error) {
	payload, err := json.Marshal(wireFrame{Type: typ, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", typ, err)
	}

	buf := make([]byte, 0, len(Marker)+len(payload)+len(Delimiter))
	buf = append(buf, Marker...)
	buf = append(buf, payload...)
	buf = append(buf, Delimiter...)
	return buf, nil
}

// Write encodes a frame and writes it to w.
func Write(w io.Writer, typ Type, data any) error {
	b, err := Encode(typ, data)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
