// Package sse decodes server-sent event streams into typed events and
// writes the standard framing. Records are framed by a blank line; each
// record carries optional "event:" and "data:" lines in any order.
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DoneSentinel is the literal data payload some endpoints use instead of
// an explicit done event.
const DoneSentinel = "[DONE]"

// DefaultEventName is assigned to records without an event line.
const DefaultEventName = "message"

// Event is a single decoded stream record.
type Event struct {
	// Type is the event name ("message" when the record had none).
	Type string

	// Data holds the payload when it parsed as JSON.
	Data json.RawMessage

	// Raw holds the unparsed payload when it was not valid JSON.
	Raw string
}

// IsDone reports whether the event terminates the stream.
func (e *Event) IsDone() bool {
	return e.Type == "done"
}

// Decoder incrementally parses an SSE byte stream. It never assumes a
// single event per network chunk: partial records stay buffered until
// the blank-line delimiter arrives.
type Decoder struct {
	r       io.Reader
	buf     bytes.Buffer
	pending []*Event
	chunk   []byte
	eof     bool
}

// NewDecoder wraps a raw response body.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, chunk: make([]byte, 4096)}
}

// Next returns the next event. It returns io.EOF when the stream is
// exhausted; a trailing record without a final delimiter is still
// delivered before EOF.
func (d *Decoder) Next() (*Event, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		if d.eof {
			return nil, io.EOF
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.buf.Write(d.chunk[:n])
			d.drainComplete()
		}
		if err != nil {
			d.eof = true
			if err != io.EOF {
				return nil, err
			}
			// Flush whatever remains in the buffer as a final record.
			if rest := strings.TrimSpace(normalizeNewlines(d.buf.String())); rest != "" {
				if ev := parseRecord(rest); ev != nil {
					d.pending = append(d.pending, ev)
				}
			}
			d.buf.Reset()
		}
	}
}

// drainComplete splits off every complete record in the buffer, keeping
// the trailing partial record for the next read.
func (d *Decoder) drainComplete() {
	text := normalizeNewlines(d.buf.String())
	parts := strings.Split(text, "\n\n")
	if len(parts) < 2 {
		return
	}
	for _, record := range parts[:len(parts)-1] {
		if ev := parseRecord(record); ev != nil {
			d.pending = append(d.pending, ev)
		}
	}
	d.buf.Reset()
	d.buf.WriteString(parts[len(parts)-1])
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// parseRecord interprets one blank-line-delimited record. Records with an
// empty data payload are skipped (nil return). Lines may arrive in any
// order; the last event/data line of each kind wins.
func parseRecord(record string) *Event {
	name := DefaultEventName
	var data string
	haveData := false

	for _, line := range strings.Split(record, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			haveData = true
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		}
	}

	if !haveData || data == "" {
		return nil
	}
	if data == DoneSentinel {
		return &Event{Type: "done"}
	}
	if json.Valid([]byte(data)) {
		return &Event{Type: name, Data: json.RawMessage(data)}
	}
	return &Event{Type: name, Raw: data}
}

// WriteEvent emits one record with the standard framing. An empty name
// writes a bare data record.
func WriteEvent(w io.Writer, name string, payload []byte) error {
	if name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// WriteDone emits the terminator sentinel.
func WriteDone(w io.Writer) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", DoneSentinel)
	return err
}
