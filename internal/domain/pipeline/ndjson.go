// internal/domain/pipeline/ndjson.go

package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

const maxEventLine = 4 << 20

// EncodeEvent writes ev as one line of newline-delimited JSON
func EncodeEvent(w io.Writer, ev StageEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stage event: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write stage event: %w", err)
	}
	return nil
}

// Decoder reads a stream of stage events, skipping lines that do not parse
type Decoder struct {
	scanner *bufio.Scanner
	skipped int
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	return &Decoder{scanner: sc}
}

// Next returns the next well-formed event, or false at end of stream
func (d *Decoder) Next() (StageEvent, bool) {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev StageEvent
		if err := json.Unmarshal(line, &ev); err != nil || ev.Stage == "" || ev.Status == "" {
			d.skipped++
			continue
		}
		return ev, true
	}
	return StageEvent{}, false
}

// Err returns the first read error, if any
func (d *Decoder) Err() error {
	return d.scanner.Err()
}

// Skipped returns how many unparseable lines were dropped
func (d *Decoder) Skipped() int {
	return d.skipped
}

// DecodeEvents reads every well-formed event from r
func DecodeEvents(r io.Reader) ([]StageEvent, error) {
	dec := NewDecoder(r)

	var events []StageEvent
	for {
		ev, ok := dec.Next()
		if !ok {
			break
		}
		events = append(events, ev)
	}
	return events, dec.Err()
}
