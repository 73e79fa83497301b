// Package lorio reads and writes coincidence event files. An event is
// a fixed 40-byte record of ten little-endian float32 values: t1, t2,
// x1, y1, z1, x2, y2, z2, the additive correction, and the prompt
// kind. Times are in picoseconds, positions in millimetres.
package lorio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"petrec/pkg/geom"
	"petrec/pkg/lor"
	"petrec/pkg/lorogram"
	"petrec/pkg/units"
)

// Event is one stored coincidence: the line of response plus its
// prompt classification.
type Event struct {
	LOR  lor.LOR
	Kind lorogram.Prompt
}

// recordSize is the on-disk size of one event.
const recordSize = 10 * 4

// Read decodes events until EOF. A stream ending mid-record is an
// error.
func Read(r io.Reader) ([]Event, error) {
	br := bufio.NewReader(r)
	var events []Event
	buf := make([]byte, recordSize)
	for {
		if _, err := io.ReadFull(br, buf); err != nil {
			if err == io.EOF {
				return events, nil
			}
			return nil, fmt.Errorf("event stream truncated after %d records: %w", len(events), err)
		}

		var f [10]float64
		for i := range f {
			f[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
		}

		kind := lorogram.Prompt(f[9])
		if float64(kind) != f[9] || kind < lorogram.True || kind > lorogram.Random {
			return nil, fmt.Errorf("record %d: unknown prompt kind %g", len(events), f[9])
		}

		events = append(events, Event{
			LOR: lor.New(
				units.Time(f[0]), units.Time(f[1]),
				geom.PtMM(f[2], f[3], f[4]),
				geom.PtMM(f[5], f[6], f[7]),
				units.Ratio(f[8]),
			),
			Kind: kind,
		})
	}
}

// Write encodes events in record order.
func Write(w io.Writer, events []Event) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, recordSize)
	for _, ev := range events {
		l := ev.LOR
		f := [10]float64{
			l.T1.PS(), l.T2.PS(),
			l.P1.X.MM(), l.P1.Y.MM(), l.P1.Z.MM(),
			l.P2.X.MM(), l.P2.Y.MM(), l.P2.Z.MM(),
			float64(l.AdditiveCorrection),
			float64(ev.Kind),
		}
		for i, v := range f {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode reads events from an in-memory encoding.
func Decode(data []byte) ([]Event, error) {
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("event data has %d bytes, not a multiple of the %d byte record size",
			len(data), recordSize)
	}
	return Read(bytes.NewReader(data))
}

// Encode writes events to an in-memory encoding.
func Encode(events []Event) []byte {
	var buf bytes.Buffer
	buf.Grow(len(events) * recordSize)
	// Write cannot fail against a bytes.Buffer.
	_ = Write(&buf, events)
	return buf.Bytes()
}

// ReadFile loads a local event file.
func ReadFile(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	defer file.Close()

	events, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// WriteFile stores events in a local file.
func WriteFile(path string, events []Event) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create event file: %w", err)
	}
	defer file.Close()
	return Write(file, events)
}

// LORs strips the classifications, keeping the lines of response in
// record order.
func LORs(events []Event) []lor.LOR {
	lors := make([]lor.LOR, len(events))
	for i, ev := range events {
		lors[i] = ev.LOR
	}
	return lors
}
