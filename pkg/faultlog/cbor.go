package faultlog

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Fault records are written with canonical map ordering and definite
// lengths, so the same Event always produces the same bytes. Two sessions
// that hit the same fault can be compared record by record, and a
// truncated file fails at a record boundary instead of inside an open
// container.
//
// Timestamps are RFC3339Nano strings. The control loop runs at 1 kHz, so
// several events can share a millisecond, and the text form keeps records
// readable in generic CBOR tools without knowing the schema.
var eventEncMode = mustEncMode(cbor.EncOptions{
	Sort:          cbor.SortCanonical,
	IndefLength:   cbor.IndefLengthForbidden,
	NilContainers: cbor.NilContainerAsNull,
	Time:          cbor.TimeRFC3339Nano,
})

// Decoding is lenient: logs written by other builds may repeat keys or use
// indefinite lengths, and a reader should still get every event out.
var eventDecMode = mustDecMode(cbor.DecOptions{
	DupMapKey:         cbor.DupMapKeyQuiet,
	IndefLength:       cbor.IndefLengthAllowed,
	ExtraReturnErrors: cbor.ExtraDecErrorNone,
})

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("faultlog: invalid event encoding options: %v", err))
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("faultlog: invalid event decoding options: %v", err))
	}
	return m
}

// EncodeEvent encodes one fault record.
func EncodeEvent(event Event) ([]byte, error) {
	return eventEncMode.Marshal(event)
}

// DecodeEvent decodes one fault record.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := eventDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode fault record: %w", err)
	}
	return event, nil
}

// NewEncoder returns an encoder appending fault records to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return eventEncMode.NewEncoder(w)
}

// NewDecoder returns a decoder reading fault records from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return eventDecMode.NewDecoder(r)
}
