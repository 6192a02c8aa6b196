package ctscrape

import (
	"fmt"
	"io"
	"sync"
)

// Format tags which wire encoding the streaming serializer emits.
type Format int

const (
	FormatJSON Format = iota
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	default:
		return "unknown"
	}
}

// ParseFormat parses a CLI/config format string, the Go analogue of the
// original's TryFrom<&str> impl on StreamFormat.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("unknown output format %q", s)
	}
}

// sink is the mutex-guarded byte destination shared by a Serializer and
// every container handle opened from it. The lock exists only to satisfy
// the general ownership contract described in the spec — the sink holds
// exclusive access to the serializer in practice, so contention is not
// expected.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sink) write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(b)
	return err
}

// Serializer is a stateful, format-tagged document writer. It never
// buffers a whole document: every call forwards bytes to the underlying
// writer immediately.
type Serializer struct {
	format Format
	s      *sink
}

// NewSerializer wraps w for incremental, format-tagged writes.
func NewSerializer(w io.Writer, format Format) *Serializer {
	return &Serializer{format: format, s: &sink{w: w}}
}

func (s *Serializer) String(v string) error {
	return s.s.write(encodeString(s.format, v))
}

func (s *Serializer) Bytes(v []byte) error {
	return s.s.write(encodeBytes(s.format, v))
}

func (s *Serializer) Uint(v uint64) error {
	return s.s.write(encodeUint(s.format, v))
}

// Map opens a nested map container, returning a handle used to write keys
// and values until End is called.
func (s *Serializer) Map() (*MapWriter, error) {
	if err := s.s.write(openMap(s.format)); err != nil {
		return nil, err
	}
	return &MapWriter{format: s.format, s: s.s}, nil
}

// Seq opens a nested sequence container.
func (s *Serializer) Seq() (*SeqWriter, error) {
	if err := s.s.write(openSeq(s.format)); err != nil {
		return nil, err
	}
	return &SeqWriter{format: s.format, s: s.s}, nil
}

// MapWriter writes key/value pairs into one open map container. Call Key
// before every value write (scalar or nested container); call End exactly
// once to close it.
type MapWriter struct {
	format         Format
	s              *sink
	elementWritten bool
}

func (m *MapWriter) element() error {
	if m.elementWritten && m.format == FormatJSON {
		if err := m.s.write([]byte{','}); err != nil {
			return err
		}
	}
	m.elementWritten = true
	return nil
}

func (m *MapWriter) Key(name string) error {
	if err := m.element(); err != nil {
		return err
	}
	if err := m.s.write(encodeString(m.format, name)); err != nil {
		return err
	}
	if m.format == FormatJSON {
		return m.s.write([]byte{':'})
	}
	return nil
}

func (m *MapWriter) String(v string) error { return m.s.write(encodeString(m.format, v)) }
func (m *MapWriter) Bytes(v []byte) error  { return m.s.write(encodeBytes(m.format, v)) }
func (m *MapWriter) Uint(v uint64) error   { return m.s.write(encodeUint(m.format, v)) }

func (m *MapWriter) Map() (*MapWriter, error) {
	if err := m.s.write(openMap(m.format)); err != nil {
		return nil, err
	}
	return &MapWriter{format: m.format, s: m.s}, nil
}

func (m *MapWriter) Seq() (*SeqWriter, error) {
	if err := m.s.write(openSeq(m.format)); err != nil {
		return nil, err
	}
	return &SeqWriter{format: m.format, s: m.s}, nil
}

func (m *MapWriter) End() error {
	return m.s.write(closeContainer(m.format, containerMap))
}

// SeqWriter writes elements into one open sequence container.
type SeqWriter struct {
	format         Format
	s              *sink
	elementWritten bool
}

func (q *SeqWriter) element() error {
	if q.elementWritten && q.format == FormatJSON {
		if err := q.s.write([]byte{','}); err != nil {
			return err
		}
	}
	q.elementWritten = true
	return nil
}

func (q *SeqWriter) String(v string) error {
	if err := q.element(); err != nil {
		return err
	}
	return q.s.write(encodeString(q.format, v))
}

func (q *SeqWriter) Bytes(v []byte) error {
	if err := q.element(); err != nil {
		return err
	}
	return q.s.write(encodeBytes(q.format, v))
}

func (q *SeqWriter) Uint(v uint64) error {
	if err := q.element(); err != nil {
		return err
	}
	return q.s.write(encodeUint(q.format, v))
}

func (q *SeqWriter) Map() (*MapWriter, error) {
	if err := q.element(); err != nil {
		return nil, err
	}
	if err := q.s.write(openMap(q.format)); err != nil {
		return nil, err
	}
	return &MapWriter{format: q.format, s: q.s}, nil
}

func (q *SeqWriter) Seq() (*SeqWriter, error) {
	if err := q.element(); err != nil {
		return nil, err
	}
	if err := q.s.write(openSeq(q.format)); err != nil {
		return nil, err
	}
	return &SeqWriter{format: q.format, s: q.s}, nil
}

func (q *SeqWriter) End() error {
	return q.s.write(closeContainer(q.format, containerSeq))
}

type containerKind int

const (
	containerMap containerKind = iota
	containerSeq
)

func encodeString(f Format, v string) []byte {
	switch f {
	case FormatCBOR:
		return cborEncodeString(v)
	default:
		return jsonEncodeString(v)
	}
}

func encodeBytes(f Format, v []byte) []byte {
	switch f {
	case FormatCBOR:
		return cborEncodeBytes(v)
	default:
		return jsonEncodeBytes(v)
	}
}

func encodeUint(f Format, v uint64) []byte {
	switch f {
	case FormatCBOR:
		return cborEncodeUint(v)
	default:
		return jsonEncodeUint(v)
	}
}

func openMap(f Format) []byte {
	if f == FormatCBOR {
		return cborOpenMap()
	}
	return []byte{'{'}
}

func openSeq(f Format) []byte {
	if f == FormatCBOR {
		return cborOpenSeq()
	}
	return []byte{'['}
}

func closeContainer(f Format, kind containerKind) []byte {
	if f == FormatCBOR {
		return cborBreak()
	}
	if kind == containerMap {
		return []byte{'}'}
	}
	return []byte{']'}
}
