package ctscrape

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestJSONSerializerProducesValidDocument(t *testing.T) {
	var buf bytes.Buffer
	ser := NewSerializer(&buf, FormatJSON)

	top, err := ser.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := top.Key("log_url"); err != nil {
		t.Fatalf("Key: %v", err)
	}
	if err := top.String("https://example.test/"); err != nil {
		t.Fatalf("String: %v", err)
	}
	if err := top.Key("entries"); err != nil {
		t.Fatalf("Key: %v", err)
	}
	seq, err := top.Seq()
	if err != nil {
		t.Fatalf("Seq: %v", err)
	}
	if err := seq.Uint(42); err != nil {
		t.Fatalf("Uint: %v", err)
	}
	if err := seq.Bytes([]byte{0xde, 0xad, 0xbe, 0xef}); err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if err := seq.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := top.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	want := `{"log_url":"https://example.test/","entries":[42,"` +
		base64.RawStdEncoding.EncodeToString([]byte{0xde, 0xad, 0xbe, 0xef}) + `"]}`
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestJSONSerializerMapComma(t *testing.T) {
	var buf bytes.Buffer
	ser := NewSerializer(&buf, FormatJSON)
	top, _ := ser.Map()
	_ = top.Key("a")
	_ = top.Uint(1)
	_ = top.Key("b")
	_ = top.Uint(2)
	_ = top.End()

	if got, want := buf.String(), `{"a":1,"b":2}`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCBORContainersAreIndefiniteLength(t *testing.T) {
	var buf bytes.Buffer
	ser := NewSerializer(&buf, FormatCBOR)
	top, err := ser.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := top.Key("n"); err != nil {
		t.Fatalf("Key: %v", err)
	}
	if err := top.Uint(7); err != nil {
		t.Fatalf("Uint: %v", err)
	}
	if err := top.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	out := buf.Bytes()
	if out[0] != cborIndefiniteMap {
		t.Fatalf("first byte = %#x, want indefinite-map marker %#x", out[0], cborIndefiniteMap)
	}
	if out[len(out)-1] != cborBreakByte {
		t.Fatalf("last byte = %#x, want break %#x", out[len(out)-1], cborBreakByte)
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"json": FormatJSON, "cbor": FormatCBOR}
	for s, want := range cases {
		got, err := ParseFormat(s)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("ParseFormat(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("ParseFormat(%q) succeeded, want error", "xml")
	}
}
