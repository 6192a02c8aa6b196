package ctscrape

import (
	"bytes"
	"encoding/json"
	"testing"

	"ctscrape.dev/internal/ctscrapetest"
)

func TestSinkEmptyLogHasNoEntriesKey(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSink(&buf, FormatJSON, "https://example.test/", false, false)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	sink.Cast(metadataRequest{sth: STH{TreeSize: 0, Timestamp: 1000}})
	if err := sink.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if _, ok := doc["entries"]; ok {
		t.Fatalf("entries key present with no entries emitted")
	}
	for _, key := range []string{"log_url", "scrape_begin_timestamp", "sth", "scrape_end_timestamp"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("missing required top-level key %q", key)
		}
	}
}

func TestSinkEntryShapeFlags(t *testing.T) {
	cert := []byte("leaf-der")
	chainCert := []byte("chain-der")
	tbs := []byte("tbs-der")
	var issuerKeyHash [32]byte
	for i := range issuerKeyHash {
		issuerKeyHash[i] = byte(i)
	}

	leaf := ctscrapetest.PrecertMerkleTreeLeaf(1532471986235, issuerKeyHash, tbs)
	extra, err := ctscrapetest.PrecertExtraData(cert, [][]byte{chainCert})
	if err != nil {
		t.Fatalf("PrecertExtraData: %v", err)
	}

	var buf bytes.Buffer
	sink, err := NewSink(&buf, FormatJSON, "https://example.test/", true, true)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	sink.Cast(metadataRequest{sth: STH{TreeSize: 1, Timestamp: 1000}})
	sink.Cast(entryRequest{entryNumber: 0, entry: RawEntry{LeafInput: leaf, ExtraData: extra}})
	if err := sink.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var doc struct {
		Entries []struct {
			EntryNumber uint64 `json:"entry_number"`
			Timestamp   uint64 `json:"timestamp"`
			Chain       []string `json:"chain"`
			Precert     *struct {
				IssuerKeyHash string `json:"issuer_key_hash"`
			} `json:"precert"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(doc.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(doc.Entries))
	}
	e := doc.Entries[0]
	if e.EntryNumber != 0 {
		t.Fatalf("entry_number = %d, want 0", e.EntryNumber)
	}
	if len(e.Chain) != 1 {
		t.Fatalf("chain length = %d, want 1", len(e.Chain))
	}
	if e.Precert == nil {
		t.Fatalf("precert missing for a precert entry with include-precert-data set")
	}
}

func TestSinkTerminateRunsOnFatalWrite(t *testing.T) {
	sink, err := NewSink(&bytes.Buffer{}, FormatJSON, "https://example.test/", false, false)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	sink.Cast(entryRequest{entryNumber: 0, entry: RawEntry{LeafInput: []byte{1, 2, 3}}})
	// Terminate must still run even though the decode above fails, and
	// Stop returns the decode error Terminate was called with.
	if err := sink.Stop(); err == nil {
		t.Fatal("expected Stop to surface the decode error")
	}
}
