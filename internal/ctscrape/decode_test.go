package ctscrape

import (
	"bytes"
	"errors"
	"testing"

	"ctscrape.dev/internal/ctscrapetest"
)

func TestDecodeX509Entry(t *testing.T) {
	cert := []byte("fake-leaf-certificate-der")
	chainCert := []byte("fake-chain-certificate-der")
	leaf := ctscrapetest.MerkleTreeLeaf(1666198004098, cert)
	extra, err := ctscrapetest.X509ExtraData([][]byte{chainCert})
	if err != nil {
		t.Fatalf("X509ExtraData: %v", err)
	}

	d, err := decodeEntry(3, leaf, extra)
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}
	if d.entryNumber != 3 {
		t.Fatalf("entryNumber = %d, want 3", d.entryNumber)
	}
	if d.timestamp != 1666198004098 {
		t.Fatalf("timestamp = %d, want 1666198004098", d.timestamp)
	}
	if !bytes.Equal(d.certificate, cert) {
		t.Fatalf("certificate mismatch")
	}
	if len(d.chain) != 1 || !bytes.Equal(d.chain[0], chainCert) {
		t.Fatalf("chain mismatch: %v", d.chain)
	}
	if d.precert != nil {
		t.Fatalf("precert should be nil for an X.509 entry")
	}
}

func TestDecodePrecertEntry(t *testing.T) {
	tbs := []byte("fake-tbs-certificate-der")
	submitted := []byte("fake-submitted-precertificate-der")
	var issuerKeyHash [32]byte
	copy(issuerKeyHash[:], bytes.Repeat([]byte{0xab}, 32))

	leaf := ctscrapetest.PrecertMerkleTreeLeaf(1532471986235, issuerKeyHash, tbs)
	extra, err := ctscrapetest.PrecertExtraData(submitted, nil)
	if err != nil {
		t.Fatalf("PrecertExtraData: %v", err)
	}

	d, err := decodeEntry(0, leaf, extra)
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}
	if d.timestamp != 1532471986235 {
		t.Fatalf("timestamp = %d, want 1532471986235", d.timestamp)
	}
	if !bytes.Equal(d.certificate, submitted) {
		t.Fatalf("certificate = %x, want submitted precertificate %x", d.certificate, submitted)
	}
	if d.precert == nil {
		t.Fatalf("precert should be set for a precert entry")
	}
	if !bytes.Equal(d.precert.issuerKeyHash, issuerKeyHash[:]) {
		t.Fatalf("issuer key hash mismatch")
	}
	if !bytes.Equal(d.precert.tbsCertificate, tbs) {
		t.Fatalf("tbs_certificate mismatch")
	}
}

func TestDecodeMalformedLeafIsEntryDecodingError(t *testing.T) {
	_, err := decodeEntry(0, []byte{1, 2, 3}, nil)
	if err == nil {
		t.Fatal("expected an error for a truncated leaf_input")
	}
	var ctErr *Error
	if !errors.As(err, &ctErr) {
		t.Fatalf("error is not *ctscrape.Error: %v", err)
	}
	if ctErr.Kind != KindEntryDecoding {
		t.Fatalf("Kind = %v, want KindEntryDecoding", ctErr.Kind)
	}
}
