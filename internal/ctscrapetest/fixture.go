package ctscrapetest

import (
	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
	"golang.org/x/crypto/cryptobyte"
)

// MerkleTreeLeaf builds an RFC 6962 §3.4 MerkleTreeLeaf for a plain X.509
// entry: version/leaf_type (both v1=0), timestamp, entry_type=0, the
// uint24-length-prefixed DER certificate, and an empty CtExtensions
// vector. The byte layout mirrors sunlight.LogEntry.MerkleTreeLeaf, minus
// the SCT-extension this log doesn't need.
func MerkleTreeLeaf(timestamp uint64, certDER []byte) []byte {
	b := &cryptobyte.Builder{}
	b.AddUint8(0) // version = v1
	b.AddUint8(0) // leaf_type = timestamped_entry
	b.AddUint64(timestamp)
	b.AddUint16(0) // entry_type = x509_entry
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(certDER)
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {}) // empty CtExtensions
	return b.BytesOrPanic()
}

// PrecertMerkleTreeLeaf builds the precert_entry variant: issuer_key_hash
// followed by the uint24-length-prefixed TBSCertificate DER.
func PrecertMerkleTreeLeaf(timestamp uint64, issuerKeyHash [32]byte, tbsDER []byte) []byte {
	b := &cryptobyte.Builder{}
	b.AddUint8(0)
	b.AddUint8(0)
	b.AddUint64(timestamp)
	b.AddUint16(1) // entry_type = precert_entry
	b.AddBytes(issuerKeyHash[:])
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(tbsDER)
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {})
	return b.BytesOrPanic()
}

// X509ExtraData TLS-encodes the X509ChainEntry extra_data: just the
// certificate chain, the same type (ct.CertificateChain) and marshaling
// (tls.Marshal) the log-serving side of the teacher repo uses.
func X509ExtraData(chain [][]byte) ([]byte, error) {
	entries := make([]ct.ASN1Cert, len(chain))
	for i, c := range chain {
		entries[i] = ct.ASN1Cert{Data: c}
	}
	return tls.Marshal(ct.CertificateChain{Entries: entries})
}

// PrecertExtraData TLS-encodes the PrecertChainEntry extra_data: the
// submitted precertificate plus its chain.
func PrecertExtraData(preCertDER []byte, chain [][]byte) ([]byte, error) {
	entries := make([]ct.ASN1Cert, len(chain))
	for i, c := range chain {
		entries[i] = ct.ASN1Cert{Data: c}
	}
	return tls.Marshal(ct.PrecertChainEntry{
		PreCertificate:   ct.ASN1Cert{Data: preCertDER},
		CertificateChain: entries,
	})
}
