package ctscrape

import (
	ct "github.com/google/certificate-transparency-go"
)

// decodedEntry is the canonical, format-neutral shape an entry is reduced
// to before being handed to the serializer. It intentionally carries only
// what the output document needs — nothing X.509-specific beyond the raw
// DER bytes, which the downstream consumer is responsible for parsing.
type decodedEntry struct {
	entryNumber uint64
	timestamp   uint64
	certificate []byte
	chain       [][]byte
	precert     *decodedPrecert
}

type decodedPrecert struct {
	issuerKeyHash []byte
	tbsCertificate []byte
}

// decodeEntry turns one get-entries leaf (leaf_input + extra_data) into a
// decodedEntry, delegating the RFC 6962 §3.4-3.5 binary parsing to
// certificate-transparency-go: that library owns the MerkleTreeLeaf and
// ExtraData wire formats, this function only reshapes the parsed result
// into the fields the output document needs.
func decodeEntry(entryNumber uint64, leafInput, extraData []byte) (*decodedEntry, error) {
	raw, err := ct.RawLogEntryFromLeaf(int64(entryNumber), &ct.LeafEntry{
		LeafInput: leafInput,
		ExtraData: extraData,
	})
	if err != nil {
		return nil, entryDecodingErr("leaf_input is not a valid TimestampedEntry: " + err.Error())
	}

	d := &decodedEntry{
		entryNumber: entryNumber,
		timestamp:   raw.Leaf.TimestampedEntry.Timestamp,
	}

	switch raw.Leaf.TimestampedEntry.EntryType {
	case ct.X509LogEntryType:
		d.certificate = raw.Cert.Data
		for _, c := range raw.Chain {
			d.chain = append(d.chain, c.Data)
		}
	case ct.PrecertLogEntryType:
		d.certificate = raw.Cert.Data
		for _, c := range raw.Chain {
			d.chain = append(d.chain, c.Data)
		}
		issuerKeyHash := raw.Leaf.TimestampedEntry.PrecertEntry.IssuerKeyHash
		d.precert = &decodedPrecert{
			issuerKeyHash:  issuerKeyHash[:],
			tbsCertificate: raw.Leaf.TimestampedEntry.PrecertEntry.TBSCertificate.Data,
		}
	default:
		return nil, entryDecodingErr("unsupported log entry type")
	}

	return d, nil
}
