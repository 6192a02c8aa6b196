package ctscrape

import (
	"io"
	"time"
)

// STH is a Signed Tree Head snapshot, fetched once by the Runner and
// forwarded to the sink as Metadata.
type STH struct {
	TreeSize          uint64
	Timestamp         uint64
	SHA256RootHash    []byte
	TreeHeadSignature []byte
}

// RawEntry is what a Fetcher hands the sink for one log entry: the two
// opaque blobs from a get-entries response, not yet decoded.
type RawEntry struct {
	LeafInput []byte
	ExtraData []byte
}

type metadataRequest struct {
	sth STH
}

type entryRequest struct {
	entryNumber uint64
	entry       RawEntry
}

// fileWriter is the Sink: a single-threaded consumer of Metadata/Entry
// requests that owns the output document's top-level map for the whole
// scrape and closes it exactly once on termination.
type fileWriter struct {
	top                *MapWriter
	entries            *SeqWriter
	includeChains      bool
	includePrecertData bool
}

// NewSink opens the top-level output document on w and starts the sink's
// goroutine, returning a Handle to cast Metadata/Entry requests to.
// log_url and scrape_begin_timestamp are written immediately so the
// document is well-formed from the first byte onward.
func NewSink(w io.Writer, format Format, logURL string, includeChains, includePrecertData bool) (*Handle, error) {
	ser := NewSerializer(w, format)
	top, err := ser.Map()
	if err != nil {
		return nil, outputErr("top-level map open", err)
	}
	if err := top.Key("log_url"); err != nil {
		return nil, outputErr("log_url key", err)
	}
	if err := top.String(logURL); err != nil {
		return nil, outputErr("log_url value", err)
	}
	if err := top.Key("scrape_begin_timestamp"); err != nil {
		return nil, outputErr("scrape_begin_timestamp key", err)
	}
	if err := top.Uint(nowMillis()); err != nil {
		return nil, outputErr("scrape_begin_timestamp value", err)
	}

	fw := &fileWriter{
		top:                top,
		includeChains:      includeChains,
		includePrecertData: includePrecertData,
	}
	return Start(fw), nil
}

func (fw *fileWriter) HandleCast(msg any) error {
	switch m := msg.(type) {
	case metadataRequest:
		return fw.writeMetadata(m.sth)
	case entryRequest:
		return fw.writeEntry(m.entryNumber, m.entry)
	default:
		return internalErr("sink received unknown request type")
	}
}

func (fw *fileWriter) writeMetadata(sth STH) error {
	if err := fw.top.Key("sth"); err != nil {
		return outputErr("sth key", err)
	}
	sm, err := fw.top.Map()
	if err != nil {
		return outputErr("sth map open", err)
	}
	if err := sm.Key("tree_size"); err != nil {
		return outputErr("tree_size key", err)
	}
	if err := sm.Uint(sth.TreeSize); err != nil {
		return outputErr("tree_size value", err)
	}
	if err := sm.Key("timestamp"); err != nil {
		return outputErr("sth timestamp key", err)
	}
	if err := sm.Uint(sth.Timestamp); err != nil {
		return outputErr("sth timestamp value", err)
	}
	if err := sm.Key("sha256_root_hash"); err != nil {
		return outputErr("sha256_root_hash key", err)
	}
	if err := sm.Bytes(sth.SHA256RootHash); err != nil {
		return outputErr("sha256_root_hash value", err)
	}
	if err := sm.Key("tree_head_signature"); err != nil {
		return outputErr("tree_head_signature key", err)
	}
	if err := sm.Bytes(sth.TreeHeadSignature); err != nil {
		return outputErr("tree_head_signature value", err)
	}
	if err := sm.End(); err != nil {
		return outputErr("sth map close", err)
	}
	return nil
}

func (fw *fileWriter) writeEntry(entryNumber uint64, raw RawEntry) error {
	if fw.entries == nil {
		if err := fw.top.Key("entries"); err != nil {
			return outputErr("entries key", err)
		}
		seq, err := fw.top.Seq()
		if err != nil {
			return outputErr("entries seq open", err)
		}
		fw.entries = seq
	}

	d, err := decodeEntry(entryNumber, raw.LeafInput, raw.ExtraData)
	if err != nil {
		return err
	}

	em, err := fw.entries.Map()
	if err != nil {
		return outputErr("entry map open", err)
	}
	if err := em.Key("entry_number"); err != nil {
		return outputErr("entry_number key", err)
	}
	if err := em.Uint(d.entryNumber); err != nil {
		return outputErr("entry_number value", err)
	}
	if err := em.Key("timestamp"); err != nil {
		return outputErr("entry timestamp key", err)
	}
	if err := em.Uint(d.timestamp); err != nil {
		return outputErr("entry timestamp value", err)
	}
	if err := em.Key("certificate"); err != nil {
		return outputErr("certificate key", err)
	}
	if err := em.Bytes(d.certificate); err != nil {
		return outputErr("certificate value", err)
	}

	if fw.includeChains {
		if err := em.Key("chain"); err != nil {
			return outputErr("chain key", err)
		}
		cs, err := em.Seq()
		if err != nil {
			return outputErr("chain seq open", err)
		}
		for _, c := range d.chain {
			if err := cs.Bytes(c); err != nil {
				return outputErr("chain entry", err)
			}
		}
		if err := cs.End(); err != nil {
			return outputErr("chain seq close", err)
		}
	}

	if fw.includePrecertData && d.precert != nil {
		if err := em.Key("precert"); err != nil {
			return outputErr("precert key", err)
		}
		pm, err := em.Map()
		if err != nil {
			return outputErr("precert map open", err)
		}
		if err := pm.Key("issuer_key_hash"); err != nil {
			return outputErr("issuer_key_hash key", err)
		}
		if err := pm.Bytes(d.precert.issuerKeyHash); err != nil {
			return outputErr("issuer_key_hash value", err)
		}
		if err := pm.Key("tbs_certificate"); err != nil {
			return outputErr("tbs_certificate key", err)
		}
		if err := pm.Bytes(d.precert.tbsCertificate); err != nil {
			return outputErr("tbs_certificate value", err)
		}
		if err := pm.End(); err != nil {
			return outputErr("precert map close", err)
		}
	}

	return em.End()
}

// Terminate always runs, success or failure: it closes whatever
// containers are still open so the document is as complete as it can be
// even on a fatal error, best-effort.
func (fw *fileWriter) Terminate(cause error) error {
	if fw.entries != nil {
		_ = fw.entries.End()
	}
	_ = fw.top.Key("scrape_end_timestamp")
	_ = fw.top.Uint(nowMillis())
	_ = fw.top.End()
	return cause
}

func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
