package ctscrape

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR has no high-level streaming writer, so containers are opened and
// closed with hand-written indefinite-length header bytes (the same
// low-level approach the original took with ciborium_ll's Header/Encoder
// API) while individual scalars still go through the library's Marshal for
// correct major-type/length-prefix encoding.
const (
	cborIndefiniteMap   byte = 0xbf
	cborIndefiniteArray byte = 0x9f
	cborBreakByte       byte = 0xff
)

func cborOpenMap() []byte { return []byte{cborIndefiniteMap} }

func cborOpenSeq() []byte { return []byte{cborIndefiniteArray} }

func cborBreak() []byte { return []byte{cborBreakByte} }

func cborEncodeString(v string) []byte {
	b, err := cbor.Marshal(v)
	if err != nil {
		// cbor.Marshal only fails on unsupported types; string is always
		// supported, so this path is unreachable in practice.
		panic(err)
	}
	return b
}

func cborEncodeBytes(v []byte) []byte {
	b, err := cbor.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func cborEncodeUint(v uint64) []byte {
	b, err := cbor.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
