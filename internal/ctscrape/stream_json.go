package ctscrape

import (
	"encoding/base64"
	"strconv"
)

// jsonEncodeString writes a JSON string literal. encoding/json's escaper is
// avoided here since we're emitting into an already-open stream rather than
// marshaling a whole value; strconv.Quote produces valid JSON string syntax
// for the inputs this package ever sees (log URLs, hex/base64 fields, fixed
// key names).
func jsonEncodeString(v string) []byte {
	return []byte(strconv.Quote(v))
}

// jsonEncodeBytes encodes raw bytes as unpadded standard base64, matching
// the original's choice (RFC 4648 base64 without padding) for byte fields
// in the JSON document.
func jsonEncodeBytes(v []byte) []byte {
	enc := base64.RawStdEncoding.EncodeToString(v)
	return []byte(strconv.Quote(enc))
}

func jsonEncodeUint(v uint64) []byte {
	return []byte(strconv.FormatUint(v, 10))
}
