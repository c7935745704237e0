// Package fingerprint computes a stable identity for a (source, schema,
// config) triple so that pkg/patterncache can key a compiled plan without
// re-running the pipeline. Grounded on internal/encoding's
// TermEncoder.Hash128 — same xxh3.Hash128-to-[16]byte extraction, applied
// to the translator's cache key instead of an RDF term.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Fingerprint is a 128-bit digest, printable as a cache key or log field.
type Fingerprint [16]byte

// String renders the fingerprint as lowercase hex.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Of hashes the concatenation of source, the schema document's raw bytes,
// and a caller-chosen config tag (e.g. "case_insensitive=true;window=7d")
// into one fingerprint. Inputs are length-prefixed so that, e.g., source
// "ab"+schema "c" cannot collide with source "a"+schema "bc".
func Of(source string, schemaDoc []byte, configTag string) Fingerprint {
	buf := make([]byte, 0, len(source)+len(schemaDoc)+len(configTag)+24)
	buf = appendLenPrefixed(buf, []byte(source))
	buf = appendLenPrefixed(buf, schemaDoc)
	buf = appendLenPrefixed(buf, []byte(configTag))

	hash := xxh3.Hash128(buf)
	var result Fingerprint
	binary.BigEndian.PutUint64(result[0:8], hash.Hi)
	binary.BigEndian.PutUint64(result[8:16], hash.Lo)
	return result
}

func appendLenPrefixed(buf, data []byte) []byte {
	var lenBytes [8]byte
	binary.BigEndian.PutUint64(lenBytes[:], uint64(len(data)))
	buf = append(buf, lenBytes[:]...)
	return append(buf, data...)
}
