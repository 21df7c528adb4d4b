// Package codec obfuscates serialized history before it is written to
// storage.
//
// The encoding is reversible base64 behind a fixed prefix. It is NOT
// encryption and provides no confidentiality: anyone with access to the
// stored value can decode it.
package codec

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// Prefix tags encoded tokens so legacy plaintext can be told apart.
const Prefix = "ENC_"

// Encode returns the prefixed token for plaintext.
func Encode(plaintext string) string {
	return Prefix + base64.StdEncoding.EncodeToString([]byte(plaintext))
}

// Decode reverses Encode. Input without the prefix is returned unchanged, as
// is any token whose body is not valid base64 or does not decode to UTF-8.
func Decode(token string) string {
	body, ok := strings.CutPrefix(token, Prefix)
	if !ok {
		return token
	}
	b, err := base64.StdEncoding.DecodeString(body)
	if err != nil || !utf8.Valid(b) {
		return token
	}
	return string(b)
}

// IsEncoded reports whether s carries the encoding prefix.
func IsEncoded(s string) bool {
	return strings.HasPrefix(s, Prefix)
}
