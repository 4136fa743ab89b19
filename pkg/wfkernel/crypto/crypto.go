// Package crypto implements the hashing and HMAC primitives the kernel
// signs and verifies everything with: canonical bytes in, a branded digest
// or tag out.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a branded SHA-256 hex digest, "sha256:<hex>".
type Digest string

// Sha256 returns the branded digest of b.
func Sha256(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest("sha256:" + hex.EncodeToString(sum[:]))
}

// Hex returns the bare hex portion of the digest, without the "sha256:"
// brand, for use as a filesystem-safe content-address key.
func (d Digest) Hex() string {
	const prefix = "sha256:"
	if len(d) > len(prefix) && string(d[:len(prefix)]) == prefix {
		return string(d[len(prefix):])
	}
	return string(d)
}

func (d Digest) String() string { return string(d) }

// Sign computes the HMAC-SHA-256 tag of body under key, hex-encoded.
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks tag against the HMAC-SHA-256 of body under key using a
// constant-time comparison.
func Verify(key, body []byte, tag string) bool {
	expected := Sign(key, body)
	return hmac.Equal([]byte(expected), []byte(tag))
}
