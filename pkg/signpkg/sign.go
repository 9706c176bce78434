// Package signpkg signs and verifies request bodies with HMAC-SHA256.
package signpkg

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header carries the hex encoded body signature.
const Header = "X-Signature"

// Sign returns hex(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the signature of body, in constant time.
func Verify(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), got)
}
