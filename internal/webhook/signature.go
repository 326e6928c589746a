package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// VerifySignature checks signature over the raw request body according to scheme.
// An empty signature never verifies.
func VerifySignature(scheme string, payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	switch scheme {
	case SchemeHMACSHA256Hex:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		expected := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(signature), []byte(expected))
	case SchemeHMACSHA1Base64:
		mac := hmac.New(sha1.New, []byte(secret))
		mac.Write(payload)
		expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(signature), []byte(expected))
	case SchemeSharedSecret:
		return subtle.ConstantTimeCompare([]byte(signature), []byte(secret)) == 1
	default:
		return false
	}
}
