package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
)

// VerifyFunc authenticates a raw request body against its signature
// header and, on success, returns the parsed inbound event. The engine
// is never invoked when verification fails.
type VerifyFunc func(rawBody []byte, signatureHeader, secret string) (engine.Inbound, error)

// EnvelopeParser extracts an inbound event from an already-verified body.
type EnvelopeParser func(rawBody []byte) (engine.Inbound, error)

// HMACVerifier builds a VerifyFunc that checks a hex-encoded HMAC-SHA256
// of the raw body (optionally prefixed "sha256=") before parsing.
func HMACVerifier(parse EnvelopeParser) VerifyFunc {
	return func(rawBody []byte, signatureHeader, secret string) (engine.Inbound, error) {
		if signatureHeader == "" {
			return engine.Inbound{}, engine.Authenticationf("missing signature header")
		}

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(rawBody)
		expected := hex.EncodeToString(mac.Sum(nil))

		got := strings.TrimPrefix(signatureHeader, "sha256=")
		if !hmac.Equal([]byte(expected), []byte(got)) {
			return engine.Inbound{}, engine.Authenticationf("signature mismatch")
		}

		return parse(rawBody)
	}
}
