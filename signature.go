package main

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"net/http"
	"strings"
)

// signatureAlgorithms maps the algorithm name carried in the signature header
// to its hash constructor. GitHub sends sha1 on X-Hub-Signature and sha256 on
// X-Hub-Signature-256.
var signatureAlgorithms = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
}

// defaultSignatureAlgorithm is assumed when the header is absent or carries no
// "=" separator. Verification then runs against an empty digest and fails, so
// unsigned requests are rejected rather than crashing.
const defaultSignatureAlgorithm = "sha1"

// signatureHeader picks the signature sent with the request, preferring the
// sha256 variant GitHub adds on newer webhook configurations.
func signatureHeader(h http.Header) string {
	if s := h.Get("X-Hub-Signature-256"); s != "" {
		return s
	}
	return h.Get("X-Hub-Signature")
}

// verifyWebhookSignature checks that header carries a valid
// "<algorithm>=<hexdigest>" HMAC of body keyed with the shared secret.
func verifyWebhookSignature(body []byte, secret string, header string) bool {
	algorithm, theirDigest := defaultSignatureAlgorithm, ""
	if i := strings.IndexByte(header, '='); i >= 0 {
		algorithm, theirDigest = header[:i], header[i+1:]
	}

	newHash, ok := signatureAlgorithms[algorithm]
	if !ok {
		return false
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	ourDigest := hex.EncodeToString(mac.Sum(nil))

	// Compare digests (constant time comparison for security)
	return hmac.Equal([]byte(ourDigest), []byte(theirDigest))
}
