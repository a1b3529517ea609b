// Package crypto provides API-key management and HMAC request signing for the
// exchange REST API.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the credentials for signed exchange requests.
type HMACAuth struct {
	Key    string // API key
	Secret string // API secret
}

// Headers returns the authentication headers for a Bybit v5 request. The
// signature is HMAC-SHA256(secret, timestamp+key+recvWindow+payload) encoded
// as lowercase hex. payload is the raw query string for GET requests or the
// JSON body for POST requests.
func (h *HMACAuth) Headers(payload string, recvWindowMs int64) map[string]string {
	return h.HeadersAt(payload, recvWindowMs, time.Now().UnixMilli())
}

// HeadersAt is like Headers but lets the caller supply the millisecond
// timestamp (useful for deterministic testing).
func (h *HMACAuth) HeadersAt(payload string, recvWindowMs, tsMillis int64) map[string]string {
	ts := strconv.FormatInt(tsMillis, 10)
	recv := strconv.FormatInt(recvWindowMs, 10)

	message := ts + h.Key + recv + payload
	sig := hmacSHA256Hex([]byte(h.Secret), message)

	return map[string]string{
		"X-BAPI-API-KEY":     h.Key,
		"X-BAPI-TIMESTAMP":   ts,
		"X-BAPI-RECV-WINDOW": recv,
		"X-BAPI-SIGN":        sig,
	}
}

// hmacSHA256Hex computes HMAC-SHA256 of message using key and returns the
// result as a lowercase hex string.
func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
