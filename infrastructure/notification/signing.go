package notification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Webhook signature headers.
const (
	HeaderSignature   = "X-Webhook-Signature"
	HeaderSignatureV2 = "X-Webhook-Signature-V2"
	HeaderTimestamp   = "X-Webhook-Timestamp"
)

// Signer signs webhook bodies with HMAC-SHA256.
type Signer struct{}

// NewSigner creates a new payload signer.
func NewSigner() *Signer {
	return &Signer{}
}

// SignPayload returns "sha256=<hex>" for payload under secret.
func (s *Signer) SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload.
func (s *Signer) VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(s.SignPayload(payload, secret)), []byte(signature))
}

// SignedHeaders returns the signature headers for one request. The V2
// signature covers "<unix>.<body>" so a captured request cannot be replayed
// outside the receiver's tolerance window.
func (s *Signer) SignedHeaders(payload []byte, secret string, timestamp time.Time) map[string]string {
	ts := strconv.FormatInt(timestamp.Unix(), 10)
	return map[string]string{
		HeaderSignature:   s.SignPayload(payload, secret),
		HeaderTimestamp:   ts,
		HeaderSignatureV2: s.SignPayload(timestamped(ts, payload), secret),
	}
}

// VerifyTimestampedSignature checks a V2 signature and that timestamp lies
// within tolerance of now.
func (s *Signer) VerifyTimestampedSignature(payload []byte, secret, signature string, timestamp int64, tolerance time.Duration) bool {
	skew := time.Since(time.Unix(timestamp, 0))
	if skew < -tolerance || skew > tolerance {
		return false
	}
	expected := s.SignPayload(timestamped(strconv.FormatInt(timestamp, 10), payload), secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func timestamped(ts string, payload []byte) []byte {
	out := make([]byte, 0, len(ts)+1+len(payload))
	out = append(out, ts...)
	out = append(out, '.')
	return append(out, payload...)
}
