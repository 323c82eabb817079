package notification

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestSigner_SignAndVerify(t *testing.T) {
	signer := NewSigner()

	tests := []struct {
		name    string
		payload []byte
		secret  string
	}{
		{"simple payload", []byte(`{"event":"test"}`), "test-secret"},
		{"empty payload", []byte{}, "test-secret"},
		{"event batch", []byte(`[{"type":"tools.list_changed","revision":3}]`), "super-secret-key-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signature := signer.SignPayload(tt.payload, tt.secret)

			if !strings.HasPrefix(signature, "sha256=") {
				t.Errorf("signature should start with 'sha256=', got: %s", signature)
			}
			if len(signature) != len("sha256=")+64 {
				t.Errorf("signature length = %d", len(signature))
			}
			if signature != signer.SignPayload(tt.payload, tt.secret) {
				t.Error("signing is not deterministic")
			}
			if !signer.VerifySignature(tt.payload, tt.secret, signature) {
				t.Error("VerifySignature rejected a valid signature")
			}
			if signer.VerifySignature(tt.payload, tt.secret+"x", signature) {
				t.Error("VerifySignature accepted the wrong secret")
			}
			if signer.VerifySignature(append(tt.payload, 'x'), tt.secret, signature) {
				t.Error("VerifySignature accepted a modified payload")
			}
		})
	}
}

func TestSigner_TimestampedSignature(t *testing.T) {
	signer := NewSigner()
	payload := []byte(`[{"id":"1"}]`)
	now := time.Now()

	headers := signer.SignedHeaders(payload, "secret", now)
	ts, err := strconv.ParseInt(headers[HeaderTimestamp], 10, 64)
	if err != nil {
		t.Fatalf("timestamp header %q: %v", headers[HeaderTimestamp], err)
	}
	if headers[HeaderSignature] != signer.SignPayload(payload, "secret") {
		t.Error("V1 signature mismatch")
	}

	if !signer.VerifyTimestampedSignature(payload, "secret", headers[HeaderSignatureV2], ts, time.Minute) {
		t.Error("valid V2 signature rejected")
	}
	if signer.VerifyTimestampedSignature(payload, "secret", headers[HeaderSignatureV2], ts-3600, time.Minute) {
		t.Error("stale timestamp accepted")
	}

	old := signer.SignedHeaders(payload, "secret", now.Add(-time.Hour))
	oldTS, _ := strconv.ParseInt(old[HeaderTimestamp], 10, 64)
	if signer.VerifyTimestampedSignature(payload, "secret", old[HeaderSignatureV2], oldTS, time.Minute) {
		t.Error("signature outside tolerance accepted")
	}
}
