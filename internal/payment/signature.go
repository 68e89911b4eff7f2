package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/fault"
)

// ErrInvalidSignature is returned before any state is touched when the
// provider signature does not verify.
var ErrInvalidSignature = fmt.Errorf("%w: invalid webhook signature", fault.Security)

// SignatureHeader is the provider's signature header name.
const SignatureHeader = "Stripe-Signature"

// VerifySignature checks the Stripe v1 scheme: the header carries
// "t={timestamp},v1={signature}" where signature is the hex HMAC-SHA256 of
// "{timestamp}.{payload}" under the shared secret. A non-positive tolerance
// disables the timestamp check.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" || header == "" {
		return ErrInvalidSignature
	}

	var timestamp int64 = -1
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp < 0 || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	expected := ComputeSignature(timestamp, payload, secret)
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ComputeSignature computes the v1 signature for a timestamp and payload.
// Exposed so tests and local tooling can sign their own events.
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignHeader builds a full signature header value for a payload, used by
// tests and the local provider stub.
func SignHeader(timestamp int64, payload []byte, secret string) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, ComputeSignature(timestamp, payload, secret))
}
