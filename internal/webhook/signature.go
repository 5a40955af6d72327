package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReplayWindow bounds how far a webhook timestamp may drift from server
// time before the request is rejected.
const ReplayWindow = 30 * time.Minute

// ErrBadSignature is returned for any signature failure: malformed header,
// timestamp outside the replay window, or digest mismatch. Callers respond
// 401 and must not mutate state.
var ErrBadSignature = errors.New("webhook: bad signature")

// VerifySignature validates a provider signature header of the form
// "t=<unix_seconds>,v0=<hex_hmac>" against the raw request body. The HMAC
// is computed over "{timestamp}.{rawBody}" with SHA-256 and compared in
// constant time.
func VerifySignature(secret, header string, body []byte, now time.Time) error {
	ts, digest, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	drift := now.Sub(time.Unix(ts, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > ReplayWindow {
		return fmt.Errorf("%w: timestamp outside replay window", ErrBadSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(digest)
	if err != nil {
		return fmt.Errorf("%w: digest is not hex", ErrBadSignature)
	}
	if !hmac.Equal(expected, provided) {
		return fmt.Errorf("%w: digest mismatch", ErrBadSignature)
	}
	return nil
}

// parseSignatureHeader extracts the timestamp and v0 digest from the
// signature header.
func parseSignatureHeader(header string) (int64, string, error) {
	if header == "" {
		return 0, "", fmt.Errorf("%w: missing header", ErrBadSignature)
	}
	var tsPart, digest string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			tsPart = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v0="):
			digest = strings.TrimPrefix(part, "v0=")
		}
	}
	if tsPart == "" || digest == "" {
		return 0, "", fmt.Errorf("%w: malformed header", ErrBadSignature)
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: malformed timestamp", ErrBadSignature)
	}
	return ts, digest, nil
}
