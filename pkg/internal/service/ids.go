package service

import (
	crand "crypto/rand"
	"encoding/base64"
	"path"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/oklog/ulid"
)

// MiB is the quota unit; charges round up to whole MiB.
const MiB = 1 << 20

// signatureBytes of randomness back every signature.
const signatureBytes = 32

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(crand.Reader, 0)
)

// newShareID returns a ULID so shares sort by creation time.
func newShareID(now time.Time) string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(now), ulidEntropy).String()
}

// newSignature returns 32 random bytes encoded as unpadded base64url.
func newSignature() (string, error) {
	buf := make([]byte, signatureBytes)
	if _, err := crand.Read(buf); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// mbCeil converts bytes to whole MiB, rounding up.
func mbCeil(bytes int64) int64 {
	if bytes <= 0 {
		return 0
	}

	return (bytes + MiB - 1) / MiB
}

// sanitizeFilename keeps the base name and drops control characters.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '"' {
			return -1
		}

		return r
	}, name)

	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}

	return name
}
