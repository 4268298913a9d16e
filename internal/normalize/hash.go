package normalize

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileHash computes the hex-encoded SHA-256 of the file at path. Files are
// deduplicated by this digest before any parsing happens.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// BytesHash computes the hex-encoded SHA-256 of an in-memory buffer, for
// callers that already hold the file bytes.
func BytesHash(buf []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(buf))
}

// BlockHash computes a stable digest over the identifying values of one claim
// or payment block, used when a block needs a synthesized control number.
func BlockHash(values ...string) []byte {
	h := sha256.New()
	for _, v := range values {
		h.Write([]byte(strings.TrimSpace(v)))
		h.Write([]byte{0})
	}
	return h.Sum(nil)
}
