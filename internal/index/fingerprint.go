package index

import (
	"fmt"
	"os"

	"github.com/minio/highwayhash"
)

var fingerprintKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Fingerprint computes a 64-bit content fingerprint for change detection.
func Fingerprint(data []byte) (uint64, error) {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return 0, fmt.Errorf("init hash: %w", err)
	}
	if _, err := h.Write(data); err != nil {
		return 0, fmt.Errorf("hash: %w", err)
	}
	return h.Sum64(), nil
}

// FingerprintFile fingerprints a file's contents.
func FingerprintFile(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return Fingerprint(data)
}
