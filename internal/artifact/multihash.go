package artifact

import (
	"errors"
	"fmt"
	"os"

	"github.com/multiformats/go-multihash"
)

var (
	// ErrMissing reports that the archive has no bytes at a recorded location.
	ErrMissing = errors.New("artifact missing")
	// ErrHashMismatch reports that materialized bytes differ from the recorded multihash.
	ErrHashMismatch = errors.New("artifact hash mismatch")
)

// Sum streams the file at path through sha2-256 and returns the base58
// multihash, the same form IPFS uses for content addressing.
func Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := multihash.SumStream(f, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum.B58String(), nil
}

// Verify re-hashes path and compares it with expected. An empty expected
// value always verifies.
func Verify(path, expected string) error {
	if expected == "" {
		return nil
	}
	if _, err := multihash.FromB58String(expected); err != nil {
		return fmt.Errorf("recorded multihash %q is malformed: %w", expected, err)
	}
	actual, err := Sum(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: recorded %s, actual %s", ErrHashMismatch, expected, actual)
	}
	return nil
}
