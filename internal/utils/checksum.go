package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// chunkSize is the read size used when streaming files through a digest
const chunkSize = 32 * 1024

// Checksum contains the digests of a file
type Checksum struct {
	SHA256 string
	BLAKE3 string
	Size   int64
}

// CalculateChecksums calculates all checksums for a file in a single pass
func CalculateChecksums(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sha256Hash := sha256.New()
	blake3Hash := blake3.New()

	// Use MultiWriter to calculate all hashes at once
	multiWriter := io.MultiWriter(sha256Hash, blake3Hash)

	n, err := io.CopyBuffer(multiWriter, f, make([]byte, chunkSize))
	if err != nil {
		return nil, err
	}

	return &Checksum{
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
		BLAKE3: hex.EncodeToString(blake3Hash.Sum(nil)),
		Size:   n,
	}, nil
}

// splitDigest separates an optional "algo:" prefix from the hex digest.
// Unprefixed digests are SHA-256.
func splitDigest(expected string) (string, string) {
	if algo, digest, ok := strings.Cut(expected, ":"); ok {
		return algo, digest
	}
	return "sha256", expected
}

func newHash(algo string) hash.Hash {
	if algo == "blake3" {
		return blake3.New()
	}
	return sha256.New()
}

// FileDigest streams a file through the named 256-bit digest and returns
// the lowercase hex encoding.
func FileDigest(path, algo string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := newHash(algo)
	if _, err := io.CopyBuffer(h, f, make([]byte, chunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum compares the digest of path against expected. The
// comparison is an exact, case-sensitive string match. An error is
// returned only when the file cannot be read; a mismatch is (false, nil).
// Callers treat an empty expected value as "skip verification".
func VerifyChecksum(path, expected string) (bool, error) {
	algo, digest := splitDigest(expected)
	actual, err := FileDigest(path, algo)
	if err != nil {
		return false, err
	}
	return actual == digest, nil
}
