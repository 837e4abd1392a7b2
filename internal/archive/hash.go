package archive

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// HashAlgorithm names the digest used as content identity. It is a
// deployment-time choice: switching it orphans every archived entry.
type HashAlgorithm string

const (
	MD5    HashAlgorithm = "md5"
	SHA256 HashAlgorithm = "sha256"
	BLAKE3 HashAlgorithm = "blake3"
)

// Hasher computes upper-case hex content hashes.
type Hasher struct {
	algorithm HashAlgorithm
	newHash   func() hash.Hash
	size      int
}

// NewHasher returns a Hasher for the named algorithm. An empty name selects MD5.
func NewHasher(name string) (*Hasher, error) {
	algorithm := HashAlgorithm(strings.ToLower(strings.TrimSpace(name)))
	if algorithm == "" {
		algorithm = MD5
	}
	h := &Hasher{algorithm: algorithm}
	switch algorithm {
	case MD5:
		h.newHash, h.size = md5.New, md5.Size
	case SHA256:
		h.newHash, h.size = sha256.New, sha256.Size
	case BLAKE3:
		h.newHash, h.size = func() hash.Hash { return blake3.New() }, 32
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", name)
	}
	return h, nil
}

// Algorithm returns the configured algorithm.
func (h *Hasher) Algorithm() HashAlgorithm { return h.algorithm }

// HexLength is the length of every hash this Hasher produces.
func (h *Hasher) HexLength() int { return h.size * 2 }

// HashFile streams the file at path through the digest. Only the content is
// hashed; the path and name never contribute.
func (h *Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashComputation, err)
	}
	defer file.Close()
	return h.HashReader(file)
}

// HashReader hashes everything read from r.
func (h *Hasher) HashReader(r io.Reader) (string, error) {
	digest := h.newHash()
	if _, err := io.Copy(digest, r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashComputation, err)
	}
	return strings.ToUpper(hex.EncodeToString(digest.Sum(nil))), nil
}

// Valid reports whether s has the shape of a hash from this Hasher:
// exactly HexLength hexadecimal characters, in either case.
func (h *Hasher) Valid(s string) bool {
	if len(s) != h.HexLength() {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
