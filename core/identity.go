package tally

import (
	"bytes"
	"crypto/md5" //nolint:gosec // catalog fingerprinting only
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Algorithm names a digest algorithm the engine can compute.
type Algorithm string

const (
	AlgorithmMD5    Algorithm = "md5"
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA512 Algorithm = "sha512"
)

// Identity namespace prefixes. The single-character tag prepended to a
// digest encodes which namespace the identity lives in, so file,
// directory, and generated-metadata identities can never collide.
const (
	PrefixFile      = "F"
	PrefixDirectory = "D"
	PrefixGenerated = "G"
)

// DigestSet holds the rendered digests of one input. MD5 and SHA-256
// are always computed; SHA-512 is opt-in and empty when not requested.
// All digests are uppercase hexadecimal.
type DigestSet struct {
	MD5    string `json:"md5"`
	SHA256 string `json:"sha256"`
	SHA512 string `json:"sha512,omitempty"`
}

// Get returns the digest for algo and whether it was computed.
func (d DigestSet) Get(algo Algorithm) (string, bool) {
	switch algo {
	case AlgorithmMD5:
		return d.MD5, d.MD5 != ""
	case AlgorithmSHA256:
		return d.SHA256, d.SHA256 != ""
	case AlgorithmSHA512:
		return d.SHA512, d.SHA512 != ""
	default:
		return "", false
	}
}

func (d *DigestSet) set(algo Algorithm, value string) {
	switch algo {
	case AlgorithmMD5:
		d.MD5 = value
	case AlgorithmSHA256:
		d.SHA256 = value
	case AlgorithmSHA512:
		d.SHA512 = value
	}
}

// newHash returns a fresh hash state for algo. SHA variants come from
// the go-digest registry; md5 is not registered there, so it is built
// directly.
func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case AlgorithmMD5:
		return md5.New(), nil //nolint:gosec // md5 is a catalog fingerprint, not a security boundary
	case AlgorithmSHA256:
		return digest.SHA256.Hash(), nil
	case AlgorithmSHA512:
		return digest.SHA512.Hash(), nil
	default:
		return nil, fmt.Errorf("%w: unknown digest algorithm %q", ErrInvalidConfig, a)
	}
}

// multiHasher computes several digests over a single stream.
type multiHasher struct {
	algos  []Algorithm
	hashes []hash.Hash
}

func newMultiHasher(algos []Algorithm) (*multiHasher, error) {
	m := &multiHasher{algos: algos, hashes: make([]hash.Hash, 0, len(algos))}
	for _, a := range algos {
		h, err := a.newHash()
		if err != nil {
			return nil, err
		}
		m.hashes = append(m.hashes, h)
	}
	return m, nil
}

func (m *multiHasher) writer() io.Writer {
	ws := make([]io.Writer, len(m.hashes))
	for i, h := range m.hashes {
		ws[i] = h
	}
	return io.MultiWriter(ws...)
}

func (m *multiHasher) sum() DigestSet {
	var set DigestSet
	for i, a := range m.algos {
		set.set(a, strings.ToUpper(hex.EncodeToString(m.hashes[i].Sum(nil))))
	}
	return set
}

// HashReader computes every requested digest in one streaming pass
// over r. The source is read exactly once regardless of how many
// algorithms are requested. Read errors propagate unwrapped; the
// caller decides whether they are item-fatal.
func HashReader(r io.Reader, algos []Algorithm) (DigestSet, error) {
	m, err := newMultiHasher(algos)
	if err != nil {
		return DigestSet{}, err
	}
	if _, err := io.Copy(m.writer(), r); err != nil {
		return DigestSet{}, err
	}
	return m.sum(), nil
}

// HashString digests the UTF-8 bytes of s with every requested
// algorithm.
func HashString(s string, algos []Algorithm) DigestSet {
	set, err := HashReader(strings.NewReader(s), algos)
	if err != nil {
		// strings.Reader cannot fail; an error here means a bad
		// algorithm list, which is a configuration bug.
		panic(err)
	}
	return set
}

// HashBytes digests an in-memory byte slice with every requested
// algorithm.
func HashBytes(data []byte, algos []Algorithm) DigestSet {
	set, err := HashReader(bytes.NewReader(data), algos)
	if err != nil {
		panic(err)
	}
	return set
}

// nullDigestInput is the sentinel hashed in place of an empty parent
// name when deriving directory identities.
const nullDigestInput = "0"

// NullDigest returns the precomputed digest of the one-byte sentinel
// "0" for algo.
func NullDigest(algo Algorithm) string {
	d, _ := HashString(nullDigestInput, []Algorithm{algo}).Get(algo)
	return d
}

// DirectoryIdentity derives the two-layer identity digests for a
// directory: digest(digest(name) ++ digest(parentName)) per algorithm,
// where ++ concatenates the uppercase hex renderings as strings. An
// empty parent name contributes the null-digest constant instead.
// Directory identity depends only on names, never on content.
func DirectoryIdentity(name, parentName string, algos []Algorithm) DigestSet {
	nameSet := HashString(name, algos)
	var parentSet DigestSet
	if parentName != "" {
		parentSet = HashString(parentName, algos)
	}

	var set DigestSet
	for _, a := range algos {
		nameHex, _ := nameSet.Get(a)
		parentHex, ok := parentSet.Get(a)
		if !ok {
			parentHex = NullDigest(a)
		}
		layered, _ := HashString(nameHex+parentHex, []Algorithm{a}).Get(a)
		set.set(a, layered)
	}
	return set
}

// SelectIdentity picks the digest for algo out of set and prepends the
// namespace prefix, yielding the canonical identity string.
func SelectIdentity(set DigestSet, algo Algorithm, prefix string) (string, error) {
	d, ok := set.Get(algo)
	if !ok {
		return "", fmt.Errorf("%w: identity algorithm %q not computed", ErrInvalidConfig, algo)
	}
	return prefix + d, nil
}
