// Package secrets implements the credential hashing pipeline: an optional
// fast message digest applied before transmission-side storage, a slow
// salted bcrypt hash for long-term storage, and random token generation for
// out-of-band flows.
package secrets

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/ripemd160"

	dErrors "accounts/pkg/domain-errors"
)

// Algorithm names a supported message digest. The set is closed: clients
// pre-hashing on the sending side must pick from it so the server can
// recompute the same digest during verification.
type Algorithm string

const (
	SHA       Algorithm = "sha" // alias of sha1
	SHA1      Algorithm = "sha1"
	SHA224    Algorithm = "sha224"
	SHA256    Algorithm = "sha256"
	SHA384    Algorithm = "sha384"
	SHA512    Algorithm = "sha512"
	MD5       Algorithm = "md5"
	RIPEMD160 Algorithm = "ripemd160"
)

func newHasher(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case SHA, SHA1:
		return sha1.New(), nil
	case SHA224:
		return sha256.New224(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	case MD5:
		return md5.New(), nil
	case RIPEMD160:
		return ripemd160.New(), nil
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported hash algorithm %q", alg)
	}
}

// Valid reports whether alg names a supported digest.
func (a Algorithm) Valid() bool {
	_, err := newHasher(a)
	return err == nil
}

// Digest applies the fast keyed-digest step, returning the hex digest of
// secret. Digesting before the slow hash lets clients pre-hash before
// transmission without weakening server-side storage cost.
func Digest(secret string, alg Algorithm) (string, error) {
	h, err := newHasher(alg)
	if err != nil {
		return "", err
	}
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Hash produces the storage-safe representation of secret using bcrypt with
// a fresh random salt. Two calls on the same input never return the same
// string; both verify against the input.
func Hash(secret string, cost int) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeValidation, "secret cannot be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify recomputes the hash using the salt embedded in stored and compares
// in constant time. It returns false, never an error, on malformed stored
// representations or mismatches.
func Verify(secret, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
}

// RandomToken returns a cryptographically secure random hex token of
// byteLen random bytes, independent of the signed-token mechanism. Used for
// password reset and email verification flows.
func RandomToken(byteLen int) (string, error) {
	if byteLen <= 0 {
		byteLen = 43
	}
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Generate creates a random base64 secret suitable for signing keys and
// client secrets.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
