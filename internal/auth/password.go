package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost settings, per current OWASP guidance.
const (
	hashIterations  uint32 = 3
	hashMemoryKiB   uint32 = 64 * 1024
	hashParallelism uint8  = 1
	hashLength      uint32 = 32
	saltLength             = 16
)

// HashPassword derives an Argon2id hash of the password and encodes it as
// a PHC string ($argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>).
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, hashIterations, hashMemoryKiB, hashParallelism, hashLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemoryKiB, hashIterations, hashParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
	return encoded, nil
}

// VerifyPassword reports whether the password matches the stored PHC
// hash. The comparison is constant-time; the cost settings come from the
// stored hash, so old hashes keep verifying after settings change.
func VerifyPassword(password, encodedHash string) (bool, error) {
	stored, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), stored.salt,
		stored.iterations, stored.memoryKiB, stored.parallelism, uint32(len(stored.digest)))

	return subtle.ConstantTimeCompare(stored.digest, candidate) == 1, nil
}

// phcHash is a decoded $argon2id$... string.
type phcHash struct {
	iterations  uint32
	memoryKiB   uint32
	parallelism uint8
	salt        []byte
	digest      []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return nil, fmt.Errorf("malformed password hash")
	}
	if fields[1] != "argon2id" {
		return nil, fmt.Errorf("unsupported hash algorithm %q", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("parsing hash version: %w", err)
	}

	var h phcHash
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memoryKiB, &h.iterations, &h.parallelism); err != nil {
		return nil, fmt.Errorf("parsing hash settings: %w", err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	if h.digest, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, fmt.Errorf("decoding digest: %w", err)
	}
	return &h, nil
}
