package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

type argon2Params struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
	saltLen uint32
}

var defaultParams = argon2Params{
	time:    3,
	memory:  64 * 1024,
	threads: 2,
	keyLen:  32,
	saltLen: 16,
}

// HashPassword derives an argon2id hash and encodes it together with its
// parameters, so stored credentials survive later parameter changes.
func HashPassword(password string) ([]byte, error) {
	salt := make([]byte, defaultParams.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, defaultParams.time, defaultParams.memory, defaultParams.threads, defaultParams.keyLen)

	encoded := fmt.Sprintf("$argon2id$v=19$t=%d,m=%d,p=%d$%s$%s",
		defaultParams.time, defaultParams.memory, defaultParams.threads,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash))

	return []byte(encoded), nil
}

// VerifyPassword re-derives the hash with the parameters stored alongside
// it and compares in constant time. A malformed stored hash is an error;
// a clean mismatch is (false, nil).
func VerifyPassword(password string, encodedHash []byte) (bool, error) {
	fields := strings.Split(string(encodedHash), "$")
	if len(fields) != 6 || fields[1] != "argon2id" || fields[2] != "v=19" {
		return false, fmt.Errorf("malformed password hash")
	}

	var t, m uint64
	var p uint64
	for _, kv := range strings.Split(fields[3], ",") {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return false, fmt.Errorf("malformed hash parameters")
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return false, fmt.Errorf("parse hash parameter %s: %w", key, err)
		}
		switch key {
		case "t":
			t = n
		case "m":
			m = n
		case "p":
			p = n
		}
	}

	salt, err := base64.StdEncoding.DecodeString(fields[4])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	hash, err := base64.StdEncoding.DecodeString(fields[5])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, uint32(t), uint32(m), uint8(p), uint32(len(hash)))

	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}
