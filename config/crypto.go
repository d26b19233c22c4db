package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

const pbkdf2Iterations = 100_000

// deriveKey derives a 32-byte secretbox key from the current user and host
// identity, per spec.md §6 ("a key is derived from user+host identity").
func deriveKey() [32]byte {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	host, _ := os.Hostname()
	salt := []byte(fmt.Sprintf("go-romm-sync:%s:%s:%s", user, host, runtime.GOOS))

	raw := pbkdf2.Key([]byte(user+host), salt, pbkdf2Iterations, 32, sha3.New256)
	var key [32]byte
	copy(key[:], raw)
	return key
}

// encryptString seals s with secretbox under the user+host derived key and
// returns a base64 string safe for storage in an INI value (spec.md §6).
func encryptString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	key := deriveKey()

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(s), &nonce, &key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decryptString reverses encryptString. An empty input decrypts to empty;
// malformed ciphertext returns an error so the caller can treat the field as
// unset rather than silently losing credentials.
func decryptString(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted value: %w", err)
	}
	if len(sealed) < 24 {
		return "", fmt.Errorf("encrypted value too short")
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	key := deriveKey()

	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return "", fmt.Errorf("failed to decrypt value: key mismatch or corrupt data")
	}
	return string(plain), nil
}
