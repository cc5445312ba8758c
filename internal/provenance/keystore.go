package provenance

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// WrapPrivateKeyHex encrypts a hex-encoded PKCS#8 private key under a
// passphrase, for operators who want the signing key at rest protected
// rather than stored as plain hex. This is ambient key-custody hygiene, not
// part of the core proof contract — an unwrapped hex key works exactly as
// well as input to ParsePrivateKeyHex. The wrapped form is
// "<salt-hex>:<nonce-hex>:<ciphertext-hex>".
func WrapPrivateKeyHex(privHex, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(passphrase), salt, 100_000, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(privHex), nil)
	return fmt.Sprintf("%s:%s:%s", hex.EncodeToString(salt), hex.EncodeToString(nonce), hex.EncodeToString(ciphertext)), nil
}

// UnwrapPrivateKeyHex reverses WrapPrivateKeyHex, returning the original hex
// private key.
func UnwrapPrivateKeyHex(wrapped, passphrase string) (string, error) {
	salt, nonce, ciphertext, err := splitWrapped(wrapped)
	if err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(passphrase), salt, 100_000, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to init gcm: %w", err)
	}

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &CryptoKeyError{Reason: "failed to decrypt wrapped private key: " + err.Error()}
	}
	return string(plain), nil
}

func splitWrapped(wrapped string) (salt, nonce, ciphertext []byte, err error) {
	parts := strings.SplitN(wrapped, ":", 3)
	if len(parts) != 3 {
		return nil, nil, nil, &CryptoKeyError{Reason: "malformed wrapped key"}
	}
	salt, err = hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, nil, &CryptoKeyError{Reason: "malformed salt: " + err.Error()}
	}
	nonce, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, nil, &CryptoKeyError{Reason: "malformed nonce: " + err.Error()}
	}
	ciphertext, err = hex.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, &CryptoKeyError{Reason: "malformed ciphertext: " + err.Error()}
	}
	return salt, nonce, ciphertext, nil
}
