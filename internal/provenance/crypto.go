package provenance

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
)

// PrivateKey wraps an RSA private key parsed from the hex-encoded PKCS#8 DER
// form the engine carries at module boundaries.
type PrivateKey struct {
	key *rsa.PrivateKey
}

// PublicKey wraps the matching RSA public key.
type PublicKey struct {
	key *rsa.PublicKey
}

// ParsePrivateKeyHex decodes a hex-encoded PKCS#8 DER private key.
func ParsePrivateKeyHex(hexKey string) (*PrivateKey, error) {
	der, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, &CryptoKeyError{Reason: "private key is not valid hex: " + err.Error()}
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, &CryptoKeyError{Reason: "private key is not valid PKCS#8 DER: " + err.Error()}
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, &CryptoKeyError{Reason: "private key is not an RSA key"}
	}
	return &PrivateKey{key: rsaKey}, nil
}

// ParsePublicKeyHex decodes a hex-encoded PKIX DER public key.
func ParsePublicKeyHex(hexKey string) (*PublicKey, error) {
	der, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, &CryptoKeyError{Reason: "public key is not valid hex: " + err.Error()}
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, &CryptoKeyError{Reason: "public key is not valid PKIX DER: " + err.Error()}
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, &CryptoKeyError{Reason: "public key is not an RSA key"}
	}
	return &PublicKey{key: rsaKey}, nil
}

// GenerateKeyPair creates a fresh RSA-2048 key pair and returns both halves
// hex-encoded, for tests and bootstrapping tooling.
func GenerateKeyPair() (privHex, pubHex string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key pair: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return hex.EncodeToString(privDER), hex.EncodeToString(pubDER), nil
}

func (p *PublicKey) Hex() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(p.key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return hex.EncodeToString(der), nil
}

// Public returns the public half of the key pair.
func (p *PrivateKey) Public() *PublicKey {
	return &PublicKey{key: &p.key.PublicKey}
}

// sign signs the ASCII/UTF-8 bytes of a hex digest, not the raw digest
// bytes. Deliberate: cross-compatibility with the reference format, not a
// cryptographic necessity. Signature output is hex.
func (p *PrivateKey) sign(hexDigest string) (string, error) {
	hashed := sha256.Sum256([]byte(hexDigest))
	sig, err := rsa.SignPKCS1v15(rand.Reader, p.key, crypto.SHA256, hashed[:])
	if err != nil {
		return "", &CryptoOpError{Op: "sign", Reason: err.Error()}
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks signature (hex) over the ASCII bytes of hexDigest.
func (p *PublicKey) Verify(hexDigest, signatureHex string) (bool, error) {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, &CryptoOpError{Op: "verify", Reason: "signature is not valid hex: " + err.Error()}
	}
	hashed := sha256.Sum256([]byte(hexDigest))
	err = rsa.VerifyPKCS1v15(p.key, crypto.SHA256, hashed[:], sig)
	return err == nil, nil
}

// sha256Hex returns the lowercase hex SHA-256 digest of data.
func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
