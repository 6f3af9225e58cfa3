package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrEncrypt signals that a plaintext could not be sealed.
	ErrEncrypt = errors.New("secrets: encryption failed")
	// ErrDecrypt signals tampering, truncation, or a wrong key. The caller
	// must treat the payload as unusable; no partial plaintext is returned.
	ErrDecrypt = errors.New("secrets: decryption failed")
)

const (
	saltSize          = 16
	nonceSize         = 12
	keySize           = 32
	kdfRounds         = 100_000
	DefaultTokenBytes = 32
)

// Box seals and opens small secrets (provider access tokens) with
// AES-256-GCM. The data key is derived per payload from the configured
// secret and a random salt, so rotating the secret invalidates old
// ciphertexts without any shared state.
type Box struct {
	secret []byte
}

func NewBox(secret string) (*Box, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: missing encryption secret", ErrEncrypt)
	}
	return &Box{secret: []byte(secret)}, nil
}

// Encrypt seals plaintext and returns base64(salt || nonce || ciphertext+tag).
func (b *Box) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: empty plaintext", ErrEncrypt)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	aead, err := b.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, saltSize+nonceSize+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any authentication failure returns ErrDecrypt.
func (b *Box) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < saltSize+nonceSize+1 {
		return "", fmt.Errorf("%w: payload too short", ErrDecrypt)
	}

	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+nonceSize]
	sealed := raw[saltSize+nonceSize:]

	aead, err := b.aead(salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

func (b *Box) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(b.secret, salt, kdfRounds, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	return aead, nil
}

// SignHMAC returns the hex HMAC-SHA256 of data under secret.
func SignHMAC(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks a hex signature in constant time.
func VerifyHMAC(data []byte, signature, secret string) bool {
	expected := SignHMAC(data, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// SignHMACBase64 returns the base64 HMAC-SHA256 of data under secret.
// Shopify webhook headers carry base64 rather than hex.
func SignHMACBase64(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(data)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyHMACBase64 checks a base64 signature in constant time.
func VerifyHMACBase64(data []byte, signature, secret string) bool {
	expected := SignHMACBase64(data, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// RandomToken returns n cryptographically random bytes hex-encoded.
// n <= 0 falls back to DefaultTokenBytes (64 hex chars).
func RandomToken(n int) (string, error) {
	if n <= 0 {
		n = DefaultTokenBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
