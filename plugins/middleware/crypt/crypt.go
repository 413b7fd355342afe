// Package crypt implements a wire Middleware providing payload
// confidentiality via ChaCha20-Poly1305 AEAD — a transform on the message
// bytes between framing and codec, not the transport-level authentication
// spec.md §1 explicitly leaves out of the core's scope.
package crypt

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pluginhost"
)

func init() {
	params := []pluginhost.ConfigParam{
		{Name: "key", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster, Required: true,
			Description: "hex-encoded 32-byte ChaCha20-Poly1305 key"},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindMiddleware, "crypt", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(cfg.String("key", ""))
	})
}

// Middleware implements pipeline.Middleware, prefixing each encoded message
// with its random nonce.
type Middleware struct {
	aead func() (cipherAEAD, error)
	key  []byte
}

// cipherAEAD is the narrow slice of cipher.AEAD this package uses.
type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

func New(hexKey string) (*Middleware, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, perr.Config("crypt", "key must be a hex-encoded 32-byte ChaCha20-Poly1305 key")
	}
	m := &Middleware{key: key}
	m.aead = func() (cipherAEAD, error) { return chacha20poly1305.New(m.key) }
	return m, nil
}

// Decode expects nonce||ciphertext and returns the authenticated plaintext.
func (m *Middleware) Decode(data []byte) ([]byte, error) {
	aead, err := m.aead()
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, "crypt", "cipher init failed", err)
	}
	if len(data) < aead.NonceSize() {
		return nil, perr.Format("crypt", "ciphertext shorter than nonce")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, perr.Wrap(perr.KindFormat, "crypt", "decrypt failed", err)
	}
	return plaintext, nil
}

// Encode seals data with a fresh random nonce, prefixed to the ciphertext.
func (m *Middleware) Encode(data []byte) ([]byte, error) {
	aead, err := m.aead()
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, "crypt", "cipher init failed", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, perr.Wrap(perr.KindIO, "crypt", "nonce generation failed", err)
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}
