package pageseal

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

const saltFileName = ".pageseal-salt"

// loadOrCreateSalt returns the persisted KDF salt for cfg.DataDir,
// creating one on first use. When cfg.EncryptSaltFile is set, the salt
// file's contents are additionally sealed with ChaCha20-Poly1305 under
// cfg.SaltFileKey: a second, independent layer of protection for the one
// piece of key material that otherwise sits in the clear next to the
// data it protects.
func loadOrCreateSalt(cfg Config) ([]byte, error) {
	path := filepath.Join(cfg.DataDir, saltFileName)

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		salt, genErr := RandomSalt()
		if genErr != nil {
			return nil, genErr
		}
		payload := salt
		if cfg.EncryptSaltFile {
			payload, genErr = sealSaltFile(cfg.SaltFileKey, salt)
			if genErr != nil {
				return nil, genErr
			}
		}
		if err := writeFileAtomic(path, payload); err != nil {
			return nil, err
		}
		return salt, nil
	case err != nil:
		return nil, NewIOError("read", path, err)
	}

	if !cfg.EncryptSaltFile {
		if len(raw) != SaltSize {
			return nil, NewIOError("read", path, fmt.Errorf("salt file has unexpected length %d", len(raw)))
		}
		return raw, nil
	}
	return openSaltFile(cfg.SaltFileKey, raw)
}

func sealSaltFile(key, salt []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("pageseal: salt file cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("pageseal: salt file nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, salt, nil)
	return append(nonce, sealed...), nil
}

func openSaltFile(key, payload []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("pageseal: salt file cipher: %w", err)
	}
	if len(payload) < chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("pageseal: salt file too short")
	}
	nonce := payload[:chacha20poly1305.NonceSize]
	ciphertext := payload[chacha20poly1305.NonceSize:]
	salt, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("pageseal: salt file authentication failed: %w", err)
	}
	return salt, nil
}
