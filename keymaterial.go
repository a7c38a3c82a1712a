package pageseal

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"os"
	"path/filepath"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"
)

// DeriveKey derives a 32-byte vault key from passphrase and salt using
// PBKDF2-HMAC-SHA512. iterations below MinKDFIterations is a caller error.
func DeriveKey(passphrase, salt []byte, iterations int) ([]byte, error) {
	if iterations < MinKDFIterations {
		return nil, fmt.Errorf("pageseal: KDF iterations %d below minimum %d", iterations, MinKDFIterations)
	}
	if err := ValidateByteLength("salt", salt, SaltSize); err != nil {
		return nil, err
	}
	return pbkdf2.Key(passphrase, salt, iterations, 32, sha512.New), nil
}

// RandomSalt returns a fresh SaltSize-byte salt from crypto/rand.
func RandomSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("pageseal: generating salt: %w", err)
	}
	return salt, nil
}

// VaultKey holds the derived key in locked, non-swappable memory for the
// lifetime of a Facade. The key is never copied out except transiently,
// inside WithKey, and is wiped on Destroy regardless of how the process
// exits WithKey (panic, early return, or normal completion).
type VaultKey struct {
	buf *memguard.LockedBuffer
}

// NewVaultKey moves key into locked memory. key is wiped by memguard as
// part of the move; callers must not reuse it afterward.
func NewVaultKey(key []byte) *VaultKey {
	return &VaultKey{buf: memguard.NewBufferFromBytes(key)}
}

// WithKey grants fn read access to the key bytes for the duration of the
// call. The slice passed to fn must not be retained past the call.
func (v *VaultKey) WithKey(fn func(key []byte) error) error {
	if !v.buf.IsAlive() {
		return ErrClosed
	}
	return fn(v.buf.Bytes())
}

// Destroy zeroizes the key and releases its locked memory. Safe to call
// more than once.
func (v *VaultKey) Destroy() {
	v.buf.Destroy()
}

// newPageAEADFromVault derives a pageAEAD from the vault key without ever
// returning the raw key bytes to the caller.
func newPageAEADFromVault(v *VaultKey) (*pageAEAD, error) {
	var p *pageAEAD
	err := v.WithKey(func(key []byte) error {
		var err error
		p, err = newPageAEAD(key)
		return err
	})
	return p, err
}

// buildVerifyTokenPlaintext returns the fixed-format payload sealed into
// the verification token page: a 10-byte magic followed by 6 reserved zero
// bytes, padded with zeros to PageSize.
func buildVerifyTokenPlaintext() []byte {
	page := make([]byte, PageSize)
	copy(page, tokenMagic[:])
	return page
}

func validateVerifyTokenPlaintext(page []byte) bool {
	if len(page) != PageSize {
		return false
	}
	if !bytes.Equal(page[:len(tokenMagic)], tokenMagic[:]) {
		return false
	}
	for _, b := range page[len(tokenMagic) : len(tokenMagic)+6] {
		if b != 0 {
			return false
		}
	}
	return true
}

// VerifyOrCreateToken implements the create/verify state machine for the
// passphrase verification token. dataDir is the host directory the
// Facade's data lives under. On first use (token absent) it creates the
// token, atomically, under the derived key. On reopen it decrypts the
// existing token and confirms its plaintext; any failure collapses to
// InvalidPassphraseError, deliberately not distinguishing "wrong
// passphrase" from "corrupted token".
func VerifyOrCreateToken(dataDir string, vault *VaultKey) error {
	tokenFile := filepath.Join(dataDir, verifyTokenPath)
	fileID := FileIDFromPath(verifyTokenPath)

	codec, err := newPageAEADFromVault(vault)
	if err != nil {
		return NewInvalidPassphraseError(err)
	}

	existing, err := os.ReadFile(tokenFile)
	switch {
	case os.IsNotExist(err):
		plaintext := buildVerifyTokenPlaintext()
		encoded, encErr := codec.EncryptPage(fileID, 0, plaintext)
		if encErr != nil {
			return NewInvalidPassphraseError(encErr)
		}
		return writeFileAtomic(tokenFile, encoded)
	case err != nil:
		return NewInvalidPassphraseError(err)
	}

	if len(existing) != EncryptedPageSize {
		return NewInvalidPassphraseError(ErrShortPage)
	}
	plaintext, decErr := codec.DecryptPage(fileID, 0, existing)
	if decErr != nil {
		return NewInvalidPassphraseError(decErr)
	}
	if !validateVerifyTokenPlaintext(plaintext) {
		return NewInvalidPassphraseError(fmt.Errorf("pageseal: token payload malformed"))
	}
	return nil
}

// writeFileAtomic writes data to a temp file beside path and renames it
// into place, so a crash mid-write never leaves a half-written token.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pageseal-tmp-*")
	if err != nil {
		return fmt.Errorf("pageseal: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("pageseal: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("pageseal: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("pageseal: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("pageseal: renaming temp file into place: %w", err)
	}
	return nil
}
