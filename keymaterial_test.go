package pageseal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := RandomSalt()
	require.NoError(t, err)

	a, err := DeriveKey([]byte("correct horse battery staple"), salt, MinKDFIterations)
	require.NoError(t, err)
	b, err := DeriveKey([]byte("correct horse battery staple"), salt, MinKDFIterations)
	require.NoError(t, err)
	require.Equal(t, a, b, "same passphrase and salt must derive the same key")

	c, err := DeriveKey([]byte("wrong passphrase"), salt, MinKDFIterations)
	require.NoError(t, err)
	require.NotEqual(t, a, c, "different passphrases must derive different keys")
}

func TestDeriveKeyRejectsLowIterations(t *testing.T) {
	salt, err := RandomSalt()
	require.NoError(t, err)
	_, err = DeriveKey([]byte("pw"), salt, MinKDFIterations-1)
	require.Error(t, err)
}

func TestVaultKeyWithKeyAndDestroy(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	vault := NewVaultKey(key)

	var seen []byte
	err := vault.WithKey(func(k []byte) error {
		seen = append([]byte(nil), k...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 32)

	vault.Destroy()
	err = vault.WithKey(func(k []byte) error { return nil })
	require.ErrorIs(t, err, ErrClosed)
}

func TestVerifyOrCreateTokenAcceptsCorrectPassphrase(t *testing.T) {
	dir := t.TempDir()
	salt, err := RandomSalt()
	require.NoError(t, err)
	key, err := DeriveKey([]byte("swordfish"), salt, MinKDFIterations)
	require.NoError(t, err)

	vault1 := NewVaultKey(append([]byte(nil), key...))
	require.NoError(t, VerifyOrCreateToken(dir, vault1))
	vault1.Destroy()

	if _, err := os.Stat(filepath.Join(dir, verifyTokenPath)); err != nil {
		t.Fatalf("expected token file to be created: %v", err)
	}

	vault2 := NewVaultKey(append([]byte(nil), key...))
	defer vault2.Destroy()
	require.NoError(t, VerifyOrCreateToken(dir, vault2))
}

func TestVerifyOrCreateTokenRejectsWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	salt, err := RandomSalt()
	require.NoError(t, err)

	rightKey, err := DeriveKey([]byte("swordfish"), salt, MinKDFIterations)
	require.NoError(t, err)
	vault1 := NewVaultKey(rightKey)
	require.NoError(t, VerifyOrCreateToken(dir, vault1))
	vault1.Destroy()

	wrongKey, err := DeriveKey([]byte("not swordfish"), salt, MinKDFIterations)
	require.NoError(t, err)
	vault2 := NewVaultKey(wrongKey)
	defer vault2.Destroy()

	err = VerifyOrCreateToken(dir, vault2)
	require.Error(t, err)
	require.True(t, IsInvalidPassphraseError(err))
	require.Equal(t, invalidPassphraseMessage, err.Error())
}

func TestVerifyOrCreateTokenRejectsCorruptedToken(t *testing.T) {
	dir := t.TempDir()
	salt, err := RandomSalt()
	require.NoError(t, err)
	key, err := DeriveKey([]byte("swordfish"), salt, MinKDFIterations)
	require.NoError(t, err)

	vault1 := NewVaultKey(append([]byte(nil), key...))
	require.NoError(t, VerifyOrCreateToken(dir, vault1))
	vault1.Destroy()

	tokenPath := filepath.Join(dir, verifyTokenPath)
	require.NoError(t, os.WriteFile(tokenPath, []byte("not a valid token"), 0o600))

	vault2 := NewVaultKey(append([]byte(nil), key...))
	defer vault2.Destroy()
	err = VerifyOrCreateToken(dir, vault2)
	require.True(t, IsInvalidPassphraseError(err))
	require.Equal(t, invalidPassphraseMessage, err.Error())
}

func TestHardenedDeriveKeyDeterministic(t *testing.T) {
	pbkdf2Key := make([]byte, 32)
	salt, err := RandomSalt()
	require.NoError(t, err)
	params := DefaultArgon2idParams()
	params.Iterations = 1 // keep the test fast; correctness doesn't depend on tuning

	a, err := HardenedDeriveKey(pbkdf2Key, salt, params)
	require.NoError(t, err)
	b, err := HardenedDeriveKey(pbkdf2Key, salt, params)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
