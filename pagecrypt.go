package pageseal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// pageAEAD wraps the AES-256-GCM instance used to seal every page. It holds
// no state beyond the cipher.AEAD; callers supply the per-call nonce and
// associated data.
type pageAEAD struct {
	aead cipher.AEAD
}

// newPageAEAD builds the page codec's AEAD instance from a 32-byte vault
// key. AES-256-GCM is the only cipher the codec speaks; there is no
// negotiation or suite selection on the page path.
func newPageAEAD(key []byte) (*pageAEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("pageseal: vault key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pageseal: aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("pageseal: cipher.NewGCM: %w", err)
	}
	return &pageAEAD{aead: aead}, nil
}

// pageAAD builds the associated data that binds a sealed page to the file
// it belongs to and its page number: fileID (32 bytes) followed by the
// page number as big-endian uint32. Swapping a page between files, or
// between page numbers within the same file, changes the AAD and fails
// authentication.
func pageAAD(fileID [FileIDSize]byte, pageNo uint32) []byte {
	aad := make([]byte, FileIDSize+4)
	copy(aad, fileID[:])
	binary.BigEndian.PutUint32(aad[FileIDSize:], pageNo)
	return aad
}

// EncryptPage seals one plaintext page and returns the on-disk encoding:
// IV (IVSize) || ciphertext+tag (PageSize+AuthTagSize). Inputs shorter
// than PageSize are zero-padded before sealing; callers never need to
// pad explicitly, and the logical file size (tracked separately) is what
// determines which trailing bytes are ever surfaced back to a reader.
// pageNo must fit in a uint32; callers validate that before calling in.
func (p *pageAEAD) EncryptPage(fileID [FileIDSize]byte, pageNo uint32, plaintext []byte) ([]byte, error) {
	if len(plaintext) > PageSize {
		return nil, fmt.Errorf("pageseal: plaintext page must be at most %d bytes, got %d", PageSize, len(plaintext))
	}
	padded := plaintext
	if len(plaintext) < PageSize {
		padded = make([]byte, PageSize)
		copy(padded, plaintext)
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("pageseal: generating page IV: %w", err)
	}
	sealed := p.aead.Seal(nil, iv, padded, pageAAD(fileID, pageNo))

	out := make([]byte, 0, EncryptedPageSize)
	out = append(out, iv...)
	out = append(out, sealed...)
	pagesEncryptedCounter.Inc(1)
	return out, nil
}

// DecryptPage opens one on-disk encoded page (exactly EncryptedPageSize
// bytes) and returns the PageSize-byte plaintext. Authentication failure
// is reported as a plain error; callers (the I/O engine) are responsible
// for wrapping it into the page-scoped IOError the external contract
// requires.
func (p *pageAEAD) DecryptPage(fileID [FileIDSize]byte, pageNo uint32, encoded []byte) ([]byte, error) {
	if len(encoded) != EncryptedPageSize {
		return nil, fmt.Errorf("pageseal: encoded page must be %d bytes, got %d", EncryptedPageSize, len(encoded))
	}
	iv := encoded[:IVSize]
	ciphertext := encoded[IVSize:]
	plaintext, err := p.aead.Open(nil, iv, ciphertext, pageAAD(fileID, pageNo))
	if err != nil {
		authFailureCounter.Inc(1)
		return nil, fmt.Errorf("pageseal: page authentication failed: %w", err)
	}
	pagesDecryptedCounter.Inc(1)
	return plaintext, nil
}

// FileIDFromPath derives the fixed, deterministic file identifier used for
// the passphrase verification token: SHA-256 of the token's own relative
// path. Ordinary data files get a random FileIDSize-byte identifier
// instead (see newRandomFileID in handle.go); this function exists only
// for the one well-known path that must resolve to the same id on every
// open, before any header has been read.
func FileIDFromPath(relPath string) [FileIDSize]byte {
	return sha256.Sum256([]byte(relPath))
}
