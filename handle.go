package pageseal

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// newRandomFileID generates a fresh FileIDSize-byte file identifier from
// two concatenated random (v4) UUIDs. Using uuid.NewRandom() twice rather
// than crypto/rand directly keeps the identifier format consistent with
// the rest of the codebase's id-generation idiom while still drawing every
// bit from a CSPRNG (uuid.NewRandom reads crypto/rand internally).
func newRandomFileID() ([FileIDSize]byte, error) {
	var id [FileIDSize]byte
	a, err := uuid.NewRandom()
	if err != nil {
		return id, fmt.Errorf("pageseal: generating file id: %w", err)
	}
	b, err := uuid.NewRandom()
	if err != nil {
		return id, fmt.Errorf("pageseal: generating file id: %w", err)
	}
	copy(id[:16], a[:])
	copy(id[16:], b[:])
	return id, nil
}

// fileHeader is the first FileHeaderSize bytes of every encrypted data
// file: a salt field followed by the file's identifier. The salt field
// holds whatever salt the caller of openEncryptedHandle passes in; the
// Facade passes a fresh random salt on every OpenFile, not the persisted
// KDF salt, so it is not a copy of the key-derivation salt. It is never
// read back as a key-derivation input — the vault key always comes from
// the Facade's own passphrase-derived key.
type fileHeader struct {
	Salt   [SaltSize]byte
	FileID [FileIDSize]byte
}

func (h fileHeader) encode() []byte {
	buf := make([]byte, FileHeaderSize)
	copy(buf[:SaltSize], h.Salt[:])
	copy(buf[SaltSize:], h.FileID[:])
	return buf
}

func decodeFileHeader(buf []byte) (fileHeader, error) {
	var h fileHeader
	if len(buf) != FileHeaderSize {
		return h, fmt.Errorf("pageseal: file header must be %d bytes, got %d", FileHeaderSize, len(buf))
	}
	copy(h.Salt[:], buf[:SaltSize])
	copy(h.FileID[:], buf[SaltSize:])
	return h, nil
}

// Handle is the per-open-file state threaded through every Facade
// operation on an encrypted file: the real descriptor, its logical
// cursor, and the identity used to bind every page's AAD.
type Handle struct {
	fd        int64 // virtual descriptor, assigned by the Facade
	file      *os.File
	path      string // host path: the data directory joined with the caller's path
	fileID    [FileIDSize]byte
	salt      [SaltSize]byte
	position  int64 // logical (plaintext) cursor
	flags     int
	encrypted bool
}

// openEncryptedHandle opens or creates the encrypted file at hostPath,
// establishing its header (on create) or reading it (on reopen).
func openEncryptedHandle(hostPath string, flags int, perm os.FileMode, salt [SaltSize]byte) (*Handle, error) {
	osFlags := translateFlags(flags)

	existed := true
	if _, err := os.Stat(hostPath); os.IsNotExist(err) {
		existed = false
	}

	f, err := os.OpenFile(hostPath, osFlags, perm)
	if err != nil {
		return nil, err
	}

	h := &Handle{file: f, path: hostPath, salt: salt, flags: flags, encrypted: true}

	needsHeader := !existed || flags&OTrunc != 0
	if needsHeader {
		fileID, err := newRandomFileID()
		if err != nil {
			f.Close()
			return nil, err
		}
		h.fileID = fileID
		hdr := fileHeader{Salt: salt, FileID: fileID}
		if _, err := f.WriteAt(hdr.encode(), 0); err != nil {
			f.Close()
			return nil, NewIOError("write", hostPath, err)
		}
	} else {
		buf := make([]byte, FileHeaderSize)
		if _, err := f.ReadAt(buf, 0); err != nil {
			f.Close()
			return nil, NewIOError("read", hostPath, err)
		}
		hdr, err := decodeFileHeader(buf)
		if err != nil {
			f.Close()
			return nil, NewCorruptionErrorFor(hostPath, err)
		}
		h.fileID = hdr.FileID
	}

	if flags&OAppend != 0 {
		size, err := h.logicalSize()
		if err != nil {
			f.Close()
			return nil, err
		}
		h.position = size
	}

	return h, nil
}

// NewCorruptionErrorFor adapts a low-level header decode failure into an
// IOError naming the offending path (page 0, since the header precedes
// all pages and corruption here always means "this file's page 0 region
// is unreadable").
func NewCorruptionErrorFor(path string, cause error) error {
	return NewPageIOError("read-header", path, 0, cause)
}

func (h *Handle) logicalSize() (int64, error) {
	info, err := h.file.Stat()
	if err != nil {
		return 0, NewIOError("stat", h.path, err)
	}
	return LogicalSize(info.Size())
}

// translateFlags maps the package's Linux O_* bit values onto the host
// os package's flag constants. The host's own flag values are not
// assumed to match the Linux numeric constants (the whole point of
// keeping OWronly et al. fixed), so each bit is translated individually.
func translateFlags(flags int) int {
	var out int
	switch {
	case flags&OWronly != 0:
		out |= os.O_WRONLY
	case flags&ORdwr != 0:
		out |= os.O_RDWR
	default:
		out |= os.O_RDONLY
	}
	if flags&OCreat != 0 {
		out |= os.O_CREATE
	}
	if flags&OExcl != 0 {
		out |= os.O_EXCL
	}
	if flags&OTrunc != 0 {
		out |= os.O_TRUNC
	}
	if flags&OAppend != 0 {
		out |= os.O_APPEND
	}
	return out
}

