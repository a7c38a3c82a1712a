package pageseal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"syscall"
)

// Config configures a Facade. Exactly one of Passphrase or Key must be
// set: Passphrase is run through PBKDF2-HMAC-SHA512 to derive the vault
// key, Key is used as an already-derived 32-byte key (for callers that
// manage derivation themselves).
type Config struct {
	DataDir    string
	Passphrase []byte
	Key        []byte

	// KDFIterations overrides the PBKDF2 iteration count. Zero selects
	// MinKDFIterations. Values below MinKDFIterations are rejected.
	KDFIterations int

	// EncryptSaltFile additionally seals the persisted salt file under a
	// machine-local ChaCha20-Poly1305 key, read from SaltFileKey. This is
	// a hardening knob on top of the mandatory AES-256-GCM page codec,
	// not a replacement for it.
	EncryptSaltFile bool
	SaltFileKey     []byte

	// HardenWithArgon2id additionally re-hardens the PBKDF2-derived key
	// through Argon2id before it becomes the vault key. Off by default:
	// the mandatory PBKDF2-HMAC-SHA512 pass already meets the baseline,
	// and Argon2id's memory cost is a deployment-specific tradeoff the
	// caller opts into. Ignored when Key is set directly.
	HardenWithArgon2id bool
	Argon2idParams     Argon2idParams

	Logger *slog.Logger
	Debug  bool
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Facade is the operation surface a VFS shim drives: open, read, write,
// stat, truncate, rename, and the rest of the POSIX-shaped calls a host
// database's storage layer expects. It holds no background goroutines
// and performs no internal locking; callers own serializing their own
// access, matching the single-threaded contract of the layer beneath it.
type Facade struct {
	dataDir string
	vault   *VaultKey
	engine  *Engine
	logger  *slog.Logger
	debug   bool

	// cwd is the per-instance current directory, itself a virtual path
	// relative to the root, against which relative caller paths are
	// resolved before being joined onto dataDir. Starts at the virtual
	// root and changes only via Chdir.
	cwd string

	handles map[int64]*Handle
	nextFD  int64
	closed  bool
}

// Open derives (or accepts) the vault key, verifies or creates the
// verification token, and returns a ready-to-use Facade rooted at
// cfg.DataDir. A wrong passphrase, or a corrupted verification token,
// both surface as InvalidPassphraseError with identical text.
func Open(cfg Config) (*Facade, error) {
	if cfg.DataDir == "" {
		return nil, NewValidationError("DataDir", "", "data directory is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, NewIOError("mkdir", cfg.DataDir, err)
	}

	key, err := resolveVaultKeyBytes(cfg)
	if err != nil {
		return nil, err
	}
	vault := NewVaultKey(key)

	if err := VerifyOrCreateToken(cfg.DataDir, vault); err != nil {
		vault.Destroy()
		return nil, err
	}

	engine, err := NewEngine(vault)
	if err != nil {
		vault.Destroy()
		return nil, err
	}

	f := &Facade{
		dataDir: cfg.DataDir,
		vault:   vault,
		engine:  engine,
		logger:  cfg.logger(),
		debug:   cfg.Debug,
		cwd:     "/",
		handles: make(map[int64]*Handle),
		nextFD:  1 << 16, // start well above typical OS-reserved low descriptors
	}
	f.logf("facade opened", "data_dir", cfg.DataDir)
	return f, nil
}

// resolveVaultKeyBytes derives the vault key from cfg.Passphrase, or
// returns cfg.Key directly if the caller supplied an already-derived key.
// The returned slice is handed straight to memguard, which wipes it as
// part of taking ownership.
func resolveVaultKeyBytes(cfg Config) ([]byte, error) {
	if len(cfg.Key) > 0 {
		if len(cfg.Key) != 32 {
			return nil, NewValidationError("Key", nil, "pre-derived key must be 32 bytes")
		}
		return cfg.Key, nil
	}
	if len(cfg.Passphrase) == 0 {
		return nil, NewValidationError("Passphrase", nil, "passphrase or key is required")
	}

	iterations := cfg.KDFIterations
	if iterations == 0 {
		iterations = MinKDFIterations
	}

	salt, err := loadOrCreateSalt(cfg)
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(cfg.Passphrase, salt, iterations)
	if err != nil {
		return nil, err
	}
	if !cfg.HardenWithArgon2id {
		return key, nil
	}
	params := cfg.Argon2idParams
	if params == (Argon2idParams{}) {
		params = DefaultArgon2idParams()
	}
	return HardenedDeriveKey(key, salt, params)
}

func (f *Facade) logf(msg string, args ...any) {
	if f.debug {
		f.logger.Debug(msg, args...)
	}
}

// Close zeroizes the vault key and marks the Facade unusable. Any open
// Handle still tracked is closed first. Safe to call more than once.
func (f *Facade) Close() error {
	if f.closed {
		return nil
	}
	for fd, h := range f.handles {
		if h.file != nil {
			h.file.Close()
		}
		delete(f.handles, fd)
	}
	f.vault.Destroy()
	f.closed = true
	f.logf("facade closed")
	return nil
}

// resolveVirtual normalizes p against the facade's current directory: a
// relative p is joined onto cwd first, then the result is canonicalized
// (cleaned). Caller paths always use forward slashes, matching the
// virtual root's path convention regardless of build host.
func (f *Facade) resolveVirtual(p string) string {
	if !path.IsAbs(p) {
		p = path.Join(f.cwd, p)
	}
	return path.Clean(p)
}

func (f *Facade) hostPath(relPath string) string {
	resolved := f.resolveVirtual(relPath)
	return filepath.Join(f.dataDir, filepath.FromSlash(resolved))
}

// Chdir changes the facade's current directory, resolving relPath the
// same way every other operation does and requiring it to already exist
// as a directory.
func (f *Facade) Chdir(relPath string) error {
	if f.closed {
		return ErrClosed
	}
	resolved := f.resolveVirtual(relPath)
	info, err := os.Stat(filepath.Join(f.dataDir, filepath.FromSlash(resolved)))
	if err != nil {
		return translateOSError("chdir", relPath, err)
	}
	if !info.IsDir() {
		return NewPOSIXError("ENOTDIR", "chdir", relPath, fmt.Errorf("not a directory"))
	}
	f.cwd = resolved
	return nil
}

// Fcntl is a no-op stub: this layer has no file-control state of its own
// to report or adjust, but callers expect the call to succeed against a
// valid descriptor rather than fail outright.
func (f *Facade) Fcntl(fd int64, cmd int, arg int) (int, error) {
	if _, err := f.lookup(fd); err != nil {
		return 0, err
	}
	return 0, nil
}

// Flock is a no-op stub: advisory locking between processes is out of
// scope (see the concurrency model), but callers expect the call to
// succeed against a valid descriptor rather than fail outright.
func (f *Facade) Flock(fd int64, how int) error {
	_, err := f.lookup(fd)
	return err
}

// OpenFile opens relPath under the data directory, honoring the
// plaintext-reserved path policy: reserved paths are opened directly
// against the host filesystem with no encryption applied, while every
// other path goes through the page codec via Engine. Opening a directory
// returns a handle with no real descriptor and encrypted set to false.
func (f *Facade) OpenFile(relPath string, flags int, perm os.FileMode) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if err := ValidateFilePath(relPath); err != nil {
		return 0, err
	}
	host := f.hostPath(relPath)

	if info, statErr := os.Stat(host); statErr == nil && info.IsDir() {
		h := &Handle{path: host, flags: flags, encrypted: false}
		fd := f.allocFD(h)
		f.logf("opened directory", "path", relPath, "fd", fd)
		return fd, nil
	}

	if isPlaintextReserved(filepath.Base(relPath)) {
		osFlags := translateFlags(flags)
		file, err := os.OpenFile(host, osFlags, perm)
		if err != nil {
			return 0, translateOSError("open", relPath, err)
		}
		h := &Handle{file: file, path: host, flags: flags, encrypted: false}
		fd := f.allocFD(h)
		f.logf("opened plaintext-reserved file", "path", relPath, "fd", fd)
		return fd, nil
	}

	var salt [SaltSize]byte
	saltBytes, err := RandomSalt()
	if err != nil {
		return 0, err
	}
	copy(salt[:], saltBytes)

	h, err := openEncryptedHandle(host, flags, perm, salt)
	if err != nil {
		if IsIOError(err) {
			return 0, err
		}
		return 0, translateOSError("open", relPath, err)
	}
	fd := f.allocFD(h)
	f.logf("opened encrypted file", "path", relPath, "fd", fd)
	return fd, nil
}

func (f *Facade) allocFD(h *Handle) int64 {
	fd := f.nextFD
	f.nextFD++
	h.fd = fd
	f.handles[fd] = h
	return fd
}

func (f *Facade) lookup(fd int64) (*Handle, error) {
	h, ok := f.handles[fd]
	if !ok {
		return nil, NewPOSIXError("EBADF", "lookup", "", fmt.Errorf("no such open file descriptor %d", fd))
	}
	return h, nil
}

// CloseHandle closes the handle identified by fd.
func (f *Facade) CloseHandle(fd int64) error {
	h, err := f.lookup(fd)
	if err != nil {
		return err
	}
	delete(f.handles, fd)
	if h.file == nil {
		return nil
	}
	if err := h.file.Close(); err != nil {
		return translateOSError("close", h.path, err)
	}
	return nil
}

// Read reads up to len(buf) bytes from fd's current position, advancing
// it by the number of bytes read.
func (f *Facade) Read(fd int64, buf []byte) (int, error) {
	h, err := f.lookup(fd)
	if err != nil {
		return 0, err
	}
	if h.file == nil {
		return 0, NewPOSIXError("EISDIR", "read", h.path, fmt.Errorf("is a directory"))
	}
	if !h.encrypted {
		n, err := h.file.ReadAt(buf, h.position)
		h.position += int64(n)
		return n, err
	}
	data, err := f.engine.ReadAt(h, h.position, len(buf))
	n := copy(buf, data)
	h.position += int64(n)
	if err != nil && err != io.EOF {
		return n, err
	}
	return n, err
}

// Write writes buf at fd's current position (or at end of file if the
// handle was opened with OAppend), advancing the position.
func (f *Facade) Write(fd int64, buf []byte) (int, error) {
	h, err := f.lookup(fd)
	if err != nil {
		return 0, err
	}
	if err := ValidateBuffer(buf, "buf", 0); err != nil {
		return 0, err
	}
	if h.file == nil {
		return 0, NewPOSIXError("EISDIR", "write", h.path, fmt.Errorf("is a directory"))
	}
	pos := h.position
	if h.flags&OAppend != 0 {
		size, sizeErr := f.sizeOf(h)
		if sizeErr != nil {
			return 0, sizeErr
		}
		pos = size
	}
	if !h.encrypted {
		n, err := h.file.WriteAt(buf, pos)
		h.position = pos + int64(n)
		return n, err
	}
	n, err := f.engine.WriteAt(h, pos, buf)
	h.position = pos + int64(n)
	return n, err
}

func (f *Facade) sizeOf(h *Handle) (int64, error) {
	var info os.FileInfo
	var err error
	if h.file == nil {
		info, err = os.Stat(h.path)
	} else {
		info, err = h.file.Stat()
	}
	if err != nil {
		return 0, NewIOError("stat", h.path, err)
	}
	if !h.encrypted {
		return info.Size(), nil
	}
	return LogicalSize(info.Size())
}

// Seek repositions fd's logical cursor, POSIX lseek semantics.
func (f *Facade) Seek(fd int64, offset int64, whence int) (int64, error) {
	h, err := f.lookup(fd)
	if err != nil {
		return 0, err
	}
	if whence == io.SeekStart {
		if err := ValidateOffset(offset, "offset"); err != nil {
			return 0, err
		}
	}
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = h.position
	case io.SeekEnd:
		size, err := f.sizeOf(h)
		if err != nil {
			return 0, err
		}
		base = size
	default:
		return 0, NewValidationError("whence", whence, "invalid whence")
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, NewValidationError("offset", offset, "negative resulting position")
	}
	h.position = newPos
	return newPos, nil
}

// Truncate resizes the file open at fd to size.
func (f *Facade) Truncate(fd int64, size int64) error {
	h, err := f.lookup(fd)
	if err != nil {
		return err
	}
	if h.file == nil {
		return NewPOSIXError("EISDIR", "truncate", h.path, fmt.Errorf("is a directory"))
	}
	if !h.encrypted {
		return h.file.Truncate(size)
	}
	return f.engine.Truncate(h, size)
}

// Fsync flushes fd's data and metadata to stable storage.
func (f *Facade) Fsync(fd int64) error {
	h, err := f.lookup(fd)
	if err != nil {
		return err
	}
	if h.file == nil {
		return nil
	}
	if err := h.file.Sync(); err != nil {
		return translateOSError("fsync", h.path, err)
	}
	return nil
}

// Fdatasync is Fsync; the host os package exposes no data-only sync.
func (f *Facade) Fdatasync(fd int64) error {
	return f.Fsync(fd)
}

// Fstat reports the logical file info for fd.
func (f *Facade) Fstat(fd int64) (os.FileInfo, error) {
	h, err := f.lookup(fd)
	if err != nil {
		return nil, err
	}
	return f.statHandle(h)
}

func (f *Facade) statHandle(h *Handle) (os.FileInfo, error) {
	var info os.FileInfo
	var err error
	if h.file == nil {
		info, err = os.Stat(h.path)
	} else {
		info, err = h.file.Stat()
	}
	if err != nil {
		return nil, translateOSError("stat", h.path, err)
	}
	if !h.encrypted {
		return info, nil
	}
	logical, err := LogicalSize(info.Size())
	if err != nil {
		return nil, NewIOError("stat", h.path, err)
	}
	return &logicalFileInfo{FileInfo: info, size: logical}, nil
}

// Stat reports logical file info for relPath without requiring an open
// handle.
func (f *Facade) Stat(relPath string) (os.FileInfo, error) {
	host := f.hostPath(relPath)
	info, err := os.Stat(host)
	if err != nil {
		return nil, translateOSError("stat", relPath, err)
	}
	if info.IsDir() || isPlaintextReserved(filepath.Base(relPath)) {
		return info, nil
	}
	logical, err := LogicalSize(info.Size())
	if err != nil {
		return nil, NewIOError("stat", relPath, err)
	}
	return &logicalFileInfo{FileInfo: info, size: logical}, nil
}

// Lstat is Stat; this package does not special-case symlinks beyond what
// the host filesystem already does.
func (f *Facade) Lstat(relPath string) (os.FileInfo, error) {
	host := f.hostPath(relPath)
	info, err := os.Lstat(host)
	if err != nil {
		return nil, translateOSError("lstat", relPath, err)
	}
	if info.IsDir() || info.Mode()&os.ModeSymlink != 0 || isPlaintextReserved(filepath.Base(relPath)) {
		return info, nil
	}
	logical, err := LogicalSize(info.Size())
	if err != nil {
		return nil, NewIOError("lstat", relPath, err)
	}
	return &logicalFileInfo{FileInfo: info, size: logical}, nil
}

// Mkdir creates a directory; directories are never encrypted.
func (f *Facade) Mkdir(relPath string, perm os.FileMode) error {
	if err := os.Mkdir(f.hostPath(relPath), perm); err != nil {
		return translateOSError("mkdir", relPath, err)
	}
	return nil
}

// Readdir lists the entries of the directory at relPath.
func (f *Facade) Readdir(relPath string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(f.hostPath(relPath))
	if err != nil {
		return nil, translateOSError("readdir", relPath, err)
	}
	return entries, nil
}

// Rename moves oldPath to newPath.
func (f *Facade) Rename(oldPath, newPath string) error {
	if err := os.Rename(f.hostPath(oldPath), f.hostPath(newPath)); err != nil {
		return translateOSError("rename", oldPath, err)
	}
	return nil
}

// Rmdir removes the empty directory at relPath.
func (f *Facade) Rmdir(relPath string) error {
	if err := os.Remove(f.hostPath(relPath)); err != nil {
		return translateOSError("rmdir", relPath, err)
	}
	return nil
}

// Unlink removes the file at relPath.
func (f *Facade) Unlink(relPath string) error {
	if err := os.Remove(f.hostPath(relPath)); err != nil {
		return translateOSError("unlink", relPath, err)
	}
	return nil
}

// TruncatePath resizes the file at relPath without requiring an open
// handle, re-deriving a throwaway handle for the duration of the call.
func (f *Facade) TruncatePath(relPath string, size int64) error {
	if isPlaintextReserved(filepath.Base(relPath)) {
		if err := os.Truncate(f.hostPath(relPath), size); err != nil {
			return translateOSError("truncate", relPath, err)
		}
		return nil
	}
	fd, err := f.OpenFile(relPath, ORdwr, 0)
	if err != nil {
		return err
	}
	defer f.CloseHandle(fd)
	return f.Truncate(fd, size)
}

// Utimes sets access and modification times on relPath.
func (f *Facade) Utimes(relPath string, atime, mtime int64) error {
	host := f.hostPath(relPath)
	if err := chtimes(host, atime, mtime); err != nil {
		return translateOSError("utimes", relPath, err)
	}
	return nil
}

// Chmod changes the permission bits of relPath.
func (f *Facade) Chmod(relPath string, mode os.FileMode) error {
	if err := os.Chmod(f.hostPath(relPath), mode); err != nil {
		return translateOSError("chmod", relPath, err)
	}
	return nil
}

// WriteFile writes data to relPath in one call, creating or truncating it
// first. The data is encrypted unless relPath is plaintext-reserved.
func (f *Facade) WriteFile(relPath string, data []byte, perm os.FileMode) error {
	fd, err := f.OpenFile(relPath, OWronly|OCreat|OTrunc, perm)
	if err != nil {
		return err
	}
	defer f.CloseHandle(fd)
	_, err = f.Write(fd, data)
	return err
}

// Exists reports whether relPath exists, regardless of type.
func (f *Facade) Exists(relPath string) bool {
	_, err := os.Stat(f.hostPath(relPath))
	return err == nil
}

// logicalFileInfo overrides Size() to report the plaintext size computed
// from the physical encrypted page count, rather than the file's actual
// on-disk footprint.
type logicalFileInfo struct {
	os.FileInfo
	size int64
}

func (l *logicalFileInfo) Size() int64 { return l.size }

// translateOSError maps a host os-package error onto a POSIXError
// carrying the matching errno symbol, falling back to a plain IOError
// for anything not covered by the common POSIX set.
func translateOSError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case os.IsNotExist(err):
		return NewPOSIXError("ENOENT", op, path, err)
	case os.IsExist(err):
		return NewPOSIXError("EEXIST", op, path, err)
	case os.IsPermission(err):
		return NewPOSIXError("EACCES", op, path, err)
	}
	if errno, ok := underlyingErrno(err); ok {
		switch errno {
		case syscall.EBADF:
			return NewPOSIXError("EBADF", op, path, err)
		case syscall.EISDIR:
			return NewPOSIXError("EISDIR", op, path, err)
		case syscall.ENOTDIR:
			return NewPOSIXError("ENOTDIR", op, path, err)
		case syscall.ENOTEMPTY:
			return NewPOSIXError("ENOTEMPTY", op, path, err)
		}
	}
	return NewIOError(op, path, err)
}

func underlyingErrno(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if pe, ok := err.(*os.PathError); ok {
		if e, ok := pe.Err.(syscall.Errno); ok {
			return e, true
		}
	}
	if e, ok := err.(syscall.Errno); ok {
		return e, true
	}
	return errno, false
}
