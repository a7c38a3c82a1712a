package pageseal

import "strings"

// Fixed sizes from the on-disk format. These are wire constants, not tunables:
// changing any of them breaks compatibility with every file already written.
const (
	PageSize          = 8192 // logical bytes per page
	SaltSize          = 16   // bytes, KDF salt
	IVSize            = 12   // bytes, AES-GCM nonce
	AuthTagSize       = 16   // bytes, AES-GCM tag
	FileIDSize        = 32   // bytes, per-file identifier bound into AAD
	FileHeaderSize    = 48   // bytes, SaltSize + FileIDSize
	EncryptedPageSize = IVSize + AuthTagSize + PageSize // 8220

	// MinKDFIterations is the floor for PBKDF2-HMAC-SHA512. Callers may
	// configure higher; lower is rejected at derivation time.
	MinKDFIterations = 256_000
)

// Linux POSIX open(2) flag values, hardcoded rather than taken from
// syscall.O_* or golang.org/x/sys/unix so that flag translation is
// bit-exact on any build host regardless of GOOS. The virtual filesystem
// this package speaks for is always a Linux guest.
const (
	OWronly = 0x0001
	ORdwr   = 0x0002
	OCreat  = 0x0040
	OExcl   = 0x0080
	OTrunc  = 0x0200
	OAppend = 0x0400
)

// verifyTokenPath is the fixed, well-known relative path used to persist
// the passphrase verification token.
const verifyTokenPath = ".encryption-verify"

// tokenMagic identifies a verification token page; it is never present in
// ordinary user data pages.
var tokenMagic = [10]byte{'P', 'G', 'L', 'I', 'T', 'E', '_', 'E', 'N', 'C'}

// plaintextReservedSuffixes and plaintextReservedSubstrings together define
// the set of paths that are stored unencrypted: control-plane files a host
// database needs to read before (or without) establishing an encryption
// context.
var (
	plaintextReservedSuffixes = []string{
		".conf",
		".pid",
	}
	plaintextReservedSubstrings = []string{
		"PG_VERSION",
		"pg_internal.init",
		"postmaster",
		".lock",
		"replorigin_checkpoint",
	}
)

// isPlaintextReserved reports whether a file's base name should be stored
// unencrypted under the facade's path policy. Callers must pass
// filepath.Base(relPath), not the full relative path, so that a reserved
// pattern matching a directory component (e.g. a directory literally
// named "postmaster") doesn't misclassify files nested beneath it.
func isPlaintextReserved(baseName string) bool {
	for _, suf := range plaintextReservedSuffixes {
		if strings.HasSuffix(baseName, suf) {
			return true
		}
	}
	for _, sub := range plaintextReservedSubstrings {
		if strings.Contains(baseName, sub) {
			return true
		}
	}
	return false
}
