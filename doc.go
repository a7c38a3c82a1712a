// Package pageseal provides authenticated, page-aligned at-rest encryption
// for an embedded relational database's byte-oriented storage files,
// interposed at the virtual-filesystem boundary.
//
// # Overview
//
// pageseal is not a general-purpose encrypting filesystem. It assumes its
// caller is a database storage engine that reads and writes 8 KiB pages,
// and it encrypts each page independently so that random-access
// read-modify-write workloads never require touching a whole file. A
// Facade exposes the POSIX-shaped operation surface a VFS shim expects
// (open/read/write/fsync/stat/truncate/rename/...); underneath it, an I/O
// engine translates arbitrary byte ranges into page-aligned ciphertext
// operations.
//
// # Cipher Suite
//
// Every page is sealed with AES-256-GCM: a fresh 96-bit IV per page, a
// 128-bit authentication tag, and associated data binding the ciphertext
// to both the file it belongs to and its page number. A page copied into
// another file, or shifted to a different offset within the same file,
// fails authentication instead of decrypting silently.
//
// # Basic Usage
//
//	facade, err := pageseal.Open(pageseal.Config{
//	    DataDir:    "/var/lib/mydb/data",
//	    Passphrase: []byte("correct horse battery staple"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer facade.Close()
//
//	fh, err := facade.OpenFile("base/1/16384", pageseal.ORdwr|pageseal.OCreat, 0600)
//	n, err := facade.Write(fh, buf)
//
// # Security Considerations
//
// Protected against:
//   - Unauthorized reads of data files at rest
//   - Undetected tampering with individual pages (authenticated encryption)
//   - Splicing a page from one file/offset into another (AAD binding)
//   - Wrong-passphrase opens (fails closed at the verification token, before
//     any user data is touched)
//
// Not protected against:
//   - Memory dumps while pages are decrypted in process memory
//   - Side-channel attacks (timing, cache)
//   - Concurrent multi-process writers to the same data directory
//   - Traffic analysis (file sizes and access patterns are visible)
//   - In-place passphrase rotation without a full re-encrypt pass
//
// # Key Derivation
//
// The vault key is derived from the caller's passphrase with
// PBKDF2-HMAC-SHA512 at a minimum of 256,000 iterations, matching current
// guidance for a CPU-hardened (non-memory-hard) KDF. The derived key is
// held in a locked, non-swappable, zeroizing buffer for the lifetime of
// the Facade and is never written to disk.
//
// # On-Disk Layout
//
// Each encrypted file begins with a 48-byte header (16-byte salt, 32-byte
// file identifier) followed by zero or more 8220-byte encrypted pages
// (12-byte IV, 16-byte authentication tag, 8192 bytes of ciphertext). Page
// position is always computed arithmetically from the page number; there
// is no on-disk index.
package pageseal
