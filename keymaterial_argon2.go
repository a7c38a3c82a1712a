package pageseal

import "golang.org/x/crypto/argon2"

// Argon2idParams tunes the optional, opt-in hardening pass applied on
// top of the mandatory PBKDF2-HMAC-SHA512 derivation.
type Argon2idParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultArgon2idParams returns conservative interactive-use parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{Memory: 64 * 1024, Iterations: 3, Parallelism: 4}
}

// HardenedDeriveKey re-hardens a PBKDF2-derived vault key with Argon2id,
// using the key itself as Argon2id's password and the same salt the
// PBKDF2 pass used. This is not part of the mandatory key-derivation
// path (PBKDF2-HMAC-SHA512 alone satisfies the on-disk format's
// requirements); it exists for callers who want memory-hard stretching
// in addition to the baseline, opted into via Config.HardenWithArgon2id
// and applied consistently between the run that wrote the verification
// token and every run that reopens it.
func HardenedDeriveKey(pbkdf2Key, salt []byte, params Argon2idParams) ([]byte, error) {
	if err := ValidateByteLength("pbkdf2Key", pbkdf2Key, 32); err != nil {
		return nil, err
	}
	if err := ValidateByteLength("salt", salt, SaltSize); err != nil {
		return nil, err
	}
	return argon2.IDKey(pbkdf2Key, salt, params.Iterations, params.Memory, params.Parallelism, 32), nil
}
