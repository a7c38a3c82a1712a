package pageseal

import "fmt"

// Defensive precondition checks shared by the Facade and key-material
// layers. Each returns a *ValidationError rather than a bare error so
// callers can distinguish "caller gave us something malformed" from I/O
// or cryptographic failure.

// ValidateBuffer checks that buf is non-nil and at least minSize bytes.
func ValidateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return &ValidationError{Field: name, Message: "buffer cannot be nil"}
	}
	if minSize > 0 && len(buf) < minSize {
		return &ValidationError{
			Field:   name,
			Value:   len(buf),
			Message: fmt.Sprintf("buffer too small: got %d bytes, need at least %d", len(buf), minSize),
		}
	}
	return nil
}

// ValidateOffset checks that offset is non-negative.
func ValidateOffset(offset int64, name string) error {
	if offset < 0 {
		return &ValidationError{Field: name, Value: offset, Message: "offset cannot be negative"}
	}
	return nil
}

// ValidateByteLength checks that buf is exactly expectedSize bytes,
// naming field in the resulting ValidationError.
func ValidateByteLength(field string, buf []byte, expectedSize int) error {
	if buf == nil {
		return &ValidationError{Field: field, Message: field + " cannot be nil"}
	}
	if len(buf) != expectedSize {
		return &ValidationError{
			Field:   field,
			Value:   len(buf),
			Message: fmt.Sprintf("invalid length: got %d bytes, expected %d", len(buf), expectedSize),
		}
	}
	return nil
}

// ValidateFilePath checks that path is non-empty.
func ValidateFilePath(path string) error {
	if path == "" {
		return &ValidationError{Field: "path", Message: "file path cannot be empty"}
	}
	return nil
}
