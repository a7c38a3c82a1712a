package pageseal

import "fmt"

// PageOffset returns the byte offset within the physical (on-disk) file
// at which the encoded page pageNo begins.
func PageOffset(pageNo uint32) int64 {
	return FileHeaderSize + int64(pageNo)*EncryptedPageSize
}

// PageCount returns the number of whole encrypted pages held in a
// physical file of the given size, excluding the header. physicalSize
// must be FileHeaderSize plus a whole multiple of EncryptedPageSize;
// anything else is a layout violation and returns ErrBadPageLength.
func PageCount(physicalSize int64) (uint32, error) {
	if physicalSize < FileHeaderSize {
		return 0, fmt.Errorf("pageseal: physical size %d smaller than header size %d: %w", physicalSize, FileHeaderSize, ErrBadPageLength)
	}
	payload := physicalSize - FileHeaderSize
	if payload%EncryptedPageSize != 0 {
		return 0, ErrBadPageLength
	}
	return uint32(payload / EncryptedPageSize), nil
}

// LogicalSize returns the logical (plaintext) size implied by a physical
// file size: one PageSize-sized page per encrypted page on disk.
func LogicalSize(physicalSize int64) (int64, error) {
	pages, err := PageCount(physicalSize)
	if err != nil {
		return 0, err
	}
	return int64(pages) * PageSize, nil
}

// PhysicalSizeForPages returns the physical file size that holds exactly
// pageCount encrypted pages.
func PhysicalSizeForPages(pageCount uint32) int64 {
	return FileHeaderSize + int64(pageCount)*EncryptedPageSize
}

// PagesForLogicalSize returns the number of pages needed to hold
// logicalSize plaintext bytes (rounding up).
func PagesForLogicalSize(logicalSize int64) uint32 {
	if logicalSize <= 0 {
		return 0
	}
	return uint32((logicalSize + PageSize - 1) / PageSize)
}

// PageRange returns the inclusive range of page numbers [first, last]
// touched by a logical byte range [offset, offset+length), along with the
// byte offsets within the first and last page at which the range begins
// and ends. Used by the I/O engine to iterate pages for a read or write.
func PageRange(offset int64, length int) (first, last uint32, firstPageStart, lastPageEnd int) {
	if length == 0 {
		p := uint32(offset / PageSize)
		off := int(offset % PageSize)
		return p, p, off, off
	}
	end := offset + int64(length) - 1
	first = uint32(offset / PageSize)
	last = uint32(end / PageSize)
	firstPageStart = int(offset % PageSize)
	lastPageEnd = int(end%PageSize) + 1
	return
}

// ValidatePageNo reports whether pageNo (as a possibly out-of-range
// int64) fits the representable uint32 page-number space, returning a
// RangeError if not.
func ValidatePageNo(pageNo int64) error {
	if pageNo < 0 || pageNo > int64(^uint32(0)) {
		return NewRangeError(pageNo, "page number out of uint32 range")
	}
	return nil
}
