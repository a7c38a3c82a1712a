package pageseal

import (
	"io"
)

// Engine performs page-aligned reads, writes, and truncation against one
// open encrypted Handle. It holds no goroutines, starts no background
// work, and takes no locks: callers are responsible for not issuing
// concurrent operations against the same Handle, matching the
// single-threaded, cooperative contract the Facade promises its callers.
type Engine struct {
	codec *pageAEAD
}

// NewEngine builds an Engine bound to vault's derived key.
func NewEngine(vault *VaultKey) (*Engine, error) {
	codec, err := newPageAEADFromVault(vault)
	if err != nil {
		return nil, err
	}
	return &Engine{codec: codec}, nil
}

// readPage reads and decrypts page pageNo of h. A page past the current
// end of file is returned as an all-zero plaintext page, which is what
// WriteAt starts from when it writes beyond the end of file.
func (e *Engine) readPage(h *Handle, pageNo uint32) ([]byte, error) {
	count, err := e.pageCount(h)
	if err != nil {
		return nil, err
	}
	if pageNo >= count {
		return make([]byte, PageSize), nil
	}

	encoded := make([]byte, EncryptedPageSize)
	n, err := h.file.ReadAt(encoded, PageOffset(pageNo))
	if err != nil && err != io.EOF {
		return nil, NewPageIOError("read", h.path, int64(pageNo), err)
	}
	if n != EncryptedPageSize {
		return nil, NewPageIOError("read", h.path, int64(pageNo), ErrShortPage)
	}
	plaintext, err := e.codec.DecryptPage(h.fileID, pageNo, encoded)
	if err != nil {
		return nil, NewPageIOError("read", h.path, int64(pageNo), err)
	}
	return plaintext, nil
}

// writePage encrypts plaintext and writes it in place of page pageNo,
// extending the file with zero pages first if pageNo is beyond the
// current end of file.
func (e *Engine) writePage(h *Handle, pageNo uint32, plaintext []byte) error {
	count, err := e.pageCount(h)
	if err != nil {
		return err
	}
	if pageNo >= count {
		if err := e.extendWithZeroPages(h, count, pageNo+1); err != nil {
			return err
		}
	}
	encoded, err := e.codec.EncryptPage(h.fileID, pageNo, plaintext)
	if err != nil {
		return NewPageIOError("write", h.path, int64(pageNo), err)
	}
	if _, err := h.file.WriteAt(encoded, PageOffset(pageNo)); err != nil {
		return NewPageIOError("write", h.path, int64(pageNo), err)
	}
	return nil
}

func (e *Engine) extendWithZeroPages(h *Handle, from, to uint32) error {
	zero := make([]byte, PageSize)
	for p := from; p < to; p++ {
		encoded, err := e.codec.EncryptPage(h.fileID, p, zero)
		if err != nil {
			return NewPageIOError("write", h.path, int64(p), err)
		}
		if _, err := h.file.WriteAt(encoded, PageOffset(p)); err != nil {
			return NewPageIOError("write", h.path, int64(p), err)
		}
	}
	return nil
}

func (e *Engine) pageCount(h *Handle) (uint32, error) {
	info, err := h.file.Stat()
	if err != nil {
		return 0, NewIOError("stat", h.path, err)
	}
	n, err := PageCount(info.Size())
	if err != nil {
		return 0, NewIOError("stat", h.path, err)
	}
	return n, nil
}

// ReadAt reads length logical bytes starting at offset, performing one
// page decrypt per touched page and trimming to exactly the requested
// range. Short reads past end of file return io.EOF alongside whatever
// bytes were available, the same convention as io.ReaderAt.
func (e *Engine) ReadAt(h *Handle, offset int64, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	logicalSize, err := func() (int64, error) {
		info, statErr := h.file.Stat()
		if statErr != nil {
			return 0, NewIOError("stat", h.path, statErr)
		}
		return LogicalSize(info.Size())
	}()
	if err != nil {
		return nil, err
	}

	if offset >= logicalSize {
		return nil, io.EOF
	}
	if offset+int64(length) > logicalSize {
		length = int(logicalSize - offset)
	}

	first, last, firstStart, lastEnd := PageRange(offset, length)
	out := make([]byte, 0, length)
	for p := first; p <= last; p++ {
		if err := ValidatePageNo(int64(p)); err != nil {
			return nil, err
		}
		page, err := e.readPage(h, p)
		if err != nil {
			return nil, err
		}
		start := 0
		end := PageSize
		if p == first {
			start = firstStart
		}
		if p == last {
			end = lastEnd
		}
		out = append(out, page[start:end]...)
	}
	var retErr error
	if offset+int64(length) >= logicalSize {
		retErr = io.EOF
	}
	return out, retErr
}

// WriteAt writes data at offset, read-modify-writing every partially
// touched boundary page so bytes outside [offset, offset+len(data)) are
// preserved exactly, and zero-filling any gap created by writing past
// the current end of file.
func (e *Engine) WriteAt(h *Handle, offset int64, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if err := ValidatePageNo(offset / PageSize); err != nil {
		return 0, err
	}
	end := offset + int64(len(data))
	if err := ValidatePageNo((end - 1) / PageSize); err != nil {
		return 0, err
	}

	first, last, firstStart, lastEnd := PageRange(offset, len(data))
	written := 0
	for p := first; p <= last; p++ {
		page, err := e.readPage(h, p)
		if err != nil {
			return written, err
		}
		start := 0
		stop := PageSize
		if p == first {
			start = firstStart
		}
		if p == last {
			stop = lastEnd
		}
		copy(page[start:stop], data[written:written+(stop-start)])
		if err := e.writePage(h, p, page); err != nil {
			return written, err
		}
		written += stop - start
	}
	return written, nil
}

// Truncate resizes the logical file to newSize. Extending appends
// zero-filled encrypted pages; shrinking truncates the physical file to
// the header plus exactly the pages that remain.
func (e *Engine) Truncate(h *Handle, newSize int64) error {
	if newSize < 0 {
		return NewIOError("truncate", h.path, ErrInvalidNewSize)
	}
	curPages, err := e.pageCount(h)
	if err != nil {
		return err
	}
	newPages := PagesForLogicalSize(newSize)
	if err := ValidatePageNo(int64(newPages)); err != nil {
		return err
	}

	switch {
	case newPages > curPages:
		if err := e.extendWithZeroPages(h, curPages, newPages); err != nil {
			return err
		}
	case newPages < curPages:
		if err := h.file.Truncate(PhysicalSizeForPages(newPages)); err != nil {
			return NewIOError("truncate", h.path, err)
		}
	}

	// A shrink that lands mid-page must still zero the tail of the last
	// remaining page so a subsequent read never observes stale plaintext
	// beyond the new logical size.
	if rem := newSize % PageSize; rem != 0 && newPages > 0 {
		lastPage := newPages - 1
		page, err := e.readPage(h, lastPage)
		if err != nil {
			return err
		}
		for i := int(rem); i < PageSize; i++ {
			page[i] = 0
		}
		if err := e.writePage(h, lastPage, page); err != nil {
			return err
		}
	}
	return nil
}
