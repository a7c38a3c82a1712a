package pageseal

import "testing"

func TestPageOffsetArithmetic(t *testing.T) {
	tests := []struct {
		pageNo uint32
		want   int64
	}{
		{0, FileHeaderSize},
		{1, FileHeaderSize + EncryptedPageSize},
		{10, FileHeaderSize + 10*EncryptedPageSize},
	}
	for _, tt := range tests {
		if got := PageOffset(tt.pageNo); got != tt.want {
			t.Errorf("PageOffset(%d) = %d, want %d", tt.pageNo, got, tt.want)
		}
	}
}

func TestPageCountRoundTrip(t *testing.T) {
	for _, pages := range []uint32{0, 1, 2, 100} {
		size := PhysicalSizeForPages(pages)
		got, err := PageCount(size)
		if err != nil {
			t.Fatalf("PageCount(%d): %v", size, err)
		}
		if got != pages {
			t.Errorf("PageCount(%d) = %d, want %d", size, got, pages)
		}
	}
}

func TestPageCountRejectsMisalignedPayload(t *testing.T) {
	if _, err := PageCount(FileHeaderSize + EncryptedPageSize + 1); err != ErrBadPageLength {
		t.Fatalf("expected ErrBadPageLength, got %v", err)
	}
}

func TestPageCountRejectsUndersizedFile(t *testing.T) {
	if _, err := PageCount(FileHeaderSize - 1); err == nil {
		t.Fatal("expected an error for a file smaller than the header")
	}
}

func TestLogicalSizeMatchesPageCount(t *testing.T) {
	size := PhysicalSizeForPages(3)
	got, err := LogicalSize(size)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3*PageSize {
		t.Errorf("LogicalSize = %d, want %d", got, 3*PageSize)
	}
}

func TestPagesForLogicalSizeRoundsUp(t *testing.T) {
	tests := []struct {
		logical int64
		want    uint32
	}{
		{0, 0},
		{1, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
		{3 * PageSize, 3},
	}
	for _, tt := range tests {
		if got := PagesForLogicalSize(tt.logical); got != tt.want {
			t.Errorf("PagesForLogicalSize(%d) = %d, want %d", tt.logical, got, tt.want)
		}
	}
}

func TestPageRangeSinglePage(t *testing.T) {
	first, last, start, end := PageRange(10, 20)
	if first != 0 || last != 0 {
		t.Fatalf("expected single page 0, got first=%d last=%d", first, last)
	}
	if start != 10 || end != 30 {
		t.Fatalf("expected start=10 end=30, got start=%d end=%d", start, end)
	}
}

func TestPageRangeSpansPages(t *testing.T) {
	offset := int64(PageSize - 5)
	first, last, start, end := PageRange(offset, 10)
	if first != 0 || last != 1 {
		t.Fatalf("expected pages 0..1, got first=%d last=%d", first, last)
	}
	if start != PageSize-5 {
		t.Errorf("start = %d, want %d", start, PageSize-5)
	}
	if end != 5 {
		t.Errorf("end = %d, want 5", end)
	}
}

func TestValidatePageNoRange(t *testing.T) {
	if err := ValidatePageNo(0); err != nil {
		t.Errorf("page 0 should be valid: %v", err)
	}
	if err := ValidatePageNo(int64(^uint32(0))); err != nil {
		t.Errorf("max uint32 page should be valid: %v", err)
	}
	if err := ValidatePageNo(-1); !IsRangeError(err) {
		t.Error("negative page number should be a RangeError")
	}
	if err := ValidatePageNo(int64(^uint32(0)) + 1); !IsRangeError(err) {
		t.Error("page number beyond uint32 range should be a RangeError")
	}
}
