package pageseal

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	return key
}

func testPage(t *testing.T, fill byte) []byte {
	t.Helper()
	page := make([]byte, PageSize)
	for i := range page {
		page[i] = fill
	}
	return page
}

func TestPageCodecRoundTrip(t *testing.T) {
	codec, err := newPageAEAD(testKey(t))
	if err != nil {
		t.Fatalf("newPageAEAD: %v", err)
	}
	fileID := [FileIDSize]byte{1, 2, 3}
	plaintext := testPage(t, 0xAB)

	encoded, err := codec.EncryptPage(fileID, 5, plaintext)
	if err != nil {
		t.Fatalf("EncryptPage: %v", err)
	}
	if len(encoded) != EncryptedPageSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), EncryptedPageSize)
	}

	got, err := codec.DecryptPage(fileID, 5, encoded)
	if err != nil {
		t.Fatalf("DecryptPage: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("decrypted plaintext does not match original")
	}
}

func TestPageCodecDistinctIVsAndCiphertexts(t *testing.T) {
	codec, _ := newPageAEAD(testKey(t))
	fileID := [FileIDSize]byte{9}
	plaintext := testPage(t, 0x11)

	a, err := codec.EncryptPage(fileID, 0, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	b, err := codec.EncryptPage(fileID, 0, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same plaintext/page produced identical ciphertext")
	}
	if bytes.Equal(a[:IVSize], b[:IVSize]) {
		t.Fatal("two encryptions produced the same IV")
	}
}

func TestPageCodecCrossFileAADRejected(t *testing.T) {
	codec, _ := newPageAEAD(testKey(t))
	fileA := [FileIDSize]byte{1}
	fileB := [FileIDSize]byte{2}
	encoded, err := codec.EncryptPage(fileA, 3, testPage(t, 0x42))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := codec.DecryptPage(fileB, 3, encoded); err == nil {
		t.Fatal("expected decryption under a different file id to fail")
	}
}

func TestPageCodecCrossPageAADRejected(t *testing.T) {
	codec, _ := newPageAEAD(testKey(t))
	fileID := [FileIDSize]byte{7}
	encoded, err := codec.EncryptPage(fileID, 3, testPage(t, 0x42))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := codec.DecryptPage(fileID, 4, encoded); err == nil {
		t.Fatal("expected decryption under a different page number to fail")
	}
}

func TestPageCodecBitFlipDetected(t *testing.T) {
	codec, _ := newPageAEAD(testKey(t))
	fileID := [FileIDSize]byte{3}
	encoded, err := codec.EncryptPage(fileID, 0, testPage(t, 0x55))
	if err != nil {
		t.Fatal(err)
	}
	encoded[len(encoded)-1] ^= 0x01
	if _, err := codec.DecryptPage(fileID, 0, encoded); err == nil {
		t.Fatal("expected a flipped ciphertext bit to fail authentication")
	}
}

func TestPageCodecWrongKeyRejected(t *testing.T) {
	codecA, _ := newPageAEAD(testKey(t))
	codecB, _ := newPageAEAD(testKey(t))
	fileID := [FileIDSize]byte{4}
	encoded, err := codecA.EncryptPage(fileID, 0, testPage(t, 0x77))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := codecB.DecryptPage(fileID, 0, encoded); err == nil {
		t.Fatal("expected decryption under a different key to fail")
	}
}

func TestFileIDFromPathDeterministic(t *testing.T) {
	a := FileIDFromPath(verifyTokenPath)
	b := FileIDFromPath(verifyTokenPath)
	if a != b {
		t.Fatal("FileIDFromPath must be deterministic for the same input")
	}
	c := FileIDFromPath("something/else")
	if a == c {
		t.Fatal("FileIDFromPath should differ for different inputs")
	}
}

func TestEncryptPageZeroPadsShortPlaintext(t *testing.T) {
	codec, err := newPageAEAD(testKey(t))
	if err != nil {
		t.Fatalf("newPageAEAD: %v", err)
	}
	fileID := [FileIDSize]byte{5}
	short := []byte("short plaintext")

	encoded, err := codec.EncryptPage(fileID, 0, short)
	if err != nil {
		t.Fatalf("EncryptPage: %v", err)
	}
	if len(encoded) != EncryptedPageSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), EncryptedPageSize)
	}

	got, err := codec.DecryptPage(fileID, 0, encoded)
	if err != nil {
		t.Fatalf("DecryptPage: %v", err)
	}
	want := make([]byte, PageSize)
	copy(want, short)
	if !bytes.Equal(got, want) {
		t.Fatal("short plaintext was not zero-padded to a full page before sealing")
	}
}

func TestEncryptPageRejectsOversizePlaintext(t *testing.T) {
	codec, _ := newPageAEAD(testKey(t))
	if _, err := codec.EncryptPage([FileIDSize]byte{}, 0, make([]byte, PageSize+1)); err == nil {
		t.Fatal("expected an error for a plaintext page longer than PageSize")
	}
}

func TestDecryptPageRejectsWrongSizeEncoded(t *testing.T) {
	codec, _ := newPageAEAD(testKey(t))
	if _, err := codec.DecryptPage([FileIDSize]byte{}, 0, make([]byte, EncryptedPageSize-1)); err == nil {
		t.Fatal("expected an error for a short encoded page")
	}
}
