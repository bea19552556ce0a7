package pagedfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/HenryHe0123/ticket-storage/codec"
)

func int64Codec() codec.Codec[int64] {
	return codec.Codec[int64]{
		Size: 8,
		Encode: func(v int64, buf []byte) {
			for i := 0; i < 8; i++ {
				buf[i] = byte(v >> (8 * i))
			}
		},
		Decode: func(buf []byte) int64 {
			var v int64
			for i := 0; i < 8; i++ {
				v |= int64(buf[i]) << (8 * i)
			}
			return v
		},
	}
}

func TestAppendReadOverwrite(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "values"), int64Codec(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if !f.IsEmpty() {
		t.Fatalf("expected new file to be empty")
	}

	a1, err := f.Append(10)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := f.Append(20)
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a2 {
		t.Fatalf("expected distinct addresses")
	}

	if v, err := f.Read(a1); err != nil || v != 10 {
		t.Fatalf("Read(a1) = %v, %v, want 10, nil", v, err)
	}
	if v, err := f.Read(a2); err != nil || v != 20 {
		t.Fatalf("Read(a2) = %v, %v, want 20, nil", v, err)
	}

	if err := f.Overwrite(a1, 99); err != nil {
		t.Fatal(err)
	}
	if v, err := f.Read(a1); err != nil || v != 99 {
		t.Fatalf("Read(a1) after overwrite = %v, %v, want 99, nil", v, err)
	}
}

func TestPopLastAndClear(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "values"), int64Codec(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	a1, _ := f.Append(1)
	_, _ = f.Append(2)
	end := f.EndOffset()

	if err := f.PopLast(); err != nil {
		t.Fatal(err)
	}
	if f.EndOffset() >= end {
		t.Fatalf("expected EndOffset to shrink after PopLast")
	}
	if v, err := f.Read(a1); err != nil || v != 1 {
		t.Fatalf("Read(a1) after pop = %v, %v, want 1, nil", v, err)
	}

	if err := f.Clear(); err != nil {
		t.Fatal(err)
	}
	if !f.IsEmpty() {
		t.Fatalf("expected empty file after Clear")
	}
}

func TestOutOfBoundRead(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "values"), int64Codec(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.Read(999999); err != ErrOutOfBound {
		t.Fatalf("Read out of bound = %v, want ErrOutOfBound", err)
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "values")
	f, err := Open(path, int64Codec(), Config{Checksum: true})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	a1, _ := f.Append(10)
	a2, _ := f.Append(20)

	checked, corrupt, err := f.VerifyAll()
	if err != nil || checked != 2 || corrupt != 0 {
		t.Fatalf("VerifyAll before corruption = %d, %d, %v, want 2, 0, nil", checked, corrupt, err)
	}

	// Flip a payload byte without touching its checksum.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[a2+4] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := f.Read(a1); err != nil {
		t.Fatalf("Read(a1) should still be clean: %v", err)
	}
	if _, err := f.Read(a2); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Read(a2) = %v, want ErrChecksumMismatch", err)
	}

	checked, corrupt, err = f.VerifyAll()
	if err != nil || checked != 2 || corrupt != 1 {
		t.Fatalf("VerifyAll after corruption = %d, %d, %v, want 2, 1, nil", checked, corrupt, err)
	}
}

func TestReopenPreservesEndOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "values")
	f, err := Open(path, int64Codec(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	addr, _ := f.Append(42)
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2, err := Open(path, int64Codec(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()

	if v, err := f2.Read(addr); err != nil || v != 42 {
		t.Fatalf("Read after reopen = %v, %v, want 42, nil", v, err)
	}
	if _, err := f2.Append(7); err != nil {
		t.Fatal(err)
	}
}
