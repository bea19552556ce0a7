// Package pagedfile implements the L1 layer of the storage core: a linear,
// fixed-record file with an in-header end offset and append/overwrite/read/
// pop primitives. Every unique B+ tree's companion value file is a
// pagedfile.File underneath; the B+ tree node files themselves are read and
// written by the btree package directly.
package pagedfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"

	"go.uber.org/zap"

	"github.com/HenryHe0123/ticket-storage/codec"
)

// headerSize is the width of the endOffset header field (spec section 6:
// "On-disk format — paged file. Offset 0..7: endOffset").
const headerSize = 8

// crcSize is the width of the optional leading checksum column (section 3
// of SPEC_FULL.md's domain stack: "every paged-file record gets an
// optional CRC32 checksum column used by the maintenance CLI's fsck verb
// to detect a torn write left by an unclean shutdown").
const crcSize = 4

// ErrOutOfBound is returned when an address falls outside [headerSize, end).
var ErrOutOfBound = fmt.Errorf("pagedfile: address out of bound")

// ErrChecksumMismatch is returned by Read when Checksum is enabled and the
// stored CRC32 does not match the record bytes.
var ErrChecksumMismatch = errors.New("pagedfile: checksum mismatch")

// Config configures a File. Logger defaults to a no-op logger when nil,
// matching the optional-logger convention used by every component in this
// module (see SPEC_FULL.md ambient stack). Checksum adds a CRC32 column to
// every record: Read verifies it on each record it returns, and VerifyAll
// scans the whole file for cmd/ticketctl's fsck verb. B+ tree node files
// never carry one.
type Config struct {
	Logger   *zap.Logger
	Checksum bool
}

// File is a fixed-record linear store. Records are addressed by their byte
// offset and are never reclaimed on deletion (spec section 9: "the paged
// data file never reclaims space freed by erase").
type File[T any] struct {
	f        *os.File
	path     string
	codec    codec.Codec[T]
	end      int64
	recSize  int
	checksum bool
	log      *zap.SugaredLogger
}

// Open opens path, creating it (and its header) if absent.
func Open[T any](path string, c codec.Codec[T], cfg Config) (*File[T], error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sug := logger.Sugar().With("file", path)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagedfile: open %s: %w", path, err)
	}

	recSize := c.Size
	if cfg.Checksum {
		recSize += crcSize
	}
	pf := &File[T]{f: f, path: path, codec: c, recSize: recSize, checksum: cfg.Checksum, log: sug}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagedfile: stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		pf.end = headerSize
		if err := pf.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		sug.Debug("created new paged file")
	} else {
		hdr := make([]byte, headerSize)
		if _, err := f.ReadAt(hdr, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("pagedfile: read header %s: %w", path, err)
		}
		pf.end = int64(binary.BigEndian.Uint64(hdr))
		sug.Debugw("opened existing paged file", "endOffset", pf.end)
	}
	return pf, nil
}

func (f *File[T]) writeHeader() error {
	var hdr [headerSize]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(f.end))
	if _, err := f.f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("pagedfile: write header %s: %w", f.path, err)
	}
	return nil
}

// EndOffset returns the current allocation pointer.
func (f *File[T]) EndOffset() int64 { return f.end }

// IsEmpty reports whether the file holds no records.
func (f *File[T]) IsEmpty() bool { return f.end == headerSize }

// Append writes v at the end of the file and returns its pre-increment
// address.
func (f *File[T]) Append(v T) (int64, error) {
	addr := f.end
	buf := f.encodeRecord(v)
	if _, err := f.f.WriteAt(buf, addr); err != nil {
		f.log.Errorw("append failed", "addr", addr, "err", err)
		return 0, fmt.Errorf("pagedfile: append %s: %w", f.path, err)
	}
	f.end += int64(f.recSize)
	if err := f.writeHeader(); err != nil {
		return 0, err
	}
	return addr, nil
}

// Overwrite writes v at address, which must already hold a live record.
func (f *File[T]) Overwrite(address int64, v T) error {
	if err := f.checkBound(address); err != nil {
		return err
	}
	buf := f.encodeRecord(v)
	if _, err := f.f.WriteAt(buf, address); err != nil {
		f.log.Errorw("overwrite failed", "addr", address, "err", err)
		return fmt.Errorf("pagedfile: overwrite %s: %w", f.path, err)
	}
	return nil
}

// encodeRecord lays out one on-disk record: the codec's bytes, preceded by
// a CRC32 of those bytes when Checksum is enabled.
func (f *File[T]) encodeRecord(v T) []byte {
	buf := make([]byte, f.recSize)
	if f.checksum {
		payload := buf[crcSize:]
		f.codec.Encode(v, payload)
		binary.BigEndian.PutUint32(buf[:crcSize], crc32.ChecksumIEEE(payload))
		return buf
	}
	f.codec.Encode(v, buf)
	return buf
}

// Read returns the record stored at address.
func (f *File[T]) Read(address int64) (T, error) {
	var zero T
	if err := f.checkBound(address); err != nil {
		return zero, err
	}
	buf := make([]byte, f.recSize)
	if _, err := f.f.ReadAt(buf, address); err != nil {
		f.log.Errorw("read failed", "addr", address, "err", err)
		return zero, fmt.Errorf("pagedfile: read %s: %w", f.path, err)
	}
	if f.checksum {
		payload := buf[crcSize:]
		want := binary.BigEndian.Uint32(buf[:crcSize])
		if crc32.ChecksumIEEE(payload) != want {
			f.log.Errorw("checksum mismatch", "addr", address)
			return zero, fmt.Errorf("pagedfile: %s@%d: %w", f.path, address, ErrChecksumMismatch)
		}
		return f.codec.Decode(payload), nil
	}
	return f.codec.Decode(buf), nil
}

// VerifyAll scans every live record and reports how many fail their
// checksum. Used by cmd/ticketctl's fsck verb; when Checksum is disabled
// every record is reported checked and none corrupt, since there is
// nothing to verify.
func (f *File[T]) VerifyAll() (checked, corrupt int, err error) {
	for addr := int64(headerSize); addr < f.end; addr += int64(f.recSize) {
		checked++
		if !f.checksum {
			continue
		}
		if _, rerr := f.Read(addr); rerr != nil {
			if errors.Is(rerr, ErrChecksumMismatch) {
				corrupt++
				continue
			}
			return checked, corrupt, rerr
		}
	}
	return checked, corrupt, nil
}

// PopLast shrinks the file by one record. It is a no-op on an empty file.
// Per spec section 4.1, the vacated bytes are not zeroed; reads at that
// address afterwards are undefined.
func (f *File[T]) PopLast() error {
	if f.IsEmpty() {
		return nil
	}
	f.end -= int64(f.recSize)
	return f.writeHeader()
}

// Clear truncates the file back to an empty header.
func (f *File[T]) Clear() error {
	f.end = headerSize
	if err := f.f.Truncate(headerSize); err != nil {
		return fmt.Errorf("pagedfile: truncate %s: %w", f.path, err)
	}
	return f.writeHeader()
}

// Close flushes the header and releases the file handle.
func (f *File[T]) Close() error {
	if err := f.writeHeader(); err != nil {
		f.f.Close()
		return err
	}
	return f.f.Close()
}

func (f *File[T]) checkBound(address int64) error {
	if address < headerSize || address >= f.end || (address-headerSize)%int64(f.recSize) != 0 {
		f.log.Errorw("address out of bound", "addr", address, "end", f.end)
		return ErrOutOfBound
	}
	return nil
}
