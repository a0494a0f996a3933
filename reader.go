// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

package mar

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ulikunitz/xz"
)

// Reader provides read, extract, and verify access to one parsed MAR file.
type Reader struct {
	// ra is the underlying random-access reader used for raw reads.
	ra io.ReaderAt
	// file is set when Reader owns an *os.File opened via Open.
	file *os.File
	// info stores the parsed immutable archive description.
	info *archiveInfo
	// spool holds the decompressed data section, created at most once.
	spool *os.File
	// size is total source size in bytes.
	size int64
	// mu guards closed state and one-shot spool creation.
	mu sync.Mutex
	// closed reports whether Close was already called.
	closed bool
}

// Open opens a MAR file by path and parses its structure.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open MAR: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	r, err := NewReader(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r.file = f
	return r, nil
}

// NewReader parses a MAR archive from an existing ReaderAt and known size.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	info, err := parseArchive(ra, size)
	if err != nil {
		return nil, err
	}

	return &Reader{ra: ra, size: size, info: info}, nil
}

// ListEntries returns parsed index entries of the archive at path.
func ListEntries(path string) ([]IndexEntry, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return r.Entries(), nil
}

// Entries returns a copy of parsed index entries in stored order.
func (r *Reader) Entries() []IndexEntry {
	if r == nil {
		return nil
	}

	entries := make([]IndexEntry, len(r.info.entries))
	copy(entries, r.info.entries)
	return entries
}

// Signatures returns a copy of the embedded signature records.
func (r *Reader) Signatures() []SignatureRecord {
	if r == nil || r.info.signatures == nil {
		return nil
	}

	records := make([]SignatureRecord, len(r.info.signatures.Records))
	for i, rec := range r.info.signatures.Records {
		records[i].Algorithm = rec.Algorithm
		records[i].Signature = append([]byte(nil), rec.Signature...)
	}

	return records
}

// IsCompressed reports whether the data section is one whole-archive xz stream.
func (r *Reader) IsCompressed() bool {
	return r != nil && r.info.compressed
}

// IsSigned reports whether the archive carries at least one signature record.
func (r *Reader) IsSigned() bool {
	return r != nil && r.info.signatures != nil && len(r.info.signatures.Records) > 0
}

// ProductInfo returns the product information block content when present.
func (r *Reader) ProductInfo() (string, bool) {
	if r == nil {
		return "", false
	}

	for _, section := range r.info.additional {
		if section.ID == AdditionalBlockProductInfo {
			return strings.TrimRight(string(section.Data), "\x00"), true
		}
	}

	return "", false
}

// Close releases the underlying file if the reader owns one and removes the
// decompressed spool. It is safe to call more than once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	if r.spool != nil {
		name := r.spool.Name()
		if err := r.spool.Close(); err != nil {
			firstErr = err
		}
		if err := os.Remove(name); err != nil && firstErr == nil {
			firstErr = err
		}
		r.spool = nil
	}

	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// isClosed reports the current closed state under the reader lock.
func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// dataSource returns the stream all content reads go through: the raw source
// for plain archives, the lazily built decompressed spool otherwise.
func (r *Reader) dataSource() (io.ReaderAt, error) {
	if !r.info.compressed {
		return r.ra, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.spool != nil {
		return r.spool, nil
	}

	spool, err := r.buildSpool()
	if err != nil {
		return nil, err
	}

	r.spool = spool
	return spool, nil
}

// buildSpool decompresses the whole-archive xz data section into a temporary
// file. The spool is positioned so that absolute content offsets from the
// index keep resolving after decompression.
func (r *Reader) buildSpool() (*os.File, error) {
	spool, err := os.CreateTemp("", "mar-spool-*")
	if err != nil {
		return nil, fmt.Errorf("create spool: %w", err)
	}

	if err := r.fillSpool(spool); err != nil {
		name := spool.Name()
		_ = spool.Close()
		_ = os.Remove(name)
		return nil, err
	}

	return spool, nil
}

// fillSpool writes the decompressed data section into the spool file.
func (r *Reader) fillSpool(spool *os.File) error {
	if _, err := spool.Seek(r.info.dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek spool: %w", err)
	}

	// The whole-archive wrapper is always xz, independent of any per-entry
	// decompression mode passed to extraction.
	src := newExactReader(r.ra, r.info.dataOffset, r.info.dataLength)
	xzr, err := xz.NewReader(src)
	if err != nil {
		return fmt.Errorf("open xz data section: %w", err)
	}

	buf := make([]byte, copyBufferSize)
	if _, err := copyStream(spool, xzr, buf); err != nil {
		return fmt.Errorf("decompress data section: %w", err)
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind spool: %w", err)
	}

	return nil
}
