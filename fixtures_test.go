// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

package mar

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// testEntry is one file placed into a built archive image.
type testEntry struct {
	name  string
	data  []byte
	flags uint32
}

// buildArchive assembles a MAR byte image with entries packed back to back.
// sigRegion holds the raw signature block plus additional sections starting
// at offset 8; nil builds an old-style archive without them.
func buildArchive(t *testing.T, sigRegion []byte, entries []testEntry) []byte {
	t.Helper()

	dataStart := headerSize + len(sigRegion)

	var data bytes.Buffer
	var index bytes.Buffer
	off := dataStart
	for _, e := range entries {
		data.Write(e.data)

		var rec [indexRecordSize]byte
		binary.BigEndian.PutUint32(rec[0:4], uint32(off))
		binary.BigEndian.PutUint32(rec[4:8], uint32(len(e.data)))
		binary.BigEndian.PutUint32(rec[8:12], e.flags)
		index.Write(rec[:])
		index.WriteString(e.name)
		index.WriteByte(0)

		off += len(e.data)
	}

	indexOffset := dataStart + data.Len()

	var out bytes.Buffer
	out.Write(marMagic)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(indexOffset))
	out.Write(u32[:])
	out.Write(sigRegion)
	out.Write(data.Bytes())
	binary.BigEndian.PutUint32(u32[:], uint32(index.Len()))
	out.Write(u32[:])
	out.Write(index.Bytes())

	return out.Bytes()
}

// buildCompressedArchive assembles an image whose data section is one xz
// stream; index offsets and sizes refer to the decompressed stream.
func buildCompressedArchive(t *testing.T) []byte {
	t.Helper()

	var index bytes.Buffer
	writeIndexRecord(&index, 8, 12, 0, "a.txt")
	writeIndexRecord(&index, 20, 16, 0, "b.txt")

	var out bytes.Buffer
	out.Write(marMagic)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(headerSize+len(xzWholeArchiveBlob)))
	out.Write(u32[:])
	out.Write(xzWholeArchiveBlob)
	binary.BigEndian.PutUint32(u32[:], uint32(index.Len()))
	out.Write(u32[:])
	out.Write(index.Bytes())

	return out.Bytes()
}

// writeIndexRecord appends one index record to buf.
func writeIndexRecord(buf *bytes.Buffer, offset, size, flags uint32, name string) {
	var rec [indexRecordSize]byte
	binary.BigEndian.PutUint32(rec[0:4], offset)
	binary.BigEndian.PutUint32(rec[4:8], size)
	binary.BigEndian.PutUint32(rec[8:12], flags)
	buf.Write(rec[:])
	buf.WriteString(name)
	buf.WriteByte(0)
}

// writeArchiveFile writes an image to a temp file and returns its path.
func writeArchiveFile(t *testing.T, image []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.mar")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

// openImage returns a parsed reader over an in-memory image.
func openImage(t *testing.T, image []byte) *Reader {
	t.Helper()

	r, err := NewReader(bytes.NewReader(image), int64(len(image)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	return r
}

// Pre-generated codec fixtures. Tests only ever need the decode direction,
// so compressed payloads are embedded rather than produced at run time.
var (
	// xzWholeArchiveBlob is the xz stream of "hello world\n" + "whole archive xz"
	// placed at decompressed offsets 8 and 20.
	xzWholeArchiveBlob = []byte{
		0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00, 0x04, 0xe6, 0xd6, 0xb4, 0x46,
		0x02, 0x00, 0x21, 0x01, 0x16, 0x00, 0x00, 0x00, 0x74, 0x2f, 0xe5, 0xa3,
		0x01, 0x00, 0x1b, 0x68, 0x65, 0x6c, 0x6c, 0x6f, 0x20, 0x77, 0x6f, 0x72,
		0x6c, 0x64, 0x0a, 0x77, 0x68, 0x6f, 0x6c, 0x65, 0x20, 0x61, 0x72, 0x63,
		0x68, 0x69, 0x76, 0x65, 0x20, 0x78, 0x7a, 0x00, 0xc7, 0x33, 0xa6, 0x44,
		0xd1, 0xf9, 0x39, 0xfd, 0x00, 0x01, 0x34, 0x1c, 0x93, 0x1a, 0xad, 0x8f,
		0x1f, 0xb6, 0xf3, 0x7d, 0x01, 0x00, 0x00, 0x00, 0x00, 0x04, 0x59, 0x5a,
	}

	// bz2EntryBlob is the bzip2 stream of bz2EntryContent.
	bz2EntryBlob = []byte{
		0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53, 0x59, 0xe8, 0x11,
		0xbf, 0x1a, 0x00, 0x00, 0x37, 0x51, 0x80, 0x00, 0x10, 0x40, 0x00, 0x3f,
		0xff, 0xff, 0xf0, 0x20, 0x00, 0x50, 0xa3, 0x43, 0x40, 0x00, 0x00, 0x15,
		0xfe, 0xaa, 0x4d, 0x4d, 0x32, 0x64, 0x69, 0x90, 0xda, 0x36, 0xa4, 0xc5,
		0xe5, 0x0d, 0x50, 0xcd, 0x54, 0xd5, 0x7c, 0x64, 0xd9, 0x36, 0xd2, 0x59,
		0x73, 0x77, 0x32, 0x59, 0x47, 0xd4, 0xd7, 0x21, 0xba, 0x8c, 0xd5, 0x72,
		0xa3, 0x47, 0x0b, 0x28, 0xe1, 0x08, 0x7b, 0x4a, 0x5d, 0x3a, 0x7f, 0x17,
		0x72, 0x45, 0x38, 0x50, 0x90, 0xe8, 0x11, 0xbf, 0x1a,
	}

	// xzEntryBlob is the xz stream of xzEntryContent.
	xzEntryBlob = []byte{
		0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00, 0x04, 0xe6, 0xd6, 0xb4, 0x46,
		0x02, 0x00, 0x21, 0x01, 0x16, 0x00, 0x00, 0x00, 0x74, 0x2f, 0xe5, 0xa3,
		0xe0, 0x00, 0x43, 0x00, 0x18, 0x5d, 0x00, 0x3c, 0x1e, 0x80, 0x05, 0x52,
		0x27, 0xde, 0xd3, 0x21, 0x24, 0x25, 0x6c, 0x45, 0xf1, 0xe8, 0xff, 0x85,
		0x8a, 0xd6, 0x29, 0xd0, 0x98, 0x00, 0x00, 0x00, 0x4b, 0x8b, 0xb2, 0x65,
		0x49, 0x6a, 0x49, 0x22, 0x00, 0x01, 0x34, 0x44, 0x55, 0xc3, 0x1d, 0xea,
		0x1f, 0xb6, 0xf3, 0x7d, 0x01, 0x00, 0x00, 0x00, 0x00, 0x04, 0x59, 0x5a,
	}
)

// bz2EntryContent returns the decompressed content of bz2EntryBlob.
func bz2EntryContent() []byte {
	return bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 3)
}

// xzEntryContent returns the decompressed content of xzEntryBlob.
func xzEntryContent() []byte {
	return bytes.Repeat([]byte("xz entry payload\n"), 4)
}
