// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

package mar

import (
	"fmt"
	"io"
	"strings"
)

// copyBufferSize defines the fixed buffer size for streaming copies.
const copyBufferSize = 64 * 1024

// exactReader yields exactly want bytes from one file section and fails
// loudly when the underlying stream is exhausted early.
type exactReader struct {
	src  *io.SectionReader
	want int64
	got  int64
}

// newExactReader returns a reader over [off, off+n) that reports ErrTruncated
// instead of a silent short read.
func newExactReader(ra io.ReaderAt, off, n int64) *exactReader {
	return &exactReader{src: io.NewSectionReader(ra, off, n), want: n}
}

// Read reads from the bounded section, converting an early EOF into ErrTruncated.
func (r *exactReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	r.got += int64(n)

	if (err == io.EOF || err == io.ErrUnexpectedEOF) && r.got < r.want {
		return n, fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, r.got, r.want)
	}

	return n, err
}

// copyStream drains src into dst through one fixed buffer.
func copyStream(dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}

	var total int64
	for {
		readN, readErr := src.Read(buf)
		if readN > 0 {
			writeN, writeErr := dst.Write(buf[:readN])
			total += int64(writeN)

			if writeErr != nil {
				return total, writeErr
			}

			if writeN != readN {
				return total, io.ErrShortWrite
			}
		}

		if readErr == nil {
			continue
		}

		if readErr == io.EOF {
			return total, nil
		}

		return total, readErr
	}
}

// normalizeEntryPath normalizes an index entry name for filesystem output and
// rejects absolute and traversal inputs.
func normalizeEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" {
		return "", ErrInvalidExtractPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}
	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsAbsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsAbsDrivePrefix reports whether path starts with drive-root prefix like C:/.
func hasWindowsAbsDrivePrefix(path string) bool {
	if len(path) < 3 {
		return false
	}

	return isASCIIAlpha(path[0]) && path[1] == ':' && path[2] == '/'
}

// isASCIIAlpha reports whether byte is ASCII latin letter.
func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
