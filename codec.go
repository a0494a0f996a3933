// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

package mar

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// Known compressed-format magic signatures.
var (
	// xzMagic marks an xz stream.
	xzMagic = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
	// bz2Magic marks a bzip2 stream ("BZh").
	bz2Magic = []byte{0x42, 0x5A, 0x68}
)

// newEntryDecoder wraps an entry content stream with mode-selected decoding.
func newEntryDecoder(src io.Reader, mode Decompression) (io.Reader, error) {
	switch mode {
	case DecompressNone:
		return src, nil
	case DecompressAuto:
		return newSniffingDecoder(src)
	case DecompressBz2:
		return bzip2.NewReader(src), nil
	case DecompressXz:
		// The container layer already decompressed the xz wrapper when the
		// data spool was built; decoding here would double-decompress.
		return src, nil
	default:
		return nil, fmt.Errorf("unknown decompression mode %d", mode)
	}
}

// newSniffingDecoder picks a codec from the stream's leading magic bytes,
// passing unrecognized content through unmodified.
func newSniffingDecoder(src io.Reader) (io.Reader, error) {
	br := bufio.NewReader(src)

	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("sniff entry content: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, xzMagic):
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open xz entry stream: %w", err)
		}

		return xzr, nil
	case bytes.HasPrefix(head, bz2Magic):
		return bzip2.NewReader(br), nil
	default:
		return br, nil
	}
}
