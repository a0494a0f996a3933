// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

package mar

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// marMagic identifies a MAR container ("MAR1").
var marMagic = []byte{'M', 'A', 'R', '1'}

// archiveInfo is the parsed structural description of one MAR container.
type archiveInfo struct {
	// signatures is nil for old-style archives without a signature section.
	signatures *SignatureBlock
	// entries are index records in stored order.
	entries []IndexEntry
	// additional are additional information blocks in stored order.
	additional []AdditionalSection
	// dataOffset is the absolute offset of the first content byte.
	dataOffset int64
	// dataLength is the raw byte span of the data section.
	dataLength int64
	// indexOffset is the absolute offset of the index length field.
	indexOffset int64
	// compressed reports whether the data section is one xz stream.
	compressed bool
}

// parseArchive reads and validates the MAR structure from ReaderAt.
func parseArchive(ra io.ReaderAt, size int64) (*archiveInfo, error) {
	var hdr [headerSize]byte
	if _, err := ra.ReadAt(hdr[:], 0); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: short header", ErrMalformed)
		}

		return nil, fmt.Errorf("read header: %w", err)
	}

	if !bytes.Equal(hdr[:4], marMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}

	indexOffset := int64(binary.BigEndian.Uint32(hdr[4:8]))
	if indexOffset < headerSize || indexOffset+4 > size {
		return nil, fmt.Errorf("%w: index offset %d out of file bounds", ErrMalformed, indexOffset)
	}

	entries, err := parseIndex(ra, indexOffset, size)
	if err != nil {
		return nil, err
	}

	info := &archiveInfo{
		entries:     entries,
		indexOffset: indexOffset,
		dataOffset:  indexOffset,
	}

	for i := range entries {
		if off := int64(entries[i].Offset); off < info.dataOffset {
			info.dataOffset = off
		}
	}
	if info.dataOffset < headerSize {
		return nil, fmt.Errorf("%w: content offset %d inside header", ErrMalformed, info.dataOffset)
	}
	info.dataLength = indexOffset - info.dataOffset

	// Old-style archives place content immediately after the 8-byte header;
	// a larger first content offset means signature and additional blocks
	// occupy the gap.
	if len(entries) > 0 && info.dataOffset > headerSize {
		sigs, extra, err := parseSignatureRegion(ra, info.dataOffset)
		if err != nil {
			return nil, err
		}

		info.signatures = sigs
		info.additional = extra
	}

	compressed, err := probeCompression(ra, info.dataOffset, info.dataLength)
	if err != nil {
		return nil, err
	}
	info.compressed = compressed

	return info, nil
}

// parseIndex reads the index table and returns entry records in stored order.
func parseIndex(ra io.ReaderAt, indexOffset, size int64) ([]IndexEntry, error) {
	var lenBuf [4]byte
	if _, err := ra.ReadAt(lenBuf[:], indexOffset); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: short index", ErrMalformed)
		}

		return nil, fmt.Errorf("read index length: %w", err)
	}

	indexSize := int64(binary.BigEndian.Uint32(lenBuf[:]))
	if indexOffset+4+indexSize > size {
		return nil, fmt.Errorf("%w: index size %d out of file bounds", ErrMalformed, indexSize)
	}

	buf := make([]byte, indexSize)
	if _, err := io.ReadFull(io.NewSectionReader(ra, indexOffset+4, indexSize), buf); err != nil {
		return nil, fmt.Errorf("read index table: %w", err)
	}

	var entries []IndexEntry
	pos := 0
	for pos < len(buf) {
		if len(buf)-pos < indexRecordSize {
			return nil, fmt.Errorf("%w: trailing index bytes", ErrMalformed)
		}

		offset := binary.BigEndian.Uint32(buf[pos:])
		contentSize := binary.BigEndian.Uint32(buf[pos+4:])
		flags := binary.BigEndian.Uint32(buf[pos+8:])
		pos += indexRecordSize

		nul := bytes.IndexByte(buf[pos:], 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: unterminated entry name", ErrMalformed)
		}
		if nul > maxNameLen {
			return nil, ErrNameTooLong
		}
		if nul == 0 {
			return nil, fmt.Errorf("%w: empty entry name", ErrMalformed)
		}

		name := string(buf[pos : pos+nul])
		pos += nul + 1

		entries = append(entries, IndexEntry{
			Name:   name,
			Offset: offset,
			Size:   contentSize,
			Flags:  flags,
		})
	}

	return entries, nil
}

// parseSignatureRegion reads the signature block and additional information
// blocks occupying [headerSize, dataOffset).
func parseSignatureRegion(ra io.ReaderAt, dataOffset int64) (*SignatureBlock, []AdditionalSection, error) {
	br := bufio.NewReader(io.NewSectionReader(ra, headerSize, dataOffset-headerSize))

	var fixed [sigBlockFixedSize]byte
	if _, err := io.ReadFull(br, fixed[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: short signature block", ErrMalformed)
	}

	block := &SignatureBlock{FileSize: binary.BigEndian.Uint64(fixed[0:8])}
	count := binary.BigEndian.Uint32(fixed[8:12])
	if count > maxSignatures {
		return nil, nil, fmt.Errorf("%w: %d signature records", ErrMalformed, count)
	}

	for i := uint32(0); i < count; i++ {
		var head [sigRecordHeadSize]byte
		if _, err := io.ReadFull(br, head[:]); err != nil {
			return nil, nil, fmt.Errorf("%w: short signature record", ErrMalformed)
		}

		algorithm := SigningAlgorithm(binary.BigEndian.Uint32(head[0:4]))
		sigLen := binary.BigEndian.Uint32(head[4:8])
		if sigLen == 0 || sigLen > maxSignatureLen {
			return nil, nil, fmt.Errorf("%w: signature length %d", ErrMalformed, sigLen)
		}

		signature := make([]byte, sigLen)
		if _, err := io.ReadFull(br, signature); err != nil {
			return nil, nil, fmt.Errorf("%w: short signature bytes", ErrMalformed)
		}

		block.Records = append(block.Records, SignatureRecord{
			Algorithm: algorithm,
			Signature: signature,
		})
	}

	extra, err := parseAdditionalSections(br)
	if err != nil {
		return nil, nil, err
	}

	return block, extra, nil
}

// parseAdditionalSections reads additional information blocks following the
// signature records. Absence of the section counter is tolerated.
func parseAdditionalSections(br *bufio.Reader) ([]AdditionalSection, error) {
	var cntBuf [4]byte
	if _, err := io.ReadFull(br, cntBuf[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: short additional section counter", ErrMalformed)
	}

	count := binary.BigEndian.Uint32(cntBuf[:])
	if count > maxExtraSections {
		return nil, fmt.Errorf("%w: %d additional sections", ErrMalformed, count)
	}

	sections := make([]AdditionalSection, 0, count)
	for i := uint32(0); i < count; i++ {
		var head [8]byte
		if _, err := io.ReadFull(br, head[:]); err != nil {
			return nil, fmt.Errorf("%w: short additional section", ErrMalformed)
		}

		// Block size includes the size and id fields themselves.
		blockSize := binary.BigEndian.Uint32(head[0:4])
		blockID := binary.BigEndian.Uint32(head[4:8])
		if blockSize < 8 || blockSize-8 > maxExtraBlockLen {
			return nil, fmt.Errorf("%w: additional block size %d", ErrMalformed, blockSize)
		}

		data := make([]byte, blockSize-8)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, fmt.Errorf("%w: short additional block data", ErrMalformed)
		}

		sections = append(sections, AdditionalSection{ID: blockID, Data: data})
	}

	return sections, nil
}

// probeCompression reports whether the data section starts with the xz
// stream magic, marking a whole-archive compressed container.
func probeCompression(ra io.ReaderAt, dataOffset, dataLength int64) (bool, error) {
	if dataLength < int64(len(xzMagic)) {
		return false, nil
	}

	var probe [6]byte
	n, err := ra.ReadAt(probe[:], dataOffset)
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("probe data section: %w", err)
	}

	return n >= len(xzMagic) && bytes.Equal(probe[:len(xzMagic)], xzMagic), nil
}
