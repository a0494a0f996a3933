// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

package mar

import "github.com/woozymasta/pathrules"

// Internal binary layout and format limits.
const (
	headerSize        = 8    // magic + index offset
	sigBlockFixedSize = 12   // signed file size + record count
	sigRecordHeadSize = 8    // algorithm id + signature length
	indexRecordSize   = 12   // content offset + content size + flags
	maxNameLen        = 1024 // max index entry name length
	maxSignatures     = 8    // max signature records per archive
	maxSignatureLen   = 2048 // max bytes in one signature
	maxExtraSections  = 8    // max additional information blocks
	maxExtraBlockLen  = 64 * 1024
)

// AdditionalBlockProductInfo is the block id of the product information section.
const AdditionalBlockProductInfo uint32 = 1

// SigningAlgorithm identifies one signature scheme carried by the archive.
type SigningAlgorithm uint32

// Signature algorithm ids defined by the MAR format.
const (
	// SigAlgSHA1 is RSA PKCS#1 v1.5 over SHA-1, the legacy scheme.
	SigAlgSHA1 SigningAlgorithm = 1
	// SigAlgSHA384 is RSA PKCS#1 v1.5 over SHA-384.
	SigAlgSHA384 SigningAlgorithm = 2
)

// String returns a stable textual name for the algorithm.
func (a SigningAlgorithm) String() string {
	switch a {
	case SigAlgSHA1:
		return "rsa-pkcs1-sha1"
	case SigAlgSHA384:
		return "rsa-pkcs1-sha384"
	default:
		return "unknown"
	}
}

// Decompression selects per-entry payload decoding during extraction.
type Decompression int

// Per-entry decompression modes. The zero value sniffs automatically.
const (
	// DecompressAuto inspects the entry's leading magic bytes and picks a
	// matching codec, passing unrecognized content through unmodified.
	DecompressAuto Decompression = iota
	// DecompressNone passes entry bytes through unmodified.
	DecompressNone
	// DecompressBz2 forces bzip2 decoding regardless of content.
	DecompressBz2
	// DecompressXz passes entry bytes through unmodified: the container
	// already decompressed the xz layer when building the data spool, so
	// this mode only suppresses a second decode.
	DecompressXz
)

// IndexEntry describes one file recorded in the archive index.
type IndexEntry struct {
	// Name is the entry path as stored in the index; it is untrusted input.
	Name string `json:"name"`
	// Offset is the byte offset of entry content within the decompressed
	// data stream of the archive.
	Offset uint32 `json:"offset"`
	// Size is stored content size in bytes, before per-entry decompression.
	Size uint32 `json:"size"`
	// Flags carries the Unix permission bits recorded for this entry.
	Flags uint32 `json:"flags,omitempty"`
}

// SignatureRecord is one embedded signature over the archive's signed range.
type SignatureRecord struct {
	// Signature holds the raw signature bytes.
	Signature []byte `json:"signature"`
	// Algorithm identifies the signature scheme.
	Algorithm SigningAlgorithm `json:"algorithm"`
}

// SignatureBlock captures the archive's signature section.
type SignatureBlock struct {
	// Records are the embedded signatures in stored order.
	Records []SignatureRecord `json:"records"`
	// FileSize is the number of leading bytes of the file stream the
	// signatures attest to.
	FileSize uint64 `json:"file_size"`
}

// AdditionalSection is one additional information block from the header region.
type AdditionalSection struct {
	// Data is the raw block payload.
	Data []byte `json:"data"`
	// ID identifies the block kind.
	ID uint32 `json:"id"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(entry IndexEntry, written int64, outputPath string) `json:"-"`
	// Filter selects extracted entries by ordered path rules; nil extracts all.
	Filter []pathrules.Rule `json:"filter,omitempty"`
	// FilterMatcherOptions control filter rule matching.
	FilterMatcherOptions pathrules.MatcherOptions `json:"filter_matcher_options,omitzero"`
	// Entries limits extraction to selected metadata list; nil means all parsed entries.
	Entries []IndexEntry `json:"-"`
	// Mode selects per-entry decompression; the zero value is DecompressAuto.
	Mode Decompression `json:"mode,omitempty"`
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FilterMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.FilterMatcherOptions = pathrules.MatcherOptions{
			DefaultAction: pathrules.ActionExclude,
		}
	}

	if opts.FilterMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.FilterMatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}
