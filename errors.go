// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

package mar

import "errors"

// Sentinel errors for MAR operations. Use errors.Is in callers.
var (
	// ErrMalformed means the header, index, or signature block cannot be parsed.
	ErrMalformed = errors.New("malformed MAR archive")
	// ErrTruncated means fewer bytes are available than the archive declares.
	ErrTruncated = errors.New("archive data shorter than declared")
	// ErrUnsupportedAlgorithm means a signature record carries an unknown algorithm id.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	// ErrUnsupportedKey means the public key type cannot be used for verification.
	ErrUnsupportedKey = errors.New("unsupported public key type")
	// ErrInvalidKey means the public key material cannot be parsed.
	ErrInvalidKey = errors.New("cannot parse public key")
	// ErrNameTooLong means an index entry name exceeds the maximum length.
	ErrNameTooLong = errors.New("entry name exceeds maximum length")
	// ErrEntryNotFound means the named entry is not present in the index.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrClosed means the reader or resource is already closed.
	ErrClosed = errors.New("reader or resource already closed")
	// ErrInvalidExtractPath means archive entry path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrInvalidFilterPattern means one or more extraction filter rules are invalid.
	ErrInvalidFilterPattern = errors.New("invalid extraction filter rules")
)
