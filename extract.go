// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

package mar

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/woozymasta/pathrules"
)

// nopCloser wraps a reader and provides a no-op close.
type nopCloser struct {
	io.Reader
}

// Close closes nopCloser (no-op).
func (nopCloser) Close() error {
	return nil
}

// ExtractEntry returns a lazy stream of the entry's optionally decompressed
// content. The stream yields exactly e.Size pre-decompression bytes and
// reports ErrTruncated when the data section is exhausted early.
func (r *Reader) ExtractEntry(e IndexEntry, mode Decompression) (io.ReadCloser, error) {
	if r == nil || r.ra == nil {
		return nil, ErrNilReader
	}
	if r.isClosed() {
		return nil, ErrClosed
	}

	src, err := r.dataSource()
	if err != nil {
		return nil, err
	}

	decoded, err := newEntryDecoder(newExactReader(src, int64(e.Offset), int64(e.Size)), mode)
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", e.Name, err)
	}

	return nopCloser{Reader: decoded}, nil
}

// ReadEntry reads the full (optionally decompressed) content of the named entry.
func (r *Reader) ReadEntry(name string, mode Decompression) ([]byte, error) {
	if r == nil || r.ra == nil {
		return nil, ErrNilReader
	}

	for _, e := range r.info.entries {
		if e.Name != name {
			continue
		}

		rc, err := r.ExtractEntry(e, mode)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()

		return io.ReadAll(rc)
	}

	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

// Extract writes selected entries to dstDir in index order. The first failed
// entry aborts the whole extraction; already-written files are kept.
func (r *Reader) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if r == nil || r.ra == nil {
		return ErrNilReader
	}
	if r.isClosed() {
		return ErrClosed
	}

	opts.applyDefaults()

	entries := r.info.entries
	if opts.Entries != nil {
		entries = opts.Entries
	}
	if len(entries) == 0 {
		return nil
	}

	matcher, err := newFilterMatcher(opts.Filter, opts.FilterMatcherOptions)
	if err != nil {
		return err
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	copyBuf := make([]byte, copyBufferSize)
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if matcher != nil && !matcher.Match(entry.Name) {
			continue
		}

		if err := r.extractOne(dstRootAbs, entry, opts, copyBuf); err != nil {
			return err
		}
	}

	return nil
}

// extractOne writes one entry below the destination root.
func (r *Reader) extractOne(dstRootAbs string, entry IndexEntry, opts ExtractOptions, copyBuf []byte) error {
	relPath, err := normalizeEntryPath(entry.Name)
	if err != nil {
		return fmt.Errorf("entry %s: %w", entry.Name, err)
	}

	outPath := filepath.Join(dstRootAbs, filepath.FromSlash(relPath))
	if dir := filepath.Dir(outPath); dir != dstRootAbs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	rc, err := r.ExtractEntry(entry, opts.Mode)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	file, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, permFromFlags(entry.Flags))
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}

	written, copyErr := copyStream(file, rc, copyBuf)
	closeErr := file.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", entry.Name, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", entry.Name, closeErr)
	}

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(entry, written, outPath)
	}

	return nil
}

// permFromFlags maps index permission flags to an output file mode.
func permFromFlags(flags uint32) fs.FileMode {
	perm := fs.FileMode(flags) & 0o777
	if perm == 0 {
		perm = 0o644
	}

	return perm
}

// filterMatcher holds compiled include/exclude rules for selective extraction.
type filterMatcher struct {
	matcher *pathrules.Matcher
}

// newFilterMatcher compiles extraction path rules; nil rules mean no filter.
func newFilterMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*filterMatcher, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidFilterPattern, err)
	}

	return &filterMatcher{matcher: matcher}, nil
}

// Match reports whether path is included by at least one filter rule.
func (m *filterMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	return m.matcher.Included(path, false)
}
