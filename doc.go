// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

/*
Package mar provides read, extract, and verify operations for MAR
(Mozilla ARchive) files, the container format used by the application
update service of Firefox and Thunderbird.

The format is specified at https://wiki.mozilla.org/Software_Update:MAR

Reading is stream-oriented: archives whose data section is wrapped in a
single xz layer are decompressed lazily into a temporary spool at most
once, entry content is pulled block by block without buffering whole
entries in memory, and signature verification walks the signed byte
range exactly once regardless of how many signatures the file carries.

# Reading

Open an archive and list or read entries:

	r, err := mar.Open("update.mar")
	if err != nil {
	    return err
	}
	defer r.Close()
	for _, e := range r.Entries() {
	    data, _ := r.ReadEntry(e.Name, mar.DecompressAuto)
	    // use data
	}

For metadata-only scans, list entries without keeping a reader:

	entries, err := mar.ListEntries("update.mar")
	if err != nil {
	    return err
	}
	_ = entries

# Extracting

Extract every entry to a directory, decompressing per-entry payloads by
sniffing their leading magic bytes:

	if err := r.Extract(ctx, "out/", mar.ExtractOptions{}); err != nil {
	    return err
	}

Entry names come from untrusted input; extraction refuses names that
would place output outside the destination directory.

Selective extraction uses github.com/woozymasta/pathrules filters:

	err := r.Extract(ctx, "out/", mar.ExtractOptions{
	    Filter: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "Contents/**"},
	    },
	})

# Verifying

Verify embedded signatures against a PEM encoded public key:

	ok, err := r.VerifyPEM(pemKey)
	if err != nil {
	    return err
	}
	if !ok {
	    // unsigned, or signature does not match content
	}

Verify returns false both for archives without signatures and for
archives whose content no longer matches a signature; an unrecognized
signature algorithm is reported as an error before any content is read.
*/
package mar
