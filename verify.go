// SPDX-License-Identifier: MIT
// Copyright (c) 2026 UpdateKit
// Source: github.com/updatekit/mar

package mar

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // Legacy signature scheme requires SHA1.
	"crypto/sha512"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"hash"
	"io"
)

// verifyBlockSize defines the read block size of the signed-range scan.
const verifyBlockSize = 32 * 1024

// signatureVerifier accumulates signed content for one signature record.
type signatureVerifier struct {
	digest    hash.Hash
	key       *rsa.PublicKey
	signature []byte
	hashID    crypto.Hash
}

// makeVerifier builds the verifier for one record, bound to the public key
// and that record's signature bytes.
func makeVerifier(algorithm SigningAlgorithm, pub crypto.PublicKey, signature []byte) (*signatureVerifier, error) {
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}

	switch algorithm {
	case SigAlgSHA1:
		return &signatureVerifier{
			digest:    sha1.New(), //nolint:gosec // Legacy signature scheme requires SHA1.
			hashID:    crypto.SHA1,
			key:       rsaKey,
			signature: signature,
		}, nil
	case SigAlgSHA384:
		return &signatureVerifier{
			digest:    sha512.New384(),
			hashID:    crypto.SHA384,
			key:       rsaKey,
			signature: signature,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, algorithm)
	}
}

// update feeds one block of signed content to the verifier.
func (v *signatureVerifier) update(block []byte) {
	_, _ = v.digest.Write(block)
}

// verify finalizes the digest and checks the signature against it.
func (v *signatureVerifier) verify() error {
	return rsa.VerifyPKCS1v15(v.key, v.hashID, v.digest.Sum(nil), v.signature)
}

// Verify checks every embedded signature against the archive content in one
// streaming pass. It returns false for archives without signatures and for
// mismatched signatures; unverifiable is not valid. An unrecognized signature
// algorithm is an error, raised before any content is read.
func (r *Reader) Verify(pub crypto.PublicKey) (bool, error) {
	if r == nil || r.ra == nil {
		return false, ErrNilReader
	}
	if r.isClosed() {
		return false, ErrClosed
	}

	sigs := r.info.signatures
	if sigs == nil || len(sigs.Records) == 0 {
		return false, nil
	}

	verifiers := make([]*signatureVerifier, 0, len(sigs.Records))
	for _, rec := range sigs.Records {
		v, err := makeVerifier(rec.Algorithm, pub, rec.Signature)
		if err != nil {
			return false, err
		}

		verifiers = append(verifiers, v)
	}

	err := r.streamSignedRange(func(block []byte) {
		for _, v := range verifiers {
			v.update(block)
		}
	})
	if err != nil {
		return false, err
	}

	for _, v := range verifiers {
		if err := v.verify(); err != nil {
			if errors.Is(err, rsa.ErrVerification) {
				return false, nil
			}

			return false, err
		}
	}

	return true, nil
}

// VerifyPEM parses a PEM encoded public key and verifies with it.
func (r *Reader) VerifyPEM(pemKey []byte) (bool, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return false, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	return r.Verify(pub)
}

// streamSignedRange feeds the first FileSize bytes of the archive stream to
// fn in fixed blocks, with the embedded signature bytes masked out. The
// header and signature block fields are rebuilt from the parsed description
// so the signature bytes themselves never reach the verifiers.
func (r *Reader) streamSignedRange(fn func(block []byte)) error {
	sigs := r.info.signatures

	prefix := make([]byte, 0, headerSize+sigBlockFixedSize+len(sigs.Records)*sigRecordHeadSize)
	prefix = append(prefix, marMagic...)
	prefix = binary.BigEndian.AppendUint32(prefix, uint32(r.info.indexOffset))
	prefix = binary.BigEndian.AppendUint64(prefix, sigs.FileSize)
	prefix = binary.BigEndian.AppendUint32(prefix, uint32(len(sigs.Records)))

	sigEnd := int64(headerSize + sigBlockFixedSize)
	for _, rec := range sigs.Records {
		prefix = binary.BigEndian.AppendUint32(prefix, uint32(rec.Algorithm))
		prefix = binary.BigEndian.AppendUint32(prefix, uint32(len(rec.Signature)))
		sigEnd += sigRecordHeadSize + int64(len(rec.Signature))
	}

	if sigs.FileSize < uint64(sigEnd) {
		return fmt.Errorf("%w: signed size %d ends inside signature block", ErrMalformed, sigs.FileSize)
	}

	fn(prefix)

	src, err := r.dataSource()
	if err != nil {
		return err
	}

	rest := newExactReader(src, sigEnd, int64(sigs.FileSize)-sigEnd)
	buf := make([]byte, verifyBlockSize)
	for {
		n, err := rest.Read(buf)
		if n > 0 {
			fn(buf[:n])
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read signed range: %w", err)
		}
	}
}
