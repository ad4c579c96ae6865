// Copyright 2025 The tidewire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpenc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/tidewire/tidewire/errs"
)

// gzipMagic is the two-byte ID1/ID2 prefix of every gzip member (RFC
// 1952 §2.3.1).
var gzipMagic = [2]byte{0x1f, 0x8b}

const (
	gzipMethodDeflate = 8
	gzipHeaderLen     = 10
	gzipTrailerLen    = 8
)

// Gzip implements ContentEncoding over raw DEFLATE (klauspost/compress's
// flate, which the rest of the dependency tree already pulls in) wrapped
// in a hand-assembled gzip member: a fixed 10-byte header (1f 8b 08
// followed by seven zero bytes: no FLG bits, MTIME, XFL or OS) and an
// 8-byte trailer of
// CRC32(plain) and ISIZE (both little-endian, ISIZE mod 2^32).
type Gzip struct {
	// Level is a flate.HuffmanOnly..flate.BestCompression value (or
	// flate.DefaultCompression); it is spec.md's compressionLevel option
	// reaching all the way down to the codec doing the work. 0, the zero
	// value, selects flate.DefaultCompression rather than
	// flate.NoCompression, so that Gzip{} is usable as is.
	Level int
}

// NewGzip returns a Gzip coding at the given compressionLevel, clamping
// out-of-range values to flate.DefaultCompression rather than erroring:
// a bad config value should degrade, not take the server down.
func NewGzip(level int) Gzip {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	return Gzip{Level: level}
}

// Name implements ContentEncoding.
func (Gzip) Name() string { return "gzip" }

// Aliases implements ContentEncoding; "x-gzip" is the legacy token some
// clients and proxies still emit for the same coding.
func (Gzip) Aliases() []string { return []string{"x-gzip"} }

// Encode compresses plain into one gzip member.
func (g Gzip) Encode(plain []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Write(gzipMagic[:])
	out.WriteByte(gzipMethodDeflate)
	out.WriteByte(0) // FLG: no extra fields, name, comment, or header CRC
	var mtime [4]byte
	out.Write(mtime[:]) // MTIME left at 0: we don't claim a file timestamp
	out.WriteByte(0)    // XFL
	out.WriteByte(0)    // OS

	level := g.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	fw, err := flate.NewWriter(&out, level)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "httpenc: create flate writer")
	}
	if _, err := fw.Write(plain); err != nil {
		return nil, errs.Wrap(errs.EncodingFailure, err, "httpenc: gzip compress")
	}
	if err := fw.Close(); err != nil {
		return nil, errs.Wrap(errs.EncodingFailure, err, "httpenc: flush gzip stream")
	}

	var trailer [gzipTrailerLen]byte
	binary.LittleEndian.PutUint32(trailer[0:4], crc32.ChecksumIEEE(plain))
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(len(plain)))
	out.Write(trailer[:])

	return out.Bytes(), nil
}

// Decode inflates one gzip member at the start of encoded, verifying its
// trailing CRC32 and ISIZE against the recovered plaintext, and reports
// any bytes found past that member's end as remainder — letting a
// caller that received a pipelined second message (or a second
// concatenated gzip member, which RFC 1952 explicitly permits) recover
// it instead of being treated as a decode error.
func (Gzip) Decode(encoded []byte) (plain, remainder []byte, err error) {
	if len(encoded) < gzipHeaderLen+gzipTrailerLen {
		return nil, nil, errs.New(errs.ProtocolFormat, "httpenc: gzip member too short")
	}
	if encoded[0] != gzipMagic[0] || encoded[1] != gzipMagic[1] {
		return nil, nil, errs.New(errs.ProtocolFormat, "httpenc: not a gzip member")
	}
	if encoded[2] != gzipMethodDeflate {
		return nil, nil, errs.New(errs.ProtocolFormat, "httpenc: unsupported gzip compression method")
	}
	flg := encoded[3]
	pos := gzipHeaderLen

	if flg&0x04 != 0 { // FEXTRA
		if pos+2 > len(encoded) {
			return nil, nil, errs.New(errs.ProtocolFormat, "httpenc: truncated gzip FEXTRA length")
		}
		xlen := int(binary.LittleEndian.Uint16(encoded[pos : pos+2]))
		pos += 2 + xlen
	}
	if flg&0x08 != 0 { // FNAME
		pos, err = skipCString(encoded, pos)
		if err != nil {
			return nil, nil, err
		}
	}
	if flg&0x10 != 0 { // FCOMMENT
		pos, err = skipCString(encoded, pos)
		if err != nil {
			return nil, nil, err
		}
	}
	if flg&0x02 != 0 { // FHCRC
		pos += 2
	}
	if pos > len(encoded) {
		return nil, nil, errs.New(errs.ProtocolFormat, "httpenc: truncated gzip header")
	}

	// A single bufio.Reader spans the deflate stream and the trailer
	// that follows it. flate detects the io.ByteReader interface on br
	// and reads through it one byte at a time rather than wrapping its
	// own buffer, so br's cursor sits exactly at the trailer's first
	// byte once the deflate stream's final block has been consumed —
	// no separate accounting of bytes consumed is needed.
	br := bufio.NewReader(bytes.NewReader(encoded[pos:]))
	fr := flate.NewReader(br)
	defer fr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, fr); err != nil {
		return nil, nil, errs.Wrap(errs.EncodingFailure, err, "httpenc: gzip inflate")
	}
	plain = buf.Bytes()

	var trailer [gzipTrailerLen]byte
	if _, err := io.ReadFull(br, trailer[:]); err != nil {
		return nil, nil, errs.Wrap(errs.ProtocolFormat, err, "httpenc: missing gzip trailer")
	}
	wantCRC := binary.LittleEndian.Uint32(trailer[0:4])
	wantSize := binary.LittleEndian.Uint32(trailer[4:8])
	if gotCRC := crc32.ChecksumIEEE(plain); gotCRC != wantCRC {
		return nil, nil, errs.New(errs.EncodingFailure, "httpenc: gzip CRC32 mismatch")
	}
	if uint32(len(plain)) != wantSize {
		return nil, nil, errs.New(errs.EncodingFailure, "httpenc: gzip ISIZE mismatch")
	}

	remainder, err = io.ReadAll(br)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Internal, err, "httpenc: read gzip remainder")
	}
	return plain, remainder, nil
}

func skipCString(b []byte, pos int) (int, error) {
	for i := pos; i < len(b); i++ {
		if b[i] == 0 {
			return i + 1, nil
		}
	}
	return 0, errs.New(errs.ProtocolFormat, "httpenc: unterminated gzip header string")
}
