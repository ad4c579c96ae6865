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

// Package errs centralizes the error Kind taxonomy shared by the codec
// and transport packages, so callers can Is/As against one set of
// sentinels instead of each package inventing its own.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed, independent of which package
// raised it.
type Kind int

const (
	// Internal is a bug: an invariant the package itself should have
	// maintained was violated.
	Internal Kind = iota
	// ProtocolFormat is malformed wire data: a bad request line, an
	// unparsable chunk size, an AJP frame with a bad magic number.
	ProtocolFormat
	// LimitExceeded is wire data that is well-formed but exceeds a
	// configured bound (header too long, AJP frame over 8192 bytes).
	LimitExceeded
	// EncodingFailure is a content-coding transform failure (bad gzip
	// member, CRC mismatch).
	EncodingFailure
	// TransportIO is a socket read/write failure.
	TransportIO
	// Cancelled means the operation was abandoned, e.g. by a shutdown
	// or a context deadline, not by any data or I/O problem.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case ProtocolFormat:
		return "protocol_format"
	case LimitExceeded:
		return "limit_exceeded"
	case EncodingFailure:
		return "encoding_failure"
	case TransportIO:
		return "transport_io"
	case Cancelled:
		return "cancelled"
	default:
		return "internal"
	}
}

// kindError wraps an underlying error with a Kind so callers can branch
// on errors.As without string matching.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.kind.String() + ": " + e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }
func (e *kindError) Kind() Kind    { return e.kind }

// New builds an error of the given kind, with a stack trace attached by
// github.com/pkg/errors for Internal and TransportIO kinds, where a
// trace is actually useful for debugging; the wire-format kinds are
// expected often enough in normal operation (bad clients) that a trace
// would just be noise.
func New(kind Kind, format string, args ...any) error {
	var cause error
	if kind == Internal || kind == TransportIO {
		cause = errors.Errorf(format, args...)
	} else {
		cause = fmt.Errorf(format, args...)
	}
	return &kindError{kind: kind, cause: cause}
}

// Wrap attaches kind to an existing error without discarding its chain.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.WithMessage(err, msg)}
}

// KindOf returns the Kind attached to err, if any, and whether one was
// found at all (errors not built through this package have no Kind).
func KindOf(err error) (Kind, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind, true
	}
	return Internal, false
}

// Is reports whether err carries kind somewhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
