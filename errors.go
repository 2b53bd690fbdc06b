package streamzip

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnexpectedEOF is returned when the underlying stream ends while a fixed-size record
// (local file header, data descriptor, end-of-central-directory, ...) is being read.
var ErrUnexpectedEOF = io.ErrUnexpectedEOF

// ErrTruncated is returned when an entry's payload ends before its declared compressed size is
// reached, or before a data descriptor signature could be located.
var ErrTruncated = errors.New("streamzip: entry truncated")

// ErrChecksum is returned by Reader.Read when the accumulated CRC-32 of an entry's delivered
// bytes does not match the entry's declared checksum.
var ErrChecksum = errors.New("streamzip: checksum mismatch")

// ErrClosed is returned by Next, Read and Skip when called after Close.
var ErrClosed = errors.New("streamzip: reader closed")

// ErrInvalidArgument is returned for out-of-range arguments such as a negative Skip count.
var ErrInvalidArgument = errors.New("streamzip: invalid argument")

// Feature enumerates the ZIP features this reader recognises but refuses to decode.
type Feature int

const (
	// FeatureSplitting marks a multi-segment split archive (more than the single-segment
	// marker prefix tolerated by Component C).
	FeatureSplitting Feature = iota
	// FeatureDataDescriptor marks a STORED entry with a data descriptor encountered while
	// Options.AllowStoredEntriesWithDataDescriptor is false.
	FeatureDataDescriptor
	// FeatureDictionary marks a DEFLATE stream that requests a preset dictionary.
	FeatureDictionary
	// FeatureEncryption marks an entry whose general-purpose bit 0 (encrypted) is set.
	FeatureEncryption
	// FeatureUnknownCompressionMethod marks a compression method other than STORED or
	// DEFLATED.
	FeatureUnknownCompressionMethod
)

func (f Feature) String() string {
	switch f {
	case FeatureSplitting:
		return "splitting"
	case FeatureDataDescriptor:
		return "data descriptor"
	case FeatureDictionary:
		return "preset dictionary"
	case FeatureEncryption:
		return "encrypted content"
	case FeatureUnknownCompressionMethod:
		return "unknown compression method"
	default:
		return "unknown feature"
	}
}

// UnsupportedFeatureError is returned when the archive uses a feature this reader deliberately
// does not implement. Err, when non-nil, wraps the underlying cause; the errors this package
// returns leave it nil (flate format errors are reported as MalformedDeflateError instead).
type UnsupportedFeatureError struct {
	Feature Feature
	Err     error
}

func (e *UnsupportedFeatureError) Unwrap() error {
	return e.Err
}

func (e *UnsupportedFeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("streamzip: unsupported feature %s: %v", e.Feature, e.Err)
	}
	return fmt.Sprintf("streamzip: unsupported feature %s", e.Feature)
}

// MalformedDeflateError wraps a format error raised by the DEFLATE inflator.
type MalformedDeflateError struct {
	Err error
}

func (e *MalformedDeflateError) Unwrap() error {
	return e.Err
}

func (e *MalformedDeflateError) Error() string {
	return fmt.Sprintf("streamzip: malformed deflate stream: %v", e.Err)
}
