package streamzip

import "golang.org/x/text/encoding"

// scratchBufferSize is the default size of the reusable scratch buffer used to pull bytes from
// the source, matching the spec's "same as a ZIP output buffer" sizing. The push-back source
// is created with a larger capacity, windowSize, since Component G may unread that much.
const scratchBufferSize = 512

// Options configures a Reader. The zero value (as produced by NewReader with no optFns) decodes
// names as UTF-8 when the UTF-8 flag is absent, does not consult InfoZIP Unicode extra fields,
// and rejects STORED entries that carry a data descriptor.
type Options struct {
	// Encoding decodes entry names when general-purpose bit 11 (UTF-8) is not set. Nil means
	// UTF-8.
	Encoding encoding.Encoding

	// UseUnicodeExtraFields, when true, overrides a non-UTF-8 name with the value from an
	// InfoZIP Unicode Path extra field once its CRC over the raw name bytes checks out.
	UseUnicodeExtraFields bool

	// AllowStoredEntriesWithDataDescriptor, when true, permits reading STORED entries whose
	// size is only known from a trailing data descriptor by buffering and signature-scanning
	// per Component G. When false (the default) such entries fail with
	// UnsupportedFeatureError{Feature: FeatureDataDescriptor}.
	AllowStoredEntriesWithDataDescriptor bool
}

func defaultOptions() Options {
	return Options{}
}

// WithEncoding sets the fallback character set used to decode entry names when the UTF-8
// general-purpose bit is absent.
func WithEncoding(enc encoding.Encoding) func(*Options) {
	return func(opts *Options) {
		opts.Encoding = enc
	}
}

// WithUnicodeExtraFields enables overriding non-UTF-8 names from the InfoZIP Unicode Path extra
// field once its CRC-32 checks out against the header's raw name bytes.
func WithUnicodeExtraFields() func(*Options) {
	return func(opts *Options) {
		opts.UseUnicodeExtraFields = true
	}
}

// WithStoredEntriesWithDataDescriptor allows reading STORED entries whose size is only known
// from a trailing data descriptor. Without this, Read on such an entry fails with
// UnsupportedFeatureError{Feature: FeatureDataDescriptor}.
func WithStoredEntriesWithDataDescriptor() func(*Options) {
	return func(opts *Options) {
		opts.AllowStoredEntriesWithDataDescriptor = true
	}
}
