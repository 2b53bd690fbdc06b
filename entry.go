package streamzip

import "time"

// Method identifies a ZIP compression method code.
type Method uint16

const (
	Store   Method = 0
	Deflate Method = 8
)

// Entry describes one archive member. It is produced by Reader.Next, mutated in place while it
// is the current entry (sizes and CRC are back-filled for data-descriptor entries once the
// payload has been fully read), and must not be retained past the following call to Next.
type Entry struct {
	// Name is the entry's decoded file name.
	Name string

	// NameBytes is the raw, undecoded file name as it appeared in the header.
	NameBytes []byte

	// Comment is always empty: the file comment lives in the central directory, which this
	// reader never parses. Kept for shape parity with archive/zip's FileHeader.
	Comment string

	// Platform is the upper byte of the local header's "version needed to extract" field,
	// read the way the original (mislabeling this field "version made by") does.
	Platform uint8

	// Flags is the raw general-purpose bit flag field.
	Flags uint16

	// Method is the compression method code.
	Method Method

	// Modified is the entry's modification time, decoded from the DOS date/time fields.
	Modified time.Time

	// CRC32 is the entry's declared checksum. Zero until read to completion for
	// data-descriptor entries.
	CRC32 uint32

	// CompressedSize and UncompressedSize are the entry's declared sizes, post ZIP64
	// resolution. Zero until read to completion for data-descriptor entries.
	CompressedSize   uint64
	UncompressedSize uint64

	// Extra is the raw extra field bytes from the local header.
	Extra []byte

	// UsesZip64 records whether the ZIP64 extra field (id 0x0001) was present.
	UsesZip64 bool

	// UsesDataDescriptor records whether general-purpose bit 3 was set, i.e. CRC and sizes
	// live in a trailing data descriptor rather than the local header.
	UsesDataDescriptor bool
}

func (e *Entry) utf8Names() bool { return e.Flags&0x0800 != 0 }
func (e *Entry) encrypted() bool { return e.Flags&0x1 != 0 }
