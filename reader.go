// Package streamzip implements a forward-only reader for ZIP archives: it yields entries and
// their decompressed content while only ever reading forward through the underlying stream,
// including archives whose entry sizes are only known from a trailing data descriptor, ZIP64
// extensions, split-archive marker prefixes, and non-UTF-8 names.
package streamzip

import (
	"hash/crc32"
	"io"

	"github.com/nguyengg/streamzip/internal/pushback"
)

// Reader reads a ZIP archive forward-only from an underlying io.Reader. It is not safe for
// concurrent use: there is exactly one current-entry cursor, one shared inflator, one shared CRC
// accumulator, and one shared scratch buffer, all mutated in place by every call.
type Reader struct {
	opts Options

	src *pushback.Reader

	closed              bool
	hitCentralDirectory bool
	entriesRead         int
	firstEntry          bool

	cur *Entry

	// bytesRead is decompressed bytes delivered to the caller for the current entry (for
	// STORED entries this equals raw bytes read).
	bytesRead uint64
	// bytesReadFromStream is raw bytes pulled from the source for the current entry's
	// payload; may exceed CompressedSize because of DEFLATE look-ahead not yet pushed back.
	bytesReadFromStream uint64
	crc                 uint32

	scratch [scratchBufferSize]byte

	inf *deflateState

	// dataDescriptorParsed records whether the data descriptor for the current entry has
	// already been consumed (by Read reaching end-of-stream, by Component G, or by
	// closeEntry), so it is never parsed twice.
	dataDescriptorParsed bool

	// storedContent buffers a STORED-with-data-descriptor entry's full content so it can be
	// replayed to the caller after Component G has located its end.
	storedContent    []byte
	storedContentPos int
}

// NewReader returns a Reader that reads archive data from r. Options are applied in order; see
// Options for defaults.
func NewReader(r io.Reader, optFns ...func(*Options)) *Reader {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	src := pushback.New(r, windowSize)
	return &Reader{
		opts:       opts,
		src:        src,
		firstEntry: true,
		inf:        newDeflateState(src),
	}
}

// Next advances to the next entry, closing the current one first if necessary, and returns its
// metadata. It returns io.EOF once the archive's central directory / EOCD has been reached, or
// once the reader is positioned past an unrecognised signature.
func (r *Reader) Next() (*Entry, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.hitCentralDirectory {
		return nil, io.EOF
	}

	if r.cur != nil {
		if err := r.closeEntry(); err != nil {
			return nil, err
		}
	}

	entry, err := r.readLocalFileHeader()
	if err != nil {
		return nil, err
	}
	if entry == nil {
		// Signature was CFH/AED (trailer walked and consumed) or unrecognised.
		return nil, io.EOF
	}

	r.cur = entry
	r.entriesRead++
	r.bytesRead = 0
	r.bytesReadFromStream = 0
	r.crc = 0
	r.dataDescriptorParsed = false
	r.storedContent = nil
	r.storedContentPos = 0

	return entry, nil
}

// CanReadEntryData reports whether entry's payload can be decoded by Read: the method must be
// STORED or DEFLATED, the entry must not be encrypted, and a STORED entry with a data descriptor
// requires Options.AllowStoredEntriesWithDataDescriptor.
func (r *Reader) CanReadEntryData(entry *Entry) bool {
	if entry.encrypted() {
		return false
	}
	switch entry.Method {
	case Store:
		return !entry.UsesDataDescriptor || r.opts.AllowStoredEntriesWithDataDescriptor
	case Deflate:
		return true
	default:
		return false
	}
}

// Read reads decompressed bytes of the current entry into p. It returns io.EOF once the entry's
// payload has been fully delivered. Read must not be called without a current entry (i.e. after
// Next returned io.EOF, or before the first call to Next).
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if r.cur == nil {
		return 0, io.EOF
	}

	entry := r.cur

	if !r.CanReadEntryData(entry) {
		if entry.encrypted() {
			return 0, &UnsupportedFeatureError{Feature: FeatureEncryption}
		}
		if entry.Method != Store && entry.Method != Deflate {
			return 0, &UnsupportedFeatureError{Feature: FeatureUnknownCompressionMethod}
		}
		return 0, &UnsupportedFeatureError{Feature: FeatureDataDescriptor}
	}

	var n int
	var err error

	switch {
	case entry.Method == Store && entry.UsesDataDescriptor:
		n, err = r.readStoredWithDataDescriptor(p)
	case entry.Method == Store:
		n, err = r.readStored(p)
	case entry.Method == Deflate:
		n, err = r.readDeflated(p)
	}

	if n > 0 {
		r.crc = crc32.Update(r.crc, crc32.IEEETable, p[:n])
		r.bytesRead += uint64(n)
	}

	if err == io.EOF {
		if entry.UsesDataDescriptor {
			if cerr := r.ensureDataDescriptorParsed(); cerr != nil {
				return n, cerr
			}
		}
		if r.crc != entry.CRC32 {
			return n, ErrChecksum
		}
	}

	return n, err
}

// Skip discards the next n bytes of the current entry's decompressed content by reading and
// discarding them, returning the number of bytes actually skipped.
func (r *Reader) Skip(n int64) (int64, error) {
	if n < 0 {
		return 0, ErrInvalidArgument
	}
	if r.closed {
		return 0, ErrClosed
	}

	var skipped int64
	buf := make([]byte, scratchBufferSize)
	for skipped < n {
		want := n - skipped
		if want > int64(len(buf)) {
			want = int64(len(buf))
		}
		nr, err := r.Read(buf[:want])
		skipped += int64(nr)
		if err != nil {
			if err == io.EOF {
				return skipped, nil
			}
			return skipped, err
		}
	}
	return skipped, nil
}

// Close releases the inflator and marks the reader closed; subsequent calls to Next, Read and
// Skip return ErrClosed, and further calls to Close return nil.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.inf.close()
	return nil
}

// closeEntry implements the close half of Component I. It is called by Next before advancing to
// the next entry, and ensures the stream ends up positioned immediately after the current
// entry's payload (and data descriptor, if any) regardless of how much of it the caller read.
func (r *Reader) closeEntry() error {
	entry := r.cur
	if entry == nil {
		return nil
	}

	switch {
	case !entry.UsesDataDescriptor && r.bytesReadFromStream <= entry.CompressedSize:
		if err := r.drainRemaining(entry.CompressedSize - r.bytesReadFromStream); err != nil {
			return err
		}
	case entry.UsesDataDescriptor && !r.CanReadEntryData(entry):
		// The method can't be decompressed, so there is no inflator to drive to
		// completion; locating the entry's end is still just a signature scan
		// (Component G doesn't care what produced the bytes it's scanning), so reuse
		// it to skip the entry instead of failing the whole archive.
		if _, err := r.locateDataDescriptorContent(); err != nil {
			return err
		}
		r.dataDescriptorParsed = true
	default:
		// Drive the current entry to completion exactly as a caller reading to EOF
		// would, so the look-ahead reconciliation (Component F) and the data
		// descriptor (Component H) are handled the same way whether or not the caller
		// actually consumed the payload.
		buf := make([]byte, scratchBufferSize)
		for {
			_, err := r.Read(buf)
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}
	}

	if entry.UsesDataDescriptor {
		if err := r.ensureDataDescriptorParsed(); err != nil {
			return err
		}
	}

	r.inf.reset()
	r.cur = nil
	return nil
}

// drainRemaining reads and discards exactly n raw bytes from the source, the way Component I
// closes out an entry whose compressed size is known but wasn't fully read.
func (r *Reader) drainRemaining(n uint64) error {
	remaining := n
	for remaining > 0 {
		want := remaining
		if want > uint64(len(r.scratch)) {
			want = uint64(len(r.scratch))
		}
		nr, err := r.src.Read(r.scratch[:want])
		remaining -= uint64(nr)
		r.bytesReadFromStream += uint64(nr)
		if err != nil {
			if remaining > 0 {
				return ErrTruncated
			}
			break
		}
		if nr == 0 {
			return ErrTruncated
		}
	}
	return nil
}

// readFull reads exactly len(buf) bytes from the source, returning ErrUnexpectedEOF if the
// stream ends first.
func (r *Reader) readFull(buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := r.src.Read(buf[read:])
		read += n
		if err != nil {
			if read == len(buf) {
				return nil
			}
			return ErrUnexpectedEOF
		}
		if n == 0 {
			return ErrUnexpectedEOF
		}
	}
	return nil
}
