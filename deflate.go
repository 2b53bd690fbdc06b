package streamzip

import (
	"errors"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/nguyengg/streamzip/internal/pushback"
)

// chunkFeeder hands bytes to the flate decompressor one scratch-buffer's worth at a time,
// tracking exactly how much of the current chunk the decompressor has pulled out. It implements
// io.ByteReader so that compress/flate never wraps it in a bufio.Reader of its own -- every byte
// the decompressor consumes passes through this type's own accounting instead of a buffer we
// can't inspect.
type chunkFeeder struct {
	src   *pushback.Reader
	chunk [scratchBufferSize]byte
	len   int
	pos   int

	// totalRead is every byte pulled from src across every fill for the current entry,
	// Component F's bytes_read_from_stream.
	totalRead uint64
	eof       bool
}

func (f *chunkFeeder) fill() error {
	n, err := f.src.Read(f.chunk[:])
	f.len = n
	f.pos = 0
	f.totalRead += uint64(n)
	if n == 0 {
		f.eof = true
		if err == nil {
			err = io.EOF
		}
		return err
	}
	return nil
}

func (f *chunkFeeder) Read(p []byte) (int, error) {
	if f.pos >= f.len {
		if f.eof {
			return 0, io.EOF
		}
		if err := f.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, f.chunk[f.pos:f.len])
	f.pos += n
	return n, nil
}

func (f *chunkFeeder) ReadByte() (byte, error) {
	if f.pos >= f.len {
		if f.eof {
			return 0, io.EOF
		}
		if err := f.fill(); err != nil {
			return 0, err
		}
	}
	b := f.chunk[f.pos]
	f.pos++
	return b, nil
}

// unconsumed is the tail of the current chunk the decompressor hasn't asked for yet -- the
// look-ahead window that must be returned to src once the decompressor reports it's finished,
// since it may belong to the next entry's header.
func (f *chunkFeeder) unconsumed() []byte {
	return f.chunk[f.pos:f.len]
}

func (f *chunkFeeder) reset() {
	f.len, f.pos, f.totalRead, f.eof = 0, 0, 0, false
}

// deflateState owns the DEFLATE decompressor (Component F) for the lifetime of a Reader. A
// single instance is reused across entries via reset, matching the "one shared inflator"
// resource model.
type deflateState struct {
	feeder *chunkFeeder
	fr     io.ReadCloser
}

func newDeflateState(src *pushback.Reader) *deflateState {
	feeder := &chunkFeeder{src: src}
	// klauspost/compress/flate is used instead of the standard library's compress/flate
	// because it never reads past the end of the DEFLATE bitstream when its source
	// implements io.ByteReader -- exactly the property this component's reconciliation
	// depends on.
	return &deflateState{feeder: feeder, fr: flate.NewReader(feeder)}
}

func (d *deflateState) read(p []byte) (int, error) {
	n, err := d.fr.Read(p)
	switch {
	case err == nil, err == io.EOF:
		return n, err
	case errors.Is(err, io.ErrUnexpectedEOF):
		// The source was exhausted before the inflator reported it was finished --
		// klauspost/compress/flate (mirroring stdlib's noEOF behavior) surfaces this as
		// io.ErrUnexpectedEOF rather than io.EOF, but it's the same "ran out of input
		// mid-stream" condition Component F calls Truncated, not a malformed bitstream.
		return n, ErrTruncated
	default:
		return n, &MalformedDeflateError{Err: err}
	}
}

// pushBackUnconsumed returns whatever of the current chunk the decompressor never asked for.
// This is the reconciliation step Component F's design note calls for: it must run once the
// decompressor reports it's finished, before the next local file header is read.
func (d *deflateState) pushBackUnconsumed() {
	if tail := d.feeder.unconsumed(); len(tail) > 0 {
		d.feeder.src.Unread(tail)
		d.feeder.pos = d.feeder.len
	}
}

func (d *deflateState) reset() {
	d.feeder.reset()
	if r, ok := d.fr.(flate.Resetter); ok {
		_ = r.Reset(d.feeder, nil)
	}
}

func (d *deflateState) close() error {
	return d.fr.Close()
}

// readDeflated implements Component F.
func (r *Reader) readDeflated(p []byte) (int, error) {
	n, err := r.inf.read(p)
	r.bytesReadFromStream = r.inf.feeder.totalRead
	if err == io.EOF {
		r.inf.pushBackUnconsumed()
	}
	return n, err
}
