// Package pushback implements a forward-only byte source that supports bounded unread of
// recently consumed bytes, the Go analogue of java.io.PushbackInputStream used by the archive
// format this reader is modelled on.
package pushback

import "io"

// Reader wraps an io.Reader and lets callers return bytes they consumed back to the front of
// the stream. Pushed-back bytes are replayed FIFO-from-the-front on subsequent reads before the
// underlying reader is consulted again.
//
// Reader also implements io.ByteReader, for callers that scan the stream one byte at a time;
// ReadByte replays pushed-back bytes first, exactly as Read does.
type Reader struct {
	r io.Reader

	// buf holds bytes that have been pushed back and not yet replayed. buf[off:] is the
	// unread tail.
	buf []byte
	off int
}

// New returns a Reader wrapping r. capacity sizes the initial push-back buffer; it should be at
// least as large as the scratch buffer size used to read from the stream. It is not a hard
// limit: Unread builds a new buffer holding the pushed-back bytes on every call.
func New(r io.Reader, capacity int) *Reader {
	return &Reader{
		r:   r,
		buf: make([]byte, 0, capacity),
	}
}

// Read implements io.Reader. It first drains any pushed-back bytes, then falls through to the
// underlying reader.
func (p *Reader) Read(b []byte) (n int, err error) {
	if len(b) == 0 {
		return 0, nil
	}

	if p.off < len(p.buf) {
		n = copy(b, p.buf[p.off:])
		p.off += n
		if p.off == len(p.buf) {
			p.buf = p.buf[:0]
			p.off = 0
		}
		return n, nil
	}

	return p.r.Read(b)
}

// ReadByte implements io.ByteReader.
func (p *Reader) ReadByte() (byte, error) {
	if p.off < len(p.buf) {
		c := p.buf[p.off]
		p.off++
		if p.off == len(p.buf) {
			p.buf = p.buf[:0]
			p.off = 0
		}
		return c, nil
	}

	var b [1]byte
	n, err := p.r.Read(b[:])
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return 0, err
}

// Unread returns b to the front of the stream in the order given: the next Read or ReadByte
// sees b[0] first. It is the caller's responsibility to only unread bytes it actually consumed
// from this Reader, and to stay within the configured capacity; Unread grows the internal
// buffer if necessary.
func (p *Reader) Unread(b []byte) {
	if len(b) == 0 {
		return
	}

	// Collapse any already-unread tail together with the new bytes so that ordering is
	// preserved: b must precede what's left of the previous push-back.
	remaining := p.buf[p.off:]
	merged := make([]byte, 0, len(b)+len(remaining))
	merged = append(merged, b...)
	merged = append(merged, remaining...)
	p.buf = merged
	p.off = 0
}
