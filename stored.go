package streamzip

import "io"

// readStored implements Component E for entries that declare their size in the local header
// (no data descriptor): a byte-exact copy tracked against the declared uncompressed size.
func (r *Reader) readStored(p []byte) (int, error) {
	entry := r.cur

	remaining := entry.UncompressedSize - r.bytesRead
	if remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := r.src.Read(p)
	r.bytesReadFromStream += uint64(n)
	if err == io.EOF {
		// A reader is allowed to return the last chunk together with io.EOF in the same
		// call; only treat this as truncation if that chunk didn't actually reach the
		// declared size.
		if uint64(n) < remaining {
			return n, ErrTruncated
		}
		return n, nil
	}
	return n, err
}
