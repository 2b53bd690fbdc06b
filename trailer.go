package streamzip

import "io"

// minEOCDSize is the fixed portion of the end-of-central-directory record, signature through
// comment length, excluding the comment bytes themselves.
const minEOCDSize = 22

// walkTrailer implements Component J. It is called the moment a central-file-header or
// archive-extra-data signature is seen where a local-file-header was expected, and positions
// the stream cleanly past the end-of-central-directory record (including its comment).
//
// The initial skip intentionally under-counts: it assumes every central directory entry is
// exactly CFH_LEN (46) bytes, ignoring each entry's variable-length name/extra/comment tail. The
// signature scan that follows recovers from the under-skip. This is retained deliberately
// (supplementing the under-skip with an exact per-entry skip would require parsing every
// central directory entry just to throw its fields away); archives whose central directory
// comments happen to contain a byte sequence that looks like an EOCD signature can mis-terminate
// as a result -- callers who require strict termination need a seekable reader instead.
func (r *Reader) walkTrailer() error {
	skip := int64(r.entriesRead)*46 - 30
	if skip > 0 {
		if _, err := r.discard(skip); err != nil {
			return err
		}
	}

	if err := r.scanForSignature(sigEOCD); err != nil {
		return err
	}

	if _, err := r.discard(minEOCDSize - 4 - 2); err != nil {
		return err
	}

	var lenBuf [2]byte
	if err := r.readFull(lenBuf[:]); err != nil {
		return err
	}
	commentLen := int64(u16le(lenBuf[:], 0))
	if commentLen > 0 {
		if _, err := r.discard(commentLen); err != nil {
			return err
		}
	}

	return nil
}

// discard reads and drops n bytes, reusing the reader's scratch buffer.
func (r *Reader) discard(n int64) (int64, error) {
	var discarded int64
	for discarded < n {
		want := n - discarded
		if want > int64(len(r.scratch)) {
			want = int64(len(r.scratch))
		}
		read, err := r.src.Read(r.scratch[:want])
		discarded += int64(read)
		if err != nil {
			if discarded < n {
				return discarded, io.ErrUnexpectedEOF
			}
			break
		}
		if read == 0 {
			return discarded, io.ErrUnexpectedEOF
		}
	}
	return discarded, nil
}

// scanForSignature reads one byte at a time until sig has been matched, tolerating false starts
// where a partial match is immediately followed by bytes that don't complete it -- a matched
// first byte that turns out not to start sig may itself begin a new match attempt.
func (r *Reader) scanForSignature(sig [4]byte) error {
	matched := 0
	for {
		b, err := r.src.ReadByte()
		if err != nil {
			return ErrTruncated
		}

		if b == sig[matched] {
			matched++
			if matched == len(sig) {
				return nil
			}
			continue
		}

		// Restart the match attempt: b might be the start of a fresh candidate (this
		// also correctly handles runs like sig[0] sig[0] sig[1] ...).
		if b == sig[0] {
			matched = 1
		} else {
			matched = 0
		}
	}
}
