package streamzip

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// windowSize bounds the look-ahead window Component G scans within: large enough to hold
// several scratch-buffer-sized reads plus the retained tail from a non-matching pass.
const windowSize = 4 * scratchBufferSize

// readStoredWithDataDescriptor implements the STORED-with-data-descriptor half of Component E:
// on first read, it materializes the entire entry via Component G (and, as part of locating the
// end, Component H), then serves bytes from the cached content.
func (r *Reader) readStoredWithDataDescriptor(p []byte) (int, error) {
	if r.storedContent == nil {
		content, err := r.locateDataDescriptorContent()
		if err != nil {
			return 0, err
		}
		r.storedContent = content
		r.storedContentPos = 0
		r.cur.UncompressedSize = uint64(len(content))
		r.cur.CompressedSize = uint64(len(content))
	}

	if r.storedContentPos >= len(r.storedContent) {
		return 0, io.EOF
	}

	n := copy(p, r.storedContent[r.storedContentPos:])
	r.storedContentPos += n
	return n, nil
}

// locateDataDescriptorContent implements Component G: read-and-scan to find the entry's clean
// content when its size isn't known in advance, then invoke Component H to parse the data
// descriptor that follows it.
func (r *Reader) locateDataDescriptorContent() ([]byte, error) {
	expectedDDLen := 12
	if r.cur.UsesZip64 {
		expectedDDLen = 20
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	var window [windowSize]byte
	off := 0

	for {
		n, rerr := r.src.Read(window[off:])
		if n <= 0 {
			return nil, ErrTruncated
		}

		total := off + n
		if total < 4 {
			off = total
			continue
		}

		if i, kind := findSignatureHead(window[:total], expectedDDLen); i >= 0 {
			// A DD signature starts the data descriptor itself; an LFH/CFH signature
			// follows a data descriptor written without its optional signature.
			ddPos := i
			if kind == sigKindHeader {
				ddPos = i - expectedDDLen
			}
			bb.Write(window[:ddPos])

			readTooMuch := total - ddPos
			if readTooMuch > 0 {
				r.src.Unread(window[ddPos:total])
			}

			if err := r.parseDataDescriptor(); err != nil {
				return nil, err
			}

			out := make([]byte, bb.Len())
			copy(out, bb.Bytes())
			return out, nil
		}

		// No signature found yet: keep the tail that might be a data descriptor plus an
		// incomplete signature (3 bytes in the worst case), cache the rest.
		cacheable := total - expectedDDLen - 3
		if cacheable > 0 {
			bb.Write(window[:cacheable])
			copy(window[:expectedDDLen+3], window[cacheable:total])
			off = expectedDDLen + 3
		} else {
			off = total
		}

		if rerr != nil {
			if rerr == io.EOF {
				return nil, ErrTruncated
			}
			return nil, rerr
		}
		if off >= len(window) {
			return nil, ErrTruncated
		}
	}
}

type sigKind int

const (
	sigKindNone sigKind = iota
	sigKindHeader
	sigKindDD
)

// findSignatureHead scans buf for the first occurrence of an LFH, CFH, or DD signature head,
// checking all four bytes of each candidate explicitly (the source this is ported from has a
// known transcription bug here, comparing buf[i] against CFH's third byte instead of checking
// the full signature; this implementation deliberately does not reproduce it). LFH/CFH
// signatures starting before minHeaderPos are skipped: there is no room in front of them for a
// data descriptor.
func findSignatureHead(buf []byte, minHeaderPos int) (int, sigKind) {
	for i := 0; i <= len(buf)-4; i++ {
		if buf[i] != 0x50 || buf[i+1] != 0x4B {
			continue
		}
		switch {
		case i >= minHeaderPos && buf[i+2] == sigLFH[2] && buf[i+3] == sigLFH[3]:
			return i, sigKindHeader
		case i >= minHeaderPos && buf[i+2] == sigCFH[2] && buf[i+3] == sigCFH[3]:
			return i, sigKindHeader
		case buf[i+2] == sigDD[2] && buf[i+3] == sigDD[3]:
			return i, sigKindDD
		}
	}
	return -1, sigKindNone
}

// ensureDataDescriptorParsed parses the current entry's trailing data descriptor exactly once,
// whether triggered by Read reaching end-of-stream or by closeEntry abandoning a partially-read
// entry.
func (r *Reader) ensureDataDescriptorParsed() error {
	if r.dataDescriptorParsed {
		return nil
	}
	if err := r.parseDataDescriptor(); err != nil {
		return err
	}
	r.dataDescriptorParsed = true
	return nil
}

// parseDataDescriptor implements Component H.
func (r *Reader) parseDataDescriptor() error {
	entry := r.cur

	var first [4]byte
	if err := r.readFull(first[:]); err != nil {
		return err
	}

	crcBytes := first
	if first == sigDD {
		if err := r.readFull(crcBytes[:]); err != nil {
			return err
		}
	}
	entry.CRC32 = u32le(crcBytes[:], 0)

	var body [16]byte
	if err := r.readFull(body[:]); err != nil {
		return err
	}

	if matchesSig(body[:], 8, sigLFH) || matchesSig(body[:], 8, sigCFH) {
		r.src.Unread(body[8:16])
		entry.CompressedSize = uint64(u32le(body[:], 0))
		entry.UncompressedSize = uint64(u32le(body[:], 4))
	} else {
		entry.CompressedSize = u64le(body[:], 0)
		entry.UncompressedSize = u64le(body[:], 8)
	}

	r.dataDescriptorParsed = true
	return nil
}
