package streamzip

import (
	"bytes"
	"hash/crc32"

	"github.com/klauspost/compress/flate"
)

// Hand-built archive construction helpers for exercising the byte-level state machine directly,
// without depending on a seekable writer (the standard library's archive/zip always emits data
// descriptors against a non-seekable target, which would make it impossible to construct the
// "no data descriptor" fixtures these tests need).

func deflateBytes(b []byte) []byte {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
	_, _ = w.Write(b)
	_ = w.Close()
	return buf.Bytes()
}

func putU16(b []byte, off int, v uint16) { b[off], b[off+1] = byte(v), byte(v>>8) }
func putU32(b []byte, off int, v uint32) {
	b[off], b[off+1], b[off+2], b[off+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putU64(b []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		b[off+i] = byte(v >> (8 * i))
	}
}

type fixtureEntry struct {
	name     string
	method   Method
	data     []byte // uncompressed content
	useDD    bool
	ddHasSig bool
	zip64    bool // force ZIP64 extra with 8-byte sizes (only meaningful without DD)
}

// payload returns what actually goes on the wire for this entry (raw bytes for STORED,
// deflate-compressed bytes for DEFLATED) along with its CRC-32.
func (e fixtureEntry) payload() (body []byte, crc uint32) {
	crc = crc32.ChecksumIEEE(e.data)
	switch e.method {
	case Store:
		return e.data, crc
	case Deflate:
		return deflateBytes(e.data), crc
	default:
		panic("unsupported method in fixture")
	}
}

// buildLFH encodes a 30-byte local file header plus name (and ZIP64 extra, if requested).
func buildLFH(e fixtureEntry, compressedSize, uncompressedSize uint32, crc uint32) []byte {
	var flags uint16
	if e.useDD {
		flags |= 0x8
	}

	var extra []byte
	if e.zip64 {
		extra = make([]byte, 4+16)
		putU16(extra, 0, 0x0001)
		putU16(extra, 2, 16)
		putU64(extra, 4, uint64(uncompressedSize))
		putU64(extra, 12, uint64(compressedSize))
		compressedSize, uncompressedSize = zip64SentinelU32, zip64SentinelU32
		if !e.useDD {
			compressedSize = zip64SentinelU32
			uncompressedSize = zip64SentinelU32
		}
	}

	nameBytes := []byte(e.name)
	h := make([]byte, 30+len(nameBytes)+len(extra))
	copy(h[0:4], sigLFH[:])
	putU16(h, 6, flags)
	putU16(h, 8, uint16(e.method))
	if !e.useDD {
		putU32(h, 14, crc)
		putU32(h, 18, compressedSize)
		putU32(h, 22, uncompressedSize)
	}
	putU16(h, 26, uint16(len(nameBytes)))
	putU16(h, 28, uint16(len(extra)))
	copy(h[30:], nameBytes)
	copy(h[30+len(nameBytes):], extra)
	return h
}

// buildDD encodes a data descriptor, with or without its optional signature, using 4-byte sizes.
func buildDD(crc, compressedSize, uncompressedSize uint32, withSig bool) []byte {
	var b []byte
	if withSig {
		b = make([]byte, 16)
		copy(b[0:4], sigDD[:])
		putU32(b, 4, crc)
		putU32(b, 8, compressedSize)
		putU32(b, 12, uncompressedSize)
	} else {
		b = make([]byte, 12)
		putU32(b, 0, crc)
		putU32(b, 4, compressedSize)
		putU32(b, 8, uncompressedSize)
	}
	return b
}

// buildEOCD encodes an end-of-central-directory record.
func buildEOCD(entryCount uint16, cdSize, cdOffset uint32, comment []byte) []byte {
	b := make([]byte, 22+len(comment))
	copy(b[0:4], sigEOCD[:])
	putU16(b, 8, entryCount)
	putU16(b, 10, entryCount)
	putU32(b, 12, cdSize)
	putU32(b, 16, cdOffset)
	putU16(b, 20, uint16(len(comment)))
	copy(b[22:], comment)
	return b
}

// buildArchive assembles a full archive byte stream for the given entries: each entry's LFH,
// payload, and (if used) data descriptor, followed by a filler "central directory" region sized
// so the trailer walker's under-skip lands inside it, and a real EOCD.
func buildArchive(entries []fixtureEntry, prefix []byte) []byte {
	var out bytes.Buffer
	out.Write(prefix)

	for _, e := range entries {
		body, crc := e.payload()

		var compressedSize, uncompressedSize uint32
		if !e.useDD {
			compressedSize = uint32(len(body))
			uncompressedSize = uint32(len(e.data))
		}

		out.Write(buildLFH(e, compressedSize, uncompressedSize, crc))
		out.Write(body)

		if e.useDD {
			out.Write(buildDD(crc, uint32(len(body)), uint32(len(e.data)), e.ddHasSig))
		}
	}

	// Filler central directory: entriesRead*46 bytes is more than enough for the walker's
	// entriesRead*46-30 under-skip to land inside it every time. Its first 4 bytes are a
	// real central-file-header signature so that a data-descriptor lookahead performed by
	// the last entry (peeking at what immediately follows the descriptor) sees what a real
	// archive would have there.
	filler := make([]byte, 46*len(entries))
	copy(filler, sigCFH[:])
	out.Write(filler)

	out.Write(buildEOCD(uint16(len(entries)), uint32(len(filler)), 0, nil))

	return out.Bytes()
}
