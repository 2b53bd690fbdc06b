package streamzip

import "encoding/binary"

// Fixed 4-byte signatures, little-endian on the wire (PKWARE APPNOTE).
var (
	sigLFH         = [4]byte{0x50, 0x4B, 0x03, 0x04} // local file header
	sigCFH         = [4]byte{0x50, 0x4B, 0x01, 0x02} // central file header
	sigEOCD        = [4]byte{0x50, 0x4B, 0x05, 0x06} // end of central directory
	sigDD          = [4]byte{0x50, 0x4B, 0x07, 0x08} // data descriptor
	sigAED         = [4]byte{0x50, 0x4B, 0x06, 0x08} // archive extra data
	sigSplitMarker = [4]byte{0x50, 0x4B, 0x30, 0x30} // single-segment split marker
)

// zip64SentinelU32 marks a 4-byte size field in a local or central file header as "see the
// ZIP64 extra field for the real value."
const zip64SentinelU32 = 0xFFFFFFFF

const (
	zip64ExtraID          = 0x0001 // extra field header id carrying ZIP64 sizes
	unicodePathExtraID    = 0x7075 // InfoZIP Unicode Path extra field
	unicodeCommentExtraID = 0x6375 // InfoZIP Unicode Comment extra field
)

func u16le(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }
func u32le(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }
func u64le(b []byte, off int) uint64 { return binary.LittleEndian.Uint64(b[off:]) }

// matchesSig reports whether b[off:off+4] equals sig. Callers must ensure len(b) >= off+4.
func matchesSig(b []byte, off int, sig [4]byte) bool {
	return b[off] == sig[0] && b[off+1] == sig[1] && b[off+2] == sig[2] && b[off+3] == sig[3]
}

// Matches reports whether the first 4 bytes of b form any signature this reader recognises at
// the start of an archive or entry: LFH, EOCD, DD, or the single-segment split marker. It is the
// exported static probe described by the public reader façade, useful for callers that want to
// sniff whether a byte stream looks like a ZIP archive before committing to NewReader.
func Matches(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	return matchesSig(b, 0, sigLFH) ||
		matchesSig(b, 0, sigEOCD) ||
		matchesSig(b, 0, sigDD) ||
		matchesSig(b, 0, sigSplitMarker)
}

// msDosTimeToTime splits a DOS date/time pair (as stored in a local file header) into its
// calendar fields; seconds have 2-second resolution.
func msDosTimeToTime(dosDate, dosTime uint16) (year, month, day, hour, min, sec int) {
	year = int(dosDate>>9) + 1980
	month = int(dosDate>>5) & 0xF
	day = int(dosDate) & 0x1F
	hour = int(dosTime >> 11)
	min = int(dosTime>>5) & 0x3F
	sec = (int(dosTime) & 0x1F) * 2
	return
}
