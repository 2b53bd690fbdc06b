package streamzip

import "hash/crc32"

// zip64Sizes holds the fields the ZIP64 extra can carry, in APPNOTE order: uncompressed size,
// compressed size, then (unused by this reader, since local headers never carry them)
// relative header offset and disk start number.
type zip64Sizes struct {
	uncompressedSize uint64
	compressedSize   uint64
	present          bool
}

// scanZip64Extra walks a local file header's extra field blob looking for header id 0x0001 and
// returns the sizes it carries. Only uncompressed/compressed size are meaningful for a local
// header; a ZIP64 extra attached to a central header may carry two more fields, but this reader
// never parses central headers' extras.
func scanZip64Extra(extra []byte) zip64Sizes {
	var out zip64Sizes

	for len(extra) >= 4 {
		id := u16le(extra, 0)
		size := int(u16le(extra, 2))
		if size < 0 || 4+size > len(extra) {
			return out
		}
		body := extra[4 : 4+size]

		if id == zip64ExtraID {
			out.present = true
			// The ZIP64 extra's fields are present only for the sizes that were
			// stored as the 0xFFFFFFFF sentinel in the fixed header, in the fixed
			// order uncompressed-then-compressed. Since the local header always
			// carries both a compressed and uncompressed size field, a conforming
			// writer that needs ZIP64 here includes both 8-byte values.
			if len(body) >= 8 {
				out.uncompressedSize = u64le(body, 0)
			}
			if len(body) >= 16 {
				out.compressedSize = u64le(body, 8)
			}
			return out
		}

		extra = extra[4+size:]
	}

	return out
}

// unicodeExtra looks up an InfoZIP Unicode Path or Unicode Comment extra field (ids 0x7075 and
// 0x6375) and returns its decoded text, but only if the CRC-32 stored in the field's first 4
// bytes matches crc32.ChecksumIEEE of rawName/rawComment -- the field is otherwise stale (the
// writer updated the name without refreshing the Unicode copy) and must be ignored.
func unicodeExtra(extra []byte, id uint16, raw []byte) (string, bool) {
	for len(extra) >= 4 {
		fieldID := u16le(extra, 0)
		size := int(u16le(extra, 2))
		if size < 0 || 4+size > len(extra) {
			return "", false
		}
		body := extra[4 : 4+size]

		if fieldID == id && len(body) >= 5 {
			wantCRC := u32le(body, 0)
			if crc32.ChecksumIEEE(raw) == wantCRC {
				return string(body[4:]), true
			}
			return "", false
		}

		extra = extra[4+size:]
	}

	return "", false
}
