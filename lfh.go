package streamzip

import (
	"time"

	"golang.org/x/text/encoding/unicode"
)

// readLocalFileHeader implements Component C (plus the Component D ZIP64 resolution it feeds
// into). It returns (nil, nil) once a central-file-header, archive-extra-data, or unrecognised
// signature is seen -- the CFH/AED case has already walked the trailer and set
// hitCentralDirectory before returning.
func (r *Reader) readLocalFileHeader() (*Entry, error) {
	var sig [4]byte
	if err := r.readFull(sig[:]); err != nil {
		return nil, err
	}

	if r.firstEntry {
		r.firstEntry = false

		if sig == sigDD {
			return nil, &UnsupportedFeatureError{Feature: FeatureSplitting}
		}

		if sig == sigSplitMarker {
			// Consume the marker and re-read the next 4 bytes as the real
			// signature -- the marker is cosmetic, not part of the LFH window.
			if err := r.readFull(sig[:]); err != nil {
				return nil, err
			}
		}
	}

	switch sig {
	case sigLFH:
		return r.parseLocalFileHeaderBody()
	case sigCFH, sigAED:
		r.hitCentralDirectory = true
		return nil, r.walkTrailer()
	default:
		return nil, nil
	}
}

func (r *Reader) parseLocalFileHeaderBody() (*Entry, error) {
	var h [26]byte // everything after the 4-byte signature, up to and including extra field length
	if err := r.readFull(h[:]); err != nil {
		return nil, err
	}

	// h[0:2] is the "version needed to extract" field (LFH offset 4-5); its upper byte is the
	// platform code, mislabeled "version made by" in the original this is ported from.
	platform := uint8(u16le(h[:], 0) >> 8)
	flags := u16le(h[:], 2)
	method := Method(u16le(h[:], 4))
	dosTime := u16le(h[:], 6)
	dosDate := u16le(h[:], 8)

	var crc32Decl, compressedSize, uncompressedSize uint64
	usesDataDescriptor := flags&0x8 != 0
	if !usesDataDescriptor {
		crc32Decl = uint64(u32le(h[:], 10))
		compressedSize = uint64(u32le(h[:], 14))
		uncompressedSize = uint64(u32le(h[:], 18))
	}

	nameLen := int(u16le(h[:], 22))
	extraLen := int(u16le(h[:], 24))

	nameBytes := make([]byte, nameLen)
	if err := r.readFull(nameBytes); err != nil {
		return nil, err
	}

	extra := make([]byte, extraLen)
	if err := r.readFull(extra); err != nil {
		return nil, err
	}

	entry := &Entry{
		NameBytes:          nameBytes,
		Platform:           platform,
		Flags:              flags,
		Method:             method,
		CRC32:              uint32(crc32Decl),
		CompressedSize:     compressedSize,
		UncompressedSize:   uncompressedSize,
		Extra:              extra,
		UsesDataDescriptor: usesDataDescriptor,
	}

	entry.Name = decodeName(entry, r.opts)

	// Component D: ZIP64 extra resolution. Sizes are only trustworthy from the extra when
	// the data-descriptor bit is clear; with the bit set, sizes come from the descriptor
	// instead and any ZIP64 extra present only signals that the descriptor's sizes are
	// 8-byte.
	zip64 := scanZip64Extra(extra)
	entry.UsesZip64 = zip64.present
	if zip64.present && !usesDataDescriptor {
		if entry.CompressedSize == zip64SentinelU32 {
			entry.CompressedSize = zip64.compressedSize
		}
		if entry.UncompressedSize == zip64SentinelU32 {
			entry.UncompressedSize = zip64.uncompressedSize
		}
	}

	y, mo, d, ho, mi, se := msDosTimeToTime(dosDate, dosTime)
	entry.Modified = time.Date(y, time.Month(mo), d, ho, mi, se, 0, time.UTC)

	return entry, nil
}

// decodeName decodes an entry's raw name bytes into text, honouring the UTF-8 general-purpose
// bit, the configured fallback encoding, and (if enabled) an InfoZIP Unicode Path extra field
// override.
func decodeName(entry *Entry, opts Options) string {
	if entry.utf8Names() {
		return string(entry.NameBytes)
	}

	if opts.UseUnicodeExtraFields {
		if name, ok := unicodeExtra(entry.Extra, unicodePathExtraID, entry.NameBytes); ok {
			return name
		}
	}

	enc := opts.Encoding
	if enc == nil {
		enc = unicode.UTF8
	}
	decoded, err := enc.NewDecoder().Bytes(entry.NameBytes)
	if err != nil {
		return string(entry.NameBytes)
	}
	return string(decoded)
}
