package streamzip

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func readAllEntries(t *testing.T, archive []byte, optFns ...func(*Options)) ([]*Entry, [][]byte) {
	t.Helper()

	r := NewReader(bytes.NewReader(archive), optFns...)
	defer r.Close()

	var entries []*Entry
	var contents [][]byte
	for {
		entry, err := r.Next()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		entries = append(entries, entry)

		if !r.CanReadEntryData(entry) {
			contents = append(contents, nil)
			continue
		}

		data, err := io.ReadAll(r)
		assert.NoErrorf(t, err, "reading %s", entry.Name)
		contents = append(contents, data)
	}
	return entries, contents
}

func TestReader_storedNoDataDescriptor(t *testing.T) {
	want := []byte("hello, world\n")
	archive := buildArchive([]fixtureEntry{
		{name: "a.txt", method: Store, data: want},
	}, nil)

	entries, contents := readAllEntries(t, archive)
	assert.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.False(t, entries[0].UsesDataDescriptor)
	assert.Equal(t, want, contents[0])
}

func TestReader_deflatedNoDataDescriptor(t *testing.T) {
	want := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 400)
	archive := buildArchive([]fixtureEntry{
		{name: "big.txt", method: Deflate, data: want},
	}, nil)

	entries, contents := readAllEntries(t, archive)
	assert.Len(t, entries, 1)
	assert.Equal(t, Deflate, entries[0].Method)
	assert.Equal(t, want, contents[0])
}

func TestReader_deflatedWithDataDescriptor(t *testing.T) {
	want := bytes.Repeat([]byte("another entry's content\n"), 300)
	archive := buildArchive([]fixtureEntry{
		{name: "dd.bin", method: Deflate, data: want, useDD: true, ddHasSig: true},
	}, nil)

	entries, contents := readAllEntries(t, archive)
	assert.Len(t, entries, 1)
	assert.True(t, entries[0].UsesDataDescriptor)
	assert.Equal(t, want, contents[0])
	assert.Equal(t, uint64(len(want)), entries[0].UncompressedSize)
}

func TestReader_deflatedWithDataDescriptorNoSig(t *testing.T) {
	want := []byte("short content without a DD signature")
	archive := buildArchive([]fixtureEntry{
		{name: "dd-nosig.bin", method: Deflate, data: want, useDD: true, ddHasSig: false},
	}, nil)

	entries, contents := readAllEntries(t, archive)
	assert.Len(t, entries, 1)
	assert.Equal(t, want, contents[0])
}

func TestReader_storedWithDataDescriptorRequiresOption(t *testing.T) {
	want := []byte("stored content needing a data descriptor")
	archive := buildArchive([]fixtureEntry{
		{name: "s.bin", method: Store, data: want, useDD: true, ddHasSig: true},
	}, nil)

	r := NewReader(bytes.NewReader(archive))
	defer r.Close()

	entry, err := r.Next()
	assert.NoError(t, err)
	assert.False(t, r.CanReadEntryData(entry))

	_, err = r.Read(make([]byte, 16))
	var uf *UnsupportedFeatureError
	assert.ErrorAs(t, err, &uf)
	assert.Equal(t, FeatureDataDescriptor, uf.Feature)
}

func TestReader_storedWithDataDescriptorSkippedWithoutOption(t *testing.T) {
	archive := buildArchive([]fixtureEntry{
		{name: "s.bin", method: Store, data: []byte("unreadable without the option"), useDD: true, ddHasSig: true},
		{name: "a.txt", method: Store, data: []byte("after")},
	}, nil)

	entries, contents := readAllEntries(t, archive)
	assert.Len(t, entries, 2)
	assert.Nil(t, contents[0])
	assert.Equal(t, []byte("after"), contents[1])
}

func TestReader_storedWithDataDescriptorAllowed(t *testing.T) {
	want := []byte("stored content needing a data descriptor, allowed this time")
	archive := buildArchive([]fixtureEntry{
		{name: "s.bin", method: Store, data: want, useDD: true, ddHasSig: true},
	}, nil)

	entries, contents := readAllEntries(t, archive, WithStoredEntriesWithDataDescriptor())
	assert.Len(t, entries, 1)
	assert.Equal(t, want, contents[0])
}

func TestReader_splitMarkerPrefix(t *testing.T) {
	want := []byte("single segment archive body")
	archive := buildArchive([]fixtureEntry{
		{name: "a.txt", method: Store, data: want},
	}, sigSplitMarker[:])

	entries, contents := readAllEntries(t, archive)
	assert.Len(t, entries, 1)
	assert.Equal(t, want, contents[0])
}

func TestReader_multipleEntries(t *testing.T) {
	archive := buildArchive([]fixtureEntry{
		{name: "a.txt", method: Store, data: []byte("first")},
		{name: "b.txt", method: Deflate, data: bytes.Repeat([]byte("second "), 100)},
		{name: "c.txt", method: Store, data: []byte("third"), useDD: true, ddHasSig: true},
	}, nil)

	entries, contents := readAllEntries(t, archive, WithStoredEntriesWithDataDescriptor())
	assert.Len(t, entries, 3)
	assert.Equal(t, []byte("first"), contents[0])
	assert.Equal(t, bytes.Repeat([]byte("second "), 100), contents[1])
	assert.Equal(t, []byte("third"), contents[2])
}

func TestReader_emptyArchive(t *testing.T) {
	archive := buildArchive(nil, nil)

	r := NewReader(bytes.NewReader(archive))
	defer r.Close()

	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_closeEntrySkipsUnreadBytes(t *testing.T) {
	want1 := []byte("first entry content, never read by the caller")
	want2 := []byte("second entry content, read in full")
	archive := buildArchive([]fixtureEntry{
		{name: "a.txt", method: Store, data: want1},
		{name: "b.txt", method: Store, data: want2},
	}, nil)

	r := NewReader(bytes.NewReader(archive))
	defer r.Close()

	_, err := r.Next()
	assert.NoError(t, err)
	// Deliberately don't read entry 1's content before advancing.

	entry2, err := r.Next()
	assert.NoError(t, err)
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, want2, data)
	assert.Equal(t, "b.txt", entry2.Name)
}

func TestReader_truncatedDeflatedPayload(t *testing.T) {
	want := bytes.Repeat([]byte("truncate me please\n"), 200)
	archive := buildArchive([]fixtureEntry{
		{name: "t.bin", method: Deflate, data: want},
	}, nil)

	// Cut the archive off partway through the compressed payload, before the EOCD.
	truncated := archive[:len(archive)/3]

	r := NewReader(bytes.NewReader(truncated))
	defer r.Close()

	_, err := r.Next()
	assert.NoError(t, err)

	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReader_checksumMismatch(t *testing.T) {
	want := []byte("content that will be corrupted after the header is written")
	archive := buildArchive([]fixtureEntry{
		{name: "bad.txt", method: Store, data: want},
	}, nil)

	// Flip a byte in the payload without touching the declared CRC-32.
	lfhLen := 30 + len("bad.txt")
	archive[lfhLen] ^= 0xFF

	r := NewReader(bytes.NewReader(archive))
	defer r.Close()

	_, err := r.Next()
	assert.NoError(t, err)

	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestReader_zip64Sizes(t *testing.T) {
	want := []byte("zip64 extra carries the real sizes")
	archive := buildArchive([]fixtureEntry{
		{name: "z64.txt", method: Store, data: want, zip64: true},
	}, nil)

	entries, contents := readAllEntries(t, archive)
	assert.Len(t, entries, 1)
	assert.True(t, entries[0].UsesZip64)
	assert.Equal(t, uint64(len(want)), entries[0].UncompressedSize)
	assert.Equal(t, want, contents[0])
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		want bool
	}{
		{"local file header", sigLFH[:], true},
		{"eocd", sigEOCD[:], true},
		{"data descriptor", sigDD[:], true},
		{"split marker", sigSplitMarker[:], true},
		{"central file header alone", sigCFH[:], false},
		{"too short", []byte{0x50, 0x4B}, false},
		{"not a zip", []byte("plain text"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.b))
		})
	}
}

func TestReader_closedReturnsErrClosed(t *testing.T) {
	archive := buildArchive([]fixtureEntry{
		{name: "a.txt", method: Store, data: []byte("x")},
	}, nil)

	r := NewReader(bytes.NewReader(archive))
	assert.NoError(t, r.Close())

	_, err := r.Next()
	assert.ErrorIs(t, err, ErrClosed)

	_, err = r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrClosed)
}
