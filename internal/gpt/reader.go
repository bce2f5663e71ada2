package gpt

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/deploymenttheory/go-efidisk/internal/checksum"
	"github.com/deploymenttheory/go-efidisk/internal/types"
)

var (
	// ErrBadSignature is returned when an LBA does not hold "EFI PART".
	ErrBadSignature = errors.New("invalid GPT signature")
	// ErrHeaderCRC is returned when a header's stored CRC does not match.
	ErrHeaderCRC = errors.New("GPT header CRC mismatch")
	// ErrEntryArrayCRC is returned when an entry array's CRC does not match.
	ErrEntryArrayCRC = errors.New("GPT partition entry array CRC mismatch")
)

// ReadHeader reads the GPT header at lba and checks its signature, size and
// CRC.
func ReadHeader(r io.ReaderAt, lbaSize, lba uint64) (types.GptHeader, error) {
	offset := int64(lba * lbaSize)
	data := make([]byte, lbaSize)

	n, err := r.ReadAt(data, offset)
	if err != nil && !(errors.Is(err, io.EOF) && uint64(n) == lbaSize) {
		return types.GptHeader{}, fmt.Errorf("failed to read GPT header at offset %d: %w", offset, err)
	}

	h, err := DecodeHeader(data)
	if err != nil {
		return h, err
	}
	if h.Signature != types.GptSignature {
		return h, fmt.Errorf("%w at LBA %d: got %q", ErrBadSignature, lba, h.Signature[:])
	}
	if h.HeaderSize < types.GptHeaderSize || uint64(h.HeaderSize) > lbaSize {
		return h, fmt.Errorf("GPT header at LBA %d reports unsupported size %d", lba, h.HeaderSize)
	}

	sealed := bytes.Clone(data[:h.HeaderSize])
	clear(sealed[types.GptHeaderCRCOffset : types.GptHeaderCRCOffset+4])
	if got := checksum.ChecksumIEEE(sealed); got != h.HeaderCRC32 {
		return h, fmt.Errorf("%w at LBA %d: stored %08X, computed %08X", ErrHeaderCRC, lba, h.HeaderCRC32, got)
	}
	return h, nil
}

// ReadEntries reads the partition entry array h points at and checks its CRC.
func ReadEntries(r io.ReaderAt, lbaSize uint64, h types.GptHeader) ([]types.GptPartEntry, error) {
	if h.SizePartEntry != types.GptPartEntrySize {
		return nil, fmt.Errorf("unsupported GPT partition entry size %d, expected %d", h.SizePartEntry, types.GptPartEntrySize)
	}

	offset := int64(h.PartEntryArrLBA * lbaSize)
	data := make([]byte, uint64(h.NumPartEntries)*uint64(h.SizePartEntry))

	n, err := r.ReadAt(data, offset)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(data)) {
		return nil, fmt.Errorf("failed to read partition entry array at offset %d: %w", offset, err)
	}

	if got := checksum.ChecksumIEEE(data); got != h.PartEntryArrCRC32 {
		return nil, fmt.Errorf("%w at LBA %d: stored %08X, computed %08X", ErrEntryArrayCRC, h.PartEntryArrLBA, h.PartEntryArrCRC32, got)
	}

	entries := make([]types.GptPartEntry, h.NumPartEntries)
	for i := range entries {
		off := i * types.GptPartEntrySize
		entries[i] = DecodeEntry(data[off : off+types.GptPartEntrySize])
	}
	return entries, nil
}

// Used returns the entries that describe a partition.
func Used(entries []types.GptPartEntry) []types.GptPartEntry {
	var used []types.GptPartEntry
	for _, e := range entries {
		if !IsUnused(e) {
			used = append(used, e)
		}
	}
	return used
}
