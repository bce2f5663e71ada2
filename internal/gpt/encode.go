package gpt

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-efidisk/internal/guid"
	"github.com/deploymenttheory/go-efidisk/internal/types"
)

// EncodeHeader returns the 92-byte on-disk form of h. Fields are written one
// by one in little-endian order.
func EncodeHeader(h types.GptHeader) []byte {
	b := make([]byte, types.GptHeaderSize)

	copy(b[0:8], h.Signature[:])
	binary.LittleEndian.PutUint32(b[8:12], h.Revision)
	binary.LittleEndian.PutUint32(b[12:16], h.HeaderSize)
	binary.LittleEndian.PutUint32(b[16:20], h.HeaderCRC32)
	binary.LittleEndian.PutUint32(b[20:24], h.Reserved1)
	binary.LittleEndian.PutUint64(b[24:32], h.SelfLBA)
	binary.LittleEndian.PutUint64(b[32:40], h.AltLBA)
	binary.LittleEndian.PutUint64(b[40:48], h.FirstUseLBA)
	binary.LittleEndian.PutUint64(b[48:56], h.LastUseLBA)
	guid.Encode(b[56:72], h.DiskGUID)
	binary.LittleEndian.PutUint64(b[72:80], h.PartEntryArrLBA)
	binary.LittleEndian.PutUint32(b[80:84], h.NumPartEntries)
	binary.LittleEndian.PutUint32(b[84:88], h.SizePartEntry)
	binary.LittleEndian.PutUint32(b[88:92], h.PartEntryArrCRC32)

	return b
}

// DecodeHeader parses the first 92 bytes of b as a GPT header.
func DecodeHeader(b []byte) (types.GptHeader, error) {
	var h types.GptHeader
	if len(b) < types.GptHeaderSize {
		return h, fmt.Errorf("short GPT header: got %d bytes, need %d", len(b), types.GptHeaderSize)
	}

	copy(h.Signature[:], b[0:8])
	h.Revision = binary.LittleEndian.Uint32(b[8:12])
	h.HeaderSize = binary.LittleEndian.Uint32(b[12:16])
	h.HeaderCRC32 = binary.LittleEndian.Uint32(b[16:20])
	h.Reserved1 = binary.LittleEndian.Uint32(b[20:24])
	h.SelfLBA = binary.LittleEndian.Uint64(b[24:32])
	h.AltLBA = binary.LittleEndian.Uint64(b[32:40])
	h.FirstUseLBA = binary.LittleEndian.Uint64(b[40:48])
	h.LastUseLBA = binary.LittleEndian.Uint64(b[48:56])
	h.DiskGUID = guid.Decode(b[56:72])
	h.PartEntryArrLBA = binary.LittleEndian.Uint64(b[72:80])
	h.NumPartEntries = binary.LittleEndian.Uint32(b[80:84])
	h.SizePartEntry = binary.LittleEndian.Uint32(b[84:88])
	h.PartEntryArrCRC32 = binary.LittleEndian.Uint32(b[88:92])

	return h, nil
}

// EncodeEntry writes the 128-byte on-disk form of e into b.
func EncodeEntry(b []byte, e types.GptPartEntry) {
	_ = b[types.GptPartEntrySize-1]
	guid.Encode(b[0:16], e.PartTypeGUID)
	guid.Encode(b[16:32], e.UniquePartGUID)
	binary.LittleEndian.PutUint64(b[32:40], e.StartLBA)
	binary.LittleEndian.PutUint64(b[40:48], e.EndLBA)
	binary.LittleEndian.PutUint64(b[48:56], e.Attrib)
	for i, u := range e.PartName {
		binary.LittleEndian.PutUint16(b[56+2*i:], u)
	}
}

// DecodeEntry parses a 128-byte partition entry.
func DecodeEntry(b []byte) types.GptPartEntry {
	_ = b[types.GptPartEntrySize-1]
	e := types.GptPartEntry{
		PartTypeGUID:   guid.Decode(b[0:16]),
		UniquePartGUID: guid.Decode(b[16:32]),
		StartLBA:       binary.LittleEndian.Uint64(b[32:40]),
		EndLBA:         binary.LittleEndian.Uint64(b[40:48]),
		Attrib:         binary.LittleEndian.Uint64(b[48:56]),
	}
	for i := range e.PartName {
		e.PartName[i] = binary.LittleEndian.Uint16(b[56+2*i:])
	}
	return e
}

// EncodeEntryArray returns the full entry array. Entries beyond len(entries)
// are zero.
func EncodeEntryArray(entries []types.GptPartEntry) []byte {
	b := make([]byte, types.GptEntryArraySize)
	for i, e := range entries {
		if i >= types.GptNumPartEntries {
			break
		}
		off := i * types.GptPartEntrySize
		EncodeEntry(b[off:off+types.GptPartEntrySize], e)
	}
	return b
}

// IsUnused reports whether e is an empty slot.
func IsUnused(e types.GptPartEntry) bool {
	return e.PartTypeGUID == types.Guid{}
}
