// Package gpt builds, encodes, writes and reads back the primary and backup
// GUID partition tables of an image.
package gpt

import (
	"fmt"
	"unicode/utf16"

	"github.com/deploymenttheory/go-efidisk/internal/checksum"
	"github.com/deploymenttheory/go-efidisk/internal/guid"
	"github.com/deploymenttheory/go-efidisk/internal/interfaces"
	"github.com/deploymenttheory/go-efidisk/internal/layout"
	"github.com/deploymenttheory/go-efidisk/internal/types"
)

var (
	espTypeGUID  = guid.MustParse(types.EfiSystemPartitionGUID)
	dataTypeGUID = guid.MustParse(types.BasicDataPartitionGUID)
)

// Table is the content shared by both GPT copies: the disk GUID and the
// partition entry array. Placement comes from Plan.
type Table struct {
	Plan     *layout.Plan
	DiskGUID types.Guid
	Entries  [types.GptNumPartEntries]types.GptPartEntry
}

// NewTable draws the disk GUID and one unique GUID per partition from src,
// in that order, and fills entry 0 with the ESP and entry 1 with the basic
// data partition. All other entries stay zero.
func NewTable(plan *layout.Plan, src interfaces.GUIDSource) (*Table, error) {
	diskGUID, err := src.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to generate disk GUID: %w", err)
	}
	espGUID, err := src.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ESP GUID: %w", err)
	}
	dataGUID, err := src.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to generate data partition GUID: %w", err)
	}

	t := &Table{Plan: plan, DiskGUID: diskGUID}
	t.Entries[0] = types.GptPartEntry{
		PartTypeGUID:   espTypeGUID,
		UniquePartGUID: espGUID,
		StartLBA:       plan.ESP.StartLBA,
		EndLBA:         plan.ESP.EndLBA,
		PartName:       EncodeName(types.EspPartitionName),
	}
	t.Entries[1] = types.GptPartEntry{
		PartTypeGUID:   dataTypeGUID,
		UniquePartGUID: dataGUID,
		StartLBA:       plan.Data.StartLBA,
		EndLBA:         plan.Data.EndLBA,
		PartName:       EncodeName(types.DataPartitionName),
	}
	return t, nil
}

// EntryArray returns the encoded partition entry array.
func (t *Table) EntryArray() []byte {
	return EncodeEntryArray(t.Entries[:])
}

// Primary returns the sealed primary header.
func (t *Table) Primary() types.GptHeader {
	return Seal(t.header(t.Plan.PrimaryHeaderLBA, t.Plan.BackupHeaderLBA, t.Plan.PrimaryArrayLBA))
}

// Backup returns the sealed backup header: self and alternate swapped and the
// entry array placed directly before it.
func (t *Table) Backup() types.GptHeader {
	return Seal(t.header(t.Plan.BackupHeaderLBA, t.Plan.PrimaryHeaderLBA, t.Plan.BackupArrayLBA))
}

func (t *Table) header(self, alt, arrayLBA uint64) types.GptHeader {
	return types.GptHeader{
		Signature:         types.GptSignature,
		Revision:          types.GptRevision,
		HeaderSize:        types.GptHeaderSize,
		SelfLBA:           self,
		AltLBA:            alt,
		FirstUseLBA:       t.Plan.FirstUsableLBA,
		LastUseLBA:        t.Plan.LastUsableLBA,
		DiskGUID:          t.DiskGUID,
		PartEntryArrLBA:   arrayLBA,
		NumPartEntries:    types.GptNumPartEntries,
		SizePartEntry:     types.GptPartEntrySize,
		PartEntryArrCRC32: checksum.ChecksumIEEE(t.EntryArray()),
	}
}

// Seal returns h with HeaderCRC32 computed over the first HeaderSize bytes
// while the CRC field itself is zero.
func Seal(h types.GptHeader) types.GptHeader {
	h.HeaderCRC32 = 0
	h.HeaderCRC32 = checksum.ChecksumIEEE(EncodeHeader(h))
	return h
}

// EncodeName converts s to a NUL padded UTF-16 partition name. Names longer
// than the field are truncated.
func EncodeName(s string) [types.GptPartNameUnits]uint16 {
	var name [types.GptPartNameUnits]uint16
	copy(name[:], utf16.Encode([]rune(s)))
	return name
}

// DecodeName returns the partition name up to the first NUL.
func DecodeName(name [types.GptPartNameUnits]uint16) string {
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return string(utf16.Decode(name[:n]))
}
