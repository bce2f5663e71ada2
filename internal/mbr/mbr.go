// Package mbr builds the protective MBR that occupies LBA 0 of a GPT disk.
package mbr

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-efidisk/internal/interfaces"
	"github.com/deploymenttheory/go-efidisk/internal/layout"
	"github.com/deploymenttheory/go-efidisk/internal/types"
)

// NewProtective returns a protective MBR covering the whole image with a
// single 0xEE partition. Boot code and the disk signature stay zero.
func NewProtective(plan *layout.Plan) types.MbrBootRecord {
	var rec types.MbrBootRecord
	rec.Partition[0] = types.MbrPartitionRecord{
		BootIndicator: 0x00,
		StartCHS:      types.MbrProtectiveStartCHS,
		OSIndicator:   types.MbrOSTypeGptProtective,
		EndCHS:        types.MbrProtectiveEndCHS,
		StartingLBA:   types.GptPrimaryHeaderLBA,
		SizeInLBA:     plan.ProtectiveSizeInLBA(),
	}
	rec.Signature = types.MbrSignature
	return rec
}

// Encode returns the 512-byte on-disk form of rec.
func Encode(rec types.MbrBootRecord) []byte {
	b := make([]byte, types.MbrBootRecordSize)

	copy(b[0:types.MbrBootCodeSize], rec.BootStrapCode[:])
	binary.LittleEndian.PutUint32(b[440:444], rec.UniqueMbrSignature)
	binary.LittleEndian.PutUint16(b[444:446], rec.Unknown)

	for i, p := range rec.Partition {
		off := types.MbrPartitionTableOffset + i*types.MbrPartitionRecordSize
		encodePartitionRecord(b[off:off+types.MbrPartitionRecordSize], p)
	}

	binary.LittleEndian.PutUint16(b[types.MbrSignatureOffset:], rec.Signature)
	return b
}

func encodePartitionRecord(b []byte, p types.MbrPartitionRecord) {
	b[0] = p.BootIndicator
	copy(b[1:4], p.StartCHS[:])
	b[4] = p.OSIndicator
	copy(b[5:8], p.EndCHS[:])
	binary.LittleEndian.PutUint32(b[8:12], p.StartingLBA)
	binary.LittleEndian.PutUint32(b[12:16], p.SizeInLBA)
}

// Decode parses the first 512 bytes of b as an MBR.
func Decode(b []byte) (types.MbrBootRecord, error) {
	var rec types.MbrBootRecord
	if len(b) < types.MbrBootRecordSize {
		return rec, fmt.Errorf("short MBR: got %d bytes, need %d", len(b), types.MbrBootRecordSize)
	}

	copy(rec.BootStrapCode[:], b[0:types.MbrBootCodeSize])
	rec.UniqueMbrSignature = binary.LittleEndian.Uint32(b[440:444])
	rec.Unknown = binary.LittleEndian.Uint16(b[444:446])

	for i := range rec.Partition {
		off := types.MbrPartitionTableOffset + i*types.MbrPartitionRecordSize
		p := &rec.Partition[i]
		p.BootIndicator = b[off]
		copy(p.StartCHS[:], b[off+1:off+4])
		p.OSIndicator = b[off+4]
		copy(p.EndCHS[:], b[off+5:off+8])
		p.StartingLBA = binary.LittleEndian.Uint32(b[off+8 : off+12])
		p.SizeInLBA = binary.LittleEndian.Uint32(b[off+12 : off+16])
	}

	rec.Signature = binary.LittleEndian.Uint16(b[types.MbrSignatureOffset:])
	return rec, nil
}

// IsProtective reports whether rec looks like a GPT protective MBR.
func IsProtective(rec types.MbrBootRecord) bool {
	return rec.Signature == types.MbrSignature &&
		rec.Partition[0].OSIndicator == types.MbrOSTypeGptProtective &&
		rec.Partition[0].StartingLBA == types.GptPrimaryHeaderLBA
}

// Write encodes the protective MBR for plan and writes it to LBA 0, zero
// padded to a full LBA.
func Write(w interfaces.SectorWriter, plan *layout.Plan) error {
	sector := make([]byte, plan.Config.LBASize)
	copy(sector, Encode(NewProtective(plan)))

	if err := w.WriteSectors(0, sector); err != nil {
		return fmt.Errorf("failed to write protective MBR: %w", err)
	}
	return nil
}
