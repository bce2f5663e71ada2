package gpt

import (
	"fmt"

	"github.com/deploymenttheory/go-efidisk/internal/interfaces"
)

// Write writes both GPT copies in order: primary header, primary entry array,
// backup entry array, backup header. Headers fill a whole LBA with zeros
// after the 92 significant bytes.
func Write(w interfaces.SectorWriter, t *Table) error {
	plan := t.Plan
	array := t.pad(t.EntryArray(), plan.EntryArrayLBAs)
	primary := t.Primary()
	backup := t.Backup()

	steps := []struct {
		what string
		lba  uint64
		data []byte
	}{
		{"primary GPT header", primary.SelfLBA, t.pad(EncodeHeader(primary), 1)},
		{"primary partition entry array", primary.PartEntryArrLBA, array},
		{"backup partition entry array", backup.PartEntryArrLBA, array},
		{"backup GPT header", backup.SelfLBA, t.pad(EncodeHeader(backup), 1)},
	}

	for _, s := range steps {
		if err := w.WriteSectors(s.lba, s.data); err != nil {
			return fmt.Errorf("failed to write %s at LBA %d: %w", s.what, s.lba, err)
		}
	}
	return nil
}

// pad returns b zero-extended to lbas whole LBAs.
func (t *Table) pad(b []byte, lbas uint64) []byte {
	size := lbas * t.Plan.Config.LBASize
	if uint64(len(b)) == size {
		return b
	}
	out := make([]byte, size)
	copy(out, b)
	return out
}
