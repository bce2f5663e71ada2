package layout

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-efidisk/internal/types"
)

// Extent is an inclusive range of LBAs.
type Extent struct {
	StartLBA uint64 `json:"start_lba" yaml:"start_lba"`
	EndLBA   uint64 `json:"end_lba" yaml:"end_lba"`
	SizeLBAs uint64 `json:"size_lbas" yaml:"size_lbas"`
}

func newExtent(start, size uint64) Extent {
	return Extent{StartLBA: start, EndLBA: start + size - 1, SizeLBAs: size}
}

// Overlaps reports whether e and o share at least one LBA.
func (e Extent) Overlaps(o Extent) bool {
	return e.StartLBA <= o.EndLBA && o.StartLBA <= e.EndLBA
}

// Plan is the single source of truth for where everything goes on an image.
// Encoders read placement from a Plan and never recompute it.
type Plan struct {
	Config Config `json:"config" yaml:"config"`

	TotalLBAs      uint64 `json:"total_lbas" yaml:"total_lbas"`
	AlignmentLBAs  uint64 `json:"alignment_lbas" yaml:"alignment_lbas"`
	EntryArrayLBAs uint64 `json:"entry_array_lbas" yaml:"entry_array_lbas"`

	PrimaryHeaderLBA uint64 `json:"primary_header_lba" yaml:"primary_header_lba"`
	PrimaryArrayLBA  uint64 `json:"primary_array_lba" yaml:"primary_array_lba"`
	FirstUsableLBA   uint64 `json:"first_usable_lba" yaml:"first_usable_lba"`
	LastUsableLBA    uint64 `json:"last_usable_lba" yaml:"last_usable_lba"`
	BackupArrayLBA   uint64 `json:"backup_array_lba" yaml:"backup_array_lba"`
	BackupHeaderLBA  uint64 `json:"backup_header_lba" yaml:"backup_header_lba"`

	ESP  Extent `json:"esp" yaml:"esp"`
	Data Extent `json:"data" yaml:"data"`
}

// NewPlan validates cfg and computes the layout:
//
//	padding      = 2 * alignment + 67 LBAs
//	total LBAs   = ceil((esp + data + padding) / lba size)
//	ESP start    = one alignment unit
//	data start   = next aligned LBA after the ESP's last LBA + 1
func NewPlan(cfg Config) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	imageBytes, _ := cfg.imageBytes()
	p := &Plan{
		Config:         cfg,
		TotalLBAs:      cfg.BytesToLBAs(imageBytes),
		AlignmentLBAs:  cfg.AlignmentLBAs(),
		EntryArrayLBAs: cfg.BytesToLBAs(types.GptEntryArraySize),
	}

	p.PrimaryHeaderLBA = types.GptPrimaryHeaderLBA
	p.PrimaryArrayLBA = types.GptPrimaryEntryArrayLBA
	p.FirstUsableLBA = p.PrimaryArrayLBA + p.EntryArrayLBAs
	p.BackupHeaderLBA = p.TotalLBAs - 1
	p.BackupArrayLBA = p.BackupHeaderLBA - p.EntryArrayLBAs
	p.LastUsableLBA = p.BackupArrayLBA - 1

	espStart := p.AlignmentLBAs
	espLBAs := cfg.BytesToLBAs(cfg.ESPSize)
	p.ESP = newExtent(espStart, espLBAs)
	p.Data = newExtent(cfg.NextAlignedLBA(espStart+espLBAs), cfg.BytesToLBAs(cfg.DataSize))

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// validate checks the partitions sit inside the usable range and apart.
func (p *Plan) validate() error {
	var err error

	if p.FirstUsableLBA > p.LastUsableLBA {
		err = multierr.Append(err, fmt.Errorf("no usable LBAs: first usable %d is past last usable %d", p.FirstUsableLBA, p.LastUsableLBA))
	}
	if p.ESP.StartLBA < p.FirstUsableLBA {
		err = multierr.Append(err, fmt.Errorf("esp starts at LBA %d inside the primary GPT (first usable LBA %d)", p.ESP.StartLBA, p.FirstUsableLBA))
	}
	if p.Data.EndLBA > p.LastUsableLBA {
		err = multierr.Append(err, fmt.Errorf("data partition ends at LBA %d inside the backup GPT (last usable LBA %d)", p.Data.EndLBA, p.LastUsableLBA))
	}
	if p.ESP.Overlaps(p.Data) {
		err = multierr.Append(err, fmt.Errorf("esp %d-%d overlaps data partition %d-%d", p.ESP.StartLBA, p.ESP.EndLBA, p.Data.StartLBA, p.Data.EndLBA))
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ImageSize returns the image length in bytes.
func (p *Plan) ImageSize() uint64 {
	return p.TotalLBAs * p.Config.LBASize
}

// Offset returns the byte offset of lba.
func (p *Plan) Offset(lba uint64) int64 {
	return int64(lba * p.Config.LBASize)
}

// ProtectiveSizeInLBA returns the size field of the protective MBR partition:
// every LBA after LBA 0, clamped to what 32 bits can hold.
func (p *Plan) ProtectiveSizeInLBA() uint32 {
	size := p.TotalLBAs - 1
	if size > uint64(types.MbrMaxSizeInLBA) {
		return types.MbrMaxSizeInLBA
	}
	return uint32(size)
}
