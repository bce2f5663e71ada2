package image

import (
	"context"
	"errors"
	"fmt"

	diskfsgpt "github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-efidisk/internal/gpt"
	"github.com/deploymenttheory/go-efidisk/internal/guid"
	"github.com/deploymenttheory/go-efidisk/internal/mbr"
	"github.com/deploymenttheory/go-efidisk/internal/types"
)

// ErrInconsistent is returned when an image's structures parse but disagree
// with each other.
var ErrInconsistent = errors.New("inconsistent partition tables")

// HeaderSummary describes one GPT header found on an image.
type HeaderSummary struct {
	LBA             uint64 `json:"lba" yaml:"lba"`
	AltLBA          uint64 `json:"alt_lba" yaml:"alt_lba"`
	EntryArrayLBA   uint64 `json:"entry_array_lba" yaml:"entry_array_lba"`
	HeaderCRC32     uint32 `json:"header_crc32" yaml:"header_crc32"`
	EntryArrayCRC32 uint32 `json:"entry_array_crc32" yaml:"entry_array_crc32"`
}

// PartitionInfo describes one used partition entry.
type PartitionInfo struct {
	Index     int    `json:"index" yaml:"index"`
	Name      string `json:"name" yaml:"name"`
	TypeGUID  string `json:"type_guid" yaml:"type_guid"`
	GUID      string `json:"guid" yaml:"guid"`
	StartLBA  uint64 `json:"start_lba" yaml:"start_lba"`
	EndLBA    uint64 `json:"end_lba" yaml:"end_lba"`
	SizeBytes uint64 `json:"size_bytes" yaml:"size_bytes"`
}

// Report is the result of reading an image back.
type Report struct {
	Path          string          `json:"path" yaml:"path"`
	LBASize       uint64          `json:"lba_size" yaml:"lba_size"`
	Size          uint64          `json:"size_bytes" yaml:"size_bytes"`
	TotalLBAs     uint64          `json:"total_lbas" yaml:"total_lbas"`
	ProtectiveMBR bool            `json:"protective_mbr" yaml:"protective_mbr"`
	DiskGUID      string          `json:"disk_guid" yaml:"disk_guid"`
	FirstUsable   uint64          `json:"first_usable_lba" yaml:"first_usable_lba"`
	LastUsable    uint64          `json:"last_usable_lba" yaml:"last_usable_lba"`
	Primary       HeaderSummary   `json:"primary" yaml:"primary"`
	Backup        HeaderSummary   `json:"backup" yaml:"backup"`
	Partitions    []PartitionInfo `json:"partitions" yaml:"partitions"`
}

// Verify reads back an image written by Create and checks the protective
// MBR, both GPT headers and entry arrays, and that the two copies mirror each
// other. The primary table is also parsed by go-diskfs as an independent
// reader.
func Verify(ctx context.Context, fs afero.Fs, path string, lbaSize uint64) (*Report, error) {
	if lbaSize < types.MbrBootRecordSize || lbaSize&(lbaSize-1) != 0 {
		return nil, fmt.Errorf("lba size %d must be a power of two of at least %d bytes", lbaSize, types.MbrBootRecordSize)
	}

	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image file %s: %w", path, err)
	}

	size := uint64(info.Size())
	report := &Report{
		Path:      path,
		LBASize:   lbaSize,
		Size:      size,
		TotalLBAs: size / lbaSize,
	}
	if size%lbaSize != 0 || report.TotalLBAs < 3 {
		return report, fmt.Errorf("%w: image size %d is not a whole number of at least 3 LBAs", ErrInconsistent, size)
	}

	sector := make([]byte, lbaSize)
	if _, err := file.ReadAt(sector, 0); err != nil {
		return report, fmt.Errorf("failed to read LBA 0: %w", err)
	}
	rec, err := mbr.Decode(sector)
	if err != nil {
		return report, err
	}
	report.ProtectiveMBR = mbr.IsProtective(rec)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	primary, err := gpt.ReadHeader(file, lbaSize, types.GptPrimaryHeaderLBA)
	if err != nil {
		return report, fmt.Errorf("primary GPT: %w", err)
	}
	primaryEntries, err := gpt.ReadEntries(file, lbaSize, primary)
	if err != nil {
		return report, fmt.Errorf("primary GPT: %w", err)
	}
	report.Primary = summarize(primary)
	report.DiskGUID = guid.String(primary.DiskGUID)
	report.FirstUsable = primary.FirstUseLBA
	report.LastUsable = primary.LastUseLBA

	if primary.AltLBA >= report.TotalLBAs {
		return report, fmt.Errorf("%w: backup header LBA %d is past the end of the image", ErrInconsistent, primary.AltLBA)
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	backup, err := gpt.ReadHeader(file, lbaSize, primary.AltLBA)
	if err != nil {
		return report, fmt.Errorf("backup GPT: %w", err)
	}
	backupEntries, err := gpt.ReadEntries(file, lbaSize, backup)
	if err != nil {
		return report, fmt.Errorf("backup GPT: %w", err)
	}
	report.Backup = summarize(backup)

	for i, e := range primaryEntries {
		if gpt.IsUnused(e) {
			continue
		}
		report.Partitions = append(report.Partitions, PartitionInfo{
			Index:     i,
			Name:      gpt.DecodeName(e.PartName),
			TypeGUID:  guid.String(e.PartTypeGUID),
			GUID:      guid.String(e.UniquePartGUID),
			StartLBA:  e.StartLBA,
			EndLBA:    e.EndLBA,
			SizeBytes: (e.EndLBA - e.StartLBA + 1) * lbaSize,
		})
	}

	problems := checkConsistency(report, rec, primary, backup, primaryEntries, backupEntries)

	if err := crossCheck(file, report); err != nil {
		problems = multierr.Append(problems, err)
	}

	if problems != nil {
		return report, fmt.Errorf("%w: %w", ErrInconsistent, problems)
	}
	return report, nil
}

func summarize(h types.GptHeader) HeaderSummary {
	return HeaderSummary{
		LBA:             h.SelfLBA,
		AltLBA:          h.AltLBA,
		EntryArrayLBA:   h.PartEntryArrLBA,
		HeaderCRC32:     h.HeaderCRC32,
		EntryArrayCRC32: h.PartEntryArrCRC32,
	}
}

func checkConsistency(report *Report, rec types.MbrBootRecord, primary, backup types.GptHeader, primaryEntries, backupEntries []types.GptPartEntry) error {
	var err error

	if !report.ProtectiveMBR {
		err = multierr.Append(err, errors.New("LBA 0 does not hold a protective MBR"))
	} else {
		want := report.TotalLBAs - 1
		if want > uint64(types.MbrMaxSizeInLBA) {
			want = uint64(types.MbrMaxSizeInLBA)
		}
		if got := uint64(rec.Partition[0].SizeInLBA); got != want {
			err = multierr.Append(err, fmt.Errorf("protective MBR covers %d LBAs, expected %d", got, want))
		}
	}

	if primary.AltLBA != report.TotalLBAs-1 {
		err = multierr.Append(err, fmt.Errorf("backup header at LBA %d, expected last LBA %d", primary.AltLBA, report.TotalLBAs-1))
	}
	if backup.AltLBA != primary.SelfLBA {
		err = multierr.Append(err, fmt.Errorf("backup header points at LBA %d instead of the primary at %d", backup.AltLBA, primary.SelfLBA))
	}
	if backup.DiskGUID != primary.DiskGUID {
		err = multierr.Append(err, errors.New("disk GUIDs of the primary and backup headers differ"))
	}
	if backup.FirstUseLBA != primary.FirstUseLBA || backup.LastUseLBA != primary.LastUseLBA {
		err = multierr.Append(err, errors.New("usable ranges of the primary and backup headers differ"))
	}
	if backup.PartEntryArrCRC32 != primary.PartEntryArrCRC32 || len(backupEntries) != len(primaryEntries) {
		err = multierr.Append(err, errors.New("primary and backup partition entry arrays differ"))
	}
	if backup.PartEntryArrLBA >= backup.SelfLBA || backup.PartEntryArrLBA <= primary.LastUseLBA {
		err = multierr.Append(err, fmt.Errorf("backup entry array at LBA %d is outside the backup area", backup.PartEntryArrLBA))
	}

	for i, p := range report.Partitions {
		if p.StartLBA < primary.FirstUseLBA || p.EndLBA > primary.LastUseLBA || p.StartLBA > p.EndLBA {
			err = multierr.Append(err, fmt.Errorf("partition %d (%d-%d) is outside the usable range %d-%d", p.Index, p.StartLBA, p.EndLBA, primary.FirstUseLBA, primary.LastUseLBA))
		}
		for _, q := range report.Partitions[i+1:] {
			if p.StartLBA <= q.EndLBA && q.StartLBA <= p.EndLBA {
				err = multierr.Append(err, fmt.Errorf("partitions %d and %d overlap", p.Index, q.Index))
			}
		}
	}

	return err
}

// crossCheck parses the primary table with go-diskfs and compares the
// partitions it finds with report.
func crossCheck(file afero.File, report *Report) error {
	table, err := diskfsgpt.Read(file, int(report.LBASize), int(report.LBASize))
	if err != nil {
		return fmt.Errorf("go-diskfs rejected the table: %w", err)
	}
	// go-diskfs looks for the MBR signature at the end of LBA 0 and compares
	// the MBR size with the backup header LBA truncated to 32 bits, so its
	// answer only counts for unclamped 512-byte LBA images.
	if !table.ProtectiveMBR && report.LBASize == types.MbrBootRecordSize && report.TotalLBAs-1 <= uint64(types.MbrMaxSizeInLBA) {
		return errors.New("go-diskfs did not find a protective MBR")
	}
	if len(table.Partitions) != len(report.Partitions) {
		return fmt.Errorf("go-diskfs found %d partitions, expected %d", len(table.Partitions), len(report.Partitions))
	}
	for i, p := range table.Partitions {
		want := report.Partitions[i]
		if p.Start != want.StartLBA || p.End != want.EndLBA || p.GUID != want.GUID || string(p.Type) != want.TypeGUID {
			return fmt.Errorf("go-diskfs disagrees on partition %d", want.Index)
		}
	}
	return nil
}
