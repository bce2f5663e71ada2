package plan

import (
	"github.com/dustin/go-humanize"

	"github.com/deploymenttheory/go-efidisk/pkg/app"
)

// Request represents a dry-run layout request
type Request struct {
	Layout app.LayoutOptions
}

// Region is one contiguous range of LBAs in the planned image
type Region struct {
	Name      string `json:"name" yaml:"name"`
	StartLBA  uint64 `json:"start_lba" yaml:"start_lba"`
	EndLBA    uint64 `json:"end_lba" yaml:"end_lba"`
	SizeLBAs  uint64 `json:"size_lbas" yaml:"size_lbas"`
	SizeBytes uint64 `json:"size_bytes" yaml:"size_bytes"`
}

// Response describes where every structure of an image would be written
type Response struct {
	LBASize        uint64                 `json:"lba_size" yaml:"lba_size"`
	AlignmentLBAs  uint64                 `json:"alignment_lbas" yaml:"alignment_lbas"`
	TotalLBAs      uint64                 `json:"total_lbas" yaml:"total_lbas"`
	SizeBytes      uint64                 `json:"size_bytes" yaml:"size_bytes"`
	FirstUsableLBA uint64                 `json:"first_usable_lba" yaml:"first_usable_lba"`
	LastUsableLBA  uint64                 `json:"last_usable_lba" yaml:"last_usable_lba"`
	Regions        []Region               `json:"regions" yaml:"regions"`
	Partitions     []app.PartitionSummary `json:"partitions" yaml:"partitions"`
}

// FormatSize returns a human-readable image size
func (r *Response) FormatSize() string {
	return humanize.IBytes(r.SizeBytes)
}
