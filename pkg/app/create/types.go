package create

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/deploymenttheory/go-efidisk/pkg/app"
)

// Request represents an image creation request
type Request struct {
	ImagePath string
	Layout    app.LayoutOptions

	// Write behaviour
	Atomic bool
	Verify bool
}

// Response represents a written image
type Response struct {
	Path       string                 `json:"path" yaml:"path"`
	SizeBytes  uint64                 `json:"size_bytes" yaml:"size_bytes"`
	LBASize    uint64                 `json:"lba_size" yaml:"lba_size"`
	TotalLBAs  uint64                 `json:"total_lbas" yaml:"total_lbas"`
	DiskGUID   string                 `json:"disk_guid" yaml:"disk_guid"`
	Partitions []app.PartitionSummary `json:"partitions" yaml:"partitions"`
	Atomic     bool                   `json:"atomic" yaml:"atomic"`
	Verified   bool                   `json:"verified" yaml:"verified"`
	WriteTime  time.Duration          `json:"write_time" yaml:"write_time"`
}

// FormatSize returns a human-readable image size
func (r *Response) FormatSize() string {
	return humanize.IBytes(r.SizeBytes)
}
