package plan

import (
	"fmt"

	"github.com/deploymenttheory/go-efidisk/internal/layout"
	"github.com/deploymenttheory/go-efidisk/internal/types"
	"github.com/deploymenttheory/go-efidisk/pkg/app"
)

// Handle computes the layout for a request without touching any file
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, app.Classify("planning cancelled", err)
	}

	cfg, err := req.Layout.Config()
	if err != nil {
		return nil, err
	}
	ctx.Log("Planning layout: " + cfg.String())

	p, err := layout.NewPlan(cfg)
	if err != nil {
		return nil, app.Classify("invalid layout", err)
	}

	lbaSize := cfg.LBASize
	region := func(name string, start, size uint64) Region {
		return Region{
			Name:      name,
			StartLBA:  start,
			EndLBA:    start + size - 1,
			SizeLBAs:  size,
			SizeBytes: size * lbaSize,
		}
	}
	extent := func(name string, e layout.Extent) Region {
		return region(name, e.StartLBA, e.SizeLBAs)
	}

	response := &Response{
		LBASize:        lbaSize,
		AlignmentLBAs:  p.AlignmentLBAs,
		TotalLBAs:      p.TotalLBAs,
		SizeBytes:      p.ImageSize(),
		FirstUsableLBA: p.FirstUsableLBA,
		LastUsableLBA:  p.LastUsableLBA,
		Regions: []Region{
			region("protective MBR", 0, 1),
			region("primary GPT header", p.PrimaryHeaderLBA, 1),
			region("primary entry array", p.PrimaryArrayLBA, p.EntryArrayLBAs),
			extent(types.EspPartitionName, p.ESP),
			extent(types.DataPartitionName, p.Data),
			region("backup entry array", p.BackupArrayLBA, p.EntryArrayLBAs),
			region("backup GPT header", p.BackupHeaderLBA, 1),
		},
		Partitions: []app.PartitionSummary{
			app.NewPartitionSummary(types.EspPartitionName, types.EfiSystemPartitionGUID, p.ESP, lbaSize),
			app.NewPartitionSummary(types.DataPartitionName, types.BasicDataPartitionGUID, p.Data, lbaSize),
		},
	}

	ctx.Log(fmt.Sprintf("Planned %d LBAs (%s)", response.TotalLBAs, response.FormatSize()))
	return response, nil
}
