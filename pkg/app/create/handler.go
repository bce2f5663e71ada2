package create

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-efidisk/internal/image"
	"github.com/deploymenttheory/go-efidisk/internal/types"
	"github.com/deploymenttheory/go-efidisk/pkg/app"
)

// Handle processes an image creation request
func Handle(ctx *app.Context, fs afero.Fs, req *Request) (*Response, error) {
	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg, err := req.Layout.Config()
	if err != nil {
		return nil, err
	}

	ctx.Log(fmt.Sprintf("Creating image: %s", req.ImagePath))
	ctx.Log("  Layout: " + cfg.String())
	ctx.Progress("Planning layout...", 10)

	// 2. Write the image
	writer := image.NewWriter(fs,
		image.WithLogger(ctx.Logger),
		image.WithAtomic(req.Atomic),
		image.WithVerify(req.Verify),
	)

	ctx.Progress("Writing partition tables...", 40)
	result, err := writer.Create(ctx, req.ImagePath, cfg)
	if err != nil {
		return nil, app.Classify("failed to create image", err)
	}

	// 3. Build response
	lbaSize := result.Plan.Config.LBASize
	esp := app.NewPartitionSummary(types.EspPartitionName, types.EfiSystemPartitionGUID, result.Plan.ESP, lbaSize)
	esp.GUID = result.ESPGUID
	data := app.NewPartitionSummary(types.DataPartitionName, types.BasicDataPartitionGUID, result.Plan.Data, lbaSize)
	data.GUID = result.DataGUID

	response := &Response{
		Path:       result.Path,
		SizeBytes:  result.Size,
		LBASize:    lbaSize,
		TotalLBAs:  result.Plan.TotalLBAs,
		DiskGUID:   result.DiskGUID,
		Partitions: []app.PartitionSummary{esp, data},
		Atomic:     result.Atomic,
		Verified:   result.Verified,
		WriteTime:  result.Duration,
	}

	ctx.Progress("Complete", 100)
	ctx.Log(fmt.Sprintf("Image written: %s in %v", response.FormatSize(), response.WriteTime))

	return response, nil
}
