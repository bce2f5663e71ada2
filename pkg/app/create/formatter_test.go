package create

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-efidisk/pkg/app"
)

func sampleResponse() *Response {
	return &Response{
		Path:      "disk.img",
		SizeBytes: 73795 * 512,
		LBASize:   512,
		TotalLBAs: 73795,
		DiskGUID:  "6BA7B810-9DAD-41D1-80B4-00C04FD430C8",
		Partitions: []app.PartitionSummary{
			{Name: "EFI SYSTEM", StartLBA: 2048, EndLBA: 69631, SizeLBAs: 67584, SizeBytes: 33 << 20, GUID: "A1"},
			{Name: "BASIC DATA", StartLBA: 71680, EndLBA: 73727, SizeLBAs: 2048, SizeBytes: 1 << 20, GUID: "B2"},
		},
		Verified:  true,
		WriteTime: 3 * time.Millisecond,
	}
}

func TestFormatOutput(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		wantErr  bool
		validate func(*testing.T, string)
	}{
		{
			name:   "table format",
			format: "table",
			validate: func(t *testing.T, output string) {
				assert.Contains(t, output, "NAME")
				assert.Contains(t, output, "EFI SYSTEM")
				assert.Contains(t, output, "69631")
				assert.Contains(t, output, "33 MiB")
				assert.Contains(t, output, "1.0 MiB")
				assert.Contains(t, output, "Disk GUID: 6BA7B810-9DAD-41D1-80B4-00C04FD430C8")
				assert.Contains(t, output, "Read-back check passed")
			},
		},
		{
			name:   "json format",
			format: "json",
			validate: func(t *testing.T, output string) {
				var decoded Response
				require.NoError(t, json.Unmarshal([]byte(output), &decoded))
				assert.Equal(t, uint64(73795), decoded.TotalLBAs)
				require.Len(t, decoded.Partitions, 2)
				assert.Equal(t, "B2", decoded.Partitions[1].GUID)
			},
		},
		{
			name:   "yaml format",
			format: "yaml",
			validate: func(t *testing.T, output string) {
				var decoded map[string]any
				require.NoError(t, yaml.Unmarshal([]byte(output), &decoded))
				assert.Equal(t, "disk.img", decoded["path"])
				assert.Equal(t, 512, decoded["lba_size"])
			},
		},
		{
			name:    "unknown format",
			format:  "xml",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := FormatOutput(&buf, sampleResponse(), tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, buf.String())
		})
	}
}
