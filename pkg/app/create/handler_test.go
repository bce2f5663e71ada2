package create

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-efidisk/internal/types"
	"github.com/deploymenttheory/go-efidisk/pkg/app"
)

func newTestContext() (*app.Context, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	ctx := app.NewContext()
	ctx.Logger = logger
	return ctx, hook
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		request  *Request
		validate func(*testing.T, afero.Fs, *Response)
	}{
		{
			name:    "default layout",
			request: &Request{ImagePath: "/out/disk.img"},
			validate: func(t *testing.T, fs afero.Fs, resp *Response) {
				assert.Equal(t, "/out/disk.img", resp.Path)
				assert.Equal(t, uint64(512), resp.LBASize)
				assert.Equal(t, uint64(73795), resp.TotalLBAs)
				assert.Equal(t, uint64(73795*512), resp.SizeBytes)
				assert.False(t, resp.Verified)

				require.Len(t, resp.Partitions, 2)
				esp, data := resp.Partitions[0], resp.Partitions[1]
				assert.Equal(t, types.EspPartitionName, esp.Name)
				assert.Equal(t, types.EfiSystemPartitionGUID, esp.TypeGUID)
				assert.Equal(t, uint64(2048), esp.StartLBA)
				assert.Equal(t, uint64(69631), esp.EndLBA)
				assert.Equal(t, uint64(33<<20), esp.SizeBytes)
				assert.Equal(t, types.DataPartitionName, data.Name)
				assert.Equal(t, types.BasicDataPartitionGUID, data.TypeGUID)
				assert.Equal(t, uint64(71680), data.StartLBA)
				assert.Equal(t, uint64(1<<20), data.SizeBytes)

				assert.NotEmpty(t, resp.DiskGUID)
				assert.NotEqual(t, resp.DiskGUID, esp.GUID)
				assert.NotEqual(t, esp.GUID, data.GUID)

				info, err := fs.Stat("/out/disk.img")
				require.NoError(t, err)
				assert.Equal(t, int64(resp.SizeBytes), info.Size())
			},
		},
		{
			name: "4K sectors with read-back",
			request: &Request{
				ImagePath: "/out/disk4k.img",
				Layout:    app.LayoutOptions{LBASize: "4KiB"},
				Verify:    true,
			},
			validate: func(t *testing.T, fs afero.Fs, resp *Response) {
				assert.Equal(t, uint64(4096), resp.LBASize)
				assert.True(t, resp.Verified)
				assert.Equal(t, uint64(256), resp.Partitions[0].StartLBA)
				assert.Equal(t, uint64(8960), resp.Partitions[1].StartLBA)
			},
		},
		{
			name: "atomic",
			request: &Request{
				ImagePath: "/out/atomic.img",
				Atomic:    true,
			},
			validate: func(t *testing.T, fs afero.Fs, resp *Response) {
				assert.True(t, resp.Atomic)
				entries, err := afero.ReadDir(fs, "/out")
				require.NoError(t, err)
				require.Len(t, entries, 1)
				assert.Equal(t, "atomic.img", entries[0].Name())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll("/out", 0o755))
			ctx, _ := newTestContext()

			resp, err := Handle(ctx, fs, tt.request)
			require.NoError(t, err)
			require.NotNil(t, resp)
			tt.validate(t, fs, resp)
		})
	}
}

func TestHandleReportsProgress(t *testing.T) {
	ctx, hook := newTestContext()
	var steps []int
	ctx.SetProgress(func(_ string, percent int) {
		steps = append(steps, percent)
	})

	_, err := Handle(ctx, afero.NewMemMapFs(), &Request{ImagePath: "disk.img"})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 40, 100}, steps)
	assert.Equal(t, "image written", hook.LastEntry().Message)
}

func TestHandleLogsResolvedLayout(t *testing.T) {
	ctx, hook := newTestContext()
	ctx.Verbose = true

	_, err := Handle(ctx, afero.NewMemMapFs(), &Request{
		ImagePath: "disk.img",
		Layout:    app.LayoutOptions{ESPSize: "64MiB"},
	})
	require.NoError(t, err)

	var messages []string
	for _, entry := range hook.AllEntries() {
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "  Layout: lba size 512, esp 64 MiB, data 1.0 MiB, alignment 1.0 MiB")
	assert.Contains(t, messages, "Writing partition tables...")
}

func TestHandleErrors(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		fs       afero.Fs
		ctx      context.Context
		request  *Request
		wantCode string
	}{
		{
			name:     "missing path",
			fs:       afero.NewMemMapFs(),
			ctx:      context.Background(),
			request:  &Request{},
			wantCode: app.ErrCodeInvalidInput,
		},
		{
			name: "ESP inside the primary GPT",
			fs:   afero.NewMemMapFs(),
			ctx:  context.Background(),
			request: &Request{
				ImagePath: "disk.img",
				Layout:    app.LayoutOptions{Alignment: "8KiB"},
			},
			wantCode: app.ErrCodeInvalidLayout,
		},
		{
			name:     "read-only filesystem",
			fs:       afero.NewReadOnlyFs(afero.NewMemMapFs()),
			ctx:      context.Background(),
			request:  &Request{ImagePath: "disk.img"},
			wantCode: app.ErrCodeFileOpen,
		},
		{
			name:     "cancelled",
			fs:       afero.NewMemMapFs(),
			ctx:      cancelled,
			request:  &Request{ImagePath: "disk.img"},
			wantCode: app.ErrCodeCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newTestContext()
			ctx.Context = tt.ctx

			resp, err := Handle(ctx, tt.fs, tt.request)
			require.Error(t, err)
			assert.Nil(t, resp)

			var appErr *app.CommonError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantCode, appErr.Code)

			exists, _ := afero.Exists(tt.fs, "disk.img")
			assert.False(t, exists)
		})
	}
}
