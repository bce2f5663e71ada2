package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-efidisk/internal/interfaces"
)

var (
	// ErrOpen is returned when the image file cannot be created or truncated.
	ErrOpen = errors.New("failed to open image file")
	// ErrShortWrite is returned when the image accepts fewer bytes than asked.
	ErrShortWrite = errors.New("short write to image")
)

// fileDevice writes whole LBAs to an afero file at LBA-derived offsets.
type fileDevice struct {
	ctx     context.Context
	file    afero.File
	lbaSize uint64
	log     logrus.FieldLogger
	written uint64
}

var _ interfaces.SectorDevice = (*fileDevice)(nil)

func newFileDevice(ctx context.Context, file afero.File, lbaSize uint64, log logrus.FieldLogger) *fileDevice {
	return &fileDevice{ctx: ctx, file: file, lbaSize: lbaSize, log: log}
}

// WriteSectors writes data at lba. A cancelled context stops the write
// before any bytes reach the file.
func (d *fileDevice) WriteSectors(lba uint64, data []byte) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	if uint64(len(data))%d.lbaSize != 0 {
		return fmt.Errorf("write of %d bytes at LBA %d is not a multiple of the %d-byte LBA", len(data), lba, d.lbaSize)
	}

	offset := int64(lba * d.lbaSize)
	n, err := d.file.WriteAt(data, offset)
	if err != nil {
		return fmt.Errorf("write at offset %d: %w", offset, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: wrote %d of %d bytes at offset %d", ErrShortWrite, n, len(data), offset)
	}

	d.written += uint64(n)
	d.log.WithFields(logrus.Fields{
		"lba":    lba,
		"offset": offset,
		"bytes":  n,
	}).Debug("wrote sectors")
	return nil
}

func (d *fileDevice) SectorSize() uint64 {
	return d.lbaSize
}

func (d *fileDevice) Sync() error {
	return d.file.Sync()
}

func (d *fileDevice) Close() error {
	return d.file.Close()
}
