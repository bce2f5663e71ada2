// Package image writes a bootable raw disk image: a protective MBR followed
// by primary and backup GPTs describing an EFI System Partition and a basic
// data partition.
package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-efidisk/internal/gpt"
	"github.com/deploymenttheory/go-efidisk/internal/guid"
	"github.com/deploymenttheory/go-efidisk/internal/interfaces"
	"github.com/deploymenttheory/go-efidisk/internal/layout"
	"github.com/deploymenttheory/go-efidisk/internal/mbr"
)

// Result describes an image that was written.
type Result struct {
	Path     string        `json:"path" yaml:"path"`
	Size     uint64        `json:"size_bytes" yaml:"size_bytes"`
	Written  uint64        `json:"written_bytes" yaml:"written_bytes"`
	Plan     *layout.Plan  `json:"plan" yaml:"plan"`
	DiskGUID string        `json:"disk_guid" yaml:"disk_guid"`
	ESPGUID  string        `json:"esp_guid" yaml:"esp_guid"`
	DataGUID string        `json:"data_guid" yaml:"data_guid"`
	Atomic   bool          `json:"atomic" yaml:"atomic"`
	Verified bool          `json:"verified" yaml:"verified"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Writer creates images on an afero filesystem.
type Writer struct {
	fs        afero.Fs
	log       logrus.FieldLogger
	newSource func() interfaces.GUIDSource
	atomic    bool
	verify    bool
	perm      os.FileMode
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger used for progress and per-write debug output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(w *Writer) { w.log = log }
}

// WithGUIDSource sets the factory for the GUID source used by each image.
func WithGUIDSource(newSource func() interfaces.GUIDSource) Option {
	return func(w *Writer) { w.newSource = newSource }
}

// WithAtomic makes Create write into a temporary file in the target
// directory and rename it over the target only after every write succeeded.
func WithAtomic(atomic bool) Option {
	return func(w *Writer) { w.atomic = atomic }
}

// WithVerify makes Create read the finished image back and check it with
// Verify before reporting success.
func WithVerify(verify bool) Option {
	return func(w *Writer) { w.verify = verify }
}

// NewWriter returns a Writer on fs.
func NewWriter(fs afero.Fs, opts ...Option) *Writer {
	w := &Writer{
		fs:        fs,
		log:       logrus.StandardLogger(),
		newSource: func() interfaces.GUIDSource { return guid.NewGenerator(nil) },
		perm:      0o644,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Create plans an image from cfg and writes it to path. The file is created
// or truncated. Structures are written in order: protective MBR, primary GPT
// header, primary entry array, backup entry array, backup GPT header.
func (w *Writer) Create(ctx context.Context, path string, cfg layout.Config) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan, err := layout.NewPlan(cfg)
	if err != nil {
		return nil, err
	}

	table, err := gpt.NewTable(plan, w.newSource())
	if err != nil {
		return nil, err
	}

	log := w.log.WithField("image", path)
	log.WithFields(logrus.Fields{
		"total_lbas": plan.TotalLBAs,
		"lba_size":   plan.Config.LBASize,
		"esp_start":  plan.ESP.StartLBA,
		"data_start": plan.Data.StartLBA,
	}).Debug("planned image layout")

	target := path
	if w.atomic {
		target, err = w.tempPath(path)
		if err != nil {
			return nil, err
		}
	}

	file, err := w.fs.OpenFile(target, os.O_RDWR|os.O_CREATE|os.O_TRUNC, w.perm)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, target, err)
	}

	dev := newFileDevice(ctx, file, plan.Config.LBASize, log)
	if err := w.write(dev, plan, table); err != nil {
		dev.Close()
		w.discard(log, target)
		return nil, err
	}
	if err := dev.Sync(); err != nil {
		dev.Close()
		w.discard(log, target)
		return nil, fmt.Errorf("failed to sync image file %s: %w", target, err)
	}
	if err := dev.Close(); err != nil {
		w.discard(log, target)
		return nil, fmt.Errorf("failed to close image file %s: %w", target, err)
	}

	if w.atomic {
		if err := ctx.Err(); err != nil {
			w.discard(log, target)
			return nil, err
		}
		// afero.TempFile creates the file 0600.
		if err := w.fs.Chmod(target, w.perm); err != nil {
			w.discard(log, target)
			return nil, fmt.Errorf("failed to set mode on %s: %w", target, err)
		}
		if err := w.fs.Rename(target, path); err != nil {
			w.discard(log, target)
			return nil, fmt.Errorf("failed to move %s into place: %w", target, err)
		}
	}

	verified := false
	if w.verify {
		report, err := Verify(ctx, w.fs, path, plan.Config.LBASize)
		if err != nil {
			return nil, fmt.Errorf("read-back verification of %s failed: %w", path, err)
		}
		if report.DiskGUID != guid.String(table.DiskGUID) {
			return nil, fmt.Errorf("read-back verification of %s failed: %w: disk GUID %s, wrote %s", path, ErrInconsistent, report.DiskGUID, guid.String(table.DiskGUID))
		}
		verified = true
		log.Debug("image read back and verified")
	}

	result := &Result{
		Path:     path,
		Size:     plan.ImageSize(),
		Written:  dev.written,
		Plan:     plan,
		DiskGUID: guid.String(table.DiskGUID),
		ESPGUID:  guid.String(table.Entries[0].UniquePartGUID),
		DataGUID: guid.String(table.Entries[1].UniquePartGUID),
		Atomic:   w.atomic,
		Verified: verified,
		Duration: time.Since(start),
	}
	log.WithFields(logrus.Fields{
		"bytes":     result.Size,
		"disk_guid": result.DiskGUID,
	}).Info("image written")
	return result, nil
}

func (w *Writer) write(dev interfaces.SectorWriter, plan *layout.Plan, table *gpt.Table) error {
	if err := mbr.Write(dev, plan); err != nil {
		return err
	}
	return gpt.Write(dev, table)
}

// tempPath reserves a temporary file next to path so the final rename stays
// on one filesystem.
func (w *Writer) tempPath(path string) (string, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := afero.TempFile(w.fs, dir, "."+base+".tmp-")
	if err != nil {
		return "", fmt.Errorf("%w: temporary image in %s: %w", ErrOpen, dir, err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary image %s: %w", name, err)
	}
	return name, nil
}

// discard removes a temporary image after a failure. In direct mode the
// partial image is left in place.
func (w *Writer) discard(log logrus.FieldLogger, target string) {
	if !w.atomic {
		log.Warn("image left incomplete")
		return
	}
	if err := w.fs.Remove(target); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warnf("failed to remove temporary image %s", target)
	}
}
