package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-efidisk/internal/config"
	"github.com/deploymenttheory/go-efidisk/internal/image"
	"github.com/deploymenttheory/go-efidisk/internal/layout"
)

// LayoutOptions represents the size selection shared across commands.
// Values are human sizes such as "33MiB"; empty values take the defaults.
type LayoutOptions struct {
	LBASize   string
	ESPSize   string
	DataSize  string
	Alignment string
}

// FromSettings copies the size settings resolved by the config loader.
func FromSettings(s *config.Settings) LayoutOptions {
	return LayoutOptions{
		LBASize:   s.LBASize,
		ESPSize:   s.ESPSize,
		DataSize:  s.DataSize,
		Alignment: s.Alignment,
	}
}

// Config parses and validates the options. Unparsable sizes are reported as
// ErrCodeInvalidInput, sizes that cannot form a layout as ErrCodeInvalidLayout.
func (o *LayoutOptions) Config() (layout.Config, error) {
	defaults := layout.DefaultConfig()
	settings := config.Settings{
		LBASize:   orDefault(o.LBASize, defaults.LBASize),
		ESPSize:   orDefault(o.ESPSize, defaults.ESPSize),
		DataSize:  orDefault(o.DataSize, defaults.DataSize),
		Alignment: orDefault(o.Alignment, defaults.Alignment),
	}

	cfg, err := settings.Layout()
	if err != nil {
		return layout.Config{}, NewError(ErrCodeInvalidInput, "invalid size", err)
	}
	if err := cfg.Validate(); err != nil {
		return layout.Config{}, NewError(ErrCodeInvalidLayout, "invalid layout", err)
	}
	return cfg, nil
}

func orDefault(value string, def uint64) string {
	if value == "" {
		return fmt.Sprint(def)
	}
	return value
}

// PartitionSummary describes one planned or written partition
type PartitionSummary struct {
	Name      string `json:"name" yaml:"name"`
	TypeGUID  string `json:"type_guid" yaml:"type_guid"`
	GUID      string `json:"guid,omitempty" yaml:"guid,omitempty"`
	StartLBA  uint64 `json:"start_lba" yaml:"start_lba"`
	EndLBA    uint64 `json:"end_lba" yaml:"end_lba"`
	SizeLBAs  uint64 `json:"size_lbas" yaml:"size_lbas"`
	SizeBytes uint64 `json:"size_bytes" yaml:"size_bytes"`
}

// NewPartitionSummary builds a summary from a planned extent
func NewPartitionSummary(name, typeGUID string, e layout.Extent, lbaSize uint64) PartitionSummary {
	return PartitionSummary{
		Name:      name,
		TypeGUID:  typeGUID,
		StartLBA:  e.StartLBA,
		EndLBA:    e.EndLBA,
		SizeLBAs:  e.SizeLBAs,
		SizeBytes: e.SizeLBAs * lbaSize,
	}
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInvalidLayout = "INVALID_LAYOUT"
	ErrCodeFileOpen      = "FILE_OPEN"
	ErrCodeWriteFailed   = "WRITE_FAILED"
	ErrCodeCancelled     = "CANCELLED"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Classify wraps an error from the image layer in a CommonError with the
// matching code. CommonErrors pass through unchanged.
func Classify(message string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *CommonError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, layout.ErrInvalidConfig):
		return NewError(ErrCodeInvalidLayout, message, err)
	case errors.Is(err, image.ErrOpen):
		return NewError(ErrCodeFileOpen, message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrCodeCancelled, message, err)
	default:
		return NewError(ErrCodeWriteFailed, message, err)
	}
}
