// Package layout converts byte sizes into LBAs and plans where the protective
// MBR, both GPT copies and the two partitions live on the image.
package layout

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-efidisk/internal/types"
)

const (
	KiB uint64 = 1024
	MiB        = 1024 * KiB

	DefaultLBASize   uint64 = 512
	DefaultESPSize          = 33 * MiB
	DefaultDataSize         = 1 * MiB
	DefaultAlignment        = 1 * MiB

	// reservedSlackLBAs covers the MBR and both GPT header/array copies.
	reservedSlackLBAs = 67
)

// ErrInvalidConfig wraps every configuration or placement problem.
var ErrInvalidConfig = errors.New("invalid layout configuration")

// Config holds the byte sizes an image is planned from. A Config is a value;
// once built it is never modified.
type Config struct {
	LBASize   uint64 `json:"lba_size" yaml:"lba_size"`
	ESPSize   uint64 `json:"esp_size" yaml:"esp_size"`
	DataSize  uint64 `json:"data_size" yaml:"data_size"`
	Alignment uint64 `json:"alignment" yaml:"alignment"`
}

// DefaultConfig returns 512-byte LBAs, a 33 MiB ESP, a 1 MiB data partition
// and 1 MiB alignment.
func DefaultConfig() Config {
	return Config{
		LBASize:   DefaultLBASize,
		ESPSize:   DefaultESPSize,
		DataSize:  DefaultDataSize,
		Alignment: DefaultAlignment,
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var err error

	if c.LBASize < types.MbrBootRecordSize || bits.OnesCount64(c.LBASize) != 1 {
		err = multierr.Append(err, fmt.Errorf("lba size %d must be a power of two of at least %d bytes", c.LBASize, types.MbrBootRecordSize))
	}
	if c.ESPSize == 0 {
		err = multierr.Append(err, errors.New("esp size must be greater than zero"))
	}
	if c.DataSize == 0 {
		err = multierr.Append(err, errors.New("data size must be greater than zero"))
	}
	if c.Alignment == 0 {
		err = multierr.Append(err, errors.New("alignment must be greater than zero"))
	} else if c.LBASize != 0 && c.Alignment%c.LBASize != 0 {
		err = multierr.Append(err, fmt.Errorf("alignment %d must be a multiple of the lba size %d", c.Alignment, c.LBASize))
	}
	if _, ok := c.imageBytes(); !ok {
		err = multierr.Append(err, errors.New("image size overflows 64 bits"))
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("lba size %d, esp %s, data %s, alignment %s",
		c.LBASize, humanize.IBytes(c.ESPSize), humanize.IBytes(c.DataSize), humanize.IBytes(c.Alignment))
}

// BytesToLBAs returns the number of LBAs needed to hold n bytes.
func (c Config) BytesToLBAs(n uint64) uint64 {
	lbas := n / c.LBASize
	if n%c.LBASize != 0 {
		lbas++
	}
	return lbas
}

// AlignmentLBAs returns the alignment unit in LBAs.
func (c Config) AlignmentLBAs() uint64 {
	return c.Alignment / c.LBASize
}

// NextAlignedLBA returns the next alignment boundary strictly after lba.
// An lba that is already aligned still advances one full unit.
func (c Config) NextAlignedLBA(lba uint64) uint64 {
	align := c.AlignmentLBAs()
	return lba - lba%align + align
}

// imageBytes returns ESP + data + two alignment units + the reserved slack.
func (c Config) imageBytes() (uint64, bool) {
	parts := []uint64{c.ESPSize, c.DataSize, c.Alignment, c.Alignment}
	hi, slack := bits.Mul64(c.LBASize, reservedSlackLBAs)
	if hi != 0 {
		return 0, false
	}

	total := slack
	for _, p := range parts {
		var carry uint64
		total, carry = bits.Add64(total, p, 0)
		if carry != 0 {
			return 0, false
		}
	}
	return total, true
}
