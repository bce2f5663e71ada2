// File: internal/interfaces/block_device.go
package interfaces

import (
	"io"

	"github.com/deploymenttheory/go-efidisk/internal/types"
)

// SectorWriter provides methods for writing whole LBAs to an image
type SectorWriter interface {
	// WriteSectors writes data starting at the given LBA. The length of data
	// must be a multiple of SectorSize.
	WriteSectors(lba uint64, data []byte) error

	// SectorSize returns the size of a single LBA in bytes
	SectorSize() uint64
}

// SectorDevice is an image opened for writing
type SectorDevice interface {
	SectorWriter

	// Sync commits written data to storage
	Sync() error

	io.Closer
}

// GUIDSource hands out unique random GUIDs for a single image
type GUIDSource interface {
	// Next returns a GUID never returned before by this source
	Next() (types.Guid, error)
}
