// Package guid produces and encodes the GUIDs stored in GPT headers and
// partition entries.
package guid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-efidisk/internal/types"
)

// maxAttempts bounds how many draws are made to get a GUID not yet issued.
const maxAttempts = 8

// ErrRepeatedGUID is returned when the randomness source keeps producing
// GUIDs that were already issued by the same generator.
var ErrRepeatedGUID = errors.New("randomness source repeated a GUID")

// Generator hands out random version 4 GUIDs. A Generator never returns the
// same GUID twice. It is not safe for concurrent use.
type Generator struct {
	src    io.Reader
	issued map[types.Guid]struct{}
}

// NewGenerator returns a Generator reading from src, or from crypto/rand when
// src is nil.
func NewGenerator(src io.Reader) *Generator {
	if src == nil {
		src = rand.Reader
	}
	return &Generator{
		src:    src,
		issued: make(map[types.Guid]struct{}),
	}
}

// Next returns a GUID with the version nibble set to 0100 and the two top bits
// of ClockSeqHighRes set to 10.
func (g *Generator) Next() (types.Guid, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		u, err := uuid.NewRandomFromReader(g.src)
		if err != nil {
			return types.Guid{}, fmt.Errorf("failed to read random GUID bytes: %w", err)
		}
		id := FromUUID(u)
		if _, seen := g.issued[id]; seen {
			continue
		}
		g.issued[id] = struct{}{}
		return id, nil
	}
	return types.Guid{}, ErrRepeatedGUID
}

// FromUUID converts an RFC 4122 UUID (big-endian fields) to a Guid.
func FromUUID(u uuid.UUID) types.Guid {
	id := types.Guid{
		LowTime:         binary.BigEndian.Uint32(u[0:4]),
		MidTime:         binary.BigEndian.Uint16(u[4:6]),
		HighTimeVer:     binary.BigEndian.Uint16(u[6:8]),
		ClockSeqHighRes: u[8],
		ClockSeqLow:     u[9],
	}
	copy(id.Node[:], u[10:16])
	return id
}

// ToUUID converts a Guid back to its RFC 4122 form.
func ToUUID(id types.Guid) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], id.LowTime)
	binary.BigEndian.PutUint16(u[4:6], id.MidTime)
	binary.BigEndian.PutUint16(u[6:8], id.HighTimeVer)
	u[8] = id.ClockSeqHighRes
	u[9] = id.ClockSeqLow
	copy(u[10:16], id.Node[:])
	return u
}

// MustParse parses a canonical GUID string and panics on error. It is meant
// for well-known partition type constants.
func MustParse(s string) types.Guid {
	return FromUUID(uuid.MustParse(s))
}

// Parse parses a canonical GUID string.
func Parse(s string) (types.Guid, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return types.Guid{}, fmt.Errorf("invalid GUID %q: %w", s, err)
	}
	return FromUUID(u), nil
}

// String returns the upper-case canonical form of id.
func String(id types.Guid) string {
	return fmt.Sprintf("%08X-%04X-%04X-%02X%02X-%012X",
		id.LowTime,
		id.MidTime,
		id.HighTimeVer,
		id.ClockSeqHighRes,
		id.ClockSeqLow,
		id.Node)
}

// Encode writes the 16-byte on-disk form of id into b.
func Encode(b []byte, id types.Guid) {
	_ = b[types.GuidSize-1]
	binary.LittleEndian.PutUint32(b[0:4], id.LowTime)
	binary.LittleEndian.PutUint16(b[4:6], id.MidTime)
	binary.LittleEndian.PutUint16(b[6:8], id.HighTimeVer)
	b[8] = id.ClockSeqHighRes
	b[9] = id.ClockSeqLow
	copy(b[10:16], id.Node[:])
}

// Decode reads the 16-byte on-disk form of a Guid.
func Decode(b []byte) types.Guid {
	_ = b[types.GuidSize-1]
	id := types.Guid{
		LowTime:         binary.LittleEndian.Uint32(b[0:4]),
		MidTime:         binary.LittleEndian.Uint16(b[4:6]),
		HighTimeVer:     binary.LittleEndian.Uint16(b[6:8]),
		ClockSeqHighRes: b[8],
		ClockSeqLow:     b[9],
	}
	copy(id.Node[:], b[10:16])
	return id
}

// IsRandom reports whether id carries the version 4 nibble and the RFC 4122
// variant bits.
func IsRandom(id types.Guid) bool {
	return id.HighTimeVer>>12 == 0x4 && id.ClockSeqHighRes>>6 == 0x2
}
