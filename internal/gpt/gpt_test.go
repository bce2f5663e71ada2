package gpt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-efidisk/internal/guid"
	"github.com/deploymenttheory/go-efidisk/internal/layout"
	"github.com/deploymenttheory/go-efidisk/internal/types"
)

// memDisk is an in-memory image that records the order of writes.
type memDisk struct {
	lbaSize uint64
	data    []byte
	order   []uint64
	failAt  uint64
	failErr error
}

func newMemDisk(plan *layout.Plan) *memDisk {
	return &memDisk{lbaSize: plan.Config.LBASize, data: make([]byte, plan.ImageSize())}
}

func (d *memDisk) WriteSectors(lba uint64, p []byte) error {
	if d.failErr != nil && lba == d.failAt {
		return d.failErr
	}
	if uint64(len(p))%d.lbaSize != 0 {
		return errors.New("write is not a whole number of sectors")
	}
	d.order = append(d.order, lba)
	copy(d.data[lba*d.lbaSize:], p)
	return nil
}

func (d *memDisk) SectorSize() uint64 { return d.lbaSize }

func (d *memDisk) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(d.data).ReadAt(p, off)
}

// sequentialSource returns deterministic random bytes.
func sequentialSource() *guid.Generator {
	seed := make([]byte, 4096)
	for i := range seed {
		seed[i] = byte(i*7 + 3)
	}
	return guid.NewGenerator(bytes.NewReader(seed))
}

// failingSource fails after n GUIDs.
type failingSource struct {
	n   int
	gen *guid.Generator
}

func (f *failingSource) Next() (types.Guid, error) {
	if f.n == 0 {
		return types.Guid{}, errors.New("entropy exhausted")
	}
	f.n--
	return f.gen.Next()
}

func newTestTable(t *testing.T, cfg layout.Config) *Table {
	t.Helper()
	plan, err := layout.NewPlan(cfg)
	require.NoError(t, err)
	table, err := NewTable(plan, sequentialSource())
	require.NoError(t, err)
	return table
}

func TestNewTableEntries(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())

	esp := table.Entries[0]
	assert.Equal(t, guid.MustParse(types.EfiSystemPartitionGUID), esp.PartTypeGUID)
	assert.Equal(t, uint64(2048), esp.StartLBA)
	assert.Equal(t, uint64(69631), esp.EndLBA)
	assert.Zero(t, esp.Attrib)
	assert.Equal(t, "EFI SYSTEM", DecodeName(esp.PartName))

	data := table.Entries[1]
	assert.Equal(t, guid.MustParse(types.BasicDataPartitionGUID), data.PartTypeGUID)
	assert.Equal(t, uint64(71680), data.StartLBA)
	assert.Equal(t, uint64(73727), data.EndLBA)
	assert.Equal(t, "BASIC DATA", DecodeName(data.PartName))

	for i := 2; i < types.GptNumPartEntries; i++ {
		require.Truef(t, IsUnused(table.Entries[i]), "entry %d should be empty", i)
	}

	ids := []types.Guid{table.DiskGUID, esp.UniquePartGUID, data.UniquePartGUID}
	for i, id := range ids {
		assert.True(t, guid.IsRandom(id))
		for j := i + 1; j < len(ids); j++ {
			assert.NotEqual(t, id, ids[j])
		}
	}
}

func TestNewTablePropagatesGUIDErrors(t *testing.T) {
	plan, err := layout.NewPlan(layout.DefaultConfig())
	require.NoError(t, err)

	for n := 0; n < 3; n++ {
		_, err := NewTable(plan, &failingSource{n: n, gen: sequentialSource()})
		assert.Errorf(t, err, "failing after %d GUIDs", n)
	}
}

func TestPrimaryHeader(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())
	h := table.Primary()

	assert.Equal(t, types.GptSignature, h.Signature)
	assert.Equal(t, uint32(0x00010000), h.Revision)
	assert.Equal(t, uint32(92), h.HeaderSize)
	assert.Zero(t, h.Reserved1)
	assert.Equal(t, uint64(1), h.SelfLBA)
	assert.Equal(t, uint64(73794), h.AltLBA)
	assert.Equal(t, uint64(34), h.FirstUseLBA)
	assert.Equal(t, uint64(73761), h.LastUseLBA)
	assert.Equal(t, table.DiskGUID, h.DiskGUID)
	assert.Equal(t, uint64(2), h.PartEntryArrLBA)
	assert.Equal(t, uint32(128), h.NumPartEntries)
	assert.Equal(t, uint32(128), h.SizePartEntry)
	assert.Equal(t, crc32.ChecksumIEEE(table.EntryArray()), h.PartEntryArrCRC32)
}

func TestBackupMirrorsPrimary(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())
	primary := table.Primary()
	backup := table.Backup()

	assert.Equal(t, primary.AltLBA, backup.SelfLBA)
	assert.Equal(t, primary.SelfLBA, backup.AltLBA)
	assert.Equal(t, backup.SelfLBA-table.Plan.EntryArrayLBAs, backup.PartEntryArrLBA)
	assert.Equal(t, uint64(73762), backup.PartEntryArrLBA)
	assert.Equal(t, primary.PartEntryArrCRC32, backup.PartEntryArrCRC32)
	assert.Equal(t, primary.DiskGUID, backup.DiskGUID)
	assert.Equal(t, primary.FirstUseLBA, backup.FirstUseLBA)
	assert.Equal(t, primary.LastUseLBA, backup.LastUseLBA)
	assert.NotEqual(t, primary.HeaderCRC32, backup.HeaderCRC32)
}

func TestHeaderCRCCoversZeroedField(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())

	for _, h := range []types.GptHeader{table.Primary(), table.Backup()} {
		b := EncodeHeader(h)
		require.Len(t, b, 92)
		assert.Equal(t, h.HeaderCRC32, binary.LittleEndian.Uint32(b[16:20]))

		binary.LittleEndian.PutUint32(b[16:20], 0)
		assert.Equal(t, h.HeaderCRC32, crc32.ChecksumIEEE(b))
	}
}

func TestSealIgnoresStaleCRC(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())
	h := table.Primary()

	stale := h
	stale.HeaderCRC32 = 0xDEADBEEF
	assert.Equal(t, h, Seal(stale))
}

func TestHeaderLayoutOffsets(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())
	b := EncodeHeader(table.Primary())

	assert.Equal(t, []byte("EFI PART"), b[0:8])
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x00}, b[8:12])
	assert.Equal(t, uint32(92), binary.LittleEndian.Uint32(b[12:16]))
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(b[24:32]))
	assert.Equal(t, uint64(73794), binary.LittleEndian.Uint64(b[32:40]))
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(b[72:80]))
	assert.Equal(t, table.DiskGUID, guid.Decode(b[56:72]))
}

func TestEntryArrayEncoding(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())
	b := table.EntryArray()
	require.Len(t, b, 16384)

	// ESP type GUID in mixed-endian order
	assert.Equal(t, []byte{0x28, 0x73, 0x2A, 0xC1, 0x1F, 0xF8, 0xD2, 0x11}, b[0:8])
	assert.Equal(t, uint64(2048), binary.LittleEndian.Uint64(b[32:40]))
	assert.Equal(t, uint64(69631), binary.LittleEndian.Uint64(b[40:48]))
	assert.Equal(t, []byte{'E', 0, 'F', 0, 'I', 0, ' ', 0}, b[56:64])

	second := b[128:256]
	assert.Equal(t, []byte{0xA2, 0xA0, 0xD0, 0xEB}, second[0:4])
	assert.Equal(t, uint64(71680), binary.LittleEndian.Uint64(second[32:40]))

	assert.Equal(t, make([]byte, 16384-256), b[256:])

	for i := 0; i < 2; i++ {
		off := i * 128
		assert.Equal(t, table.Entries[i], DecodeEntry(b[off:off+128]))
	}
}

func TestWriteOrder(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())
	disk := newMemDisk(table.Plan)

	require.NoError(t, Write(disk, table))
	assert.Equal(t, []uint64{1, 2, 73762, 73794}, disk.order)
}

func TestWriteReadBack(t *testing.T) {
	for _, lbaSize := range []uint64{512, 4096, 32768} {
		cfg := layout.DefaultConfig()
		cfg.LBASize = lbaSize
		table := newTestTable(t, cfg)
		disk := newMemDisk(table.Plan)
		require.NoError(t, Write(disk, table))

		primary, err := ReadHeader(disk, lbaSize, table.Plan.PrimaryHeaderLBA)
		require.NoError(t, err)
		assert.Equal(t, table.Primary(), primary)

		backup, err := ReadHeader(disk, lbaSize, primary.AltLBA)
		require.NoError(t, err)
		assert.Equal(t, table.Backup(), backup)

		entries, err := ReadEntries(disk, lbaSize, backup)
		require.NoError(t, err)
		used := Used(entries)
		require.Len(t, used, 2)
		assert.Equal(t, table.Entries[0], used[0])
		assert.Equal(t, table.Entries[1], used[1])

		// Header LBAs are zero after the significant bytes
		hdr := disk.data[lbaSize : 2*lbaSize]
		assert.Equal(t, make([]byte, lbaSize-92), hdr[92:])
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())
	disk := newMemDisk(table.Plan)
	require.NoError(t, Write(disk, table))

	// Flip a byte in the primary header's disk GUID
	disk.data[512+60] ^= 0xFF
	_, err := ReadHeader(disk, 512, 1)
	assert.True(t, errors.Is(err, ErrHeaderCRC))

	// Flip a byte in the backup array's first entry
	disk.data[73762*512+40] ^= 0x01
	backup, err := ReadHeader(disk, 512, 73794)
	require.NoError(t, err)
	_, err = ReadEntries(disk, 512, backup)
	assert.True(t, errors.Is(err, ErrEntryArrayCRC))

	// Wipe the signature
	copy(disk.data[73794*512:], "NOT GPT!")
	_, err = ReadHeader(disk, 512, 73794)
	assert.True(t, errors.Is(err, ErrBadSignature))
}

func TestWritePropagatesErrors(t *testing.T) {
	table := newTestTable(t, layout.DefaultConfig())
	disk := newMemDisk(table.Plan)
	disk.failAt = 73762
	disk.failErr = errors.New("no space left on device")

	err := Write(disk, table)
	require.Error(t, err)
	assert.ErrorIs(t, err, disk.failErr)
	assert.Contains(t, err.Error(), "backup partition entry array")
	assert.Equal(t, []uint64{1, 2}, disk.order)
}

func TestEncodeName(t *testing.T) {
	name := EncodeName("EFI SYSTEM")
	assert.Equal(t, uint16('E'), name[0])
	assert.Equal(t, uint16('M'), name[9])
	assert.Zero(t, name[10])

	long := EncodeName("abcdefghijklmnopqrstuvwxyz0123456789ABCDEF")
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz0123456789", DecodeName(long))

	assert.Equal(t, "Données", DecodeName(EncodeName("Données")))
}
