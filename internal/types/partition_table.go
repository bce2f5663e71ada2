package types

// Partition Table Structures (UEFI Specification 2.10, Chapter 5)
// A GPT disk starts with a protective MBR in LBA 0, followed by the primary
// GPT header in LBA 1 and the partition entry array. A backup entry array and
// backup header occupy the last LBAs of the disk.

// Guid represents a 128-bit EFI GUID.
// The first three fields are stored little-endian on disk, the remaining
// eight bytes are stored in the order given.
// Reference: UEFI 2.10, Appendix A
type Guid struct {
	// The low field of the timestamp. (offset 0)
	LowTime uint32
	// The middle field of the timestamp. (offset 4)
	MidTime uint16
	// The high field of the timestamp multiplexed with the version number. (offset 6)
	HighTimeVer uint16
	// The high field of the clock sequence multiplexed with the variant. (offset 8)
	ClockSeqHighRes uint8
	// The low field of the clock sequence. (offset 9)
	ClockSeqLow uint8
	// The spatially unique node identifier. (offset 10)
	Node [6]byte
}

// GuidSize is the on-disk size of a Guid in bytes.
const GuidSize = 16

// MbrPartitionRecord represents one of the four legacy MBR partition records.
// Reference: UEFI 2.10, Table 5.2
type MbrPartitionRecord struct {
	// 0x80 marks a legacy bootable partition; always 0 for a protective MBR. (offset 0)
	BootIndicator uint8
	// Start of partition in CHS address format. (offset 1)
	StartCHS [3]byte
	// Type of partition; 0xEE for a GPT protective partition. (offset 4)
	OSIndicator uint8
	// End of partition in CHS address format. (offset 5)
	EndCHS [3]byte
	// Starting LBA of the partition on the disk. (offset 8)
	StartingLBA uint32
	// Size of the partition in LBA units. (offset 12)
	SizeInLBA uint32
}

// MbrPartitionRecordSize is the on-disk size of an MbrPartitionRecord.
const MbrPartitionRecordSize = 16

// MbrBootRecord represents the legacy master boot record in LBA 0.
// Reference: UEFI 2.10, Table 5.3 (protective MBR)
type MbrBootRecord struct {
	// x86 boot code, unused by UEFI systems. (offset 0)
	BootStrapCode [440]byte
	// Unique disk signature; unused for a protective MBR. (offset 440)
	UniqueMbrSignature uint32
	// Unknown, must be zero. (offset 444)
	Unknown uint16
	// Four legacy partition records. (offset 446)
	Partition [4]MbrPartitionRecord
	// 0xAA55. (offset 510)
	Signature uint16
}

const (
	// MbrBootRecordSize is the on-disk size of an MbrBootRecord.
	MbrBootRecordSize = 512
	// MbrBootCodeSize is the size of the boot code area.
	MbrBootCodeSize = 440
	// MbrPartitionTableOffset is the byte offset of the first partition record.
	MbrPartitionTableOffset = 446
	// MbrSignatureOffset is the byte offset of the boot signature.
	MbrSignatureOffset = 510
	// MbrSignature is the value of the Signature field.
	MbrSignature uint16 = 0xAA55
	// MbrOSTypeGptProtective marks a partition that covers a GPT disk.
	MbrOSTypeGptProtective uint8 = 0xEE
	// MbrMaxSizeInLBA is the largest value the 32-bit SizeInLBA field can hold.
	MbrMaxSizeInLBA uint32 = 0xFFFFFFFF
)

// MbrProtectiveStartCHS is the start CHS of a protective partition (0x000200).
var MbrProtectiveStartCHS = [3]byte{0x00, 0x02, 0x00}

// MbrProtectiveEndCHS is the end CHS of a protective partition (0xFFFFFF).
var MbrProtectiveEndCHS = [3]byte{0xFF, 0xFF, 0xFF}

// GptHeader represents a GPT header. Only the first HeaderSize bytes are
// significant; the rest of the LBA is reserved and zero.
// Reference: UEFI 2.10, Table 5.5
type GptHeader struct {
	// "EFI PART". (offset 0)
	Signature [8]byte
	// Revision 1.0 is 0x00010000. (offset 8)
	Revision uint32
	// Size in bytes of the header, 92. (offset 12)
	HeaderSize uint32
	// CRC32 of the header with this field zeroed. (offset 16)
	HeaderCRC32 uint32
	// Must be zero. (offset 20)
	Reserved1 uint32
	// The LBA that contains this header. (offset 24)
	SelfLBA uint64
	// The LBA of the alternate header. (offset 32)
	AltLBA uint64
	// The first LBA usable by a partition. (offset 40)
	FirstUseLBA uint64
	// The last LBA usable by a partition. (offset 48)
	LastUseLBA uint64
	// Identifies the disk. (offset 56)
	DiskGUID Guid
	// The starting LBA of the partition entry array. (offset 72)
	PartEntryArrLBA uint64
	// Number of entries in the partition entry array. (offset 80)
	NumPartEntries uint32
	// Size in bytes of each partition entry. (offset 84)
	SizePartEntry uint32
	// CRC32 of the partition entry array. (offset 88)
	PartEntryArrCRC32 uint32
}

const (
	// GptHeaderSize is the number of significant bytes in a GPT header.
	GptHeaderSize = 92
	// GptHeaderCRCOffset is the byte offset of HeaderCRC32.
	GptHeaderCRCOffset = 16
	// GptRevision is revision 1.0.
	GptRevision uint32 = 0x00010000
	// GptPrimaryHeaderLBA is the LBA of the primary header.
	GptPrimaryHeaderLBA = 1
	// GptPrimaryEntryArrayLBA is the LBA of the primary partition entry array.
	GptPrimaryEntryArrayLBA = 2
	// GptNumPartEntries is the number of entries in the partition entry array.
	GptNumPartEntries = 128
	// GptPartEntrySize is the size of one partition entry.
	GptPartEntrySize = 128
	// GptEntryArraySize is the size of the full partition entry array (16 KiB).
	GptEntryArraySize = GptNumPartEntries * GptPartEntrySize
	// GptPartNameUnits is the number of UTF-16 code units in a partition name.
	GptPartNameUnits = 36
)

// GptSignature is the value of the Signature field.
var GptSignature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

// GptPartEntry represents a GPT partition entry.
// Reference: UEFI 2.10, Table 5.6
type GptPartEntry struct {
	// Defines the purpose and type of the partition. (offset 0)
	PartTypeGUID Guid
	// Unique for every partition entry. (offset 16)
	UniquePartGUID Guid
	// Starting LBA of the partition. (offset 32)
	StartLBA uint64
	// Ending LBA of the partition, inclusive. (offset 40)
	EndLBA uint64
	// Attribute bits. (offset 48)
	Attrib uint64
	// Null-terminated UTF-16LE name. (offset 56)
	PartName [GptPartNameUnits]uint16
}

// Well-known partition type GUIDs.
// Reference: UEFI 2.10, Table 5.7
const (
	// EfiSystemPartitionGUID is the EFI System Partition type.
	EfiSystemPartitionGUID = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"
	// BasicDataPartitionGUID is the Microsoft basic data partition type.
	BasicDataPartitionGUID = "EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"
)

// Partition names written into the entry array.
const (
	EspPartitionName  = "EFI SYSTEM"
	DataPartitionName = "BASIC DATA"
)
