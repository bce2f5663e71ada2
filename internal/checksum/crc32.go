// Package checksum implements the table-driven CRC32 used by GPT headers and
// partition entry arrays.
package checksum

// IEEEPolynomial is the reversed IEEE 802.3 polynomial.
const IEEEPolynomial uint32 = 0xEDB88320

// Table is a 256-entry CRC32 lookup table.
type Table [256]uint32

// ieeeTable is built once when the package is initialized.
var ieeeTable = MakeTable(IEEEPolynomial)

// MakeTable builds the lookup table for a reversed polynomial.
func MakeTable(poly uint32) *Table {
	t := new(Table)
	for n := 0; n < 256; n++ {
		c := uint32(n)
		for k := 0; k < 8; k++ {
			if c&1 == 1 {
				c = poly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		t[n] = c
	}
	return t
}

// IEEETable returns the shared IEEE table.
func IEEETable() *Table {
	return ieeeTable
}

// Update folds p into a running checksum. Pass 0 to start a new checksum.
func (t *Table) Update(crc uint32, p []byte) uint32 {
	c := ^crc
	for _, b := range p {
		c = t[byte(c)^b] ^ (c >> 8)
	}
	return ^c
}

// Checksum returns the CRC32 of p.
func (t *Table) Checksum(p []byte) uint32 {
	return t.Update(0, p)
}

// ChecksumIEEE returns the IEEE CRC32 of p.
func ChecksumIEEE(p []byte) uint32 {
	return ieeeTable.Checksum(p)
}
