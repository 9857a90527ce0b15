package vm

import "fmt"

// Fixed memory-mapped device addresses. Each region is 16 bytes wide and
// 16-byte aligned; a single load/store is never allowed to straddle the
// boundary between two different regions (or between a region and RAM).
const (
	GenIOBase   uint32 = 0x0B000000
	TimerBase   uint32 = 0x0C000000
	DiskBase    uint32 = 0x0D000000
	PioTermBase uint32 = 0x0E000000

	regionSize uint32 = 16
)

// AddrError reports an access outside of RAM and outside of every
// device region, or one that straddles a region boundary.
type AddrError struct {
	Addr uint32
	Size uint32
}

func (e *AddrError) Error() string {
	return fmt.Sprintf("memory: invalid access at %#08x (size %d)", e.Addr, e.Size)
}

// region identifies one of the four fixed device windows.
type region struct {
	base  uint32
	bytes []byte
}

// Memory is the VM's address space: a flat RAM array plus four fixed
// 16-byte memory-mapped device windows. The CPU and the devices both go
// through ReadBytes/WriteBytes (and the word/byte helpers built on them),
// which route an address inside a window to that window's array.
type Memory struct {
	ram     []byte
	GenIO   [16]byte
	Timer   [16]byte
	Disk    [16]byte
	PioTerm [16]byte
}

// NewMemory allocates size bytes of RAM. Device windows start zeroed.
func NewMemory(size int) *Memory {
	return &Memory{ram: make([]byte, size)}
}

func (m *Memory) regions() []region {
	return []region{
		{GenIOBase, m.GenIO[:]},
		{TimerBase, m.Timer[:]},
		{DiskBase, m.Disk[:]},
		{PioTermBase, m.PioTerm[:]},
	}
}

// find returns the backing slice and offset for a size-byte access
// starting at addr, whether that access lands in RAM or in a device
// region. It returns an error if the access falls outside every known
// region or straddles a boundary.
func (m *Memory) find(addr, size uint32) ([]byte, uint32, error) {
	for _, r := range m.regions() {
		if addr >= r.base && addr < r.base+regionSize {
			if addr+size > r.base+regionSize {
				return nil, 0, &AddrError{Addr: addr, Size: size}
			}
			return r.bytes, addr - r.base, nil
		}
	}
	if addr+size <= uint32(len(m.ram)) && addr+size >= addr {
		return m.ram, addr, nil
	}
	return nil, 0, &AddrError{Addr: addr, Size: size}
}

// ReadBytes reads size bytes starting at addr.
func (m *Memory) ReadBytes(addr, size uint32) ([]byte, error) {
	buf, off, err := m.find(addr, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, buf[off:off+size])
	return out, nil
}

// WriteBytes writes data starting at addr.
func (m *Memory) WriteBytes(addr uint32, data []byte) error {
	buf, off, err := m.find(addr, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(buf[off:off+uint32(len(data))], data)
	return nil
}

// ReadWord reads a little-endian 32-bit word at addr.
func (m *Memory) ReadWord(addr uint32) (int32, error) {
	b, err := m.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24), nil
}

// WriteWord writes a little-endian 32-bit word at addr.
func (m *Memory) WriteWord(addr uint32, v int32) error {
	var b [4]byte
	u := uint32(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
	return m.WriteBytes(addr, b[:])
}

// ReadByte reads a single byte at addr.
func (m *Memory) ReadByte(addr uint32) (byte, error) {
	b, err := m.ReadBytes(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteByte writes a single byte at addr.
func (m *Memory) WriteByte(addr uint32, v byte) error {
	return m.WriteBytes(addr, []byte{v})
}

// Size reports the size of RAM in bytes (excluding device windows).
func (m *Memory) Size() int { return len(m.ram) }

// LoadText copies an assembled image's text section into RAM starting
// at address 0, the VM's fixed load address.
func (m *Memory) LoadText(text []byte) error {
	return m.WriteBytes(0, text)
}
