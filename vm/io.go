package vm

import "time"

// readCString reads bytes starting at offset until a NUL byte or the
// end of memory, matching OUTS's semantics: it does not go through
// StoreWord's alignment checks, since OUTS only ever runs in system
// mode where offset is already absolute.
func (m *Machine) readCString(offset int32) (string, error) {
	idx, err := addrIndex(m.relocate(offset))
	if err != nil {
		return "", err
	}
	return m.readCStringAt(idx)
}

// ReadCStringAbs reads a NUL-terminated string at an address that is
// already absolute, bypassing user-mode BP relocation entirely. Device
// goroutines use this: a device addresses memory the same way
// regardless of what mode the CPU happens to be in when the device
// goroutine runs concurrently with it.
func (m *Machine) ReadCStringAbs(addr int32) (string, error) {
	idx, err := addrIndex(addr)
	if err != nil {
		return "", err
	}
	return m.readCStringAt(idx)
}

func (m *Machine) readCStringAt(start uint32) (string, error) {
	var buf []byte
	for i := start; i < uint32(m.Mem.Size()); i++ {
		b, err := m.Mem.ReadByte(i)
		if err != nil {
			return "", &MachineCheckError{Cause: CheckIllegalAddr}
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

func (m *Machine) print(s string) {
	if m.Stdout == nil {
		return
	}
	// OUTS is byte-paced: one byte, then a ~100 microsecond pause.
	for i := 0; i < len(s); i++ {
		m.Stdout.Write([]byte{s[i]})
		time.Sleep(100 * time.Microsecond)
	}
}
