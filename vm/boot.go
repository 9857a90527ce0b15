package vm

import (
	"fmt"

	"github.com/netizen-a/stackl/objfmt"
)

// headerWords is the fixed two-word prologue every assembled image
// carries ahead of its first real instruction: the hardware interrupt
// handler address at offset 0, the trap handler address at offset 4.
const headerWords = 8

func alignUp4(n uint32) uint32 {
	if rem := n % 4; rem != 0 {
		return n + (4 - rem)
	}
	return n
}

// LoadProgram installs img into memory at address 0 and resets the
// register file to the VM's fixed boot state: IP past the two header
// words, SP and FP just past the word holding the declared stack size,
// BP and IVEC at zero, FLAG cleared. LP is left untouched (it defaults
// to the top of RAM at construction and is not part of a program's boot
// state).
func (m *Machine) LoadProgram(img *objfmt.Image) error {
	return m.storeProgram(img, true, 0)
}

// LoadNested installs img at the base the running program is already
// using, without resetting SP, FP, IVEC or FLAG. It is the entry point
// for the EXEC operation offered by the INP and GEN_IO devices, which
// overlay a freshly assembled program onto a live machine rather than
// booting one from scratch.
func (m *Machine) LoadNested(img *objfmt.Image, base int32) error {
	return m.storeProgram(img, false, base)
}

// storeProgram writes img's text segment and declared stack size into
// memory at addr, and, when boot is true, additionally resets the
// register file and feature flags for a fresh run. The stack-size word
// is stored immediately after the text segment, and SP/FP are left
// pointing just past it, matching the layout every assembled image's
// boot sequence expects to find.
func (m *Machine) storeProgram(img *objfmt.Image, boot bool, addr int32) error {
	textLen := int32(len(img.Text))

	if boot {
		spAddr := alignUp4(uint32(textLen))
		if uint64(spAddr)+4+uint64(img.StackSize) > uint64(m.Mem.Size()) {
			return fmt.Errorf("vm: declared stack size %d does not fit in %d bytes of memory", img.StackSize, m.Mem.Size())
		}
		m.Sp = int32(spAddr) + 4
		m.Fp = m.Sp
		m.Ip = headerWords
		m.Bp = 0
		m.Ivec = 0
		m.Flag = Flag{}
		m.Features = img.Flags
		m.instCount = 0
	}

	if err := m.Mem.WriteBytes(uint32(addr), img.Text); err != nil {
		return err
	}
	return m.Mem.WriteWord(uint32(addr+textLen), int32(img.StackSize))
}
