package vm_test

import (
	"encoding/binary"

	"github.com/netizen-a/stackl/isa"
	"github.com/netizen-a/stackl/objfmt"
)

// wordsToBytes little-endian-encodes a program expressed as a sequence of
// 32-bit words (opcodes and their immediate operands interleaved, exactly
// as they appear in a Stackl text segment) into raw image bytes.
func wordsToBytes(words []int32) []byte {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(w))
	}
	return buf
}

// haltImage is the smallest legal program: the two-word header followed
// by a single HALT, with room for a small stack.
func haltImage() *objfmt.Image {
	return &objfmt.Image{
		Text:      wordsToBytes([]int32{-1, -1, int32(isa.HALT)}),
		StackSize: 64,
	}
}
