// Package objfmt implements the codec for the Stackl binary object
// format: the `sl\0\0` container the assembler emits and the VM loads.
package objfmt

import (
	"encoding/binary"
	"fmt"
)

// Feature flag bits, as written into the header's Flags word.
const (
	FeaturePioTerm uint32 = 1 << iota
	FeatureDMATerm
	FeatureDisk
	FeatureINP
	FeatureGenIO
)

// DefaultStackSize is the stack size (in bytes) assumed when a legacy V1
// image does not carry one explicitly.
const DefaultStackSize int32 = 1000

// magicV2 is the four-byte magic for the current object format version.
var magicV2 = [4]byte{'s', 'l', 0, 0}

// magicV1 is the four-byte magic for the legacy object format version
// that V2 superseded; Decode falls back to it when magicV2 doesn't match.
var magicV1 = [4]byte{'s', 'l', 0, 1}

// headerSize is the byte length of everything in a V2 image before Text.
const headerSize = 4 + 16 + 4 + 4

// Version is the four-component version quadruplet carried in the
// header.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
	Build uint32
}

// Image is the decoded, in-memory representation of a Stackl object
// file. It is always in V2 shape internally; a decoded V1 file is
// upconverted into one on load.
type Image struct {
	Version    Version
	Flags      uint32
	StackSize  int32
	Text       []byte
}

// InvalidVersionError is returned when a decoded image's version major
// component does not belong to any family this codec understands.
type InvalidVersionError struct {
	Expected uint32
	Found    uint32
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("objfmt: invalid version: expected major %d, found %d", e.Expected, e.Found)
}

// Sentinel decode errors.
var (
	ErrInvalidMagic    = fmt.Errorf("objfmt: invalid magic")
	ErrTruncatedHeader = fmt.Errorf("objfmt: truncated header")
)

// Decode parses a Stackl object image. It first attempts the V2 layout;
// on a magic mismatch it retries as V1 and, on success, upconverts the
// result to V2 shape by supplying default flags and stack size.
func Decode(data []byte) (*Image, error) {
	img, err := decodeV2(data)
	if err == nil {
		return img, nil
	}
	if err != ErrInvalidMagic {
		return nil, err
	}
	return decodeV1(data)
}

func decodeV2(data []byte) (*Image, error) {
	if len(data) < len(magicV2) {
		return nil, ErrTruncatedHeader
	}
	if !hasMagic(data, magicV2) {
		return nil, ErrInvalidMagic
	}
	if len(data) < headerSize {
		return nil, ErrTruncatedHeader
	}

	ver := Version{
		Major: binary.LittleEndian.Uint32(data[4:8]),
		Minor: binary.LittleEndian.Uint32(data[8:12]),
		Patch: binary.LittleEndian.Uint32(data[12:16]),
		Build: binary.LittleEndian.Uint32(data[16:20]),
	}
	if ver.Major != 1 {
		return nil, &InvalidVersionError{Expected: 1, Found: ver.Major}
	}

	flags := binary.LittleEndian.Uint32(data[20:24])
	stackSize := int32(binary.LittleEndian.Uint32(data[24:28]))
	text := make([]byte, len(data)-headerSize)
	copy(text, data[headerSize:])

	return &Image{Version: ver, Flags: flags, StackSize: stackSize, Text: text}, nil
}

// v1HeaderSize is the byte length of a legacy image's fixed header
// (magic + version), which carries neither a flags word nor a stack
// size — both are supplied as defaults during upconversion.
const v1HeaderSize = 4 + 16

func decodeV1(data []byte) (*Image, error) {
	if len(data) < v1HeaderSize {
		return nil, ErrTruncatedHeader
	}
	if !hasMagic(data, magicV1) {
		return nil, ErrInvalidMagic
	}

	ver := Version{
		Major: binary.LittleEndian.Uint32(data[4:8]),
		Minor: binary.LittleEndian.Uint32(data[8:12]),
		Patch: binary.LittleEndian.Uint32(data[12:16]),
		Build: binary.LittleEndian.Uint32(data[16:20]),
	}

	text := make([]byte, len(data)-v1HeaderSize)
	copy(text, data[v1HeaderSize:])

	return &Image{
		Version:   ver,
		Flags:     0,
		StackSize: DefaultStackSize,
		Text:      text,
	}, nil
}

func hasMagic(data []byte, magic [4]byte) bool {
	return data[0] == magic[0] && data[1] == magic[1] && data[2] == magic[2] && data[3] == magic[3]
}

// Encode writes img in V2 wire format: magic ‖ version ‖ flags ‖
// stack_size ‖ text.
func Encode(img *Image) []byte {
	buf := make([]byte, headerSize+len(img.Text))
	copy(buf[0:4], magicV2[:])
	binary.LittleEndian.PutUint32(buf[4:8], img.Version.Major)
	binary.LittleEndian.PutUint32(buf[8:12], img.Version.Minor)
	binary.LittleEndian.PutUint32(buf[12:16], img.Version.Patch)
	binary.LittleEndian.PutUint32(buf[16:20], img.Version.Build)
	binary.LittleEndian.PutUint32(buf[20:24], img.Flags)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(img.StackSize))
	copy(buf[headerSize:], img.Text)
	return buf
}

// HasFeature reports whether flags enables the named feature bit.
func HasFeature(flags uint32, feature uint32) bool {
	return flags&feature != 0
}
