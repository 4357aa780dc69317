// Package image parses the binary bytecode image the interpreter
// loads: a small fixed header, a public-symbols table the core
// interpreter does not consume but must skip, a string table, and the
// code segment. Loading is the one place in the module that deals
// with raw host files.
package image

import (
	"encoding/binary"
	"fmt"
	"os"
)

const headerSize = 12 // stringtab_size, global_area_size, public_symbols_num

// Symbol is one entry of the public table: a name offset into the
// string table and the code offset it resolves to. The core
// interpreter never consumes this table (see spec section 6) but a
// loader that wants to support named entry points keeps it around.
type Symbol struct {
	NameOffset int32
	CodeOffset int32
}

// Image is the parsed, immutable view of a loaded bytecode file. It
// satisfies vm.Image.
type Image struct {
	globalAreaSize int
	publics        []Symbol
	strings        []byte
	code           []byte
}

// Load reads path and parses it per the header layout in spec
// section 6. Every failure here is a loader-category fatal error -
// missing file, truncated header, or a size field whose skip walks
// past the end of the file.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	return Parse(data)
}

// Parse builds an Image from an in-memory byte slice, split out from
// Load so tests can exercise the header logic without touching disk.
func Parse(data []byte) (*Image, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("image: truncated header (%d bytes)", len(data))
	}

	stringtabSize := int(int32(binary.LittleEndian.Uint32(data[0:4])))
	globalAreaSize := int(int32(binary.LittleEndian.Uint32(data[4:8])))
	publicCount := int(int32(binary.LittleEndian.Uint32(data[8:12])))

	if stringtabSize < 0 || globalAreaSize < 0 || publicCount < 0 {
		return nil, fmt.Errorf("image: negative header field")
	}

	publicsBytes := 8 * publicCount
	pos := headerSize
	if pos+publicsBytes > len(data) {
		return nil, fmt.Errorf("image: public table (%d bytes) runs past end of file", publicsBytes)
	}

	publics := make([]Symbol, publicCount)
	for i := 0; i < publicCount; i++ {
		off := pos + i*8
		publics[i] = Symbol{
			NameOffset: int32(binary.LittleEndian.Uint32(data[off : off+4])),
			CodeOffset: int32(binary.LittleEndian.Uint32(data[off+4 : off+8])),
		}
	}
	pos += publicsBytes

	if pos+stringtabSize > len(data) {
		return nil, fmt.Errorf("image: string table (%d bytes) runs past end of file", stringtabSize)
	}
	strTab := data[pos : pos+stringtabSize]
	pos += stringtabSize

	code := data[pos:]

	return &Image{
		globalAreaSize: globalAreaSize,
		publics:        publics,
		strings:        strTab,
		code:           code,
	}, nil
}

func (img *Image) Code() []byte { return img.code }

func (img *Image) GlobalAreaSize() int { return img.globalAreaSize }

// StringAt returns the NUL-terminated string at byte offset off in
// the string table, not including the terminator. An offset that
// walks off the table returns an empty slice rather than panicking;
// the interpreter treats a resulting empty tag name/string as whatever
// the runtime primitive does with it.
func (img *Image) StringAt(off int32) []byte {
	if off < 0 || int(off) >= len(img.strings) {
		return nil
	}
	rest := img.strings[off:]
	for i, b := range rest {
		if b == 0 {
			return rest[:i]
		}
	}
	return rest
}

// Publics exposes the public-symbols table for tooling that wants
// named entry points; the core interpreter always starts at offset 0
// and never consults it.
func (img *Image) Publics() []Symbol { return img.publics }
