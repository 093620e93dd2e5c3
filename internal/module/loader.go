package module

import (
	"encoding/binary"
	"fmt"
)

// Image is a validated module ready to be loaded: the parsed header plus
// a view of the raw bytes it was parsed from.
type Image struct {
	Header Header
	raw    []byte
}

// Parse validates a module image's signature, ABI version and CRC32,
// returning an Image on success. It does not copy raw; callers must keep
// it alive for the lifetime of the returned Image.
func Parse(raw []byte) (*Image, error) {
	h, ok := UnmarshalHeader(raw)
	if !ok {
		return nil, fmt.Errorf("module: image shorter than header (%d bytes)", len(raw))
	}
	if h.Signature != HeaderSignature {
		return nil, fmt.Errorf("module: bad signature %#x", h.Signature)
	}
	if h.Version&0xFFFF != headerSize {
		return nil, fmt.Errorf("module: ABI mismatch: version low word %#x != header size %d", h.Version&0xFFFF, headerSize)
	}
	if h.Binary.Size == 0 {
		return nil, fmt.Errorf("module: empty binary section")
	}
	if int(h.TotalSize) > len(raw) {
		return nil, fmt.Errorf("module: declared total size %d exceeds image length %d", h.TotalSize, len(raw))
	}
	image := raw[:h.TotalSize]
	want := h.CRC32
	got := CRC32(image)
	if want != got {
		return nil, fmt.Errorf("module: CRC mismatch: header says %#x, computed %#x", want, got)
	}
	return &Image{Header: h, raw: image}, nil
}

// Loaded describes a module after Load has copied it into memory and
// patched its relocations.
type Loaded struct {
	LoadAddr uint32 // the base address destination was placed at
	header   Header
}

// EntryPoint returns the address execution should jump to, per spec.md
// §4.4: "clearing bit 0 in the address, then setting it for Thumb
// interworking".
func (l *Loaded) EntryPoint() uint32 {
	return (l.LoadAddr + (l.header.EntryOffset &^ 1)) | 1
}

// Load copies the module's binary section into destination (which must
// hold at least Binary.Size bytes and, when the module has BSS, reach
// BSS.Offset+BSS.Size), zeroes its BSS span, then applies every
// relocation, treating destination's first byte as load_addr. Grounded
// on aikartos/inc/aikartos/modules/loader.cpp and spec.md §4.4's 5-step
// process.
func Load(img *Image, destination []byte, loadAddr uint32) (*Loaded, error) {
	h := img.Header

	// Step 2: copy binary.size bytes from base+binary.offset to destination.
	src := img.raw[h.Binary.Offset : h.Binary.Offset+h.Binary.Size]
	if len(destination) < len(src) {
		return nil, fmt.Errorf("module: destination too small: need %d, have %d", len(src), len(destination))
	}
	copy(destination, src)

	// Step 3: zero bss.size bytes at destination+bss.offset.
	if h.BSS.Size > 0 {
		bssEnd := int(h.BSS.Offset) + int(h.BSS.Size)
		if bssEnd > len(destination) {
			return nil, fmt.Errorf("module: BSS span exceeds destination")
		}
		for i := int(h.BSS.Offset); i < bssEnd; i++ {
			destination[i] = 0
		}
	}

	loaded := &Loaded{LoadAddr: loadAddr, header: h}

	// Step 5: apply every relocation.
	symbols := ReadSymbols(img.raw[h.Symbols.Offset:h.Symbols.Offset+h.Symbols.Size], int(h.Symbols.Size)/symbolSize)
	relocs := ReadRelocations(img.raw[h.Relocs.Offset:h.Relocs.Offset+h.Relocs.Size], int(h.Relocs.Size)/relocationSize)
	for _, r := range relocs {
		if err := applyRelocation(destination, loadAddr, symbols, r); err != nil {
			return nil, err
		}
	}

	return loaded, nil
}

func applyRelocation(destination []byte, loadAddr uint32, symbols []Symbol, r Relocation) error {
	if int(r.SymbolIdx) >= len(symbols) {
		return fmt.Errorf("module: relocation references out-of-range symbol %d", r.SymbolIdx)
	}
	sym := symbols[r.SymbolIdx]
	symbolValue := loadAddr + sym.Value
	patchOff := r.Offset
	if int(patchOff) >= len(destination) {
		return fmt.Errorf("module: relocation offset %d outside destination", patchOff)
	}

	switch r.Type {
	case RelocNone:
		return nil
	case RelocABS32:
		patchABS32(destination, patchOff, symbolValue, sym.Type == SymbolSection)
	case RelocThumbCall:
		patchThumbCall(destination, patchOff, loadAddr, symbolValue)
	case RelocThumbMovwAbs:
		patchThumbMovwMovt(destination, patchOff, symbolValue&0xFFFF)
	case RelocThumbMovtAbs:
		patchThumbMovwMovt(destination, patchOff, symbolValue>>16)
	default:
		return fmt.Errorf("module: unsupported relocation type %d", r.Type)
	}
	return nil
}

func patchABS32(dst []byte, off uint32, symbolValue uint32, sectionRelative bool) {
	if sectionRelative {
		old := binary.LittleEndian.Uint32(dst[off : off+4])
		binary.LittleEndian.PutUint32(dst[off:off+4], old+symbolValue)
		return
	}
	binary.LittleEndian.PutUint32(dst[off:off+4], symbolValue)
}

// patchThumbCall rewrites the BL/BLX 32-bit Thumb-2 instruction pair at
// off so it branches to symbolValue, per spec.md §4.4's R_ARM_THM_CALL
// row (a direct translation of the original's relocation_thumb_call).
func patchThumbCall(dst []byte, off, loadAddr, symbolValue uint32) {
	patchAddr := loadAddr + off
	delta := int32(symbolValue) - int32(patchAddr+4)
	delta &^= 1 // clear the low bit

	s := uint32(0)
	if delta < 0 {
		s = 1
	}
	v := uint32(delta)
	imm10 := (v >> 12) & 0x3FF
	imm11 := (v >> 1) & 0x7FF
	j1 := (v >> 23) & 1
	j2 := (v >> 22) & 1

	i1 := (^(j1 ^ s)) & 1
	i2 := (^(j2 ^ s)) & 1

	hw0 := uint16(0xF000 | (s << 10) | imm10)
	hw1 := uint16(0xF800 | (i1 << 13) | (i2 << 11) | imm11)

	binary.LittleEndian.PutUint16(dst[off:off+2], hw0)
	binary.LittleEndian.PutUint16(dst[off+2:off+4], hw1)
}

// patchThumbMovwMovt rewrites a Thumb-2 MOVW/MOVT instruction pair at off
// to load the low (MOVW) or high (MOVT) 16 bits of v, per spec.md §4.4.
func patchThumbMovwMovt(dst []byte, off uint32, v uint32) {
	hw0 := binary.LittleEndian.Uint16(dst[off : off+2])
	hw1 := binary.LittleEndian.Uint16(dst[off+2 : off+4])

	imm4 := uint16((v >> 12) & 0xF)
	i := uint16((v >> 11) & 1)
	imm3 := uint16((v >> 8) & 0x7)
	imm8 := uint16(v & 0xFF)

	hw0 = (hw0 &^ 0x040F) | imm4 | (i << 10)
	hw1 = (hw1 &^ 0x70FF) | (imm3 << 12) | imm8

	binary.LittleEndian.PutUint16(dst[off:off+2], hw0)
	binary.LittleEndian.PutUint16(dst[off+2:off+4], hw1)
}
