package module

// Builder assembles an in-memory module image for testing and for tools
// that package compiled modules, mirroring the layout Parse/Load expect:
// header, binary, relocations, symbols, back to back with no padding (so
// later sections are 4-byte aligned only when the binary's length is).
type Builder struct {
	version     uint32
	entryOffset uint32
	binary      []byte
	bss         uint32
	relocs      []Relocation
	symbols     []Symbol
}

// NewBuilder starts a module image whose code/data is binary and whose
// entry point is entryOffset bytes into that binary section.
func NewBuilder(binary []byte, entryOffset uint32) *Builder {
	return &Builder{
		version:     headerSize,
		entryOffset: entryOffset,
		binary:      binary,
	}
}

// WithBSS reserves size zero-initialized bytes immediately after binary.
func (b *Builder) WithBSS(size uint32) *Builder {
	b.bss = size
	return b
}

// AddSymbol appends a symbol and returns its index, for use as a
// Relocation.SymbolIdx.
func (b *Builder) AddSymbol(s Symbol) uint32 {
	b.symbols = append(b.symbols, s)
	return uint32(len(b.symbols) - 1)
}

// AddRelocation appends a relocation entry to be applied at load time.
func (b *Builder) AddRelocation(r Relocation) *Builder {
	b.relocs = append(b.relocs, r)
	return b
}

// Build serializes the accumulated module into a single byte slice whose
// header CRC32 field is filled in correctly.
func (b *Builder) Build() []byte {
	binaryOff := uint32(headerSize)
	binarySize := uint32(len(b.binary))
	relocOff := binaryOff + binarySize
	relocSize := uint32(len(b.relocs) * relocationSize)
	symOff := relocOff + relocSize
	symSize := uint32(len(b.symbols) * symbolSize)
	total := symOff + symSize

	buf := make([]byte, total)

	h := Header{
		Signature:   HeaderSignature,
		Version:     b.version,
		TotalSize:   total,
		EntryOffset: b.entryOffset,
		Binary:      Section{Offset: binaryOff, Size: binarySize},
		Relocs:      Section{Offset: relocOff, Size: relocSize},
		Symbols:     Section{Offset: symOff, Size: symSize},
		BSS:         Section{Offset: binarySize, Size: b.bss},
	}

	copy(buf[binaryOff:binaryOff+binarySize], b.binary)
	for i, r := range b.relocs {
		WriteRelocation(buf[relocOff:relocOff+relocSize], i, r)
	}
	for i, s := range b.symbols {
		WriteSymbol(buf[symOff:symOff+symSize], i, s)
	}

	copy(buf[:headerSize], h.MarshalBinary())
	h.CRC32 = CRC32(buf[:total])
	copy(buf[:headerSize], h.MarshalBinary())

	return buf
}
