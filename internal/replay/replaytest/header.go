package replaytest

// Skip bytes of the versioned encoding the header uses.
const (
	skipBlob   = 2
	skipStruct = 5
	skipVInt   = 9
)

type field struct {
	tag int64
	enc []byte
}

func vint(v int64) []byte {
	var u uint64
	var sign byte
	if v < 0 {
		u, sign = uint64(-v), 1
	} else {
		u = uint64(v)
	}
	var out []byte
	b := byte(u&0x3f)<<1 | sign
	u >>= 6
	for u != 0 {
		out = append(out, b|0x80)
		b = byte(u & 0x7f)
		u >>= 7
	}
	return append(out, b)
}

func intValue(v int64) []byte {
	return append([]byte{skipVInt}, vint(v)...)
}

func blobValue(s string) []byte {
	out := append([]byte{skipBlob}, vint(int64(len(s)))...)
	return append(out, s...)
}

func structValue(fields ...field) []byte {
	out := append([]byte{skipStruct}, vint(int64(len(fields)))...)
	for _, f := range fields {
		out = append(out, vint(f.tag)...)
		out = append(out, f.enc...)
	}
	return out
}

// encodeHeader writes the replay header in the versioned encoding every
// build shares: signature, version and game length.
func (b *Builder) encodeHeader() []byte {
	build := int64(b.Schema.BaseBuild)
	return structValue(
		field{0, blobValue("StarCraft II replay\x1b11")},
		field{1, structValue(
			field{0, intValue(1)},
			field{1, intValue(int64(b.Major))},
			field{2, intValue(int64(b.Minor))},
			field{3, intValue(int64(b.Revision))},
			field{4, intValue(build)},
			field{5, intValue(build)},
		)},
		field{3, intValue(b.Loops)},
	)
}
