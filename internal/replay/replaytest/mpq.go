package replaytest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	archiveOffset     = 0x400
	userDataSize      = 0x200
	archiveHeaderSize = 208
	formatVersion     = 3
	sectorShift       = 3
	sectorSize        = 512 << sectorShift
	hashEntries       = 16

	flagExists   = 0x80000000
	flagCompress = 0x00000200
	zlibMask     = 0x02

	hashOffset = 0
	hashNameA  = 1
	hashNameB  = 2
	hashKey    = 3
)

var cryptTable = func() [0x500]uint32 {
	var t [0x500]uint32
	seed := uint32(0x00100001)
	for i1 := 0; i1 < 0x100; i1++ {
		for i, i2 := 0, i1; i < 5; i, i2 = i+1, i2+0x100 {
			seed = (seed*125 + 3) % 0x2AAAAB
			hi := (seed & 0xFFFF) << 16
			seed = (seed*125 + 3) % 0x2AAAAB
			t[i2] = hi | seed&0xFFFF
		}
	}
	return t
}()

func hashString(s string, kind uint32) uint32 {
	seed1, seed2 := uint32(0x7FED7FED), uint32(0xEEEEEEEE)
	for _, c := range []byte(strings.ToUpper(strings.ReplaceAll(s, "/", `\`))) {
		ch := uint32(c)
		seed1 = cryptTable[kind*0x100+ch] ^ (seed1 + seed2)
		seed2 = ch + seed1 + seed2 + seed2<<5 + 3
	}
	return seed1
}

func encrypt(words []uint32, key uint32) {
	seed := uint32(0xEEEEEEEE)
	for i, v := range words {
		seed += cryptTable[0x400+key&0xFF]
		words[i] = v ^ (key + seed)
		key = (^key<<0x15 + 0x11111111) | key>>0x0B
		seed = v + seed + seed<<5 + 3
	}
}

type archiveFile struct {
	name string
	data []byte
}

// sectors lays out one file as a sector offset table followed by its
// sectors. A sector that zlib does not shrink is stored as is.
func sectors(data []byte, compress bool) []byte {
	count := (len(data) + sectorSize - 1) / sectorSize
	var body []byte
	offsets := make([]uint32, 0, count+1)
	tableSize := uint32(4 * (count + 1))
	for i := 0; i < count; i++ {
		end := min((i+1)*sectorSize, len(data))
		raw := data[i*sectorSize : end]
		stored := raw
		if compress {
			var z bytes.Buffer
			z.WriteByte(zlibMask)
			w := zlib.NewWriter(&z)
			w.Write(raw)
			w.Close()
			if z.Len() < len(raw) {
				stored = z.Bytes()
			}
		}
		offsets = append(offsets, tableSize+uint32(len(body)))
		body = append(body, stored...)
	}
	offsets = append(offsets, tableSize+uint32(len(body)))

	out := make([]byte, 0, int(tableSize)+len(body))
	for _, o := range offsets {
		out = binary.LittleEndian.AppendUint32(out, o)
	}
	return append(out, body...)
}

// writeArchive returns a user data header carrying header followed by an
// MPQ archive of files, tables last.
func writeArchive(header []byte, files []archiveFile, compress bool) []byte {
	if userDataFixedSize+len(header) > archiveOffset {
		panic(fmt.Sprintf("replaytest: header of %d bytes does not fit", len(header)))
	}
	if len(files) > hashEntries {
		panic("replaytest: too many files")
	}

	arc := make([]byte, archiveHeaderSize)
	hashes := make([]uint32, hashEntries*4)
	for i := range hashes {
		hashes[i] = 0xFFFFFFFF
	}
	blocks := make([]uint32, 0, len(files)*4)
	for i, f := range files {
		content := sectors(f.data, compress)
		blocks = append(blocks, uint32(len(arc)), uint32(len(content)), uint32(len(f.data)), flagExists|flagCompress)
		arc = append(arc, content...)

		slot := hashString(f.name, hashOffset) & (hashEntries - 1)
		for hashes[slot*4+3] != 0xFFFFFFFF {
			slot = (slot + 1) & (hashEntries - 1)
		}
		hashes[slot*4] = hashString(f.name, hashNameA)
		hashes[slot*4+1] = hashString(f.name, hashNameB)
		hashes[slot*4+2] = 0
		hashes[slot*4+3] = uint32(i)
	}
	encrypt(hashes, hashString("(hash table)", hashKey))
	encrypt(blocks, hashString("(block table)", hashKey))

	hashPos := len(arc)
	for _, w := range hashes {
		arc = binary.LittleEndian.AppendUint32(arc, w)
	}
	blockPos := len(arc)
	for _, w := range blocks {
		arc = binary.LittleEndian.AppendUint32(arc, w)
	}

	h := arc[:0:archiveHeaderSize]
	h = append(h, "MPQ\x1a"...)
	h = binary.LittleEndian.AppendUint32(h, archiveHeaderSize)
	h = binary.LittleEndian.AppendUint32(h, uint32(len(arc)))
	h = binary.LittleEndian.AppendUint16(h, formatVersion)
	h = binary.LittleEndian.AppendUint16(h, sectorShift)
	h = binary.LittleEndian.AppendUint32(h, uint32(hashPos))
	h = binary.LittleEndian.AppendUint32(h, uint32(blockPos))
	h = binary.LittleEndian.AppendUint32(h, hashEntries)
	h = binary.LittleEndian.AppendUint32(h, uint32(len(files)))
	h = binary.LittleEndian.AppendUint64(h, 0)
	h = binary.LittleEndian.AppendUint16(h, 0)
	h = binary.LittleEndian.AppendUint16(h, 0)
	h = binary.LittleEndian.AppendUint64(h, uint64(len(arc)))
	h = binary.LittleEndian.AppendUint64(h, 0)
	h = binary.LittleEndian.AppendUint64(h, 0)
	h = binary.LittleEndian.AppendUint64(h, hashEntries*16)
	h = binary.LittleEndian.AppendUint64(h, uint64(len(files)*16))
	// hi-block, HET and BET sizes, raw chunk size and MD5s stay zero.

	out := make([]byte, archiveOffset, archiveOffset+len(arc))
	copy(out, "MPQ\x1b")
	binary.LittleEndian.PutUint32(out[4:], userDataSize)
	binary.LittleEndian.PutUint32(out[8:], archiveOffset)
	binary.LittleEndian.PutUint32(out[12:], uint32(len(header)))
	copy(out[userDataFixedSize:], header)
	return append(out, arc...)
}

const userDataFixedSize = 16

// ArchiveOffset is where the MPQ archive starts in Bytes().
func ArchiveOffset() int { return archiveOffset }
