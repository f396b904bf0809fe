package replay

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/icza/mpq"
)

const (
	userDataMagic = "MPQ\x1b"
	archiveMagic  = "MPQ\x1a"
	userDataFixed = 16
	// archiveFixed covers the archive header fields read here.
	archiveFixed = 32
)

// Files inside the archive.
const (
	SectionDetails  = "replay.details"
	SectionInitData = "replay.initData"
	SectionTracker  = "replay.tracker.events"
	SectionGame     = "replay.game.events"
	SectionListFile = "(listfile)"
)

type archive struct {
	m *mpq.MPQ
	// names is the listfile content, nil when the archive has none.
	names map[string]bool
}

// readUserData returns the header blob and the archive offset.
func readUserData(data []byte) ([]byte, int, error) {
	if len(data) < userDataFixed {
		return nil, 0, fmt.Errorf("%w: file too small (%d bytes)", ErrCorruptReplay, len(data))
	}
	switch string(data[:4]) {
	case userDataMagic:
	case archiveMagic:
		return nil, 0, fmt.Errorf("%w: archive has no user data header", ErrCorruptReplay)
	default:
		return nil, 0, fmt.Errorf("%w: bad magic %q", ErrCorruptReplay, data[:4])
	}
	archiveOffset := int(binary.LittleEndian.Uint32(data[8:12]))
	headerSize := int(binary.LittleEndian.Uint32(data[12:16]))
	if headerSize > len(data)-userDataFixed {
		return nil, 0, fmt.Errorf("%w: header extends past end of file", ErrCorruptReplay)
	}
	return data[userDataFixed : userDataFixed+headerSize], archiveOffset, nil
}

// checkArchive validates the archive header at base. An archive cut off by
// EOF yields ErrTruncated.
func checkArchive(data []byte, base int) error {
	if base < userDataFixed || base+archiveFixed > len(data) {
		return fmt.Errorf("%w: archive header at %d beyond %d bytes", ErrTruncated, base, len(data))
	}
	if magic := data[base : base+4]; string(magic) != archiveMagic {
		return fmt.Errorf("%w: bad archive magic %q", ErrCorruptReplay, magic)
	}
	size := int(binary.LittleEndian.Uint32(data[base+8 : base+12]))
	if size > 0 && base+size > len(data) {
		return fmt.Errorf("%w: archive needs %d bytes, %d present", ErrTruncated, size, len(data)-base)
	}
	return nil
}

// openArchive opens the MPQ archive and reads its listfile.
func openArchive(data []byte, base int) (a *archive, err error) {
	if err := checkArchive(data, base); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("%w: archive: %v", ErrCorruptReplay, r)
		}
	}()
	m, err := mpq.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: archive: %v", ErrCorruptReplay, err)
	}
	a = &archive{m: m}
	if list, err := m.FileByName(SectionListFile); err == nil && list != nil {
		a.names = make(map[string]bool)
		for _, name := range strings.Split(string(list), "\n") {
			if name = strings.TrimSpace(name); name != "" {
				a.names[name] = true
			}
		}
	}
	return a, nil
}

// file returns the content of an archive file.
func (a *archive) file(name string) (content []byte, err error) {
	if a.names != nil && !a.names[name] {
		return nil, fmt.Errorf("%w: %s", ErrSectionMissing, name)
	}
	defer func() {
		if r := recover(); r != nil {
			content, err = nil, fmt.Errorf("%w: %s: %v", ErrCorruptReplay, name, r)
		}
	}()
	content, err = a.m.FileByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptReplay, name, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: %s", ErrSectionMissing, name)
	}
	return content, nil
}
