package replay

import (
	"fmt"

	"sc2-replay-analyzer/internal/protocol"
)

// Version is the game version that recorded the replay.
type Version struct {
	Flags     int
	Major     int
	Minor     int
	Revision  int
	Build     int
	BaseBuild int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Revision, v.Build)
}

// Header is the schema independent part of a replay.
type Header struct {
	Signature        string
	Version          Version
	ElapsedGameLoops int64
	UseScaledTime    bool
}

func decodeHeader(blob []byte) (Header, error) {
	f, err := protocol.DecodeHeader(blob)
	if err != nil {
		return Header{}, fmt.Errorf("%w: header: %v", ErrCorruptReplay, err)
	}
	sig, ok := f.String("signature")
	if !ok {
		return Header{}, fmt.Errorf("%w: header has no signature", ErrCorruptReplay)
	}
	ver, ok := f.Sub("version")
	if !ok {
		return Header{}, fmt.Errorf("%w: header has no version", ErrCorruptReplay)
	}
	base, ok := ver.Int("baseBuild")
	if !ok {
		return Header{}, fmt.Errorf("%w: header has no base build", ErrCorruptReplay)
	}

	h := Header{Signature: sig}
	h.Version.BaseBuild = int(base)
	h.Version.Flags = intOr(ver, "flags", 0)
	h.Version.Major = intOr(ver, "major", 0)
	h.Version.Minor = intOr(ver, "minor", 0)
	h.Version.Revision = intOr(ver, "revision", 0)
	h.Version.Build = intOr(ver, "build", int(base))
	loops, _ := f.Int("elapsedGameLoops")
	if loops < 0 {
		return Header{}, fmt.Errorf("%w: negative game length", ErrCorruptReplay)
	}
	h.ElapsedGameLoops = loops
	h.UseScaledTime = intOr(f, "useScaledTime", 0) != 0
	return h, nil
}

func intOr(f protocol.Fields, name string, def int) int {
	n, ok := f.Int(name)
	if !ok {
		return def
	}
	return int(n)
}
