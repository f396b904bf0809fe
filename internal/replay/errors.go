package replay

import (
	"errors"

	"sc2-replay-analyzer/internal/protocol"
)

var (
	// ErrCorruptReplay marks data that cannot be a replay, or an archive file that does not decode.
	ErrCorruptReplay = errors.New("corrupt replay")
	// ErrTruncated marks an archive that ends before its declared size.
	ErrTruncated = errors.New("replay truncated")
	// ErrSectionMissing marks a file absent from the archive.
	ErrSectionMissing = errors.New("replay section missing")
	// ErrUnsupportedVersion is returned when the base build has no schema.
	ErrUnsupportedVersion = protocol.ErrUnsupportedVersion
	// ErrEmpty is returned for zero-length input.
	ErrEmpty = errors.New("replay file is empty")
)
