package parser

import "errors"

var (
	// ErrNotReplayFile is returned for paths without the replay extension.
	ErrNotReplayFile = errors.New("file does not have .SC2Replay extension")
	// ErrTooSmall is returned for files too short to hold a replay archive.
	ErrTooSmall = errors.New("replay file appears to be corrupted (too small)")
	// ErrInterrupted marks an analysis stopped by its context.
	ErrInterrupted = errors.New("analysis interrupted")
)
