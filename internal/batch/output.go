package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"sc2-replay-analyzer/internal/ipc"
)

// WriteResultFile writes res to path through a temporary file so readers
// never see a partial document.
func WriteResultFile(path string, res *ipc.Result) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := ipc.WriteResult(tmp, res); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move result into place: %w", err)
	}
	return nil
}

// OutputName is the result file name for a replay path.
func OutputName(replayPath string) string {
	base := filepath.Base(replayPath)
	return base[:len(base)-len(filepath.Ext(base))] + ".json"
}
