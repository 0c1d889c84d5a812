package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput stores every dumped http exchange as its own file so the
// markup the portal served can be inspected after a run.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput creates dir if needed. Dumps from a previous run in
// the same directory are overwritten as request ids restart from zero.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("create dump directory: %w", err)
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Path(id string) string {
	return filepath.Join(o.directory, id+".txt")
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(o.Path(id), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write http dump", "id", id, "err", err)
	}
}
