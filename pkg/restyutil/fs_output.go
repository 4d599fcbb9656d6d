package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Output receives rendered HTTP exchanges keyed by an id unique to the client.
type Output interface {
	Write(id string, contents string)
}

// FilesystemOutput writes every exchange to its own file under a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears `dir` and prepares it to receive exchanges.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("clear http dump dir: %w", err)
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("create http dump dir: %w", err)
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".txt"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
