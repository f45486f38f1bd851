package term

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileTranscripts reads per-worker transcript files incrementally. Cursors
// are byte offsets into the file; a read never re-returns consumed entries
// and only advances past complete lines, so a partially written trailing
// line is picked up whole on the next read.
type FileTranscripts struct {
	Dir string // directory holding <worker-id>.log files
}

// NewFileTranscripts creates a FileTranscripts over dir.
func NewFileTranscripts(dir string) *FileTranscripts {
	return &FileTranscripts{Dir: dir}
}

// Path returns the transcript file path for a worker.
func (t *FileTranscripts) Path(workerID string) string {
	return filepath.Join(t.Dir, strings.ToLower(workerID)+".log")
}

// ReadNewEntries returns complete lines written after cursor and the new
// cursor. A missing file means the transcript is not yet materialized:
// no entries, same cursor, no error.
func (t *FileTranscripts) ReadNewEntries(workerID string, cursor int64) ([]string, int64, error) {
	f, err := os.Open(t.Path(workerID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cursor, nil
		}
		return nil, cursor, fmt.Errorf("open transcript for %s: %w", workerID, err)
	}
	defer func() { _ = f.Close() }()

	// A truncated (rotated) file restarts the cursor from the top rather
	// than silently skipping everything before the old offset.
	if info, err := f.Stat(); err == nil && info.Size() < cursor {
		cursor = 0
	}

	if _, err := f.Seek(cursor, io.SeekStart); err != nil {
		return nil, cursor, fmt.Errorf("seek transcript for %s: %w", workerID, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, cursor, fmt.Errorf("read transcript for %s: %w", workerID, err)
	}

	var entries []string
	consumed := int64(0)
	for {
		idx := bytes.IndexByte(data[consumed:], '\n')
		if idx < 0 {
			break
		}
		line := string(data[consumed : consumed+int64(idx)])
		if strings.TrimSpace(line) != "" {
			entries = append(entries, line)
		}
		consumed += int64(idx) + 1
	}
	return entries, cursor + consumed, nil
}

// Append writes an entry (plus newline) to the worker's transcript,
// creating the directory and file as needed. Used by the CLI drop-box.
func (t *FileTranscripts) Append(workerID, entry string) error {
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	f, err := os.OpenFile(t.Path(workerID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // path derived from trusted dir
	if err != nil {
		return fmt.Errorf("open transcript for %s: %w", workerID, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(entry + "\n"); err != nil {
		return fmt.Errorf("append transcript for %s: %w", workerID, err)
	}
	return nil
}
