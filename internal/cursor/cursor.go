// Package cursor persists the ingestion watermark: the highest mailbox
// UID that has been fully processed. The watermark is read at batch
// start and written after each message commits, so a crash reprocesses
// at most the in-flight message and never skips one.
package cursor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Store persists a single UID watermark.
type Store interface {
	// Load returns the saved watermark, or 0 if none has been saved.
	// Implementations should treat unreadable state as absent rather
	// than failing: resyncing from zero beats skipping mail.
	Load() (uint32, error)

	// Save durably overwrites the watermark.
	Save(uid uint32) error
}

// FileStore keeps the watermark as a decimal integer in a single file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by the given path. The file
// is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the watermark. A missing or unparsable file yields 0 with
// no error, so a damaged cursor restarts the sync from the beginning.
func (s *FileStore) Load() (uint32, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading cursor %s: %w", s.path, err)
	}

	uid, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, nil
	}
	return uint32(uid), nil
}

// Save writes the watermark via a temp file and rename so a crash
// mid-write cannot leave a torn value.
func (s *FileStore) Save(uid uint32) error {
	tmp := s.path + ".tmp"
	value := strconv.FormatUint(uint64(uid), 10)

	if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return fmt.Errorf("writing cursor %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing cursor %s: %w", s.path, err)
	}
	return nil
}
