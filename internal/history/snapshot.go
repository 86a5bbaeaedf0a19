package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/nfrund/chatline/internal/domain"
)

// snapshotFile is the on-disk layout of a saved history buffer.
type snapshotFile struct {
	Version  int                  `json:"version"`
	Messages []domain.ChatMessage `json:"messages"`
}

const snapshotVersion = 1

// SaveSnapshot writes the buffer to path on fs. The file is written to a
// temporary name first and renamed into place.
func (s *Store) SaveSnapshot(fs afero.Fs, path string) error {
	data, err := json.Marshal(snapshotFile{Version: snapshotVersion, Messages: s.All()})
	if err != nil {
		return fmt.Errorf("failed to encode history snapshot: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history snapshot: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move history snapshot into place: %w", err)
	}
	s.logger.Info("History snapshot saved", "path", path, "bytes", len(data))
	return nil
}

// LoadSnapshot replaces the buffer with the messages saved at path. A missing
// file leaves the store empty and is not an error. When the snapshot holds
// more messages than the low-water mark only the newest are kept.
func (s *Store) LoadSnapshot(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode history snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported history snapshot version %d", snap.Version)
	}

	msgs := make([]domain.ChatMessage, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		if err := m.Validate(); err != nil {
			s.logger.Warn("Skipping invalid message in snapshot", "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	if len(msgs) > s.target {
		msgs = msgs[len(msgs)-s.target:]
	}

	s.mu.Lock()
	s.items = msgs
	s.mu.Unlock()
	s.logger.Info("History snapshot loaded", "path", path, "messages", len(msgs))
	return nil
}
