// Package jsonfile implements the mirror history store as a single
// pretty-printed JSON array on disk.
//
// The artifact is the readable, always-available copy of the chat history.
// Every append rewrites the whole file through a temp-file rename, so readers
// in other processes never observe a half-written array.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/and161185/chat-relay/internal/model"
)

// Mirror implements MirrorRepository on top of one JSON file.
type Mirror struct {
	mu   sync.Mutex
	path string
}

// New creates the mirror store at path. The parent directory is created if
// needed and a missing artifact is seeded with an empty array, so readers
// have a well-formed file from the first moment the process is up. The
// returned store is usable even when seeding fails; later appends retry
// the write.
func New(path string) (*Mirror, error) {
	m := &Mirror{path: path}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return m, fmt.Errorf("create mirror dir: %w", err)
		}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := m.write(nil); err != nil {
			return m, fmt.Errorf("seed mirror: %w", err)
		}
	}
	return m, nil
}

// Append adds one message to the end of the history. The whole artifact is
// re-read and rewritten under the lock, so concurrent appends never lose
// entries. A corrupt artifact is replaced by a fresh history containing only
// the new message.
func (m *Mirror) Append(msg model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.load()
	if err != nil {
		return err
	}
	return m.write(append(list, msg))
}

// Load returns the full history, oldest first. A missing or unparseable
// artifact yields an empty history.
func (m *Mirror) Load() ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Mirror) load() ([]model.Message, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Message{}, nil
		}
		return nil, fmt.Errorf("read mirror: %w", err)
	}

	var list []model.Message
	if err := json.Unmarshal(data, &list); err != nil {
		// Unparseable artifact: treat as empty; the next append rewrites it.
		return []model.Message{}, nil
	}
	if list == nil {
		list = []model.Message{}
	}
	return list, nil
}

func (m *Mirror) write(list []model.Message) error {
	if list == nil {
		list = []model.Message{}
	}
	data, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		return fmt.Errorf("encode mirror: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	return nil
}
