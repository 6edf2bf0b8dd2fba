package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Storage is durable key/value storage for session state.
// A missing key is reported with ok=false and no error.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// StateFileName is the file FileStorage keeps its keys in.
const StateFileName = "state.json"

// FileStorage keeps keys in a JSON object on the local filesystem.
type FileStorage struct {
	mu      sync.Mutex
	baseDir string
}

// DefaultStateDir returns ~/.classdesk.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".classdesk"), nil
}

// NewFileStorage creates a file storage rooted at baseDir.
// If baseDir is empty, uses ~/.classdesk/
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if baseDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("session storage initialized")

	return &FileStorage{baseDir: baseDir}, nil
}

// Path returns the location of the state file.
func (f *FileStorage) Path() string {
	return filepath.Join(f.baseDir, StateFileName)
}

// Dir returns the directory holding the state file.
func (f *FileStorage) Dir() string {
	return f.baseDir
}

func (f *FileStorage) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return "", false, err
	}

	v, ok := state[key]
	return v, ok, nil
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		// a corrupt file is replaced rather than blocking every write
		log.Warn().Err(err).Str("path", f.Path()).Msg("discarding unreadable state file")
		state = map[string]string{}
	}

	state[key] = value
	return f.save(state)
}

func (f *FileStorage) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		log.Warn().Err(err).Str("path", f.Path()).Msg("discarding unreadable state file")
		return f.save(map[string]string{})
	}

	if _, ok := state[key]; !ok {
		return nil
	}

	delete(state, key)
	return f.save(state)
}

func (f *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	state := map[string]string{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	return state, nil
}

// save writes the state file atomically.
func (f *FileStorage) save(state map[string]string) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := f.Path()
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

// MemoryStorage is an in-process Storage, used by tests and ephemeral clients.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
