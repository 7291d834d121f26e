package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/ringkv/pkg/command"
	"github.com/pg-sharding/ringkv/pkg/protocol"
)

// Durable is the flat persistence behind a node's cache.
type Durable interface {
	Find(key string) (string, bool)
	// Add upserts key, or deletes it when value is empty or "null". It
	// reports whether the key existed before.
	Add(key, value string) (bool, error)
	Clear() error
	DeleteMany(keys []string) error
	// Range calls fn for every entry until fn returns false.
	Range(fn func(key, value string) bool)
	Len() int
}

// FileStore keeps the data set in memory and rewrites a JSON file after
// every mutation. A mutation that cannot be saved is rolled back.
type FileStore struct {
	mu sync.RWMutex

	Data map[string]string `json:"data"`

	path string
	log  zerolog.Logger
}

var _ Durable = &FileStore{}

// Open restores the store from path, creating the file when missing. An
// empty path keeps the data in memory only.
func Open(path string, log zerolog.Logger) (*FileStore, error) {
	s := &FileStore{
		Data: map[string]string{},
		path: path,
		log:  log,
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("store: data file does not exist, creating new one")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		return s, s.dumpState()
	}
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, s); err != nil {
			return nil, err
		}
	}
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	log.Info().Str("path", path).Int("keys", len(s.Data)).Msg("store: restored")
	return s, nil
}

func (s *FileStore) dumpState() error {
	if s.path == "" {
		return nil
	}
	tmpPath := s.path + ".tmp"

	state, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmpPath, state, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

func (s *FileStore) Find(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.Data[key]
	return v, ok
}

func (s *FileStore) Add(key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if protocol.IsDeleteValue(value) {
		c := command.NewDelete(s.Data, key)
		if err := command.Execute(s.dumpState, c); err != nil {
			return false, err
		}
		return c.Present(), nil
	}
	c := command.NewUpdate(s.Data, key, value)
	if err := command.Execute(s.dumpState, c); err != nil {
		return false, err
	}
	return c.Present(), nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug().Int("keys", len(s.Data)).Msg("store: clear")
	return command.Execute(s.dumpState, command.NewDrop(s.Data))
}

func (s *FileStore) Range(fn func(key, value string) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for k, v := range s.Data {
		if !fn(k, v) {
			return
		}
	}
}

func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.Data)
}

// DeleteMany removes keys with a single save.
func (s *FileStore) DeleteMany(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	commands := make([]command.Command, 0, len(keys))
	for _, k := range keys {
		commands = append(commands, command.NewDelete(s.Data, k))
	}
	return command.Execute(s.dumpState, commands...)
}
