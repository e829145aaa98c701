// Package toml is the TOML file storage backend. The whole file is rewritten
// atomically on every change.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	schemaVersion  = 1
	fileMode       = 0o600
	dirMode        = 0o700
	tempFilePattern = ".wallets-*.toml.tmp"
)

type fileSchema struct {
	Version int            `toml:"version"`
	Records []recordSchema `toml:"records"`
}

type recordSchema struct {
	Key   string `toml:"key"`
	Value string `toml:"value"`
}

// Store is a KV kept in one TOML file.
type Store struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

// Open returns a store for the file at path. The file is created on first write.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("toml: store path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("toml: resolve store path: %w", err)
	}
	absPath = filepath.Clean(absPath)
	return &Store{path: absPath, mu: lockForPath(absPath)}, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	return s.update(ctx, func(file *fileSchema) {
		for i := range file.Records {
			if file.Records[i].Key == key {
				file.Records[i].Value = value
				return
			}
		}
		file.Records = append(file.Records, recordSchema{Key: key, Value: value})
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.update(ctx, func(file *fileSchema) {
		out := file.Records[:0]
		for _, r := range file.Records {
			if r.Key != key {
				out = append(out, r)
			}
		}
		file.Records = out
	})
}

func (s *Store) All(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(file.Records))
	for _, r := range file.Records {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context) error {
	return s.update(ctx, func(file *fileSchema) {
		file.Records = nil
	})
}

func (s *Store) Close() error { return nil }

func (s *Store) update(ctx context.Context, fn func(*fileSchema)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	fn(&file)

	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(file)
}

func (s *Store) read() (fileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: schemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read wallets file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode wallets file: %w", err)
	}
	if file.Version == 0 {
		file.Version = schemaVersion
	}
	if file.Version != schemaVersion {
		return fileSchema{}, fmt.Errorf("unsupported wallets file version %d", file.Version)
	}
	return file, nil
}

func (s *Store) write(file fileSchema) error {
	file.Version = schemaVersion

	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return fmt.Errorf("create wallets directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode wallets file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp wallets file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp wallets file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp wallets file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp wallets file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace wallets file: %w", err)
	}
	cleanup = false
	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}
	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
