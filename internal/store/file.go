package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strd/internal/models"
	"strings"
)

const tmpPrefix = ".tmp-"

// FileStore keeps one file per key in a directory that both processes can
// reach. Writes go through a temp file, fsync and rename, so a reader never
// observes a half written record.
type FileStore struct {
	dir  string
	mode os.FileMode
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, mode: 0o644}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key))
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.ErrNotFound
		}
		return nil, unavailable("get", key, err)
	}
	return data, nil
}

func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	file, err := os.CreateTemp(f.dir, tmpPrefix+"*")
	if err != nil {
		return unavailable("set", key, err)
	}
	tmpFile := file.Name()

	_, err = file.Write(value)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return unavailable("set", key, err)
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return unavailable("set", key, err)
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return unavailable("set", key, err)
	}

	if err = os.Chmod(tmpFile, f.mode); err != nil {
		os.Remove(tmpFile)
		return unavailable("set", key, err)
	}

	if err = os.Rename(tmpFile, f.path(key)); err != nil {
		os.Remove(tmpFile)
		return unavailable("set", key, err)
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) (bool, error) {
	err := os.Remove(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, unavailable("delete", key, err)
	}
	return true, nil
}

func (f *FileStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, unavailable("list", prefix, err)
	}
	keys := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		key, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileStore) Close() error { return nil }
