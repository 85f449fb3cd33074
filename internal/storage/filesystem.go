package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem stores binaries as files under a base directory, with keys
// mapping directly to relative file paths. Writes go through a temporary
// file and a rename so readers never observe partial content.
type Filesystem struct {
	basePath string
}

func NewFilesystem(basePath string) (*Filesystem, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, err
	}

	return &Filesystem{basePath: absPath}, nil
}

var _ Storage = (*Filesystem)(nil)

func (f *Filesystem) fullPath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	path := filepath.Join(f.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(path, f.basePath+string(os.PathSeparator)) {
		return "", ErrInvalidKey
	}

	return path, nil
}

func (f *Filesystem) Exists(ctx context.Context, key string) (bool, error) {
	path, err := f.fullPath(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (f *Filesystem) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := f.fullPath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return file, nil
}

func (f *Filesystem) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := f.fullPath(key)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}

	return written, nil
}

func (f *Filesystem) Delete(ctx context.Context, key string) error {
	path, err := f.fullPath(key)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

func (f *Filesystem) Size(ctx context.Context, key string) (int64, error) {
	path, err := f.fullPath(key)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}
