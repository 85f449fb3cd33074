package cache

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Filesystem keeps each partition as a directory under the cache root.
// Artifacts are staged in temporary files and published with a rename, so
// an abandoned producer never leaves a visible partial artifact behind.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) (*Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}

	return &Filesystem{root: abs}, nil
}

var _ Cache = (*Filesystem)(nil)

var errBadName = errors.New("cache: invalid partition or artifact name")

func safeName(s string) bool {
	return s != "" && !strings.ContainsAny(s, "/\\") && s != "." && s != ".."
}

func (f *Filesystem) entryPath(partition, name string) (string, error) {
	if !safeName(partition) || !safeName(name) {
		return "", errBadName
	}
	return filepath.Join(f.root, partition, name), nil
}

func (f *Filesystem) Get(ctx context.Context, partition, name string) (io.ReadCloser, error) {
	path, err := f.entryPath(partition, name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	return file, nil
}

func (f *Filesystem) Create(ctx context.Context, partition, name string) (Writer, error) {
	path, err := f.entryPath(partition, name)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	staging, err := os.CreateTemp(filepath.Dir(path), name+".stage-*")
	if err != nil {
		return nil, err
	}

	return &fileWriter{file: staging, final: path}, nil
}

func (f *Filesystem) Delete(ctx context.Context, partition, name string) error {
	path, err := f.entryPath(partition, name)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

func (f *Filesystem) Purge(ctx context.Context, partition string) error {
	if !safeName(partition) {
		return errBadName
	}

	return os.RemoveAll(filepath.Join(f.root, partition))
}

func (f *Filesystem) Partitions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, err
	}

	var partitions []string
	for _, entry := range entries {
		if entry.IsDir() {
			partitions = append(partitions, entry.Name())
		}
	}

	return partitions, nil
}

type fileWriter struct {
	mu     sync.Mutex
	file   *os.File
	final  string
	failed bool
	done   bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return 0, os.ErrClosed
	}

	n, err := w.file.Write(p)
	if err != nil {
		w.failed = true
	}
	return n, err
}

// Close publishes the artifact. If any write failed the staging file is
// discarded instead and the failure is reported.
func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return nil
	}
	w.done = true

	if w.failed {
		w.file.Close()
		os.Remove(w.file.Name())
		return errors.New("cache: artifact write failed, not published")
	}

	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return err
	}

	if err := os.Rename(w.file.Name(), w.final); err != nil {
		os.Remove(w.file.Name())
		return err
	}

	return nil
}

func (w *fileWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return nil
	}
	w.done = true

	w.file.Close()
	return os.Remove(w.file.Name())
}
