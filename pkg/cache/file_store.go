package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStore keeps entries in a directory tree below root, one directory per
// key holding meta.json, headers.json and body.bin.
//
// Artifacts are staged as temp files and renamed into place while holding an
// exclusive lock on the key directory; readers hold a shared lock, so they
// see either the previous or the new entry, never a mix.
type FileStore struct {
	root string
}

// NewFileStore creates a file store rooted at root, creating the directory
// if needed. A leading "~" is expanded to the user's home directory.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root is required")
	}

	expanded, err := ExpandHome(root)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	return &FileStore{root: abs}, nil
}

// Name implements Store.
func (s *FileStore) Name() string {
	return "file"
}

// Ping implements Pinger. It fails when the root is gone or not a
// directory.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("stat cache root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache root %s is not a directory", s.root)
	}
	return nil
}

// Root returns the absolute root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Path returns the directory holding the artifacts of key.
func (s *FileStore) Path(key Key) string {
	return filepath.Join(s.root, filepath.FromSlash(string(key)))
}

// Read implements Store.
func (s *FileStore) Read(ctx context.Context, key Key) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := s.Path(key)
	unlock, err := lockDir(dir, false)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer unlock()

	var a artifacts
	for _, part := range []struct {
		name string
		dst  *[]byte
	}{
		{MetaFile, &a.meta},
		{HeadersFile, &a.headers},
		{BodyFile, &a.body},
	} {
		data, err := os.ReadFile(filepath.Join(dir, part.name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrCacheMiss
			}
			return nil, fmt.Errorf("read %s: %w", part.name, err)
		}
		*part.dst = data
	}

	return decodeEntry(a)
}

// Write implements Store.
func (s *FileStore) Write(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	dir := s.Path(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create entry directory: %w", err)
	}

	// meta.json is renamed last so a reader without locking support never
	// sees new metadata next to an old body.
	parts := []struct {
		name string
		data []byte
		tmp  string
	}{
		{name: BodyFile, data: a.body},
		{name: HeadersFile, data: a.headers},
		{name: MetaFile, data: a.meta},
	}

	defer func() {
		for _, part := range parts {
			if part.tmp != "" {
				_ = os.Remove(part.tmp)
			}
		}
	}()

	for i := range parts {
		tmp, err := writeTemp(dir, parts[i].name, parts[i].data)
		if err != nil {
			return err
		}
		parts[i].tmp = tmp
	}

	unlock, err := lockDir(dir, true)
	if err != nil {
		return err
	}
	defer unlock()

	for i := range parts {
		if err := os.Rename(parts[i].tmp, filepath.Join(dir, parts[i].name)); err != nil {
			return fmt.Errorf("replace %s: %w", parts[i].name, err)
		}
		parts[i].tmp = ""
	}

	return nil
}

// Delete implements Store. Only the artifacts are removed; the directory may
// still hold entries of longer keys.
func (s *FileStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := s.Path(key)
	unlock, err := lockDir(dir, true)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer unlock()

	for _, name := range []string{MetaFile, HeadersFile, BodyFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// writeTemp writes data to a hidden temp file in dir and syncs it.
func writeTemp(dir, name string, data []byte) (string, error) {
	tmp := filepath.Join(dir, "."+name+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return tmp, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !hasHomePrefix(path) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

func hasHomePrefix(path string) bool {
	return len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator)
}
