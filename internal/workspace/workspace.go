// Package workspace confines all filesystem operations to a single root
// directory fixed at server start.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for confinement violations.
var (
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrTraversal    = errors.New("path escapes workspace")
)

// Workspace is rooted at an absolute directory. The root never changes
// for the lifetime of the process and is the sole trust boundary for
// filesystem operations.
type Workspace struct {
	root string
}

// New validates that root exists and is a directory.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", abs)
	}
	return &Workspace{root: abs}, nil
}

func (w *Workspace) Root() string { return w.root }

// Resolve validates a client-supplied path and joins it onto the root. The
// ".." check is a substring match on the raw input, stricter than pure
// traversal prevention (it also rejects names like "notes..bak"); kept
// that way on purpose. No I/O: existence is the caller's concern.
func (w *Workspace) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", ErrAbsolutePath
	}
	if strings.Contains(rel, "..") {
		return "", ErrTraversal
	}
	return filepath.Clean(filepath.Join(w.root, rel)), nil
}

// ReadFile returns the full content of a confined regular file.
func (w *Workspace) ReadFile(rel string) (string, error) {
	path, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("file not found: %s", rel)
	}
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("not a file: %s", rel)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return string(data), nil
}

// WriteFile overwrites a confined file, creating parent directories as
// needed. Returns the number of bytes written.
func (w *Workspace) WriteFile(rel string, content []byte) (int, error) {
	path, err := w.Resolve(rel)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	return len(content), nil
}

// ListDir returns one line per entry, "[dir] name" or "[file] name", in
// lexicographic order. An empty directory yields a sentinel message so
// the client never sees a blank payload.
func (w *Workspace) ListDir(rel string) (string, error) {
	path, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("directory not found: %s", rel)
	}
	if err != nil {
		return "", fmt.Errorf("list: %w", err)
	}
	if len(entries) == 0 {
		return "directory is empty", nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		marker := "[file]"
		if e.IsDir() {
			marker = "[dir]"
		}
		lines = append(lines, marker+" "+e.Name())
	}
	return strings.Join(lines, "\n"), nil
}
