// Package writer persists rendered output files.
package writer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
)

// File is one rendered output file. Path is relative to the writer root and
// uses forward slashes.
type File struct {
	Path string
	Data []byte
}

// Writer persists a complete set of files.
type Writer interface {
	WriteAll(files []File) error
}

// sortFiles returns files ordered by path.
func sortFiles(files []File) []File {
	out := make([]File, len(files))
	copy(out, files)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// checkPath rejects absolute paths and paths escaping the root.
func checkPath(p string) error {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("invalid output path %q", p)
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path %q escapes the output root", p)
	}
	return nil
}

// Option configures an FS writer.
type Option func(*FS)

// WithLogger sets the writer logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *FS) {
		w.log = l
	}
}

// WithPerm sets the permission bits of written files.
func WithPerm(perm os.FileMode) Option {
	return func(w *FS) {
		w.perm = perm
	}
}

// FS writes files under a root directory. Each file is written to a
// temporary file in its target directory, synced and renamed into place,
// so a file is either absent, unchanged or complete.
type FS struct {
	root string
	perm os.FileMode
	log  *zap.Logger
}

// NewFS returns a writer rooted at root.
func NewFS(root string, opts ...Option) *FS {
	w := &FS{root: root, perm: 0o644, log: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the output root.
func (w *FS) Root() string {
	return w.root
}

// WriteAll writes files in path order. The first failure aborts: files
// already written stay as written and no later file is touched. Files under
// the root that this call did not write are left in place and logged.
func (w *FS) WriteAll(files []File) error {
	for _, f := range sortFiles(files) {
		if err := w.write(f); err != nil {
			return issue.New(issue.DiagWriteFailed, map[string]any{"path": f.Path}).Wrap(err)
		}
		w.log.Info("wrote file", zap.String("path", f.Path), zap.Int("bytes", len(f.Data)))
	}

	stale, err := w.Stale(files)
	if err != nil {
		w.log.Warn("cannot scan output root", zap.String("root", w.root), zap.Error(err))
		return nil
	}
	for _, p := range stale {
		w.log.Warn("file not written by this run", zap.String("path", p))
	}
	return nil
}

// Stale returns the slash-separated paths of regular files under the root
// that are not among files, sorted. A missing root has none.
func (w *FS) Stale(files []File) ([]string, error) {
	written := make(map[string]struct{}, len(files))
	for _, f := range files {
		written[f.Path] = struct{}{}
	}

	var stale []string
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := written[rel]; !ok {
			stale = append(stale, rel)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(stale)
	return stale, nil
}

func (w *FS) write(f File) (err error) {
	if err := checkPath(f.Path); err != nil {
		return err
	}
	target := filepath.Join(w.root, filepath.FromSlash(f.Path))
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(f.Data); err != nil {
		return err
	}
	if err = tmp.Chmod(w.perm); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Memory keeps written files in memory.
type Memory struct {
	Files map[string][]byte
	// Order lists paths in write order.
	Order []string
	// FailAt makes WriteAll fail when it reaches this path.
	FailAt string
}

// NewMemory returns an empty in-memory writer.
func NewMemory() *Memory {
	return &Memory{Files: make(map[string][]byte)}
}

// WriteAll implements Writer with the same ordering and failure semantics
// as FS.
func (m *Memory) WriteAll(files []File) error {
	for _, f := range sortFiles(files) {
		if err := checkPath(f.Path); err != nil {
			return issue.New(issue.DiagWriteFailed, map[string]any{"path": f.Path}).Wrap(err)
		}
		if f.Path == m.FailAt {
			return issue.New(issue.DiagWriteFailed, map[string]any{"path": f.Path}).Wrap(fmt.Errorf("injected failure"))
		}
		data := make([]byte, len(f.Data))
		copy(data, f.Data)
		if _, ok := m.Files[f.Path]; !ok {
			m.Order = append(m.Order, f.Path)
		}
		m.Files[f.Path] = data
	}
	return nil
}

// Paths returns the stored paths, sorted.
func (m *Memory) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
