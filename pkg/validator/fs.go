package validator

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// fileSystem abstracts the scenario source: the OS or an fs.FS such as
// the embedded suite.
type fileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
	Join(elem ...string) string
	Dir(name string) string
	// Rel returns target relative to base, slash-separated.
	Rel(base, target string) string
	// Resolve resolves a runFlow reference against the referencing directory.
	Resolve(baseDir, ref string) string
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (osFS) ReadFile(name string) ([]byte, error)       { return os.ReadFile(name) } //#nosec G304 -- user-provided scenario path
func (osFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (osFS) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}
func (osFS) Join(elem ...string) string { return filepath.Join(elem...) }
func (osFS) Dir(name string) string     { return filepath.Dir(name) }

func (osFS) Rel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

func (osFS) Resolve(baseDir, ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(baseDir, ref)
}

type ioFS struct {
	fsys fs.FS
}

func (f ioFS) Stat(name string) (fs.FileInfo, error)      { return fs.Stat(f.fsys, name) }
func (f ioFS) ReadFile(name string) ([]byte, error)       { return fs.ReadFile(f.fsys, name) }
func (f ioFS) ReadDir(name string) ([]fs.DirEntry, error) { return fs.ReadDir(f.fsys, name) }
func (f ioFS) WalkDir(root string, fn fs.WalkDirFunc) error {
	return fs.WalkDir(f.fsys, root, fn)
}
func (ioFS) Join(elem ...string) string { return path.Join(elem...) }
func (ioFS) Dir(name string) string     { return path.Dir(name) }

func (ioFS) Rel(base, target string) string {
	if base == "." {
		return target
	}
	return strings.TrimPrefix(target, base+"/")
}

// Resolve treats a leading slash as the root of the file system.
func (ioFS) Resolve(baseDir, ref string) string {
	if strings.HasPrefix(ref, "/") {
		return path.Clean(strings.TrimPrefix(ref, "/"))
	}
	return path.Join(baseDir, ref)
}
