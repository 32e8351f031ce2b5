// Package local implements the fast tier over a rooted directory on a
// local filesystem. Writes are atomic via temp-file-and-rename, paths
// are validated against root escapes, and a configurable free-space
// floor rejects writes before they land.
package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marmos91/tierfs/internal/bytesize"
	"github.com/marmos91/tierfs/internal/logger"
	"github.com/marmos91/tierfs/pkg/tier"
	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

// Config holds local tier configuration.
type Config struct {
	// Path is the root directory of the local tier.
	Path string

	// MinFreeSpace is the free-space floor. Writes that would drop the
	// filesystem below it fail with InsufficientSpace. Zero disables
	// the check.
	MinFreeSpace bytesize.ByteSize
}

// Tier is the local fast tier.
type Tier struct {
	root   string
	floor  uint64
	prober SpaceProber
}

// New creates a Tier rooted at cfg.Path, creating the directory if
// needed.
func New(cfg Config) (*Tier, error) {
	if cfg.Path == "" {
		return nil, tiererrors.NewConfigInvalid("local tier path is required", nil)
	}

	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, tiererrors.NewConfigInvalid(fmt.Sprintf("invalid local tier path %q", cfg.Path), err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, tiererrors.NewIOError(root, err)
	}

	return &Tier{
		root:   root,
		floor:  cfg.MinFreeSpace.Uint64(),
		prober: defaultProber{},
	}, nil
}

// SetSpaceProber replaces the free-space probe. Used by tests.
func (t *Tier) SetSpaceProber(p SpaceProber) {
	t.prober = p
}

// Root returns the absolute root directory.
func (t *Tier) Root() string {
	return t.root
}

// resolve maps a tier path to an absolute filesystem path, rejecting
// escapes above the root.
func (t *Tier) resolve(path string) (string, error) {
	p := strings.Trim(path, "/")
	if p == "" {
		return t.root, nil
	}
	if strings.Contains(p, "\x00") {
		return "", tiererrors.NewInvalidPath(path)
	}

	abs := filepath.Join(t.root, filepath.FromSlash(p))
	if abs != t.root && !strings.HasPrefix(abs, t.root+string(filepath.Separator)) {
		return "", tiererrors.NewInvalidPath(path)
	}
	return abs, nil
}

// rel converts an absolute path back to a slash-separated tier path.
func (t *Tier) rel(abs string) string {
	r, err := filepath.Rel(t.root, abs)
	if err != nil || r == "." {
		return ""
	}
	return filepath.ToSlash(r)
}

func (t *Tier) entryFromInfo(path string, info fs.FileInfo) tier.Entry {
	kind := tier.KindFile
	var size uint64
	if info.IsDir() {
		kind = tier.KindDirectory
	} else {
		size = uint64(info.Size())
	}
	return tier.Entry{
		Path:     strings.Trim(path, "/"),
		Kind:     kind,
		Size:     size,
		ModTime:  info.ModTime(),
		Location: tier.LocationLocal,
	}
}

// Stat returns the entry for path.
func (t *Tier) Stat(path string) (tier.Entry, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return tier.Entry{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tier.Entry{}, tiererrors.NewNotFound(path)
		}
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}
	return t.entryFromInfo(path, info), nil
}

// Read returns length bytes starting at offset. length < 0 reads to
// the end of the file.
func (t *Tier) Read(path string, offset, length int64) ([]byte, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, tiererrors.NewNotFound(path)
		}
		return nil, tiererrors.NewIOError(path, err)
	}
	if info.IsDir() {
		return nil, tiererrors.NewIsDirectory(path)
	}

	if offset == 0 && length < 0 {
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, tiererrors.NewIOError(path, err)
		}
		return data, nil
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, tiererrors.NewIOError(path, err)
	}
	defer f.Close()

	size := info.Size()
	if offset < 0 || offset > size {
		return nil, tiererrors.NewInvalidPath(path)
	}
	end := size
	if length >= 0 && offset+length < size {
		end = offset + length
	}
	buf := make([]byte, end-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, tiererrors.NewIOError(path, err)
	}
	return buf, nil
}

// Write stores data atomically: the payload lands in a temp file in the
// destination directory, is fsynced, then renamed into place. A crash
// mid-write leaves either the old content or nothing, never a torn file.
func (t *Tier) Write(path string, data []byte) (tier.Entry, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return tier.Entry{}, err
	}
	if abs == t.root {
		return tier.Entry{}, tiererrors.NewIsDirectory(path)
	}

	if err := t.checkSpace(path, uint64(len(data))); err != nil {
		return tier.Entry{}, err
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tierfs-write-*")
	if err != nil {
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		os.Remove(tmpName)
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}

	return t.Stat(path)
}

// checkSpace enforces the free-space floor for an incoming write.
func (t *Tier) checkSpace(path string, need uint64) error {
	if t.floor == 0 {
		return nil
	}

	free, err := t.prober.FreeSpace(t.root)
	if err != nil {
		logger.Warn("Free space probe failed, allowing write",
			logger.Path(path),
			logger.Err(err))
		return nil
	}

	if free < need || free-need < t.floor {
		return tiererrors.NewInsufficientSpace(path, free, need, t.floor)
	}
	return nil
}

// FreeSpace returns the bytes available on the tier's filesystem.
func (t *Tier) FreeSpace() (uint64, error) {
	return t.prober.FreeSpace(t.root)
}

// Delete removes a file or an empty directory.
func (t *Tier) Delete(path string) error {
	abs, err := t.resolve(path)
	if err != nil {
		return err
	}
	if abs == t.root {
		return tiererrors.NewInvalidPath(path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tiererrors.NewNotFound(path)
		}
		return tiererrors.NewIOError(path, err)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(abs)
		if err != nil {
			return tiererrors.NewIOError(path, err)
		}
		if len(entries) > 0 {
			return tiererrors.NewNotEmpty(path)
		}
	}

	if err := os.Remove(abs); err != nil {
		return tiererrors.NewIOError(path, err)
	}
	return nil
}

// Rename moves a file or directory within the tier.
func (t *Tier) Rename(path, newPath string) (tier.Entry, error) {
	absOld, err := t.resolve(path)
	if err != nil {
		return tier.Entry{}, err
	}
	absNew, err := t.resolve(newPath)
	if err != nil {
		return tier.Entry{}, err
	}
	if absOld == t.root || absNew == t.root {
		return tier.Entry{}, tiererrors.NewInvalidPath(path)
	}

	if _, err := os.Stat(absOld); errors.Is(err, fs.ErrNotExist) {
		return tier.Entry{}, tiererrors.NewNotFound(path)
	}
	if _, err := os.Stat(absNew); err == nil {
		return tier.Entry{}, tiererrors.NewAlreadyExists(newPath)
	}

	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return tier.Entry{}, tiererrors.NewIOError(newPath, err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}

	return t.Stat(newPath)
}

// MkdirAll creates a directory and any missing parents.
func (t *Tier) MkdirAll(path string) (tier.Entry, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return tier.Entry{}, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return tier.Entry{}, tiererrors.NewIOError(path, err)
	}
	return t.Stat(path)
}

// ListDir returns the immediate children of a directory.
func (t *Tier) ListDir(path string) ([]tier.Entry, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, tiererrors.NewNotFound(path)
		}
		if info, statErr := os.Stat(abs); statErr == nil && !info.IsDir() {
			return nil, tiererrors.NewNotDirectory(path)
		}
		return nil, tiererrors.NewIOError(path, err)
	}

	dir := strings.Trim(path, "/")
	entries := make([]tier.Entry, 0, len(dirents))
	for _, de := range dirents {
		info, err := de.Info()
		if err != nil {
			continue
		}
		child := de.Name()
		if dir != "" {
			child = dir + "/" + child
		}
		entries = append(entries, t.entryFromInfo(child, info))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Walk visits every file under path, depth-first.
func (t *Tier) Walk(path string, fn func(e tier.Entry) error) error {
	abs, err := t.resolve(path)
	if err != nil {
		return err
	}

	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return tiererrors.NewNotFound(t.rel(p))
			}
			return tiererrors.NewIOError(t.rel(p), err)
		}
		if p == abs && d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(t.entryFromInfo(t.rel(p), info))
	})
}

// RemoveEmptyDirs prunes empty directories bottom-up under path,
// leaving the tier root itself in place. Returns the number removed.
func (t *Tier) RemoveEmptyDirs(path string) (int, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return 0, err
	}

	var dirs []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && p != t.root {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return 0, tiererrors.NewIOError(path, err)
	}

	// Deepest first so emptied parents get pruned in the same pass.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	removed := 0
	for _, dir := range dirs {
		dirents, err := os.ReadDir(dir)
		if err != nil || len(dirents) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			removed++
		}
	}
	return removed, nil
}
