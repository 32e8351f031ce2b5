package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/tierfs/internal/bytesize"
	"github.com/marmos91/tierfs/pkg/tier"
	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

func newTestTier(t *testing.T, cfg Config) *Tier {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = t.TempDir()
	}
	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create tier: %v", err)
	}
	return tr
}

func TestWriteAndRead(t *testing.T) {
	tr := newTestTier(t, Config{})

	entry, err := tr.Write("docs/a.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if entry.Kind != tier.KindFile || entry.Size != 5 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Location != tier.LocationLocal {
		t.Errorf("location = %v, want local", entry.Location)
	}

	data, err := tr.Read("docs/a.txt", 0, -1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("read = %q", data)
	}
}

func TestRangedRead(t *testing.T) {
	tr := newTestTier(t, Config{})

	if _, err := tr.Write("a.txt", []byte("hello world")); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := tr.Read("a.txt", 6, 5)
	if err != nil {
		t.Fatalf("ranged read: %v", err)
	}
	if string(data) != "world" {
		t.Errorf("ranged read = %q", data)
	}

	data, err = tr.Read("a.txt", 6, -1)
	if err != nil {
		t.Fatalf("tail read: %v", err)
	}
	if string(data) != "world" {
		t.Errorf("tail read = %q", data)
	}
}

func TestReadMissing(t *testing.T) {
	tr := newTestTier(t, Config{})

	_, err := tr.Read("nope.txt", 0, -1)
	if !tiererrors.HasCode(err, tiererrors.ErrNotFound) {
		t.Errorf("read missing: %v", err)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	tr := newTestTier(t, Config{})

	for _, p := range []string{"../outside.txt", "a/../../outside.txt", "a/b/../../../x"} {
		if _, err := tr.Write(p, []byte("x")); !tiererrors.HasCode(err, tiererrors.ErrInvalidPath) {
			t.Errorf("write %q: %v, want InvalidPath", p, err)
		}
	}
}

func TestWriteAtomicNoTempLeftover(t *testing.T) {
	tr := newTestTier(t, Config{})

	if _, err := tr.Write("docs/a.txt", []byte("v1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := tr.Write("docs/a.txt", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	dirents, err := os.ReadDir(filepath.Join(tr.Root(), "docs"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(dirents) != 1 {
		t.Errorf("leftover files in dir: %d entries", len(dirents))
	}

	data, _ := tr.Read("docs/a.txt", 0, -1)
	if string(data) != "v2" {
		t.Errorf("content = %q", data)
	}
}

func TestFreeSpaceFloor(t *testing.T) {
	tr := newTestTier(t, Config{MinFreeSpace: 10 * bytesize.GiB})
	tr.SetSpaceProber(FixedProber{Free: 5 * uint64(bytesize.GiB)})

	_, err := tr.Write("a.txt", []byte("payload"))
	if !tiererrors.HasCode(err, tiererrors.ErrInsufficientSpace) {
		t.Fatalf("write under floor: %v, want InsufficientSpace", err)
	}

	// The failed write must leave no trace.
	if _, err := tr.Stat("a.txt"); !tiererrors.HasCode(err, tiererrors.ErrNotFound) {
		t.Errorf("file exists after rejected write: %v", err)
	}

	tr.SetSpaceProber(FixedProber{Free: 20 * uint64(bytesize.GiB)})
	if _, err := tr.Write("a.txt", []byte("payload")); err != nil {
		t.Errorf("write above floor: %v", err)
	}
}

func TestDelete(t *testing.T) {
	tr := newTestTier(t, Config{})

	if _, err := tr.Write("docs/a.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := tr.Delete("docs"); !tiererrors.HasCode(err, tiererrors.ErrNotEmpty) {
		t.Errorf("delete non-empty dir: %v, want NotEmpty", err)
	}
	if err := tr.Delete("docs/a.txt"); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if err := tr.Delete("docs"); err != nil {
		t.Fatalf("delete empty dir: %v", err)
	}
	if err := tr.Delete("docs"); !tiererrors.HasCode(err, tiererrors.ErrNotFound) {
		t.Errorf("delete missing: %v, want NotFound", err)
	}
}

func TestRename(t *testing.T) {
	tr := newTestTier(t, Config{})

	if _, err := tr.Write("a.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	entry, err := tr.Rename("a.txt", "sub/b.txt")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if entry.Path != "sub/b.txt" {
		t.Errorf("entry.Path = %q", entry.Path)
	}

	if _, err := tr.Stat("a.txt"); !tiererrors.HasCode(err, tiererrors.ErrNotFound) {
		t.Errorf("old path still present: %v", err)
	}

	if _, err := tr.Write("c.txt", []byte("y")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := tr.Rename("c.txt", "sub/b.txt"); !tiererrors.HasCode(err, tiererrors.ErrAlreadyExists) {
		t.Errorf("rename onto existing: %v, want AlreadyExists", err)
	}
}

func TestListDir(t *testing.T) {
	tr := newTestTier(t, Config{})

	for _, p := range []string{"docs/b.txt", "docs/a.txt", "docs/sub/c.txt"} {
		if _, err := tr.Write(p, []byte("x")); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	entries, err := tr.ListDir("docs")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("list len = %d, want 3", len(entries))
	}
	if entries[0].Path != "docs/a.txt" || entries[2].Path != "docs/sub" {
		t.Errorf("entries = %+v", entries)
	}
	if entries[2].Kind != tier.KindDirectory {
		t.Errorf("sub kind = %v", entries[2].Kind)
	}

	if _, err := tr.ListDir("docs/a.txt"); !tiererrors.HasCode(err, tiererrors.ErrNotDirectory) {
		t.Errorf("list file: %v, want NotDirectory", err)
	}
	if _, err := tr.ListDir("missing"); !tiererrors.HasCode(err, tiererrors.ErrNotFound) {
		t.Errorf("list missing: %v, want NotFound", err)
	}
}

func TestWalk(t *testing.T) {
	tr := newTestTier(t, Config{})

	paths := []string{"a.txt", "docs/b.txt", "docs/sub/c.txt"}
	for _, p := range paths {
		if _, err := tr.Write(p, []byte("x")); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	var files []string
	err := tr.Walk("", func(e tier.Entry) error {
		if !e.IsDir() {
			files = append(files, e.Path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("walk found %d files: %v", len(files), files)
	}
}

func TestRemoveEmptyDirs(t *testing.T) {
	tr := newTestTier(t, Config{})

	if _, err := tr.Write("a/b/c/file.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := tr.MkdirAll("empty/nested"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := tr.Delete("a/b/c/file.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	removed, err := tr.RemoveEmptyDirs("")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	// a/b/c, a/b, a, empty/nested, empty.
	if removed != 5 {
		t.Errorf("removed = %d, want 5", removed)
	}

	dirents, _ := os.ReadDir(tr.Root())
	if len(dirents) != 0 {
		t.Errorf("root not empty after prune: %d entries", len(dirents))
	}
}
