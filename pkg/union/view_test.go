package union

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/tierfs/pkg/local"
	"github.com/marmos91/tierfs/pkg/mount"
	"github.com/marmos91/tierfs/pkg/remote/remotetest"
	"github.com/marmos91/tierfs/pkg/tier"
	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

type fixture struct {
	view        *View
	local       *local.Tier
	remote      *remotetest.Fake
	localMount  *mount.Handle
	remoteMount *mount.Handle
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	lt, err := local.New(local.Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create local tier: %v", err)
	}
	fake := remotetest.New()

	lm := mount.NewHandle("local")
	rm := mount.NewHandle("remote")
	lm.Begin()
	lm.MarkReady()
	rm.Begin()
	rm.MarkReady()

	return &fixture{
		view:        New(lt, fake, lm, rm, cfg, nil),
		local:       lt,
		remote:      fake,
		localMount:  lm,
		remoteMount: rm,
	}
}

func TestReadinessGate(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	fx.remoteMount.Teardown()
	if _, err := fx.view.List(ctx, ""); !tiererrors.HasCode(err, tiererrors.ErrNotReady) {
		t.Errorf("list before ready: %v, want NotReady", err)
	}
	if _, err := fx.view.Write(ctx, "a.txt", []byte("x")); !tiererrors.HasCode(err, tiererrors.ErrNotReady) {
		t.Errorf("write before ready: %v, want NotReady", err)
	}

	fx.remoteMount.Begin()
	fx.remoteMount.MarkReady()
	if _, err := fx.view.List(ctx, ""); err != nil {
		t.Errorf("list after ready: %v", err)
	}
}

func TestWriteRoutesToLocalOnly(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := fx.view.Write(ctx, "local1.txt", []byte("local file")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := fx.local.Stat("local1.txt"); err != nil {
		t.Errorf("file missing from local tier: %v", err)
	}
	if fx.remote.Exists("local1.txt") {
		t.Error("write leaked to the remote tier")
	}

	data, err := fx.view.Read(ctx, "local1.txt", 0, -1)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "local file" {
		t.Errorf("read back = %q", data)
	}
}

func TestReadPrecedenceNewestWins(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	fx.remote.Seed("doc.txt", []byte("remote version"), old)
	if _, err := fx.local.Write("doc.txt", []byte("local version")); err != nil {
		t.Fatalf("local write: %v", err)
	}

	data, err := fx.view.Read(ctx, "doc.txt", 0, -1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "local version" {
		t.Errorf("read = %q, want local version (newer)", data)
	}

	// A strictly newer remote copy wins under the newest policy.
	fx.remote.Seed("doc.txt", []byte("remote v2"), time.Now().Add(time.Hour))
	data, err = fx.view.Read(ctx, "doc.txt", 0, -1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "remote v2" {
		t.Errorf("read = %q, want newer remote version", data)
	}
}

func TestReadPrecedenceLocalPolicy(t *testing.T) {
	fx := newFixture(t, Config{TieBreak: TieBreakLocal})
	ctx := context.Background()

	fx.remote.Seed("doc.txt", []byte("remote version"), time.Now().Add(time.Hour))
	if _, err := fx.local.Write("doc.txt", []byte("local version")); err != nil {
		t.Fatalf("local write: %v", err)
	}

	data, err := fx.view.Read(ctx, "doc.txt", 0, -1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "local version" {
		t.Errorf("read = %q, local policy must ignore mtimes", data)
	}
}

func TestLocalWinsTies(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := fx.local.Write("doc.txt", []byte("local version")); err != nil {
		t.Fatalf("local write: %v", err)
	}
	entry, err := fx.local.Stat("doc.txt")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	fx.remote.Seed("doc.txt", []byte("remote version"), entry.ModTime)

	data, err := fx.view.Read(ctx, "doc.txt", 0, -1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "local version" {
		t.Errorf("read = %q, local must win mtime ties", data)
	}
}

func TestListMergesTiers(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	fx.remote.Seed("remote1.txt", []byte("remote file 1"), time.Now().Add(-time.Hour))
	fx.remote.Seed("shared.txt", []byte("remote shared"), time.Now().Add(-time.Hour))
	if _, err := fx.local.Write("local1.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := fx.local.Write("shared.txt", []byte("local shared")); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := fx.view.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("list len = %d, want 3: %+v", len(entries), entries)
	}

	byName := make(map[string]tier.Entry)
	for _, e := range entries {
		byName[e.Name()] = e
	}
	if byName["local1.txt"].Location != tier.LocationLocal {
		t.Errorf("local1.txt location = %v", byName["local1.txt"].Location)
	}
	if byName["remote1.txt"].Location != tier.LocationRemote {
		t.Errorf("remote1.txt location = %v", byName["remote1.txt"].Location)
	}
	if byName["shared.txt"].Location != tier.LocationBoth {
		t.Errorf("shared.txt location = %v", byName["shared.txt"].Location)
	}
	if byName["shared.txt"].Size != uint64(len("local shared")) {
		t.Errorf("shared.txt size = %d, want local copy's metadata", byName["shared.txt"].Size)
	}
}

func TestRenameLocalToLocal(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := fx.local.Write("a.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	entry, err := fx.view.Rename(ctx, "a.txt", "b.txt")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if entry.Path != "b.txt" {
		t.Errorf("entry.Path = %q", entry.Path)
	}
}

func TestRenameRemoteSourceRejected(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	fx.remote.Seed("r.txt", []byte("x"), time.Now())

	_, err := fx.view.Rename(ctx, "r.txt", "moved.txt")
	if !tiererrors.HasCode(err, tiererrors.ErrReadOnlyTier) {
		t.Errorf("rename remote source: %v, want ReadOnlyTier", err)
	}
	if !fx.remote.Exists("r.txt") {
		t.Error("failed rename mutated the remote tier")
	}
}

func TestRenameCrossTierRejected(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	fx.remote.Seed("r.txt", []byte("x"), time.Now())
	if _, err := fx.local.Write("l.txt", []byte("y")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := fx.view.Rename(ctx, "r.txt", "l.txt")
	if !tiererrors.HasCode(err, tiererrors.ErrCrossTierRename) {
		t.Errorf("cross-tier rename: %v, want CrossTierRenameUnsupported", err)
	}
}

func TestRenameMissingSource(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	_, err := fx.view.Rename(ctx, "nope.txt", "x.txt")
	if !tiererrors.HasCode(err, tiererrors.ErrNotFound) {
		t.Errorf("rename missing: %v, want NotFound", err)
	}
}

func TestDelete(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := fx.local.Write("l.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	fx.remote.Seed("r.txt", []byte("y"), time.Now())

	if err := fx.view.Delete(ctx, "l.txt"); err != nil {
		t.Errorf("delete local: %v", err)
	}
	if err := fx.view.Delete(ctx, "r.txt"); !tiererrors.HasCode(err, tiererrors.ErrReadOnlyTier) {
		t.Errorf("delete remote-only: %v, want ReadOnlyTier", err)
	}
	if err := fx.view.Delete(ctx, "nope.txt"); !tiererrors.HasCode(err, tiererrors.ErrNotFound) {
		t.Errorf("delete missing: %v, want NotFound", err)
	}
}

func TestErrorsPropagateUnchanged(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	cause := tiererrors.NewRemoteUnavailable(nil)
	fx.remote.FailLists(cause)

	_, err := fx.view.List(ctx, "")
	if !tiererrors.HasCode(err, tiererrors.ErrRemoteUnavailable) {
		t.Errorf("list with remote down: %v, want RemoteUnavailable passthrough", err)
	}
}

func TestFreeSpaceGuardThroughView(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	lt, err := local.New(local.Config{Path: fx.local.Root(), MinFreeSpace: 10 << 30})
	if err != nil {
		t.Fatalf("tier: %v", err)
	}
	lt.SetSpaceProber(local.FixedProber{Free: 5 << 30})
	view := New(lt, fx.remote, fx.localMount, fx.remoteMount, Config{}, nil)

	_, err = view.Write(ctx, "big.txt", []byte("payload"))
	if !tiererrors.HasCode(err, tiererrors.ErrInsufficientSpace) {
		t.Fatalf("write under floor: %v, want InsufficientSpace", err)
	}
	if _, err := lt.Stat("big.txt"); !tiererrors.HasCode(err, tiererrors.ErrNotFound) {
		t.Errorf("local tier mutated by rejected write: %v", err)
	}
}
