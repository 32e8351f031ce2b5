package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/tierfs/pkg/config"
	"github.com/marmos91/tierfs/pkg/remote/remotetest"
	"github.com/marmos91/tierfs/pkg/tier"
	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

// newTestConfig returns a config pointed at temp directories, with the
// API server and metrics disabled so tests do not bind ports.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Local.Path = t.TempDir()
	cfg.Remote.Bucket = "tierfs-test"
	cfg.Migration.JournalPath = t.TempDir()
	cfg.Migration.QuiesceWindow = time.Millisecond

	disabled := false
	cfg.Server.API.Enabled = &disabled
	cfg.Server.ShutdownTimeout = 5 * time.Second

	return cfg
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *remotetest.Fake) {
	t.Helper()

	fake := remotetest.New()
	orc, err := New(context.Background(), newTestConfig(t), WithRemoteClient(fake))
	require.NoError(t, err)
	return orc, fake
}

// TestTieredLifecycle drives the full flow: a remote file is visible
// through the union, a new write lands on the local tier only, a
// migration cycle moves it to the remote, and it stays readable with
// the same content afterwards.
func TestTieredLifecycle(t *testing.T) {
	orc, fake := newTestOrchestrator(t)
	ctx := context.Background()

	fake.Seed("remote1.txt", []byte("remote file 1"), time.Now().Add(-time.Hour))

	require.NoError(t, orc.Mount(ctx))
	defer func() { _ = orc.shutdown() }()

	view := orc.View()

	entries, err := view.List(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "remote1.txt", entries[0].Name())
	require.Equal(t, tier.LocationRemote, entries[0].Location)

	content := []byte("local file")
	_, err = view.Write(ctx, "local1.txt", content)
	require.NoError(t, err)

	// The write lands on the local tier only.
	_, err = orc.local.Stat("local1.txt")
	require.NoError(t, err, "local1.txt missing from local tier")
	require.False(t, fake.Exists("local1.txt"), "local1.txt reached the remote before any migration cycle")

	// Let the file pass the quiesce window, then migrate.
	time.Sleep(20 * time.Millisecond)
	result, err := orc.Scheduler().RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Transferred)
	require.Equal(t, 0, result.Failed)

	require.True(t, fake.Exists("local1.txt"), "local1.txt missing from remote after migration")
	_, err = orc.local.Stat("local1.txt")
	require.True(t, tiererrors.HasCode(err, tiererrors.ErrNotFound),
		"local copy should be gone after migration, got err = %v", err)

	// Still readable through the union, now from the remote tier.
	got, err := view.Read(ctx, "local1.txt", 0, -1)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestOperationsFailBeforeMount(t *testing.T) {
	orc, _ := newTestOrchestrator(t)

	_, err := orc.View().Stat(context.Background(), "anything.txt")
	require.True(t, tiererrors.HasCode(err, tiererrors.ErrNotReady),
		"Stat() before Mount: err = %v, want NotReady", err)
}

func TestMountFailsFastWhenRemoteUnreachable(t *testing.T) {
	orc, fake := newTestOrchestrator(t)

	fake.FailLists(tiererrors.NewRemoteUnavailable(nil))

	require.Error(t, orc.Mount(context.Background()))
	require.False(t, orc.remoteMount.IsReady(), "remote mount marked ready despite failed probe")
}

func TestServeStopsOnContextCancel(t *testing.T) {
	orc, _ := newTestOrchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- orc.Serve(ctx)
	}()

	// Give Serve time to mount and start the scheduler.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after context cancellation")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Migration.Schedule = "bogus"

	_, err := New(context.Background(), cfg, WithRemoteClient(remotetest.New()))
	require.True(t, tiererrors.HasCode(err, tiererrors.ErrConfigInvalid),
		"New() error = %v, want ConfigInvalid", err)
}
