// Package union merges the local tier and the remote client into one
// namespace. Every path resolves to exactly one authoritative tier:
// the resolution policy compares modification times and the local copy
// shadows the remote one. Writes land in the local tier only; the
// remote tier is strictly read-only from this package's perspective.
package union

import (
	"context"
	"sort"
	"time"

	"github.com/marmos91/tierfs/internal/logger"
	"github.com/marmos91/tierfs/pkg/local"
	"github.com/marmos91/tierfs/pkg/metrics"
	"github.com/marmos91/tierfs/pkg/mount"
	"github.com/marmos91/tierfs/pkg/remote"
	"github.com/marmos91/tierfs/pkg/tier"
	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

// TieBreak selects the authoritative tier for a path present in both.
type TieBreak string

const (
	// TieBreakNewest picks the copy with the newer modification time;
	// the local copy wins exact ties.
	TieBreakNewest TieBreak = "newest"

	// TieBreakLocal always picks the local copy.
	TieBreakLocal TieBreak = "local"
)

// Valid reports whether the policy is a known value.
func (tb TieBreak) Valid() bool {
	return tb == TieBreakNewest || tb == TieBreakLocal
}

// Config holds union view configuration.
type Config struct {
	// TieBreak is the resolution policy for paths present in both
	// tiers. Default: newest.
	TieBreak TieBreak
}

// View is the merged namespace over the two tiers.
type View struct {
	local       *local.Tier
	remote      remote.Client
	localMount  *mount.Handle
	remoteMount *mount.Handle
	tieBreak    TieBreak
	metrics     metrics.UnionMetrics
}

// New creates a View. Operations fail with NotReady until both mount
// handles report Ready.
func New(lt *local.Tier, rc remote.Client, lm, rm *mount.Handle, cfg Config, m metrics.UnionMetrics) *View {
	tb := cfg.TieBreak
	if tb == "" {
		tb = TieBreakNewest
	}
	return &View{
		local:       lt,
		remote:      rc,
		localMount:  lm,
		remoteMount: rm,
		tieBreak:    tb,
		metrics:     m,
	}
}

// checkReady gates every operation on both tiers being mounted.
func (v *View) checkReady() error {
	if err := v.localMount.CheckReady(); err != nil {
		return err
	}
	return v.remoteMount.CheckReady()
}

// localWins applies the resolution policy to a path present in both
// tiers.
func (v *View) localWins(localEntry, remoteEntry tier.Entry) bool {
	if v.tieBreak == TieBreakLocal {
		return true
	}
	return !remoteEntry.ModTime.After(localEntry.ModTime)
}

func (v *View) observe(op, tierName string, start time.Time, err error) {
	if v.metrics != nil {
		v.metrics.ObserveOperation(op, tierName, time.Since(start), err == nil)
	}
}

// Stat resolves a path to its authoritative tier's entry. A path in
// both tiers reports LocationBoth with the winning tier's metadata.
func (v *View) Stat(ctx context.Context, path string) (tier.Entry, error) {
	if err := v.checkReady(); err != nil {
		return tier.Entry{}, err
	}
	start := time.Now()

	localEntry, localErr := v.local.Stat(path)
	if localErr != nil && !tiererrors.HasCode(localErr, tiererrors.ErrNotFound) {
		v.observe("stat", "local", start, localErr)
		return tier.Entry{}, localErr
	}

	remoteEntry, remoteErr := v.remote.Stat(ctx, path)
	if remoteErr != nil && !tiererrors.HasCode(remoteErr, tiererrors.ErrNotFound) {
		v.observe("stat", "remote", start, remoteErr)
		return tier.Entry{}, remoteErr
	}

	switch {
	case localErr == nil && remoteErr == nil:
		winner := localEntry
		tierName := "local"
		if !v.localWins(localEntry, remoteEntry) {
			winner = remoteEntry
			tierName = "remote"
		}
		winner.Location = tier.LocationBoth
		v.observe("stat", tierName, start, nil)
		return winner, nil
	case localErr == nil:
		v.observe("stat", "local", start, nil)
		return localEntry, nil
	case remoteErr == nil:
		v.observe("stat", "remote", start, nil)
		return remoteEntry, nil
	default:
		v.observe("stat", "none", start, localErr)
		return tier.Entry{}, tiererrors.NewNotFound(path)
	}
}

// List merges the immediate children of both tiers. Names present in
// both collapse to one entry per the resolution policy, marked
// LocationBoth.
func (v *View) List(ctx context.Context, path string) ([]tier.Entry, error) {
	if err := v.checkReady(); err != nil {
		return nil, err
	}
	start := time.Now()

	localEntries, localErr := v.local.ListDir(path)
	if localErr != nil && !tiererrors.HasCode(localErr, tiererrors.ErrNotFound) {
		v.observe("list", "local", start, localErr)
		return nil, localErr
	}

	remoteEntries, remoteErr := v.remote.List(ctx, path)
	if remoteErr != nil && !tiererrors.HasCode(remoteErr, tiererrors.ErrNotFound) {
		v.observe("list", "remote", start, remoteErr)
		return nil, remoteErr
	}

	if localErr != nil && remoteErr != nil {
		v.observe("list", "none", start, localErr)
		return nil, tiererrors.NewNotFound(path)
	}

	merged := make(map[string]tier.Entry, len(localEntries)+len(remoteEntries))
	for _, e := range localEntries {
		merged[e.Name()] = e
	}
	for _, re := range remoteEntries {
		name := re.Name()
		le, shadowed := merged[name]
		if !shadowed {
			merged[name] = re
			continue
		}
		winner := le
		if !v.localWins(le, re) {
			winner = re
		}
		winner.Location = tier.LocationBoth
		merged[name] = winner
	}

	entries := make([]tier.Entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	v.observe("list", "both", start, nil)
	return entries, nil
}

// Read serves content from the authoritative tier for path.
func (v *View) Read(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if err := v.checkReady(); err != nil {
		return nil, err
	}
	start := time.Now()

	entry, err := v.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if entry.IsDir() {
		return nil, tiererrors.NewIsDirectory(path)
	}

	if v.servedLocally(ctx, path, entry) {
		data, err := v.local.Read(path, offset, length)
		v.observe("read", "local", start, err)
		return data, err
	}

	data, err := v.remote.Read(ctx, path, offset, length)
	v.observe("read", "remote", start, err)
	return data, err
}

// servedLocally reports whether the resolved entry should be read from
// the local tier.
func (v *View) servedLocally(ctx context.Context, path string, entry tier.Entry) bool {
	switch entry.Location {
	case tier.LocationLocal:
		return true
	case tier.LocationRemote:
		return false
	default:
		// Both: re-apply the policy against the two tiers' metadata.
		localEntry, err := v.local.Stat(path)
		if err != nil {
			return false
		}
		remoteEntry, err := v.remote.Stat(ctx, path)
		if err != nil {
			return true
		}
		return v.localWins(localEntry, remoteEntry)
	}
}

// Write routes all writes to the local tier. The local copy shadows any
// remote object at the same path until a migration cycle moves it.
func (v *View) Write(ctx context.Context, path string, data []byte) (tier.Entry, error) {
	if err := v.checkReady(); err != nil {
		return tier.Entry{}, err
	}
	start := time.Now()

	entry, err := v.local.Write(path, data)
	v.observe("write", "local", start, err)
	if err != nil {
		return tier.Entry{}, err
	}

	logger.DebugCtx(ctx, "Union write routed to local tier",
		logger.Path(path),
		logger.Size(uint64(len(data))))
	return entry, nil
}

// Mkdir creates a directory in the local tier.
func (v *View) Mkdir(ctx context.Context, path string) (tier.Entry, error) {
	if err := v.checkReady(); err != nil {
		return tier.Entry{}, err
	}
	return v.local.MkdirAll(path)
}

// Rename delegates to the tier holding both endpoints. The remote tier
// is read-only, so only local-to-local renames succeed; a source or
// destination resolving to the remote tier fails without touching
// either tier.
func (v *View) Rename(ctx context.Context, path, newPath string) (tier.Entry, error) {
	if err := v.checkReady(); err != nil {
		return tier.Entry{}, err
	}
	start := time.Now()

	_, localErr := v.local.Stat(path)
	localSrc := localErr == nil

	if !localSrc {
		if _, err := v.remote.Stat(ctx, path); err != nil {
			v.observe("rename", "none", start, err)
			return tier.Entry{}, err
		}
		// Source lives only remotely; the destination would have to be
		// written remotely too.
		if _, err := v.local.Stat(newPath); err == nil {
			v.observe("rename", "none", start, localErr)
			return tier.Entry{}, tiererrors.NewCrossTierRename(path, newPath)
		}
		v.observe("rename", "remote", start, localErr)
		return tier.Entry{}, tiererrors.NewReadOnlyTier(path)
	}

	// Local source. A remote-only destination parent is fine (the
	// rename stays local); a destination shadowing a remote object is a
	// plain local rename and the shadow follows the new name.
	entry, err := v.local.Rename(path, newPath)
	v.observe("rename", "local", start, err)
	return entry, err
}

// Delete removes the local copy of path. A path living only in the
// remote tier cannot be deleted through the view.
func (v *View) Delete(ctx context.Context, path string) error {
	if err := v.checkReady(); err != nil {
		return err
	}
	start := time.Now()

	err := v.local.Delete(path)
	if err == nil {
		v.observe("delete", "local", start, nil)
		return nil
	}
	if !tiererrors.HasCode(err, tiererrors.ErrNotFound) {
		v.observe("delete", "local", start, err)
		return err
	}

	if _, remoteErr := v.remote.Stat(ctx, path); remoteErr == nil {
		v.observe("delete", "remote", start, remoteErr)
		return tiererrors.NewReadOnlyTier(path)
	}

	v.observe("delete", "none", start, err)
	return tiererrors.NewNotFound(path)
}
