// Package remotetest provides an in-memory remote.Client for tests.
// It implements the full contract, including directory emulation and
// error injection, so the union view, cache, and migration scheduler
// can be exercised without a real object store.
package remotetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/tierfs/pkg/remote"
	"github.com/marmos91/tierfs/pkg/tier"
	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

type object struct {
	data    []byte
	modTime time.Time
}

// Fake is an in-memory remote.Client. All methods are safe for
// concurrent use.
type Fake struct {
	mu      sync.Mutex
	objects map[string]object

	// now produces object mtimes; overridable for deterministic tests.
	now func() time.Time

	// Error injection. When set, the matching operations fail with the
	// given error until cleared.
	writeErr  error
	readErr   error
	listErr   error
	deleteErr error

	// failWritesAfter, when >= 0, allows that many successful writes
	// and fails the rest. -1 disables the counter.
	failWritesAfter int

	writeCount int
}

// New creates an empty fake remote.
func New() *Fake {
	return &Fake{
		objects:         make(map[string]object),
		now:             time.Now,
		failWritesAfter: -1,
	}
}

// SetClock overrides the time source used for object mtimes.
func (f *Fake) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Seed inserts an object directly, bypassing error injection.
func (f *Fake) Seed(path string, data []byte, modTime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[clean(path)] = object{data: append([]byte(nil), data...), modTime: modTime}
}

// FailWrites makes subsequent writes fail with err (nil clears).
func (f *Fake) FailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// FailWritesAfter lets n writes succeed and fails the rest with err.
func (f *Fake) FailWritesAfter(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWritesAfter = n
	f.writeErr = err
}

// FailReads makes subsequent reads fail with err (nil clears).
func (f *Fake) FailReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// FailLists makes subsequent lists fail with err (nil clears).
func (f *Fake) FailLists(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// WriteCount returns the number of Write calls, including failed ones.
func (f *Fake) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeCount
}

// Exists reports whether an object is stored at path.
func (f *Fake) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[clean(path)]
	return ok
}

// ObjectCount returns the number of stored objects.
func (f *Fake) ObjectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func clean(path string) string {
	return strings.Trim(path, "/")
}

// List implements remote.Client.
func (f *Fake) List(ctx context.Context, path string) ([]tier.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	dir := clean(path)
	prefix := dir
	if prefix != "" {
		prefix += "/"
	}

	files := make(map[string]object)
	dirs := make(map[string]time.Time)
	for p, obj := range f.objects {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			// Deeper object implies an intermediate directory.
			name := rest[:idx]
			if obj.modTime.After(dirs[name]) {
				dirs[name] = obj.modTime
			}
		} else {
			files[rest] = obj
		}
	}

	if dir != "" && len(files) == 0 && len(dirs) == 0 {
		if _, isObject := f.objects[dir]; isObject {
			return nil, tiererrors.NewNotDirectory(path)
		}
		return nil, tiererrors.NewNotFound(path)
	}

	entries := make([]tier.Entry, 0, len(files)+len(dirs))
	for name, obj := range files {
		entries = append(entries, tier.Entry{
			Path:     join(dir, name),
			Kind:     tier.KindFile,
			Size:     uint64(len(obj.data)),
			ModTime:  obj.modTime,
			Location: tier.LocationRemote,
		})
	}
	for name, mtime := range dirs {
		entries = append(entries, tier.Entry{
			Path:     join(dir, name),
			Kind:     tier.KindDirectory,
			ModTime:  mtime,
			Location: tier.LocationRemote,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// Stat implements remote.Client.
func (f *Fake) Stat(ctx context.Context, path string) (tier.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return tier.Entry{}, f.readErr
	}

	p := clean(path)
	if obj, ok := f.objects[p]; ok {
		return tier.Entry{
			Path:     p,
			Kind:     tier.KindFile,
			Size:     uint64(len(obj.data)),
			ModTime:  obj.modTime,
			Location: tier.LocationRemote,
		}, nil
	}

	// Directory if any object lives under it.
	prefix := p + "/"
	if p == "" {
		prefix = ""
	}
	var newest time.Time
	found := p == ""
	for op, obj := range f.objects {
		if strings.HasPrefix(op, prefix) {
			found = true
			if obj.modTime.After(newest) {
				newest = obj.modTime
			}
		}
	}
	if !found {
		return tier.Entry{}, tiererrors.NewNotFound(path)
	}
	return tier.Entry{
		Path:     p,
		Kind:     tier.KindDirectory,
		ModTime:  newest,
		Location: tier.LocationRemote,
	}, nil
}

// Read implements remote.Client.
func (f *Fake) Read(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return nil, f.readErr
	}

	obj, ok := f.objects[clean(path)]
	if !ok {
		return nil, tiererrors.NewNotFound(path)
	}

	size := int64(len(obj.data))
	if offset < 0 || offset > size {
		return nil, tiererrors.NewInvalidPath(path)
	}
	end := size
	if length >= 0 && offset+length < size {
		end = offset + length
	}
	return append([]byte(nil), obj.data[offset:end]...), nil
}

// Write implements remote.Client.
func (f *Fake) Write(ctx context.Context, path string, data []byte) (tier.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writeCount++
	if f.writeErr != nil {
		if f.failWritesAfter < 0 {
			return tier.Entry{}, f.writeErr
		}
		if f.failWritesAfter == 0 {
			return tier.Entry{}, f.writeErr
		}
		f.failWritesAfter--
	}

	p := clean(path)
	obj := object{data: append([]byte(nil), data...), modTime: f.now()}
	f.objects[p] = obj

	return tier.Entry{
		Path:     p,
		Kind:     tier.KindFile,
		Size:     uint64(len(obj.data)),
		ModTime:  obj.modTime,
		Location: tier.LocationRemote,
	}, nil
}

// Move implements remote.Client.
func (f *Fake) Move(ctx context.Context, path, newPath string) (tier.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return tier.Entry{}, f.writeErr
	}

	src, dst := clean(path), clean(newPath)
	obj, ok := f.objects[src]
	if !ok {
		return tier.Entry{}, tiererrors.NewNotFound(path)
	}
	delete(f.objects, src)
	f.objects[dst] = obj

	return tier.Entry{
		Path:     dst,
		Kind:     tier.KindFile,
		Size:     uint64(len(obj.data)),
		ModTime:  obj.modTime,
		Location: tier.LocationRemote,
	}, nil
}

// Delete implements remote.Client.
func (f *Fake) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}

	p := clean(path)
	if _, ok := f.objects[p]; !ok {
		return tiererrors.NewNotFound(path)
	}
	delete(f.objects, p)
	return nil
}

// FailDeletes makes subsequent deletes fail with err (nil clears).
func (f *Fake) FailDeletes(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

// HealthCheck implements remote.Client.
func (f *Fake) HealthCheck(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return f.listErr
	}
	return nil
}

// Close implements remote.Client.
func (f *Fake) Close() error {
	return nil
}

// Ensure Fake implements remote.Client.
var _ remote.Client = (*Fake)(nil)
