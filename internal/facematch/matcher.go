package facematch

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// SubjectSource provides the identities a gallery is built from.
type SubjectSource interface {
	// Version returns a counter that increases on every store mutation.
	Version(ctx context.Context) (int64, error)
	// Subjects returns every identity in insertion order.
	Subjects(ctx context.Context) ([]Subject, error)
}

// Matcher holds the current gallery snapshot. Reads never block; rebuilds
// produce a new snapshot that replaces the previous one atomically.
type Matcher struct {
	current atomic.Pointer[Gallery]
	group   singleflight.Group
	opts    []Option
}

// NewMatcher returns a matcher with an empty gallery that is stale against any store.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{opts: opts}
	m.current.Store(BuildGallery(nil, -1, opts...))
	return m
}

// Current returns the snapshot in use.
func (m *Matcher) Current() *Gallery {
	return m.current.Load()
}

// Match looks the query up in the current snapshot.
func (m *Matcher) Match(query FaceVector) MatchResult {
	return m.Current().Match(query)
}

// Rebuild reads the source and swaps in a fresh snapshot.
// Concurrent rebuilds for the same store version share one build.
func (m *Matcher) Rebuild(ctx context.Context, src SubjectSource) (*Gallery, error) {
	version, err := src.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store version: %w", err)
	}

	v, err, _ := m.group.Do(strconv.FormatInt(version, 10), func() (any, error) {
		subjects, err := src.Subjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("load subjects: %w", err)
		}
		return m.swap(BuildGallery(subjects, version, m.opts...)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Gallery), nil
}

// RefreshIfStale rebuilds only when the store has moved past the snapshot version.
func (m *Matcher) RefreshIfStale(ctx context.Context, src SubjectSource) (*Gallery, error) {
	version, err := src.Version(ctx)
	if err != nil {
		return m.Current(), fmt.Errorf("read store version: %w", err)
	}
	if cur := m.Current(); cur.Version() >= version {
		return cur, nil
	}
	g, err := m.Rebuild(ctx, src)
	if err != nil {
		return m.Current(), err
	}
	return g, nil
}

// swap installs g unless a newer snapshot is already in place, and returns
// whichever snapshot ends up current.
func (m *Matcher) swap(g *Gallery) *Gallery {
	for {
		cur := m.current.Load()
		if cur != nil && cur.Version() > g.Version() {
			return cur
		}
		if m.current.CompareAndSwap(cur, g) {
			return g
		}
	}
}
