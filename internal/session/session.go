// Package session runs capture sessions: each capture is matched against the
// shared gallery, matched faces are recorded as present and unmatched faces
// are staged for operator confirmation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holelung/Face-recognition-attendance-check/internal/attendance"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
	"github.com/holelung/Face-recognition-attendance-check/internal/registrar"
	"github.com/holelung/Face-recognition-attendance-check/internal/unknowns"
)

var (
	// ErrInvalidThresholds is returned when the dedup threshold is not below the match threshold.
	ErrInvalidThresholds = errors.New("dedup threshold must be smaller than match threshold")
	// ErrPendingNotFound is returned when resolving a key that is not pending.
	ErrPendingNotFound = errors.New("pending face not found")
	// ErrInvalidResolution is returned for an unknown resolution mode.
	ErrInvalidResolution = errors.New("invalid resolution")
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")
)

// Config holds the per-session policy shared by every session of an Engine.
type Config struct {
	DedupThreshold  float64
	PendingCapacity int
	AccrueOnMatch   bool
}

// Engine wires the shared collaborators. One Engine serves many sessions.
type Engine struct {
	cfg       Config
	matcher   *facematch.Matcher
	source    facematch.SubjectSource
	registrar *registrar.Registrar
	recorder  *attendance.Recorder
	log       logrus.FieldLogger
}

// NewEngine validates thresholds against the matcher's current gallery.
func NewEngine(cfg Config, matcher *facematch.Matcher, source facematch.SubjectSource,
	reg *registrar.Registrar, rec *attendance.Recorder, log logrus.FieldLogger,
) (*Engine, error) {
	if tau := matcher.Current().Threshold(); cfg.DedupThreshold <= 0 || cfg.DedupThreshold >= tau {
		return nil, fmt.Errorf("%w: epsilon=%.3f tau=%.3f", ErrInvalidThresholds, cfg.DedupThreshold, tau)
	}
	return &Engine{
		cfg:       cfg,
		matcher:   matcher,
		source:    source,
		registrar: reg,
		recorder:  rec,
		log:       log,
	}, nil
}

// Matcher returns the shared matcher.
func (e *Engine) Matcher() *facematch.Matcher { return e.matcher }

// Rebuild swaps in a fresh gallery built from the store.
func (e *Engine) Rebuild(ctx context.Context) (*facematch.Gallery, error) {
	g, err := e.matcher.Rebuild(ctx, e.source)
	if err != nil {
		return nil, err
	}
	if g.IndexError() != nil {
		e.log.WithError(g.IndexError()).Warn("gallery index build failed, using exact scan")
	}
	e.log.WithFields(logrus.Fields{
		"version":     g.Version(),
		"descriptors": g.Size(),
		"labels":      len(g.Labels()),
		"indexed":     g.Indexed(),
	}).Debug("gallery rebuilt")
	return g, nil
}

// Session is one camera feed's working set. Its operations are serialized.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine   *Engine
	pending  *unknowns.Table
	mu       sync.Mutex
	accrued  map[string]bool
	lastUsed atomic.Int64 // unix nanoseconds, read without mu by the sweeper
	closed   bool
	log      logrus.FieldLogger
}

func newSession(id string, e *Engine, now time.Time) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		engine:    e,
		pending:   unknowns.New(e.cfg.DedupThreshold, e.cfg.PendingCapacity),
		accrued:   make(map[string]bool),
		log:       e.log.WithField("session_id", id),
	}
	s.touch(now)
	return s
}

// CaptureResult describes what happened to one capture.
type CaptureResult struct {
	Match      facematch.MatchResult
	Attendance *attendance.Result // set when matched
	Accrued    bool               // descriptor appended to the matched identity
	Pending    *unknowns.Pending  // set when a new unknown was staged
	Suppressed bool               // unknown face already pending
}

// Capture matches one descriptor. The gallery is refreshed first when the
// store has moved; a failed refresh falls back to the current snapshot.
func (s *Session) Capture(ctx context.Context, descriptor facematch.FaceVector, photo string, at time.Time) (*CaptureResult, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionNotFound
	}

	g, err := s.engine.matcher.RefreshIfStale(ctx, s.engine.source)
	if err != nil {
		s.log.WithError(err).Warn("gallery refresh failed, matching against previous snapshot")
	}

	res := &CaptureResult{Match: g.Match(descriptor)}
	if !res.Match.Matched() {
		p, created := s.pending.Offer(descriptor, photo)
		res.Pending = p
		res.Suppressed = !created
		if created {
			s.log.WithField("key", p.Key).Info("staged unknown face")
		}
		return res, nil
	}

	id := res.Match.IdentityID
	if s.engine.cfg.AccrueOnMatch && photo != "" && !s.accrued[id] {
		res.Accrued = s.accrue(ctx, id, descriptor, photo)
	}

	rec, err := s.engine.recorder.Record(ctx, id, at)
	if err != nil {
		return nil, fmt.Errorf("record attendance for %s: %w", id, err)
	}
	res.Attendance = &rec
	return res, nil
}

// accrue appends the matched descriptor once per identity per session.
func (s *Session) accrue(ctx context.Context, id string, descriptor facematch.FaceVector, photo string) bool {
	if _, err := s.engine.registrar.AppendToExisting(ctx, id, descriptor, photo); err != nil {
		s.log.WithError(err).WithField("identity_id", id).Warn("descriptor accrual failed")
		return false
	}
	s.accrued[id] = true
	if _, err := s.engine.Rebuild(ctx); err != nil {
		s.log.WithError(err).Warn("gallery rebuild after accrual failed")
	}
	return true
}

// Mode selects how a pending face is resolved.
type Mode string

const (
	ModeNew      Mode = "new"
	ModeExisting Mode = "existing"
)

// Resolution is the operator's decision for a pending face.
type Resolution struct {
	Mode        Mode
	ExternalID  string
	DisplayName string // required for ModeNew
}

// Resolve registers or appends a pending face, removes it from the working
// set and rebuilds the gallery so the next capture sees the new descriptor.
func (s *Session) Resolve(ctx context.Context, key string, r Resolution) (*database.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionNotFound
	}

	p, ok := s.pending.Get(key)
	if !ok {
		return nil, ErrPendingNotFound
	}

	var (
		ident *database.Identity
		err   error
	)
	switch r.Mode {
	case ModeNew:
		ident, err = s.engine.registrar.RegisterNew(ctx, r.DisplayName, r.ExternalID, p.Descriptor, p.Photo)
	case ModeExisting:
		ident, err = s.engine.registrar.AppendToExisting(ctx, r.ExternalID, p.Descriptor, p.Photo)
	default:
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidResolution, r.Mode)
	}
	if err != nil {
		return nil, err
	}

	s.pending.Resolve(key)
	if _, err := s.engine.Rebuild(ctx); err != nil {
		s.log.WithError(err).Warn("gallery rebuild after resolve failed")
	}
	s.log.WithFields(logrus.Fields{"key": key, "identity_id": ident.ID, "mode": r.Mode}).Info("resolved pending face")
	return ident, nil
}

// Pending lists staged unknown faces, oldest first.
func (s *Session) Pending() []unknowns.Pending {
	return s.pending.List()
}

// Close discards the working set. Further operations fail.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending.Clear()
	clear(s.accrued)
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}
