package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/holelung/Face-recognition-attendance-check/internal/attendance"
	"github.com/holelung/Face-recognition-attendance-check/internal/config"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/database/memory"
	"github.com/holelung/Face-recognition-attendance-check/internal/database/postgres"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
	"github.com/holelung/Face-recognition-attendance-check/internal/logger"
	"github.com/holelung/Face-recognition-attendance-check/internal/registrar"
	"github.com/holelung/Face-recognition-attendance-check/internal/session"
)

// backend holds the storage selected from configuration.
type backend struct {
	identities database.IdentityStore
	attendance database.AttendanceStore
	pool       *postgres.Pool
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// loadConfig loads and validates configuration, applying the --log-level flag.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	return logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
}

// openBackend connects to PostgreSQL when DATABASE_URL is set. With allowMemory
// the in-memory store is used otherwise; records then live only for the process.
func openBackend(cfg *config.Config, log logrus.FieldLogger, allowMemory bool) (*backend, error) {
	if cfg.Database.URL == "" {
		if !allowMemory {
			return nil, errors.New("DATABASE_URL environment variable is required")
		}
		log.Warn("DATABASE_URL not set, using in-memory store")
		store := memory.New()
		return &backend{identities: store, attendance: store}, nil
	}

	log.Info("connecting to PostgreSQL")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	ctx := context.Background()
	identities, err := database.GetIdentityStore(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	attendanceStore, err := database.GetAttendanceStore(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("using PostgreSQL backend")
	return &backend{identities: identities, attendance: attendanceStore, pool: pool}, nil
}

// newMatcher builds the gallery matcher, with an HNSW shortlist when configured.
func newMatcher(cfg *config.Config) *facematch.Matcher {
	opts := []facematch.Option{facematch.WithThreshold(cfg.Matching.Threshold)}
	if cfg.Matching.Index == config.IndexHNSW {
		opts = append(opts, facematch.WithIndex(database.NewIndexBuilder(cfg.Matching.IndexPath), cfg.Matching.Candidates))
	}
	return facematch.NewMatcher(opts...)
}

func newRecorder(cfg *config.Config, b *backend, log logrus.FieldLogger) (*attendance.Recorder, error) {
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, err
	}
	return attendance.NewRecorder(b.attendance, b.identities, log, attendance.WithLocation(loc)), nil
}

// components are the engine parts shared by the server and the CLI.
type components struct {
	registrar *registrar.Registrar
	recorder  *attendance.Recorder
	engine    *session.Engine
}

// buildComponents wires the engine and loads the initial gallery.
func buildComponents(ctx context.Context, cfg *config.Config, b *backend, log logrus.FieldLogger) (*components, error) {
	rec, err := newRecorder(cfg, b, log)
	if err != nil {
		return nil, err
	}
	reg := registrar.New(b.identities, cfg.Registrar.MaxRetries, log)

	engine, err := session.NewEngine(session.Config{
		DedupThreshold:  cfg.Matching.DedupThreshold,
		PendingCapacity: cfg.Session.PendingCapacity,
		AccrueOnMatch:   cfg.Session.AccrueOnMatch,
	}, newMatcher(cfg), database.NewGallerySource(b.identities), reg, rec, log)
	if err != nil {
		return nil, err
	}

	g, err := engine.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery: %w", err)
	}
	log.WithFields(logrus.Fields{
		"labels":      len(g.Labels()),
		"descriptors": g.Size(),
		"indexed":     g.Indexed(),
	}).Info("gallery loaded")

	return &components{registrar: reg, recorder: rec, engine: engine}, nil
}
