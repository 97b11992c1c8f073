package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Index modes for the gallery matcher.
const (
	IndexExact = "exact"
	IndexHNSW  = "hnsw"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Matching   MatchingConfig   `yaml:"matching"`
	Registrar  RegistrarConfig  `yaml:"registrar"`
	Session    SessionConfig    `yaml:"session"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

type DatabaseConfig struct {
	URL          string `yaml:"-"`              // PostgreSQL connection URL, in-memory store when empty
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type MatchingConfig struct {
	Threshold      float64 `yaml:"threshold"`       // τ, maximum distance accepted as a match
	DedupThreshold float64 `yaml:"dedup_threshold"` // ε, must be below Threshold
	Index          string  `yaml:"index"`           // exact or hnsw
	IndexPath      string  `yaml:"index_path"`      // Path to persist the HNSW graph (optional)
	Candidates     int     `yaml:"candidates"`      // HNSW shortlist size
}

type RegistrarConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

type SessionConfig struct {
	PendingCapacity    int     `yaml:"pending_capacity"`
	AccrueOnMatch      bool    `yaml:"accrue_on_match"`
	IdleTimeoutMinutes int     `yaml:"idle_timeout_minutes"`
	CaptureRate        float64 `yaml:"capture_rate"` // captures per second per session
	CaptureBurst       int     `yaml:"capture_burst"`
}

// IdleTimeout returns the idle session lifetime.
func (c *SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

type AttendanceConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves the timezone used for attendance day boundaries.
func (c *AttendanceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

type ServerConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // rotated log file, stdout only when empty
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() *Config {
	var d Config
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Matching: MatchingConfig{
			Threshold:      envFloat("MATCH_THRESHOLD", d.Matching.Threshold),
			DedupThreshold: envFloat("DEDUP_THRESHOLD", d.Matching.DedupThreshold),
			Index:          strings.ToLower(envString("MATCH_INDEX", d.Matching.Index)),
			IndexPath:      envString("HNSW_INDEX_PATH", d.Matching.IndexPath),
			Candidates:     envInt("MATCH_CANDIDATES", d.Matching.Candidates),
		},
		Registrar: RegistrarConfig{
			MaxRetries: envInt("REGISTRAR_MAX_RETRIES", d.Registrar.MaxRetries),
		},
		Session: SessionConfig{
			PendingCapacity:    envInt("PENDING_CAPACITY", d.Session.PendingCapacity),
			AccrueOnMatch:      envBool("ACCRUE_ON_MATCH", d.Session.AccrueOnMatch),
			IdleTimeoutMinutes: envInt("SESSION_IDLE_TIMEOUT_MINUTES", d.Session.IdleTimeoutMinutes),
			CaptureRate:        envFloat("CAPTURE_RATE", d.Session.CaptureRate),
			CaptureBurst:       envInt("CAPTURE_BURST", d.Session.CaptureBurst),
		},
		Attendance: AttendanceConfig{
			Timezone: envString("ATTENDANCE_TIMEZONE", d.Attendance.Timezone),
		},
		Server: ServerConfig{
			AllowedOrigins: envList("CORS_ALLOWED_ORIGINS", d.Server.AllowedOrigins),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", d.Log.Level),
			File:  envString("LOG_FILE", d.Log.File),
		},
	}
}

// Validate checks thresholds and enumerations that the rest of the system relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.Matching.Threshold <= 0 {
		errs = append(errs, errors.New("MATCH_THRESHOLD must be positive"))
	}
	if c.Matching.DedupThreshold <= 0 || c.Matching.DedupThreshold >= c.Matching.Threshold {
		errs = append(errs, fmt.Errorf("DEDUP_THRESHOLD (%.3f) must be positive and below MATCH_THRESHOLD (%.3f)",
			c.Matching.DedupThreshold, c.Matching.Threshold))
	}
	if c.Matching.Index != IndexExact && c.Matching.Index != IndexHNSW {
		errs = append(errs, fmt.Errorf("MATCH_INDEX must be %q or %q, got %q", IndexExact, IndexHNSW, c.Matching.Index))
	}
	if _, err := c.Attendance.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
