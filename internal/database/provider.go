package database

import (
	"context"
	"fmt"
)

var (
	postgresIdentityStore   func() IdentityStore
	postgresAttendanceStore func() AttendanceStore
	postgresInitialized     bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(identities func() IdentityStore, attendance func() AttendanceStore) {
	postgresIdentityStore = identities
	postgresAttendanceStore = attendance
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetIdentityStore returns an IdentityStore from the PostgreSQL backend
func GetIdentityStore(ctx context.Context) (IdentityStore, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresIdentityStore == nil {
		return nil, fmt.Errorf("PostgreSQL identity store not registered")
	}
	return postgresIdentityStore(), nil
}

// GetAttendanceStore returns an AttendanceStore from the PostgreSQL backend
func GetAttendanceStore(ctx context.Context) (AttendanceStore, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresAttendanceStore == nil {
		return nil, fmt.Errorf("PostgreSQL attendance store not registered")
	}
	return postgresAttendanceStore(), nil
}
