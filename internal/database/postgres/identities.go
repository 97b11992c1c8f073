package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

// IdentityRepository provides PostgreSQL-backed identity storage
type IdentityRepository struct {
	pool *Pool
}

var _ database.IdentityStore = (*IdentityRepository)(nil)

// NewIdentityRepository creates a new PostgreSQL identity repository
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// readSnapshot runs fn inside a read-only repeatable-read transaction so the
// identity, descriptor and photo queries observe the same state.
func (r *IdentityRepository) readSnapshot(ctx context.Context, fn func(q queryer) error) error {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	if err := fn(tx); err != nil {
		return err
	}
	return classify("commit read", tx.Commit())
}

// ListIdentities returns every identity in creation order.
func (r *IdentityRepository) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	var out []database.Identity
	err := r.readSnapshot(ctx, func(q queryer) error {
		var err error
		out, err = loadIdentities(ctx, q, "", true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListDescriptors returns every identity in creation order without loading photos.
func (r *IdentityRepository) ListDescriptors(ctx context.Context) ([]database.Identity, error) {
	var out []database.Identity
	err := r.readSnapshot(ctx, func(q queryer) error {
		var err error
		out, err = loadIdentities(ctx, q, "", false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetIdentity returns one identity or database.ErrNotFound.
func (r *IdentityRepository) GetIdentity(ctx context.Context, externalID string) (*database.Identity, error) {
	var out []database.Identity
	err := r.readSnapshot(ctx, func(q queryer) error {
		var err error
		out, err = loadIdentities(ctx, q, externalID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, database.ErrNotFound
	}
	return &out[0], nil
}

// IdentityVersion reads one identity's version without its descriptors or photos.
func (r *IdentityRepository) IdentityVersion(ctx context.Context, externalID string) (int64, error) {
	var v int64
	err := r.pool.QueryRow(ctx, "SELECT version FROM identities WHERE id = $1", externalID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, database.ErrNotFound
	}
	if err != nil {
		return 0, classify("read identity version", err)
	}
	return v, nil
}

// Version returns the store mutation counter.
func (r *IdentityRepository) Version(ctx context.Context) (int64, error) {
	var v int64
	if err := r.pool.QueryRow(ctx, "SELECT version FROM store_version").Scan(&v); err != nil {
		return 0, classify("read store version", err)
	}
	return v, nil
}

// CreateIdentity inserts the identity with its first descriptor and photo.
func (r *IdentityRepository) CreateIdentity(ctx context.Context, displayName, externalID string, descriptor facematch.FaceVector, photo string) (*database.Identity, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (id, display_name, version)
		VALUES ($1, $2, 1)
	`, externalID, displayName)
	if hasCode(err, codeUniqueViolation) {
		return nil, database.ErrDuplicateIdentity
	}
	if err != nil {
		return nil, classify("insert identity", err)
	}

	if err := insertDescriptorAndPhoto(ctx, tx, externalID, descriptor, photo); err != nil {
		return nil, err
	}
	return r.finishWrite(ctx, tx, externalID)
}

// AppendDescriptor appends one descriptor and one photo under a version check.
// The conditional UPDATE takes the row lock that serializes appends per identity.
func (r *IdentityRepository) AppendDescriptor(ctx context.Context, externalID string, expectedVersion int64, descriptor facematch.FaceVector, photo string) (*database.Identity, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var newVersion int64
	err = tx.QueryRowContext(ctx, `
		UPDATE identities
		SET version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version
	`, externalID, expectedVersion).Scan(&newVersion)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM identities WHERE id = $1)", externalID).Scan(&exists); err != nil {
			return nil, classify("check identity", err)
		}
		if !exists {
			return nil, database.ErrNotFound
		}
		return nil, database.ErrConcurrentModification
	}
	if err != nil {
		return nil, classify("bump identity version", err)
	}

	if err := insertDescriptorAndPhoto(ctx, tx, externalID, descriptor, photo); err != nil {
		return nil, err
	}
	return r.finishWrite(ctx, tx, externalID)
}

func insertDescriptorAndPhoto(ctx context.Context, tx *sql.Tx, externalID string, descriptor facematch.FaceVector, photo string) error {
	vec := pgvector.NewVector([]float32(descriptor))
	_, err := tx.ExecContext(ctx, `
		INSERT INTO identity_descriptors (identity_id, position, embedding)
		SELECT $1, COALESCE(MAX(position) + 1, 0), $2
		FROM identity_descriptors WHERE identity_id = $1
	`, externalID, vec)
	if err != nil {
		return classify("insert descriptor", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO identity_photos (identity_id, position, photo)
		SELECT $1, COALESCE(MAX(position) + 1, 0), $2
		FROM identity_photos WHERE identity_id = $1
	`, externalID, photo)
	if err != nil {
		return classify("insert photo", err)
	}
	return nil
}

// finishWrite bumps the store version, reloads the identity and commits.
func (r *IdentityRepository) finishWrite(ctx context.Context, tx *sql.Tx, externalID string) (*database.Identity, error) {
	if _, err := tx.ExecContext(ctx, "UPDATE store_version SET version = version + 1"); err != nil {
		return nil, classify("bump store version", err)
	}

	identities, err := loadIdentities(ctx, tx, externalID, true)
	if err != nil {
		return nil, err
	}
	if len(identities) == 0 {
		return nil, database.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("commit", err)
	}
	return &identities[0], nil
}

// loadIdentities loads identities with descriptors, and photos when
// withPhotos is set. All identities are loaded when externalID is empty.
func loadIdentities(ctx context.Context, q queryer, externalID string, withPhotos bool) ([]database.Identity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, display_name, version, created_at, updated_at
		FROM identities
		WHERE $1 = '' OR id = $1
		ORDER BY seq
	`, externalID)
	if err != nil {
		return nil, classify("query identities", err)
	}
	defer rows.Close()

	var identities []database.Identity
	index := make(map[string]int)
	for rows.Next() {
		var ident database.Identity
		if err := rows.Scan(&ident.ID, &ident.DisplayName, &ident.Version, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		index[ident.ID] = len(identities)
		identities = append(identities, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate identities", err)
	}
	if len(identities) == 0 {
		return identities, nil
	}

	if err := loadDescriptors(ctx, q, externalID, identities, index); err != nil {
		return nil, err
	}
	if !withPhotos {
		return identities, nil
	}
	if err := loadPhotos(ctx, q, externalID, identities, index); err != nil {
		return nil, err
	}
	return identities, nil
}

func loadDescriptors(ctx context.Context, q queryer, externalID string, identities []database.Identity, index map[string]int) error {
	rows, err := q.QueryContext(ctx, `
		SELECT identity_id, embedding
		FROM identity_descriptors
		WHERE $1 = '' OR identity_id = $1
		ORDER BY identity_id, position
	`, externalID)
	if err != nil {
		return classify("query descriptors", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return fmt.Errorf("scan descriptor: %w", err)
		}
		if i, ok := index[id]; ok {
			identities[i].Descriptors = append(identities[i].Descriptors, facematch.FaceVector(vec.Slice()))
		}
	}
	if err := rows.Err(); err != nil {
		return classify("iterate descriptors", err)
	}
	return nil
}

func loadPhotos(ctx context.Context, q queryer, externalID string, identities []database.Identity, index map[string]int) error {
	rows, err := q.QueryContext(ctx, `
		SELECT identity_id, photo
		FROM identity_photos
		WHERE $1 = '' OR identity_id = $1
		ORDER BY identity_id, position
	`, externalID)
	if err != nil {
		return classify("query photos", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, photo string
		if err := rows.Scan(&id, &photo); err != nil {
			return fmt.Errorf("scan photo: %w", err)
		}
		if i, ok := index[id]; ok {
			identities[i].Photos = append(identities[i].Photos, photo)
		}
	}
	if err := rows.Err(); err != nil {
		return classify("iterate photos", err)
	}
	return nil
}
