package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/storage"
)

func (s *Store) CreateProfile(ctx context.Context, name string) (models.Profile, error) {
	db, err := s.conn()
	if err != nil {
		return models.Profile{}, err
	}

	p := models.Profile{Name: name}
	if err := db.QueryRowContext(ctx, `INSERT INTO profiles (name) VALUES ($1) RETURNING id`, name).Scan(&p.ID); err != nil {
		return models.Profile{}, fmt.Errorf("failed to insert profile: %w", err)
	}
	return p, nil
}

// ListProfiles orders by name using the C collation so both backends agree on
// byte-wise ordering.
func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	return s.queryProfiles(ctx, `SELECT id, name FROM profiles ORDER BY name COLLATE "C" ASC, id ASC`)
}

func (s *Store) ListAllProfilesRaw(ctx context.Context) ([]models.Profile, error) {
	return s.queryProfiles(ctx, `SELECT id, name FROM profiles ORDER BY id`)
}

func (s *Store) queryProfiles(ctx context.Context, query string) ([]models.Profile, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *Store) DeleteProfile(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if s.mode == storage.IntegrityEnforced {
			if _, err := tx.ExecContext(ctx, `DELETE FROM jaap_logs WHERE profile_id = $1`, id); err != nil {
				return fmt.Errorf("failed to delete logs for profile %d: %w", id, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete profile %d: %w", id, err)
		}
		return nil
	})
}

// requireProfile locks the profile row so a concurrent delete cannot orphan the
// log written in the same transaction.
func (s *Store) requireProfile(ctx context.Context, tx *sql.Tx, profileID int64) error {
	if s.mode != storage.IntegrityEnforced {
		return nil
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM profiles WHERE id = $1 FOR SHARE`, profileID).Scan(&id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("profile %d: %w", profileID, storage.ErrNotFound)
	}
	return err
}
