package sqlite

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

	res, err := db.ExecContext(ctx, `INSERT INTO profiles (name) VALUES (?)`, name)
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to insert profile: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to read profile id: %w", err)
	}

	return models.Profile{ID: id, Name: name}, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	return s.queryProfiles(ctx, `SELECT id, name FROM profiles ORDER BY name ASC, id ASC`)
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
			if _, err := tx.ExecContext(ctx, `DELETE FROM jaap_logs WHERE profile_id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete logs for profile %d: %w", id, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete profile %d: %w", id, err)
		}
		return nil
	})
}

// requireProfile enforces the profile reference in IntegrityEnforced mode.
func (s *Store) requireProfile(ctx context.Context, tx *sql.Tx, profileID int64) error {
	if s.mode != storage.IntegrityEnforced {
		return nil
	}
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE id = ?`, profileID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("profile %d: %w", profileID, storage.ErrNotFound)
	}
	return nil
}
