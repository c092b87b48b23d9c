package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/storage"
)

const logColumns = `id, profile_id, date, count`

func scanLog(row interface{ Scan(...any) error }) (models.LogEntry, error) {
	var e models.LogEntry
	err := row.Scan(&e.ID, &e.ProfileID, &e.Date, &e.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LogEntry{}, storage.ErrNotFound
	}
	return e, err
}

func (s *Store) GetLog(ctx context.Context, id int64) (models.LogEntry, error) {
	db, err := s.conn()
	if err != nil {
		return models.LogEntry{}, err
	}
	return scanLog(db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM jaap_logs WHERE id = $1`, id))
}

func (s *Store) GetLogForDate(ctx context.Context, profileID int64, date models.Date) (models.LogEntry, error) {
	db, err := s.conn()
	if err != nil {
		return models.LogEntry{}, err
	}
	return scanLog(db.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM jaap_logs WHERE profile_id = $1 AND date = $2 LIMIT 1`,
		profileID, date))
}

func (s *Store) InsertLog(ctx context.Context, entry models.LogEntry) (models.LogEntry, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireProfile(ctx, tx, entry.ProfileID); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO jaap_logs (profile_id, date, count) VALUES ($1, $2, $3) RETURNING id`,
			entry.ProfileID, entry.Date, entry.Count).Scan(&entry.ID)
		if isUniqueViolation(err) {
			return fmt.Errorf("log for profile %d on %s: %w", entry.ProfileID, entry.Date, storage.ErrAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("failed to insert log: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.LogEntry{}, err
	}
	return entry, nil
}

func (s *Store) UpdateLog(ctx context.Context, entry models.LogEntry) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`UPDATE jaap_logs SET profile_id = $1, date = $2, count = $3 WHERE id = $4`,
		entry.ProfileID, entry.Date, entry.Count, entry.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("log for profile %d on %s: %w", entry.ProfileID, entry.Date, storage.ErrAlreadyExists)
	}
	return err
}

func (s *Store) UpdateLogCount(ctx context.Context, id int64, count int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `UPDATE jaap_logs SET count = $1 WHERE id = $2`, count, id)
	return err
}

func (s *Store) IncrementLog(ctx context.Context, profileID int64, date models.Date, delta int64) (models.LogEntry, error) {
	var entry models.LogEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireProfile(ctx, tx, profileID); err != nil {
			return err
		}
		var err error
		entry, err = scanLog(tx.QueryRowContext(ctx, `
			INSERT INTO jaap_logs (profile_id, date, count) VALUES ($1, $2, $3)
			ON CONFLICT (profile_id, date) DO UPDATE SET count = jaap_logs.count + EXCLUDED.count
			RETURNING `+logColumns,
			profileID, date, delta))
		return err
	})
	return entry, err
}

func (s *Store) DeleteLog(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM jaap_logs WHERE id = $1`, id)
	return err
}

func (s *Store) ListLogsForProfile(ctx context.Context, profileID int64) ([]models.LogEntry, error) {
	return s.queryLogs(ctx,
		`SELECT `+logColumns+` FROM jaap_logs WHERE profile_id = $1 ORDER BY date DESC, id DESC`,
		profileID)
}

func (s *Store) ListAllLogsRaw(ctx context.Context) ([]models.LogEntry, error) {
	return s.queryLogs(ctx, `SELECT `+logColumns+` FROM jaap_logs ORDER BY id`)
}

func (s *Store) queryLogs(ctx context.Context, query string, args ...any) ([]models.LogEntry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LogEntry{}
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) SumCountForRange(ctx context.Context, profileID int64, start, end models.Date) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	var sum int64
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0)::BIGINT FROM jaap_logs WHERE profile_id = $1 AND date BETWEEN $2 AND $3`,
		profileID, start, end).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum counts: %w", err)
	}
	return sum, nil
}

func (s *Store) PruneOrphanLogs(ctx context.Context) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		`DELETE FROM jaap_logs l WHERE NOT EXISTS (SELECT 1 FROM profiles p WHERE p.id = l.profile_id)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune orphan logs: %w", err)
	}
	return res.RowsAffected()
}
