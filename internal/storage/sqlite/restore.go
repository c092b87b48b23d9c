package sqlite

import (
	"context"
	"database/sql"

	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/storage"
)

type restoreTx struct {
	tx *sql.Tx
}

func (s *Store) Restore(ctx context.Context, fn func(tx storage.RestoreTx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&restoreTx{tx: tx})
	})
}

func (r *restoreTx) ClearAllLogs(ctx context.Context) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM jaap_logs`)
	return err
}

func (r *restoreTx) ClearAllProfiles(ctx context.Context) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM profiles`)
	return err
}

// ResetIDSequence drops the AUTOINCREMENT high-water marks; SQLite recreates
// them from the inserted ids.
func (r *restoreTx) ResetIDSequence(ctx context.Context) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name IN ('profiles', 'jaap_logs')`)
	return err
}

func (r *restoreTx) InsertProfileWithID(ctx context.Context, p models.Profile) error {
	_, err := r.tx.ExecContext(ctx, `INSERT INTO profiles (id, name) VALUES (?, ?)`, p.ID, p.Name)
	return err
}

func (r *restoreTx) InsertLogWithID(ctx context.Context, e models.LogEntry) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO jaap_logs (id, profile_id, date, count) VALUES (?, ?, ?, ?)`,
		e.ID, e.ProfileID, e.Date, e.Count)
	return err
}
