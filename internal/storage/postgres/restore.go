package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/storage"
)

type restoreTx struct {
	tx *sql.Tx
}

var sequenceTables = []string{"profiles", "jaap_logs"}

// Restore runs fn in one transaction and then moves both id sequences past the
// highest restored id, since explicit-id inserts do not advance them.
func (s *Store) Restore(ctx context.Context, fn func(tx storage.RestoreTx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := fn(&restoreTx{tx: tx}); err != nil {
			return err
		}
		for _, table := range sequenceTables {
			q := fmt.Sprintf(
				`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)`,
				table, table)
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("failed to sync %s id sequence: %w", table, err)
			}
		}
		return nil
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

func (r *restoreTx) ResetIDSequence(ctx context.Context) error {
	for _, table := range sequenceTables {
		q := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', 'id'), 1, false)`, table)
		if _, err := r.tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *restoreTx) InsertProfileWithID(ctx context.Context, p models.Profile) error {
	_, err := r.tx.ExecContext(ctx, `INSERT INTO profiles (id, name) VALUES ($1, $2)`, p.ID, p.Name)
	return err
}

func (r *restoreTx) InsertLogWithID(ctx context.Context, e models.LogEntry) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO jaap_logs (id, profile_id, date, count) VALUES ($1, $2, $3, $4)`,
		e.ID, e.ProfileID, e.Date, e.Count)
	return err
}
