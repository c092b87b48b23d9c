package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GitSaviour/jaaptracker/internal/logger"
	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/storage"
)

var (
	// ErrEmptyDataset is returned by Export when there are no profiles.
	ErrEmptyDataset = errors.New("nothing to export: no profiles")
	// ErrMalformed is returned when a backup document cannot be decoded or
	// is missing required fields.
	ErrMalformed = errors.New("malformed backup document")
)

// Document is a full snapshot of the dataset with its original ids.
type Document struct {
	Profiles []models.Profile  `json:"profiles"`
	Logs     []models.LogEntry `json:"logs"`
}

// wire types use pointers so a missing field is distinguishable from a zero value
type wireDocument struct {
	Profiles []wireProfile `json:"profiles" validate:"required,min=1,dive"`
	Logs     []wireLog     `json:"logs" validate:"required,dive"`
}

type wireProfile struct {
	ID   *int64  `json:"id" validate:"required"`
	Name *string `json:"name" validate:"required"`
}

type wireLog struct {
	ID        *int64       `json:"id" validate:"required"`
	ProfileID *int64       `json:"profileId" validate:"required"`
	Date      *models.Date `json:"date" validate:"required"`
	Count     *int64       `json:"count" validate:"required,gte=0"`
}

// ImportReport summarises a committed import.
type ImportReport struct {
	RunID    string
	Profiles int
	Logs     int
	// Dropped counts logs whose profileId matched no profile in the document.
	Dropped int
}

func (r ImportReport) String() string {
	s := fmt.Sprintf("Imported %d profiles and %d logs", r.Profiles, r.Logs)
	if r.Dropped > 0 {
		s += fmt.Sprintf(" (%d logs without a profile skipped)", r.Dropped)
	}
	return s
}

// Codec exports and imports the whole dataset of a storage.Provider.
type Codec struct {
	store    storage.Provider
	validate *validator.Validate
}

func NewCodec(store storage.Provider) *Codec {
	return &Codec{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Snapshot reads every profile and log with their original ids.
func (c *Codec) Snapshot(ctx context.Context) (Document, error) {
	var doc Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profiles, err := c.store.ListAllProfilesRaw(gctx)
		if err != nil {
			return fmt.Errorf("failed to read profiles: %w", err)
		}
		doc.Profiles = profiles
		return nil
	})
	g.Go(func() error {
		logs, err := c.store.ListAllLogsRaw(gctx)
		if err != nil {
			return fmt.Errorf("failed to read logs: %w", err)
		}
		doc.Logs = logs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Export writes the dataset to w as an indented JSON document. Nothing is
// written when the dataset has no profiles or cannot be read.
func (c *Codec) Export(ctx context.Context, w io.Writer) error {
	doc, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(doc.Profiles) == 0 {
		return ErrEmptyDataset
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	logger.Info("Exported dataset", "profiles", len(doc.Profiles), "logs", len(doc.Logs))
	return nil
}

// Decode reads exactly one backup document from r. Unknown fields, missing
// fields, wrong types, bad dates, an empty profile list and two logs for the
// same profile and day all fail with ErrMalformed.
func (c *Codec) Decode(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var wire wireDocument
	if err := dec.Decode(&wire); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return Document{}, fmt.Errorf("%w: unexpected data after document", ErrMalformed)
	}
	if err := c.validate.Struct(wire); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	doc := Document{
		Profiles: make([]models.Profile, 0, len(wire.Profiles)),
		Logs:     make([]models.LogEntry, 0, len(wire.Logs)),
	}
	for _, p := range wire.Profiles {
		doc.Profiles = append(doc.Profiles, models.Profile{ID: *p.ID, Name: *p.Name})
	}

	type day struct {
		profileID int64
		date      models.Date
	}
	seen := make(map[day]bool, len(wire.Logs))
	for i, l := range wire.Logs {
		if l.Date.IsZero() {
			return Document{}, fmt.Errorf("%w: logs[%d] has no date", ErrMalformed, i)
		}
		k := day{*l.ProfileID, *l.Date}
		if seen[k] {
			return Document{}, fmt.Errorf("%w: logs[%d] repeats profile %d on %s", ErrMalformed, i, k.profileID, k.date)
		}
		seen[k] = true
		doc.Logs = append(doc.Logs, models.LogEntry{
			ID:        *l.ID,
			ProfileID: *l.ProfileID,
			Date:      *l.Date,
			Count:     *l.Count,
		})
	}
	return doc, nil
}

// Import replaces the whole dataset with the document read from r.
//
// Profiles get new ids 1..n in document order. Each profile's logs follow it,
// in document order, numbered by one counter shared across profiles. The
// replacement runs in a single transaction; on any error the previous dataset
// is left untouched.
func (c *Codec) Import(ctx context.Context, r io.Reader) (ImportReport, error) {
	doc, err := c.Decode(r)
	if err != nil {
		return ImportReport{}, err
	}
	return c.Restore(ctx, doc)
}

// Restore applies an already decoded document. See Import.
func (c *Codec) Restore(ctx context.Context, doc Document) (ImportReport, error) {
	report := ImportReport{RunID: uuid.NewString()}
	log := logger.Component("backup").With("run", report.RunID)

	byProfile := make(map[int64][]int, len(doc.Profiles))
	for i, l := range doc.Logs {
		byProfile[l.ProfileID] = append(byProfile[l.ProfileID], i)
	}

	err := c.store.Restore(ctx, func(tx storage.RestoreTx) error {
		report.Profiles, report.Logs = 0, 0

		if err := tx.ClearAllLogs(ctx); err != nil {
			return fmt.Errorf("failed to clear logs: %w", err)
		}
		if err := tx.ClearAllProfiles(ctx); err != nil {
			return fmt.Errorf("failed to clear profiles: %w", err)
		}
		if err := tx.ResetIDSequence(ctx); err != nil {
			return fmt.Errorf("failed to reset id sequence: %w", err)
		}

		claimed := make([]bool, len(doc.Logs))
		var nextLogID int64
		for i, p := range doc.Profiles {
			newID := int64(i + 1)
			if err := tx.InsertProfileWithID(ctx, models.Profile{ID: newID, Name: p.Name}); err != nil {
				return fmt.Errorf("failed to insert profile %q: %w", p.Name, err)
			}
			report.Profiles++

			for _, idx := range byProfile[p.ID] {
				l := doc.Logs[idx]
				nextLogID++
				entry := models.LogEntry{ID: nextLogID, ProfileID: newID, Date: l.Date, Count: l.Count}
				if err := tx.InsertLogWithID(ctx, entry); err != nil {
					return fmt.Errorf("failed to insert log %d: %w", l.ID, err)
				}
				claimed[idx] = true
				report.Logs++
			}
		}

		report.Dropped = 0
		for _, ok := range claimed {
			if !ok {
				report.Dropped++
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Import rolled back", "error", err)
		return ImportReport{}, fmt.Errorf("import failed: %w", err)
	}

	log.Info("Import committed", "profiles", report.Profiles, "logs", report.Logs, "dropped", report.Dropped)
	return report, nil
}
