package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/storage"
	"github.com/GitSaviour/jaaptracker/internal/storage/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "backup.db"), storage.IntegrityEnforced)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func date(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// seedWithIDs writes rows with explicit ids, as if exported from another device.
func seedWithIDs(t *testing.T, store storage.Provider, profiles []models.Profile, logs []models.LogEntry) {
	t.Helper()
	ctx := context.Background()
	err := store.Restore(ctx, func(tx storage.RestoreTx) error {
		for _, p := range profiles {
			if err := tx.InsertProfileWithID(ctx, p); err != nil {
				return err
			}
		}
		for _, l := range logs {
			if err := tx.InsertLogWithID(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestExportRoundTripRenumbers(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	seedWithIDs(t, src,
		[]models.Profile{{ID: 5, Name: "A"}},
		[]models.LogEntry{{ID: 9, ProfileID: 5, Date: date("2024-01-01"), Count: 3}},
	)

	var buf bytes.Buffer
	require.NoError(t, NewCodec(src).Export(ctx, &buf))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, float64(5), raw["profiles"].([]any)[0].(map[string]any)["id"], "export keeps original ids")

	dst := newStore(t)
	report, err := NewCodec(dst).Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Profiles)
	assert.Equal(t, 1, report.Logs)
	assert.Zero(t, report.Dropped)
	assert.NotEmpty(t, report.RunID)

	profiles, err := dst.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, models.Profile{ID: 1, Name: "A"}, profiles[0])

	logs, err := dst.ListAllLogsRaw(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogEntry{ID: 1, ProfileID: 1, Date: date("2024-01-01"), Count: 3}, logs[0])
}

func TestImportSharesLogCounterAcrossProfiles(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	doc := `{
  "profiles": [{"id": 40, "name": "B"}, {"id": 7, "name": "A"}],
  "logs": [
    {"id": 100, "profileId": 7, "date": "2024-02-01", "count": 1},
    {"id": 101, "profileId": 40, "date": "2024-02-01", "count": 2},
    {"id": 102, "profileId": 40, "date": "2024-02-02", "count": 3}
  ]
}`
	report, err := NewCodec(store).Import(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Profiles)
	assert.Equal(t, 3, report.Logs)

	logs, err := store.ListAllLogsRaw(ctx)
	require.NoError(t, err)
	want := []models.LogEntry{
		{ID: 1, ProfileID: 1, Date: date("2024-02-01"), Count: 2},
		{ID: 2, ProfileID: 1, Date: date("2024-02-02"), Count: 3},
		{ID: 3, ProfileID: 2, Date: date("2024-02-01"), Count: 1},
	}
	assert.Equal(t, want, logs)

	next, err := store.CreateProfile(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.ID, "store ids continue after the imported ones")
}

func TestImportIsFullReplace(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	old, err := store.CreateProfile(ctx, "Old")
	require.NoError(t, err)
	_, err = store.IncrementLog(ctx, old.ID, date("2023-12-31"), 99)
	require.NoError(t, err)

	doc := `{"profiles":[{"id":1,"name":"New"}],"logs":[]}`
	_, err = NewCodec(store).Import(ctx, strings.NewReader(doc))
	require.NoError(t, err)

	profiles, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Profile{{ID: 1, Name: "New"}}, profiles)

	logs, err := store.ListAllLogsRaw(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestImportDropsLogsWithoutProfile(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	doc := `{"profiles":[{"id":1,"name":"A"}],"logs":[
		{"id":1,"profileId":1,"date":"2024-01-01","count":1},
		{"id":2,"profileId":8,"date":"2024-01-01","count":5}]}`
	report, err := NewCodec(store).Import(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Logs)
	assert.Equal(t, 1, report.Dropped)
	assert.Contains(t, report.String(), "1 logs without a profile skipped")
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: `profiles: []`},
		{name: "empty object", doc: `{}`},
		{name: "no profiles", doc: `{"profiles":[],"logs":[]}`},
		{name: "missing logs", doc: `{"profiles":[{"id":1,"name":"A"}]}`},
		{name: "profile missing name", doc: `{"profiles":[{"id":1}],"logs":[]}`},
		{name: "profile id wrong type", doc: `{"profiles":[{"id":"1","name":"A"}],"logs":[]}`},
		{name: "log missing count", doc: `{"profiles":[{"id":1,"name":"A"}],"logs":[{"id":1,"profileId":1,"date":"2024-01-01"}]}`},
		{name: "log bad date", doc: `{"profiles":[{"id":1,"name":"A"}],"logs":[{"id":1,"profileId":1,"date":"01/02/2024","count":1}]}`},
		{name: "log negative count", doc: `{"profiles":[{"id":1,"name":"A"}],"logs":[{"id":1,"profileId":1,"date":"2024-01-01","count":-1}]}`},
		{name: "unknown field", doc: `{"profiles":[{"id":1,"name":"A","color":"red"}],"logs":[]}`},
		{name: "duplicate day", doc: `{"profiles":[{"id":1,"name":"A"}],"logs":[
			{"id":1,"profileId":1,"date":"2024-01-01","count":1},
			{"id":2,"profileId":1,"date":"2024-01-01","count":2}]}`},
		{name: "trailing data", doc: `{"profiles":[{"id":1,"name":"A"}],"logs":[]} {}`},
	}

	codec := NewCodec(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestImportMalformedLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	alice, err := store.CreateProfile(ctx, "Alice")
	require.NoError(t, err)
	_, err = store.IncrementLog(ctx, alice.ID, date("2024-01-01"), 4)
	require.NoError(t, err)

	_, err = NewCodec(store).Import(ctx, strings.NewReader(`{"profiles":[{"id":1}],"logs":[]}`))
	require.ErrorIs(t, err, ErrMalformed)

	profiles, _ := store.ListProfiles(ctx)
	logs, _ := store.ListAllLogsRaw(ctx)
	assert.Len(t, profiles, 1)
	assert.Len(t, logs, 1)
}

type failingRestore struct {
	storage.Provider
	failAfter int
}

type failingTx struct {
	storage.RestoreTx
	remaining *int
}

func (f *failingTx) InsertLogWithID(ctx context.Context, e models.LogEntry) error {
	if *f.remaining == 0 {
		return errors.New("disk full")
	}
	*f.remaining--
	return f.RestoreTx.InsertLogWithID(ctx, e)
}

func (f *failingRestore) Restore(ctx context.Context, fn func(tx storage.RestoreTx) error) error {
	remaining := f.failAfter
	return f.Provider.Restore(ctx, func(tx storage.RestoreTx) error {
		return fn(&failingTx{RestoreTx: tx, remaining: &remaining})
	})
}

func TestImportFailureMidwayRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	alice, err := store.CreateProfile(ctx, "Alice")
	require.NoError(t, err)
	_, err = store.IncrementLog(ctx, alice.ID, date("2024-01-01"), 4)
	require.NoError(t, err)

	doc := `{"profiles":[{"id":1,"name":"X"}],"logs":[
		{"id":1,"profileId":1,"date":"2024-03-01","count":1},
		{"id":2,"profileId":1,"date":"2024-03-02","count":1}]}`
	codec := NewCodec(&failingRestore{Provider: store, failAfter: 1})
	_, err = codec.Import(ctx, strings.NewReader(doc))
	require.Error(t, err)

	profiles, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Profile{{ID: alice.ID, Name: "Alice"}}, profiles)

	sum, err := store.SumCountForRange(ctx, alice.ID, date("2024-01-01"), date("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum)
}

func TestExportEmptyDatasetWritesNothing(t *testing.T) {
	store := newStore(t)

	var buf bytes.Buffer
	err := NewCodec(store).Export(context.Background(), &buf)
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Zero(t, buf.Len())
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExportWriteFailureIsReported(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.CreateProfile(ctx, "A")
	require.NoError(t, err)

	err = NewCodec(store).Export(ctx, brokenWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestExportLogsKeepOriginalProfileIDs(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	a, _ := store.CreateProfile(ctx, "A")
	b, _ := store.CreateProfile(ctx, "B")
	_, err := store.IncrementLog(ctx, b.ID, models.NewDate(2024, time.May, 1), 2)
	require.NoError(t, err)

	doc, err := NewCodec(store).Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Profiles, 2)
	require.Len(t, doc.Logs, 1)
	assert.Equal(t, b.ID, doc.Logs[0].ProfileID)
	assert.NotEqual(t, a.ID, doc.Logs[0].ProfileID)
}
