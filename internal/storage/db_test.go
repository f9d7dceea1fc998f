package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"koosseis/internal"
	"koosseis/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "koosseis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestWorksKeepInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.UpsertWorks([]internal.WorkRow{
		{ID: "Pärt_Fratres", Composer: "Arvo Pärt", Category: "Kammermuusika", Title: "Fratres", Description: "1977\nviiul, klaver"},
		{ID: "Pärt_Tabula rasa", Composer: "Arvo Pärt", Title: "Tabula rasa", Description: "2 viiulit, ettevalmistatud klaver, keelpillid"},
	}))
	require.NoError(t, db.UpsertWorks([]internal.WorkRow{
		{ID: "Pärt_Fratres", Composer: "Arvo Pärt", Category: "Kammermuusika", Title: "Fratres", Description: "1977\nviiul ja klaver", Koosseis: util.StringPtr("viiul, klaver")},
	}))

	works, err := db.ListWorks()
	require.NoError(t, err)
	require.Len(t, works, 2)
	assert.Equal(t, "Pärt_Fratres", works[0].ID)
	assert.Equal(t, "1977\nviiul ja klaver", works[0].Description)
	require.NotNil(t, works[0].Koosseis)
	assert.Equal(t, "viiul, klaver", *works[0].Koosseis)
	assert.Nil(t, works[1].Koosseis)
	assert.Equal(t, "", works[1].Category)
}

func TestUpsertWorksKeepsKoosseisWhenMissing(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.UpsertWorks([]internal.WorkRow{{ID: "a", Composer: "c", Title: "t", Koosseis: util.StringPtr("koor")}}))
	require.NoError(t, db.UpsertWorks([]internal.WorkRow{{ID: "a", Composer: "c", Title: "t"}}))

	works, err := db.ListWorks()
	require.NoError(t, err)
	require.NotNil(t, works[0].Koosseis)
	assert.Equal(t, "koor", *works[0].Koosseis)
}

func TestSaveUpserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, internal.Success{ID: "w1", Title: "Fratres", OriginalText: "viiul, klaver", Instrumentation: json.RawMessage(`{"category":"chamber"}`)}))
	require.NoError(t, db.Save(ctx, internal.Success{ID: "w1", Title: "Fratres", OriginalText: "viiul, klaver", Instrumentation: json.RawMessage(`{"category":"solo"}`)}))

	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM instrumentations`).Scan(&count))
	assert.Equal(t, 1, count)

	var got string
	require.NoError(t, db.conn.QueryRow(`SELECT instrumentation FROM instrumentations WHERE id = ?`, "w1").Scan(&got))
	assert.JSONEq(t, `{"category":"solo"}`, got)
}

func TestRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertRun(RunRecord{TraceID: "one", Source: "composers_json", Counts: map[string]int{"results": 2}, StartedAt: start, FinishedAt: start.Add(time.Minute)}))
	require.NoError(t, db.InsertRun(RunRecord{TraceID: "two", Source: "mysql", StartFrom: 40, Limit: 5, Counts: map[string]int{"failed": 1}, StartedAt: start.Add(time.Hour), FinishedAt: start.Add(2 * time.Hour)}))

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "two", runs[0].TraceID)
	assert.Equal(t, 40, runs[0].StartFrom)
	assert.Equal(t, 5, runs[0].Limit)
	assert.Equal(t, map[string]int{"failed": 1}, runs[0].Counts)
	assert.True(t, runs[1].FinishedAt.Equal(start.Add(time.Minute)))
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetMetadata("last_processed")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.SetMetadata("last_processed", "10"))
	require.NoError(t, db.SetMetadata("last_processed", "12"))
	got, err = db.GetMetadata("last_processed")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "12", *got)
}
