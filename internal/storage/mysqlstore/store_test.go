package mysqlstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"koosseis/internal"
	"koosseis/internal/util"
)

// dryRunDB builds statements against the MySQL dialect without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "emic:secret@tcp(127.0.0.1:1)/emic",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	require.NoError(t, err)
	return db
}

func TestSaveIsUpsert(t *testing.T) {
	db := dryRunDB(t)
	s, err := New(db, "teosed_tekstid", "teosed_koosseisud")
	require.NoError(t, err)

	tx := s.upsert(db.WithContext(context.Background()), internal.Success{
		ID:              "42",
		Title:           "Fratres",
		OriginalText:    "viiul, klaver",
		Instrumentation: json.RawMessage(`{"category":"chamber"}`),
	})
	require.NoError(t, tx.Error)

	sql := tx.Statement.SQL.String()
	assert.Contains(t, sql, "INSERT INTO `teosed_koosseisud`")
	assert.Contains(t, sql, "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, sql, "`instrumentation`")
	assert.Contains(t, tx.Statement.Vars, `{"category":"chamber"}`)
}

func TestNewRejectsBadTableNames(t *testing.T) {
	db := dryRunDB(t)
	_, err := New(db, "teosed_tekstid; DROP TABLE x", "teosed_koosseisud")
	assert.Error(t, err)

	s, err := New(db, "teosed_tekstid", "teosed_koosseisud")
	require.NoError(t, err)
	_, err = s.CleanField(context.Background(), "teosed_tekstid", "koosseis`", true)
	assert.Error(t, err)
}

func TestTextRowRecord(t *testing.T) {
	rec := textRow{ID: "7", Pealkiri: "Kontsert", Koosseis: util.StringPtr("  flööt, orkester ")}.record()
	assert.Equal(t, "7", rec.ID)
	assert.Equal(t, "Kontsert", rec.Title)
	require.True(t, rec.HasInstrumentationText())
	assert.Equal(t, "flööt, orkester", *rec.InstrumentationText)

	empty := textRow{ID: "8", Pealkiri: "Ooper"}.record()
	require.True(t, empty.HasInstrumentationText())
	assert.Equal(t, "", *empty.InstrumentationText)
}

func TestPlanClean(t *testing.T) {
	rows := []fieldRow{
		{ID: "1", Value: util.StringPtr("<p>flööt,&nbsp;klaver</p>")},
		{ID: "2", Value: util.StringPtr("sopran, koor")},
		{ID: "3", Value: util.StringPtr("keelpillid\n\n  <br/>löökpillid")},
		{ID: "4"},
	}
	changes := planClean(rows)
	require.Len(t, changes, 2)
	assert.Equal(t, "1", changes[0].ID)
	assert.Equal(t, "flööt, klaver", changes[0].After)
	assert.Equal(t, "3", changes[1].ID)
	assert.Equal(t, "keelpillid löökpillid", changes[1].After)
}
