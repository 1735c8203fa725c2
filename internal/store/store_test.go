package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data", "admin_data.json")
	s, err := Open(path, testLogger())
	require.NoError(t, err)
	return s
}

func TestOpen_MissingFile(t *testing.T) {
	s := openTestStore(t)

	settings := s.ReferralSettings()
	assert.Equal(t, DefaultMinDeposit, settings.MinDeposit)
	assert.Equal(t, DefaultReferralLink, settings.ReferralLink)
	assert.Equal(t, DefaultCommissionPercent, settings.CommissionPercent)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin_data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := Open(path, testLogger())
	require.NoError(t, err)

	settings := s.ReferralSettings()
	assert.NotZero(t, settings.MinDeposit)
	assert.NotEmpty(t, settings.ReferralLink)
}

func TestSignalSettings_DefaultCapDisabled(t *testing.T) {
	s := openTestStore(t)

	limits := s.SignalSettings()
	assert.Zero(t, limits.MaxDailySignals, "a fresh document must not cap signal generation")
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin_data.json")
	raw := `{
		"users": {
			"101": {"is_registered": true, "has_deposit": false, "registered": true, "deposited": false},
			"102": "2023-01-01T00:00:00"
		},
		"stats": {"starts": 5},
		"daily_stats": {"2023-01-01": 2},
		"settings": {"referral_link": "https://po.example/r/legacy"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	s, err := Open(path, testLogger())
	require.NoError(t, err)

	s.View(func(doc *Document) {
		rec := doc.Users["101"].Record
		require.NotNil(t, rec)
		assert.Nil(t, rec.LegacyRegistered)
		assert.Nil(t, rec.LegacyDeposited)
		assert.True(t, rec.IsRegistered)

		assert.True(t, doc.Users["102"].IsLegacy())
		assert.Nil(t, doc.LegacyStats)
		assert.Nil(t, doc.LegacyDailyStats)
		assert.Nil(t, doc.LegacySettings)
		assert.Equal(t, "https://po.example/r/legacy", doc.ReferralSettings.ReferralLink)
	})

	// A second run over the migrated document must change nothing.
	s.View(func(doc *Document) {
		assert.False(t, migrate(doc))
	})

	// Reopening the persisted file must not re-trigger the migration either.
	reopened, err := Open(path, testLogger())
	require.NoError(t, err)
	reopened.View(func(doc *Document) {
		assert.False(t, migrate(doc))
	})
}

func TestSave_AtomicRename(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetMaintenanceMode(true))

	_, err := os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a save")

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.True(t, doc.MaintenanceMode)
}

func TestReferralSettings_FreshRead(t *testing.T) {
	s := openTestStore(t)

	// Out-of-band edit of the backing file.
	var doc Document
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	doc.ReferralSettings.MinDeposit = 50
	doc.ReferralSettings.ReferralLink = "https://po.example/r/edited"
	edited, err := json.Marshal(&doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), edited, 0o644))

	settings := s.ReferralSettings()
	assert.Equal(t, 50.0, settings.MinDeposit)
	assert.Equal(t, "https://po.example/r/edited", settings.ReferralLink)
}

func TestUpdateReferralSettings_PartialUpdate(t *testing.T) {
	s := openTestStore(t)

	deposit := 35.0
	require.NoError(t, s.UpdateReferralSettings(&deposit, nil, nil))

	settings := s.ReferralSettings()
	assert.Equal(t, 35.0, settings.MinDeposit)
	assert.Equal(t, DefaultReferralLink, settings.ReferralLink)
}

func TestFileCache(t *testing.T) {
	s := openTestStore(t)

	_, ok := s.FileID("finish.png")
	assert.False(t, ok)

	require.NoError(t, s.SetFileID("finish.png", "AgACAgQ"))
	id, ok := s.FileID("finish.png")
	assert.True(t, ok)
	assert.Equal(t, "AgACAgQ", id)

	require.NoError(t, s.ClearFileID("finish.png"))
	_, ok = s.FileID("finish.png")
	assert.False(t, ok)
}

func TestStatistics(t *testing.T) {
	s := openTestStore(t)

	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.IncrementStarts())
	require.NoError(t, s.IncrementSignals(now))
	require.NoError(t, s.IncrementSignals(now))
	require.NoError(t, s.IncrementSignals(now.Add(24*time.Hour)))

	stats := s.Statistics()
	assert.Equal(t, 1, stats.TotalStarts)
	assert.Equal(t, 3, stats.SignalsGenerated)
	assert.Equal(t, 2, stats.DailySignals["2025-03-14"])
	assert.Equal(t, 1, stats.DailySignals["2025-03-15"])
	assert.Equal(t, 2, s.SignalsToday(now))
}

func TestBroadcastQueue(t *testing.T) {
	s := openTestStore(t)

	b := Broadcast{ID: "b1", Message: "hello", Target: "all", CreatedAt: time.Now().UTC(), Status: BroadcastPending}
	require.NoError(t, s.AppendBroadcast(b))

	pending := s.PendingBroadcasts()
	require.Len(t, pending, 1)
	assert.Equal(t, "hello", pending[0].Message)

	require.NoError(t, s.UpdateBroadcastStatus("b1", BroadcastSent))
	assert.Empty(t, s.PendingBroadcasts())
}

func TestMaintenanceMessages(t *testing.T) {
	s := openTestStore(t)

	enabled, message := s.MaintenanceMode()
	assert.False(t, enabled)
	assert.Equal(t, DefaultMaintenanceMessage, message)

	require.NoError(t, s.SetMaintenanceMode(true))
	require.NoError(t, s.SetMaintenanceMessage("back soon"))

	enabled, message = s.MaintenanceMode()
	assert.True(t, enabled)
	assert.Equal(t, "back soon", message)
}

func TestWelcomeAndFinishMessages(t *testing.T) {
	s := openTestStore(t)

	assert.Empty(t, s.WelcomeMessage("en"))
	require.NoError(t, s.SetWelcomeMessage("en", "hi"))
	require.NoError(t, s.SetFinishMessage("ru", "готово"))

	assert.Equal(t, "hi", s.WelcomeMessage("en"))
	assert.Equal(t, "готово", s.FinishMessage("ru"))
	assert.Empty(t, s.FinishMessage("en"))
}
