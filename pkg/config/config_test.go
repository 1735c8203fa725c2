package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.Set("bot.token", "123:abc")
	v.Set("bot.admin_ids", []int64{42})
	v.Set("partner.base_url", "https://partner.example")

	for key, value := range overrides {
		v.Set(key, value)
	}
	return v
}

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := parse(newTestViper(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "data/admin_data.json", cfg.Store.Path)
	assert.Equal(t, time.Hour, cfg.Monitor.Interval)
	assert.Equal(t, 3, cfg.Monitor.ExpiryWarningDays)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
}

func TestParse_RequiresBotToken(t *testing.T) {
	v := newTestViper(map[string]any{"bot.token": ""})

	_, err := parse(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token")
}

func TestParse_RequiresAdminIDs(t *testing.T) {
	v := newTestViper(map[string]any{"bot.admin_ids": []int64{}})

	_, err := parse(v)
	require.Error(t, err)
}

func TestParse_RejectsBadPartnerURL(t *testing.T) {
	v := newTestViper(map[string]any{"partner.base_url": "not a url"})

	_, err := parse(v)
	require.Error(t, err)
}

func TestParse_RejectsUnknownLogLevel(t *testing.T) {
	v := newTestViper(map[string]any{"log.level": "verbose"})

	_, err := parse(v)
	require.Error(t, err)
}

func TestParse_ReadsBypassUIDs(t *testing.T) {
	v := newTestViper(map[string]any{"partner.bypass_uids": []string{"777000", "777001"}})

	cfg, err := parse(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"777000", "777001"}, cfg.Partner.BypassUIDs)
}
