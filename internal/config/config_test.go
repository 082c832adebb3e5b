package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumtimer", "sumtimer.yml")

	l, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	c := l.Config()
	assert.Equal(t, filepath.Dir(path), c.DataDir)
	assert.Equal(t, "local", c.UserID)
	assert.Equal(t, 4, c.DayStartHour)
	assert.Equal(t, time.Monday, c.WeekStart)
	assert.Equal(t, 30*time.Minute, c.MaxPauseDuration)
	assert.Equal(t, time.Second, c.TickInterval)
	assert.Equal(t, filepath.Join(c.DataDir, "sumtimer.db"), c.DBPath())
	assert.Empty(t, c.WakeLockCommand)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumtimer.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"user_id: alice\nday_start_hour: 6\nweek_start: sunday\nmax_pause_duration: 10m\n" +
			"wake_lock_command: systemd-inhibit --what=idle sleep infinity\n"), 0o644))

	l, err := Load(path)
	require.NoError(t, err)
	c := l.Config()
	assert.Equal(t, "alice", c.UserID)
	assert.Equal(t, 6, c.DayStartHour)
	assert.Equal(t, time.Sunday, c.WeekStart)
	assert.Equal(t, 10*time.Minute, c.MaxPauseDuration)
	assert.Equal(t, []string{"systemd-inhibit", "--what=idle", "sleep", "infinity"}, c.WakeLockCommand)

	cal := c.Calendar()
	assert.Equal(t, 6, cal.DayStartHour)
	assert.Equal(t, time.Sunday, cal.WeekStart)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumtimer.yml")
	require.NoError(t, os.WriteFile(path, []byte("user_id: alice\n"), 0o644))
	t.Setenv("SUMTIMER_USER_ID", "bob")

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", l.Config().UserID)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"hour too large", "day_start_hour: 24\n"},
		{"negative hour", "day_start_hour: -1\n"},
		{"zero pause", "max_pause_duration: 0s\n"},
		{"empty user", "user_id: \"\"\n"},
		{"broken yaml", "user_id: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sumtimer.yml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumtimer.yml")
	l, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, l.Set(KeyDayStartHour, 0))
	assert.Equal(t, 0, l.Config().DayStartHour)
	assert.Error(t, l.Set(KeyDayStartHour, 30))
	assert.Equal(t, 0, l.Config().DayStartHour)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Config().DayStartHour)
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumtimer.yml")
	l, err := Load(path)
	require.NoError(t, err)

	var hour atomic.Int64
	hour.Store(-1)
	l.Watch(zap.NewNop(), func(c Config) { hour.Store(int64(c.DayStartHour)) })

	require.NoError(t, os.WriteFile(path, []byte("day_start_hour: 7\n"), 0o644))
	require.Eventually(t, func() bool { return hour.Load() == 7 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 7, l.Config().DayStartHour)
}
