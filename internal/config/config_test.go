package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nexuspkg.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.conf"), nil)
	require.NoError(t, err)

	assert.Equal(t, "https://packages.nexusos.org", cfg.RepoURL)
	assert.Equal(t, "https://models.nexusos.org", cfg.AIModelsRepo)
	assert.Equal(t, "/var/lib/nexuspkg/packages.db", cfg.DBPath)
	assert.Equal(t, "/var/cache/nexuspkg", cfg.CachePath)
	assert.Equal(t, "/usr/local", cfg.DefaultInstallPath)
	assert.Equal(t, "x86_64", cfg.Architecture)
	assert.Equal(t, 4, cfg.ParallelDownloads)
	assert.Equal(t, 10*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, int64(64<<20), cfg.MaxIndexSize)
	assert.Equal(t, []string{"pacman", "-S", "--noconfirm"}, cfg.BootstrapCommand)
	assert.False(t, cfg.Verbose)
	for _, f := range models.AllFormats() {
		assert.True(t, cfg.FormatEnabled(f), f.String())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `# NexusPkg configuration
repo_url=https://mirror.example.org/nexus
cache_path=/srv/cache
parallel_downloads=8
download_timeout=90
extract_timeout=30s
bootstrap_command=apt-get install -y
enable_snap_support=0
enable_rpm_support=false
verbose=1
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.example.org/nexus", cfg.RepoURL)
	assert.Equal(t, "/srv/cache", cfg.CachePath)
	assert.Equal(t, 8, cfg.ParallelDownloads)
	assert.Equal(t, 90*time.Second, cfg.DownloadTimeout)
	assert.Equal(t, 30*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, []string{"apt-get", "install", "-y"}, cfg.BootstrapCommand)
	assert.True(t, cfg.Verbose)

	assert.False(t, cfg.FormatEnabled(models.FormatSnap))
	assert.False(t, cfg.FormatEnabled(models.FormatRPM))
	assert.True(t, cfg.FormatEnabled(models.FormatDeb))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "repo_url=https://from-file.example.org\n")
	t.Setenv("NEXUSPKG_REPO_URL", "https://from-env.example.org")
	t.Setenv("NEXUSPKG_ENABLE_DEB_SUPPORT", "0")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.org", cfg.RepoURL)
	assert.False(t, cfg.FormatEnabled(models.FormatDeb))
}

func TestFlagsOverrideEverything(t *testing.T) {
	path := writeConfig(t, "db_path=/from/file.db\ncache_path=/from/file\n")
	t.Setenv("NEXUSPKG_DB_PATH", "/from/env.db")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("cache", "", "")
	flags.String("root", "", "")
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Parse([]string{"--db", "/from/flag.db"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.db", cfg.DBPath)
	// Unset flags do not mask the file
	assert.Equal(t, "/from/file", cfg.CachePath)
	assert.Equal(t, "/", cfg.RootDir)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero downloads", "parallel_downloads=0\n"},
		{"empty db path", "db_path=\n"},
		{"bad timeout", "fetch_timeout=soon\n"},
		{"negative timeout", "download_timeout=-5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.ErrInvalidInput))
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"600", 10 * time.Minute},
		{"1h30m", 90 * time.Minute},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
