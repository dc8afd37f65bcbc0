// Package config loads the engine configuration from defaults, the
// key=value configuration file, NEXUSPKG_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultPath is the system configuration file
const DefaultPath = "/etc/nexuspkg/nexuspkg.conf"

// EnvPrefix prefixes environment overrides (NEXUSPKG_REPO_URL, ...)
const EnvPrefix = "NEXUSPKG"

var defaults = map[string]interface{}{
	"repo_url":           "https://packages.nexusos.org",
	"ai_models_repo":     "https://models.nexusos.org",
	"cache_path":         "/var/cache/nexuspkg",
	"db_path":            "/var/lib/nexuspkg/packages.db",
	"scratch_dir":        "/tmp",
	"root_dir":           "/",
	"apps_dir":           "/opt/appimages",
	"bin_dir":            "/usr/local/bin",
	"install_path":       "/usr/local",
	"architecture":       models.DefaultArchitecture,
	"parallel_downloads": 4,
	"download_timeout":   "10m",
	"extract_timeout":    "10m",
	"fetch_timeout":      "2m",
	"max_index_size":     64 << 20,
	"bootstrap_command":  "pacman -S --noconfirm",
	"flatpak_remote":     "https://dl.flathub.org/repo/flathub.flatpakrepo",
	"user_agent":         "NexusPkg/1.0.0",
	"verbose":            false,
}

// Switches maps the enable_*_support keys to the format they gate
var Switches = map[string]models.Format{
	"enable_deb_support":      models.FormatDeb,
	"enable_rpm_support":      models.FormatRPM,
	"enable_zst_support":      models.FormatZst,
	"enable_appimage_support": models.FormatAppImage,
	"enable_flatpak_support":  models.FormatFlatpak,
	"enable_snap_support":     models.FormatSnap,
}

// FlagKeys maps command-line flag names to the configuration keys they
// override.
var FlagKeys = map[string]string{
	"db":      "db_path",
	"cache":   "cache_path",
	"root":    "root_dir",
	"verbose": "verbose",
}

// Load builds the configuration. path is the configuration file; a
// missing file leaves the defaults in place. flags may be nil; only flags
// set on the command line override the file.
func Load(path string, flags *pflag.FlagSet) (*models.Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key := range Switches {
		v.SetDefault(key, true)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("properties")
			if err := v.ReadInConfig(); err != nil {
				return nil, models.WrapError(models.ErrInvalidInput, "config", "", fmt.Errorf("failed to read %s: %w", path, err))
			}
			logrus.Debugf("Loaded configuration from %s", path)
		} else if os.IsNotExist(err) {
			logrus.Debugf("No configuration file at %s, using defaults", path)
		} else {
			return nil, models.WrapError(models.ErrIO, "config", "", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, models.WrapError(models.ErrInvalidInput, "config", "", err)
				}
			}
		}
	}

	return build(v)
}

func build(v *viper.Viper) (*models.Config, error) {
	cfg := &models.Config{
		RepoURL:            v.GetString("repo_url"),
		AIModelsRepo:       v.GetString("ai_models_repo"),
		DBPath:             v.GetString("db_path"),
		CachePath:          v.GetString("cache_path"),
		ScratchDir:         v.GetString("scratch_dir"),
		RootDir:            v.GetString("root_dir"),
		AppsDir:            v.GetString("apps_dir"),
		BinDir:             v.GetString("bin_dir"),
		DefaultInstallPath: v.GetString("install_path"),
		Architecture:       v.GetString("architecture"),
		UserAgent:          v.GetString("user_agent"),
		ParallelDownloads:  v.GetInt("parallel_downloads"),
		MaxIndexSize:       v.GetInt64("max_index_size"),
		BootstrapCommand:   strings.Fields(v.GetString("bootstrap_command")),
		FlatpakRemote:      v.GetString("flatpak_remote"),
		Verbose:            v.GetBool("verbose"),
		DisabledFormats:    make(map[models.Format]bool),
	}

	var err error
	for key, dst := range map[string]*time.Duration{
		"fetch_timeout":    &cfg.FetchTimeout,
		"download_timeout": &cfg.DownloadTimeout,
		"extract_timeout":  &cfg.ExtractTimeout,
	} {
		if *dst, err = parseDuration(v.GetString(key)); err != nil {
			return nil, models.NewError(models.ErrInvalidInput, "config", "", "%s: %v", key, err)
		}
	}

	for key, f := range Switches {
		if !v.GetBool(key) {
			cfg.DisabledFormats[f] = true
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration accepts Go durations ("90s", "10m") and bare integers,
// which are seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Validate checks the settings every component relies on.
func Validate(cfg *models.Config) error {
	switch {
	case cfg.ParallelDownloads < 1:
		return models.NewError(models.ErrInvalidInput, "config", "", "parallel_downloads must be at least 1, got %d", cfg.ParallelDownloads)
	case cfg.DBPath == "":
		return models.NewError(models.ErrInvalidInput, "config", "", "db_path cannot be empty")
	case cfg.CachePath == "":
		return models.NewError(models.ErrInvalidInput, "config", "", "cache_path cannot be empty")
	case cfg.Architecture == "":
		return models.NewError(models.ErrInvalidInput, "config", "", "architecture cannot be empty")
	case cfg.MaxIndexSize < 0:
		return models.NewError(models.ErrInvalidInput, "config", "", "max_index_size cannot be negative")
	}
	return nil
}
