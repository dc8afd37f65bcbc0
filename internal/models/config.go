package models

import "time"

// Config contains every setting the engine needs. It is loaded once at
// process start and passed to constructors.
type Config struct {
	// Repositories
	RepoURL      string
	AIModelsRepo string

	// Local state
	DBPath     string
	CachePath  string
	ScratchDir string

	// Install targets
	RootDir            string
	AppsDir            string
	BinDir             string
	DefaultInstallPath string
	Architecture       string

	// Network
	UserAgent         string
	ParallelDownloads int
	FetchTimeout      time.Duration
	DownloadTimeout   time.Duration
	MaxIndexSize      int64

	// Extraction
	ExtractTimeout time.Duration

	// External tools
	BootstrapCommand []string // argv prefix used to install a missing tool
	FlatpakRemote    string

	// Format switches; formats absent from the map are enabled
	DisabledFormats map[Format]bool

	Verbose bool
}

// FormatEnabled reports whether installs of f are allowed.
func (c *Config) FormatEnabled(f Format) bool {
	return !c.DisabledFormats[f]
}
