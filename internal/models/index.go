package models

// Index is the remote package index document served at {repo}/index
type Index struct {
	Packages []IndexEntry `json:"packages"`
}

// IndexEntry is one element of the index "packages" array. Format and
// Architecture are optional extensions; when absent the record is native
// and built for the configured architecture.
type IndexEntry struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	DownloadURL  string   `json:"download_url"`
	Checksum     string   `json:"checksum"`
	Size         uint64   `json:"size"`
	Type         int      `json:"type,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Format       string   `json:"format,omitempty"`
	Architecture string   `json:"architecture,omitempty"`
}
