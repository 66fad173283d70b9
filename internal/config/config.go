package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Tuning defaults. ChunkSize bounds per-step blocking during streaming,
// MmapMinSize is the file size at which reads switch to a memory map.
const (
	DefaultChunkSize       = 64 * 1024
	DefaultMmapMinSize     = 1024 * 1024
	DefaultMaxUploadSize   = 512 * 1024 * 1024
	DefaultMaxEditableSize = 5 * 1024 * 1024
	DefaultMaxSearchHits   = 1000
	DefaultMaxPreviewLines = 1000
	DefaultMaxConnections  = 200
)

// UserConfig describes a single account. PasswordBcrypt holds a bcrypt
// hash of the login password; Role is one of "viewer", "editor", "admin".
type UserConfig struct {
	PasswordBcrypt string `json:"password_bcrypt"`
	Role           string `json:"role"`
}

// Config represents application configuration
type Config struct {
	Addr    string `json:"addr"`
	RootDir string `json:"root_dir"`
	DBPath  string `json:"db_path"`

	LogLevel string `json:"log_level"` // debug, info, warn, error, none
	LogPath  string `json:"log_path,omitempty"`

	// Content engine tunables. Zero values are replaced with defaults on
	// Load.
	ChunkSize       int   `json:"chunk_size,omitempty"`
	MmapMinSize     int64 `json:"mmap_min_size,omitempty"`
	MaxUploadSize   int64 `json:"max_upload_size,omitempty"`
	MaxEditableSize int64 `json:"max_editable_size,omitempty"`
	MaxSearchHits   int   `json:"max_search_hits,omitempty"`
	MaxPreviewLines int   `json:"max_preview_lines,omitempty"`

	// MaxConnections caps concurrently accepted TCP connections.
	MaxConnections int `json:"max_connections,omitempty"`

	// AllowedUploadExtensions is the upload allow-list (lower-case, with
	// leading dot). Empty means the built-in default set.
	AllowedUploadExtensions []string `json:"allowed_upload_extensions,omitempty"`

	// Users maps username -> account. Empty disables authentication.
	Users map[string]UserConfig `json:"users,omitempty"`
}

// defaultUploadExtensions lists extensions considered safe to store.
var defaultUploadExtensions = []string{
	".txt", ".log", ".md", ".csv", ".json", ".xml", ".yaml", ".yml",
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".svg",
	".zip", ".tar", ".gz", ".bz2", ".xz",
	".py", ".js", ".ts", ".java", ".c", ".cpp", ".go", ".rs", ".sh",
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "dateischnell")
	}
	return filepath.Join(os.TempDir(), "dateischnell")
}

// DefaultConfig returns a config with all defaults applied
func DefaultConfig() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	stateDir := defaultStateDir()
	return &Config{
		Addr:                    "127.0.0.1:8935",
		RootDir:                 cwd,
		DBPath:                  filepath.Join(stateDir, "dateischnell.db"),
		LogLevel:                "info",
		ChunkSize:               DefaultChunkSize,
		MmapMinSize:             DefaultMmapMinSize,
		MaxUploadSize:           DefaultMaxUploadSize,
		MaxEditableSize:         DefaultMaxEditableSize,
		MaxSearchHits:           DefaultMaxSearchHits,
		MaxPreviewLines:         DefaultMaxPreviewLines,
		MaxConnections:          DefaultMaxConnections,
		AllowedUploadExtensions: append([]string(nil), defaultUploadExtensions...),
	}
}

// Load reads the config file at path, falling back to defaults for any
// field the file leaves unset. A missing file yields the default config.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config.applyEnvOverrides()
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.MmapMinSize <= 0 {
		config.MmapMinSize = DefaultMmapMinSize
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = DefaultMaxUploadSize
	}
	if config.MaxEditableSize <= 0 {
		config.MaxEditableSize = DefaultMaxEditableSize
	}
	if config.MaxSearchHits <= 0 {
		config.MaxSearchHits = DefaultMaxSearchHits
	}
	if config.MaxPreviewLines <= 0 {
		config.MaxPreviewLines = DefaultMaxPreviewLines
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = DefaultMaxConnections
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if len(config.AllowedUploadExtensions) == 0 {
		config.AllowedUploadExtensions = append([]string(nil), defaultUploadExtensions...)
	}

	config.applyEnvOverrides()
	return config, nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("DATEISCHNELL_ADDR")); v != "" {
		c.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("DATEISCHNELL_ROOT")); v != "" {
		c.RootDir = v
	}
	if v := strings.TrimSpace(os.Getenv("DATEISCHNELL_DB_PATH")); v != "" {
		c.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("DATEISCHNELL_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("DATEISCHNELL_LOG_PATH")); v != "" {
		c.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("DATEISCHNELL_UPLOAD_EXTENSIONS")); v != "" {
		exts := make([]string, 0, 8)
		for _, e := range strings.Split(v, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			exts = append(exts, "."+strings.TrimPrefix(e, "."))
		}
		if len(exts) > 0 {
			c.AllowedUploadExtensions = exts
		}
	}
	if v := strings.TrimSpace(os.Getenv("DATEISCHNELL_MAX_UPLOAD_SIZE")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.MaxUploadSize = n
		}
	}
}

// UploadExtensionAllowed reports whether name's extension is on the
// upload allow-list.
func (c *Config) UploadExtensionAllowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, allowed := range c.AllowedUploadExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Save writes the config as indented JSON
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetConfigPath returns the default config file location
func GetConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "dateischnell", "config.json")
	}
	return filepath.Join(".", "dateischnell.json")
}
