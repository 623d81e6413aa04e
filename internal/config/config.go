// Package config handles repository configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents repository configuration stored in .bibtidy/config.yml.
type Config struct {
	Bib           string   `yaml:"bib"`                       // bibliography file, relative to the repo root
	Extensions    []string `yaml:"extensions,omitempty"`      // document extensions visited by rewrites
	SkipDirs      []string `yaml:"skip_dirs,omitempty"`       // directory names never walked
	TitleDistance int      `yaml:"title_distance"`            // max edit distance for merging titles, 0 = exact
	Workers       int      `yaml:"rewrite_workers,omitempty"` // concurrent file rewrites
	Stopwords     []string `yaml:"stopwords,omitempty"`       // extra stopwords for key derivation
}

const (
	BibtidyDir = ".bibtidy"
	ConfigFile = "config.yml"
	CacheDir   = "cache"
	DBFile     = "index.db"

	// Environment overrides, applied after the file is read.
	EnvBib           = "BIBTIDY_BIB"
	EnvTitleDistance = "BIBTIDY_TITLE_DISTANCE"
	EnvWorkers       = "BIBTIDY_WORKERS"
)

// Default returns the configuration written by init.
func Default() *Config {
	return &Config{
		Bib:        "refs.bib",
		Extensions: []string{".tex", ".md"},
		SkipDirs:   []string{".git", BibtidyDir},
		Workers:    4,
	}
}

// BibtidyPath returns the path to the .bibtidy directory from a root path.
func BibtidyPath(root string) string {
	return filepath.Join(root, BibtidyDir)
}

// ConfigPath returns the path to config.yml from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, BibtidyDir, ConfigFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, BibtidyDir, CacheDir)
}

// DBPath returns the path to the citation index database from a root path.
func DBPath(root string) string {
	return filepath.Join(root, BibtidyDir, CacheDir, DBFile)
}

// BibPath resolves the configured bibliography file against the repo root.
func (c *Config) BibPath(root string) string {
	bib := ExpandPath(c.Bib)
	if filepath.IsAbs(bib) {
		return bib
	}
	return filepath.Join(root, bib)
}

// IsRepository checks if the given path contains a bibtidy repository.
func IsRepository(root string) bool {
	info, err := os.Stat(BibtidyPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a bibtidy repository.
// Returns the repository root path or an error if not found.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a bibtidy repository (no .bibtidy directory found)")
		}
		abs = parent
	}
}

// Load reads configuration from the repository at the given root. A
// missing config file is not an error: defaults apply. Fields absent from
// the file keep their defaults; environment overrides win over both.
func Load(root string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = Default().Extensions
	}
	if len(cfg.SkipDirs) == 0 {
		cfg.SkipDirs = Default().SkipDirs
	}
	cfg.applyEnv()

	return cfg, nil
}

// Save writes configuration to the repository at the given root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// applyEnv overlays environment overrides. Unparseable numbers are ignored.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBib); v != "" {
		c.Bib = v
	}
	if v := os.Getenv(EnvTitleDistance); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.TitleDistance = n
		}
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
