// Optional on-disk engine config file (spec's AMBIENT STACK: pragma
// overrides, busy-timeout, cache size), grounded on the teacher's use of
// github.com/BurntSushi/toml for its own on-disk configuration file.
package sqlite

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig is the optional on-disk override file for engine pragmas that
// would otherwise take Open()'s hardcoded defaults (spec §4.1).
type FileConfig struct {
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	CacheSizeKB   int    `toml:"cache_size_kb"`
	Synchronous   string `toml:"synchronous"`
}

// LoadFileConfig reads and decodes a TOML engine config file. A missing file
// is not an error; it returns the zero value so callers fall back to
// Open()'s built-in pragma defaults.
func LoadFileConfig(path string) (*FileConfig, error) {
	var cfg FileConfig
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode engine config %s: %w", path, err)
	}
	return &cfg, nil
}

// pragmaOverrides renders the subset of pragmas FileConfig actually set,
// applied after Open()'s defaults so a zero FileConfig changes nothing.
func (c *FileConfig) pragmaOverrides() string {
	if c == nil {
		return ""
	}
	var out string
	if c.BusyTimeoutMS > 0 {
		out += fmt.Sprintf("PRAGMA busy_timeout = %d;", c.BusyTimeoutMS)
	}
	if c.CacheSizeKB != 0 {
		out += fmt.Sprintf("PRAGMA cache_size = -%d;", c.CacheSizeKB)
	}
	switch c.Synchronous {
	case "FULL", "NORMAL", "OFF":
		out += fmt.Sprintf("PRAGMA synchronous = %s;", c.Synchronous)
	}
	return out
}

// WithConfigFile loads pragma overrides from a TOML file at Open time.
func WithConfigFile(path string) Option {
	return func(s *SQLiteStorage) {
		s.pendingConfigFile = path
	}
}
