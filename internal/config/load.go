package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mehmetkoksal-w/paired/schemas"
)

// candidateNames are searched in order under .paired/.
var candidateNames = []string{"config.jsonc", "config.json", "config.yaml", "config.yml"}

// Find returns the first configuration file under root/.paired, or "" when
// there is none.
func Find(root string) string {
	for _, name := range candidateNames {
		p := filepath.Join(root, DirName, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// LoadProject loads the project configuration, falling back to defaults when
// the project has no config file.
func LoadProject(root string) (Config, string, error) {
	path := Find(root)
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Load reads a .jsonc, .json, .yaml or .yml file, validates it against the
// config schema and overlays it onto the defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	data, err := toJSON(path, raw)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse validates a JSON document and overlays it onto the defaults.
func Parse(data []byte) (Config, error) {
	if err := schemas.Validate(schemas.Config, data); err != nil {
		return Config{}, err
	}
	cfg := Default()
	roster := cfg.Profiles
	// a profiles list in the file replaces the roster instead of patching it
	cfg.Profiles = nil
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = roster
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func toJSON(path string, raw []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
		return data, nil
	default:
		clean := jsonc.ToJSON(raw)
		if len(strings.TrimSpace(string(clean))) == 0 {
			return []byte("{}"), nil
		}
		return clean, nil
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (c Config) Validate() error {
	d := c.Delegation
	if d.MinThreshold > d.MaxThreshold {
		return fmt.Errorf("delegation: minThreshold %.2f exceeds maxThreshold %.2f", d.MinThreshold, d.MaxThreshold)
	}
	if c.Flush.Mode == FlushBatched {
		if _, err := c.FlushInterval(); err != nil {
			return err
		}
	}
	if _, err := c.AdjustInterval(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Profiles))
	for _, p := range c.Profiles {
		if _, dup := seen[p.Specialist]; dup {
			return fmt.Errorf("profiles: duplicate specialist %q", p.Specialist)
		}
		seen[p.Specialist] = struct{}{}
	}
	return nil
}
