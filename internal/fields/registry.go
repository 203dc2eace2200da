package fields

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var embedded embed.FS

const optionsFile = "options.yaml"

// Registry holds every entity configuration, keyed by entity name.
type Registry struct {
	configs map[string]*Config
	options map[string][]Option
}

// Default loads the configuration compiled into the binary.
func Default() (*Registry, error) {
	sub, err := fs.Sub(embedded, "config")
	if err != nil {
		return nil, fmt.Errorf("open embedded config: %w", err)
	}
	return Load(sub)
}

// Load reads options.yaml and one YAML file per entity from fsys. Fields that reference a
// shared option list through optionsRef get that list copied in.
func Load(fsys fs.FS) (*Registry, error) {
	reg := &Registry{
		configs: map[string]*Config{},
		options: map[string][]Option{},
	}

	if raw, err := fs.ReadFile(fsys, optionsFile); err == nil {
		if err := yaml.Unmarshal(raw, &reg.options); err != nil {
			return nil, fmt.Errorf("parse %s: %w", optionsFile, err)
		}
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read field config dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == optionsFile || path.Ext(name) != ".yaml" {
			continue
		}
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var cfg Config
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if err := reg.bindOptions(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if cfg.QueryKey == "" {
			cfg.QueryKey = cfg.Entity
		}
		if _, dup := reg.configs[cfg.Entity]; dup {
			return nil, fmt.Errorf("%s: entity %s defined twice", name, cfg.Entity)
		}
		reg.configs[cfg.Entity] = &cfg
	}
	return reg, nil
}

func (r *Registry) bindOptions(cfg *Config) error {
	for si := range cfg.Sections {
		for fi := range cfg.Sections[si].Fields {
			field := &cfg.Sections[si].Fields[fi]
			if field.OptionsRef == "" {
				continue
			}
			options, ok := r.options[field.OptionsRef]
			if !ok {
				return fmt.Errorf("field %s: unknown option list %q", field.Key, field.OptionsRef)
			}
			field.Options = append([]Option(nil), options...)
		}
	}
	return nil
}

func (r *Registry) Get(entity string) (*Config, bool) {
	cfg, ok := r.configs[strings.TrimSpace(entity)]
	return cfg, ok
}

// Entities lists configured entity names in sorted order.
func (r *Registry) Entities() []string {
	out := make([]string, 0, len(r.configs))
	for name := range r.configs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Options returns a shared option list by name, e.g. "states" or "dea_schedules".
func (r *Registry) Options(name string) []Option {
	return append([]Option(nil), r.options[name]...)
}
