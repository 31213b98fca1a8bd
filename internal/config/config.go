// Package config loads named connection profiles from a TOML or YAML file.
// A .env file next to the config file (or in a parent directory) is loaded
// first, and ${VAR} / env("VAR") references in string values are expanded.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/coregx/webdb/internal/core"
	"github.com/coregx/webdb/internal/dialects"
)

// DefaultFile is looked up when no path is given.
const DefaultFile = "webdb.toml"

var (
	// ErrNoProfiles is returned by files without any profile.
	ErrNoProfiles = errors.New("config: no profiles defined")
	// ErrUnknownProfile is returned for a profile name that is not defined.
	ErrUnknownProfile = errors.New("config: unknown profile")
)

// File is a parsed configuration file.
type File struct {
	// Default names the profile used when none is selected.
	Default  string             `toml:"default" yaml:"default"`
	Log      Log                `toml:"log" yaml:"log"`
	Profiles map[string]Profile `toml:"profiles" yaml:"profiles"`
}

// Log configures the slog logger.
type Log struct {
	Level  string `toml:"level" yaml:"level"`   // debug, info, warn, error
	Format string `toml:"format" yaml:"format"` // text or json
	// SensitiveFields overrides the column names masked in logs.
	SensitiveFields []string `toml:"sensitive_fields" yaml:"sensitive_fields"`
}

// Profile is one connection.
type Profile struct {
	Driver     string            `toml:"driver" yaml:"driver"` // mysql, pgsql/postgres, sqlite
	Host       string            `toml:"host" yaml:"host"`
	Port       int               `toml:"port" yaml:"port"`
	Database   string            `toml:"database" yaml:"database"`
	User       string            `toml:"user" yaml:"user"`
	Password   string            `toml:"password" yaml:"password"`
	Encoding   string            `toml:"encoding" yaml:"encoding"`
	DriverName string            `toml:"driver_name" yaml:"driver_name"`
	Timeout    string            `toml:"timeout" yaml:"timeout"` // Go duration, e.g. "5s"
	Options    map[string]string `toml:"options" yaml:"options"`

	FieldCache   int  `toml:"field_cache" yaml:"field_cache"`
	LegacyUpsert bool `toml:"legacy_upsert" yaml:"legacy_upsert"`
}

// Load reads the configuration at path, or DefaultFile searched upwards from
// the working directory when path is empty.
func Load(path string) (*File, error) {
	if path == "" {
		found, err := find(DefaultFile)
		if err != nil {
			return nil, err
		}
		path = found
	}
	loadDotEnv(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a configuration. ext selects the format: ".yaml"/".yml" for
// YAML, anything else for TOML.
func Parse(data []byte, ext string) (*File, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	}

	f.expandEnv()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every profile names a supported driver and a valid timeout.
func (f *File) Validate() error {
	if len(f.Profiles) == 0 {
		return ErrNoProfiles
	}
	for _, name := range f.Names() {
		p := f.Profiles[name]
		if _, err := dialects.Lookup(p.Driver); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		if _, err := p.timeout(); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
	}
	if f.Default != "" {
		if _, ok := f.Profiles[f.Default]; !ok {
			return fmt.Errorf("%w: default %q", ErrUnknownProfile, f.Default)
		}
	}
	return nil
}

// Names returns the profile names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for n := range f.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named profile. An empty name selects the default
// profile, or the only profile when there is just one.
func (f *File) Profile(name string) (Profile, error) {
	if name == "" {
		name = f.Default
	}
	if name == "" && len(f.Profiles) == 1 {
		for _, p := range f.Profiles {
			return p, nil
		}
	}
	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// ConnParams converts the profile for core.Open.
func (p Profile) ConnParams() (core.ConnParams, error) {
	d, err := dialects.Lookup(p.Driver)
	if err != nil {
		return core.ConnParams{}, err
	}
	timeout, err := p.timeout()
	if err != nil {
		return core.ConnParams{}, err
	}
	return core.ConnParams{
		Driver:     core.Driver(d.Name()),
		Host:       p.Host,
		Database:   p.Database,
		User:       p.User,
		Password:   p.Password,
		Port:       p.Port,
		Encoding:   p.Encoding,
		Options:    p.Options,
		Timeout:    timeout,
		DriverName: p.DriverName,
	}, nil
}

// DBOptions returns the DB options the profile enables.
func (p Profile) DBOptions() []core.Option {
	var opts []core.Option
	if p.FieldCache > 0 {
		opts = append(opts, core.WithFieldCache(p.FieldCache))
	}
	if p.LegacyUpsert {
		opts = append(opts, core.WithLegacyUpsert(true))
	}
	return opts
}

func (p Profile) timeout() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", p.Timeout, err)
	}
	return d, nil
}

func (f *File) expandEnv() {
	for name, p := range f.Profiles {
		p.Host = expand(p.Host)
		p.Database = expand(p.Database)
		p.User = expand(p.User)
		p.Password = expand(p.Password)
		p.Encoding = expand(p.Encoding)
		for k, v := range p.Options {
			p.Options[k] = expand(v)
		}
		f.Profiles[name] = p
	}
}

// find searches name in the working directory and its parents.
func find(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", name)
		}
		dir = parent
	}
}
