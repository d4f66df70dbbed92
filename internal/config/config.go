// Package config loads pytype's configuration (spec.md §6 "Configuration
// file"), resolves report-rule severities from typeCheckingMode, and reads
// the four recognized environment variables, using godotenv to load a
// local `.env` the same way the teacher's test setup does (SPEC_FULL.md
// §6.F).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/oxhq/pytype/internal/diagnostic"
)

// TypeCheckingMode selects the default severity table (spec.md §6).
type TypeCheckingMode string

const (
	ModeOff      TypeCheckingMode = "off"
	ModeBasic    TypeCheckingMode = "basic"
	ModeStandard TypeCheckingMode = "standard"
	ModeStrict   TypeCheckingMode = "strict"
	ModeAll      TypeCheckingMode = "all"
)

// ExecutionEnvironment is one entry of spec.md §6's `executionEnvironments`
// list: "the first whose root is a prefix of the file applies."
type ExecutionEnvironment struct {
	Root            string   `json:"root" toml:"root"`
	PythonVersion   string   `json:"pythonVersion" toml:"pythonVersion"`
	PythonPlatform  string   `json:"pythonPlatform" toml:"pythonPlatform"`
	ExtraPaths      []string `json:"extraPaths" toml:"extraPaths"`
}

// Config is the decoded shape of either a JSON config file or a
// `[tool.pytype]` TOML table (spec.md §6).
type Config struct {
	Include []string `json:"include" toml:"include"`
	Exclude []string `json:"exclude" toml:"exclude"`
	Ignore  []string `json:"ignore" toml:"ignore"`

	ExecutionEnvironments []ExecutionEnvironment `json:"executionEnvironments" toml:"executionEnvironments"`

	Report map[string]string `json:"reportX" toml:"reportX"`

	Strict []string `json:"strict" toml:"strict"`

	TypeCheckingMode TypeCheckingMode `json:"typeCheckingMode" toml:"typeCheckingMode"`

	PythonVersion        string `json:"pythonVersion" toml:"pythonVersion"`
	PythonPlatform       string `json:"pythonPlatform" toml:"pythonPlatform"`
	StubPath             string `json:"stubPath" toml:"stubPath"`
	VenvPath             string `json:"venvPath" toml:"venvPath"`
	TypeshedPath         string `json:"typeshedPath" toml:"typeshedPath"`
	UseLibraryCodeForTypes bool `json:"useLibraryCodeForTypes" toml:"useLibraryCodeForTypes"`

	// Cache carries the persistent-cache backend selection (SPEC_FULL.md
	// §4.8.F), read from either the config file's `cache` table or the
	// CACHE_* environment variables, env taking precedence.
	Cache CacheConfig `json:"cache" toml:"cache"`
}

// CacheConfig selects the persistent cache's storage backend (SPEC_FULL.md
// §4.8.F "db.Connect dispatch").
type CacheConfig struct {
	Enable bool   `json:"enable" toml:"enable"`
	Dir    string `json:"dir" toml:"dir"`
	DSN    string `json:"dsn" toml:"dsn"`
}

type pyprojectFile struct {
	Tool struct {
		Pytype Config `toml:"pytype"`
	} `toml:"tool"`
}

// Load reads path (a `pytypeconfig.json` or a `pyproject.toml`-shaped file),
// dispatching on extension (spec.md §6, SPEC_FULL.md §6.F). It first loads a
// sibling `.env` via godotenv (ignoring a missing file, matching the
// teacher's optional-.env convention) so CACHE_* env vars are available to
// ApplyEnv.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	switch filepath.Ext(path) {
	case ".toml":
		var doc pyprojectFile
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("config: decoding TOML %s: %w", path, err)
		}
		merge(cfg, &doc.Tool.Pytype)
	default:
		var parsed Config
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("config: decoding JSON %s: %w", path, err)
		}
		merge(cfg, &parsed)
	}

	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns typeCheckingMode=standard with no filters, matching
// pyright/pytype's out-of-the-box behavior absent a config file.
func Default() *Config {
	return &Config{
		TypeCheckingMode: ModeStandard,
		Report:           map[string]string{},
		Cache:            CacheConfig{Enable: true, Dir: ".pytype_cache"},
	}
}

func merge(dst, src *Config) {
	if len(src.Include) > 0 {
		dst.Include = src.Include
	}
	if len(src.Exclude) > 0 {
		dst.Exclude = src.Exclude
	}
	if len(src.Ignore) > 0 {
		dst.Ignore = src.Ignore
	}
	if len(src.ExecutionEnvironments) > 0 {
		dst.ExecutionEnvironments = src.ExecutionEnvironments
	}
	for k, v := range src.Report {
		dst.Report[k] = v
	}
	if len(src.Strict) > 0 {
		dst.Strict = src.Strict
	}
	if src.TypeCheckingMode != "" {
		dst.TypeCheckingMode = src.TypeCheckingMode
	}
	if src.PythonVersion != "" {
		dst.PythonVersion = src.PythonVersion
	}
	if src.PythonPlatform != "" {
		dst.PythonPlatform = src.PythonPlatform
	}
	if src.StubPath != "" {
		dst.StubPath = src.StubPath
	}
	if src.VenvPath != "" {
		dst.VenvPath = src.VenvPath
	}
	if src.TypeshedPath != "" {
		dst.TypeshedPath = src.TypeshedPath
	}
	if src.UseLibraryCodeForTypes {
		dst.UseLibraryCodeForTypes = true
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
	if src.Cache.DSN != "" {
		dst.Cache.DSN = src.Cache.DSN
	}
	// Cache.Enable has no file-level override here: JSON/TOML's zero value
	// for an absent bool field is indistinguishable from an explicit
	// `false`, so the default (enabled) only flips off via CACHE_ENABLE
	// (ApplyEnv) or a config key the caller reads before calling merge.
}

// ApplyEnv overlays four environment variables: `CACHE_ENABLE`,
// `CACHE_DIR`, `CACHE_DSN` (folded into Cache.DSN) and `LANGUAGE_VERSION`
// (folded into PythonVersion). Environment always wins over the config file.
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("CACHE_ENABLE"); ok {
		cfg.Cache.Enable = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := os.LookupEnv("CACHE_DIR"); ok && v != "" {
		cfg.Cache.Dir = v
	}
	if v, ok := os.LookupEnv("CACHE_DSN"); ok && v != "" {
		cfg.Cache.DSN = v
	}
	if v, ok := os.LookupEnv("LANGUAGE_VERSION"); ok && v != "" {
		cfg.PythonVersion = v
	}
}

// Validate reports a Configuration error (spec.md §7 "Configuration —
// malformed config: aborts startup with exit code 2, listing all
// violations.").
func Validate(cfg *Config) error {
	var problems []string
	switch cfg.TypeCheckingMode {
	case ModeOff, ModeBasic, ModeStandard, ModeStrict, ModeAll, "":
	default:
		problems = append(problems, fmt.Sprintf("typeCheckingMode: unrecognized value %q", cfg.TypeCheckingMode))
	}
	for rule, sev := range cfg.Report {
		switch diagnostic.Severity(sev) {
		case diagnostic.SeverityError, diagnostic.SeverityWarning, diagnostic.SeverityInformation, diagnostic.SeverityNone:
		default:
			problems = append(problems, fmt.Sprintf("reportX[%s]: unrecognized severity %q", rule, sev))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// EnvironmentFor returns the first ExecutionEnvironment whose root is a
// prefix of file (spec.md §6), or nil if none match.
func (c *Config) EnvironmentFor(file string) *ExecutionEnvironment {
	for i := range c.ExecutionEnvironments {
		env := &c.ExecutionEnvironments[i]
		if strings.HasPrefix(file, env.Root) {
			return env
		}
	}
	return nil
}
