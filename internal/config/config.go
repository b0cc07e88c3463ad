// Package config loads elongate settings from defaults, environment,
// elongate.toml and command-line overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	FileName  = "elongate.toml"
	envPrefix = "ELONGATE_"

	DefaultTempo      = -15
	DefaultInputFile  = "in.wav"
	DefaultOutputFile = "out.wav"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
)

// Log contains configuration for log output.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is resolved once per run and handed to every step by value.
type Config struct {
	Tempo            int    `toml:"tempo"`
	InputFile        string `toml:"input_file"`
	OutputFile       string `toml:"output_file"`
	Transcoder       string `toml:"transcoder"`
	Stretcher        string `toml:"stretcher"`
	Intermediate     string `toml:"intermediate"`
	KeepIntermediate bool   `toml:"keep_intermediate"`
	Log              Log    `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Tempo:      DefaultTempo,
		InputFile:  DefaultInputFile,
		OutputFile: DefaultOutputFile,
		Transcoder: "ffmpeg",
		Stretcher:  "soundstretch",
		Log: Log{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Overrides carries command-line values. Nil fields were not set by the user.
type Overrides struct {
	Tempo            *int
	InputFile        *string
	OutputFile       *string
	Transcoder       *string
	Stretcher        *string
	Intermediate     *string
	KeepIntermediate *bool
	LogLevel         *string
	LogFormat        *string
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// Path of the TOML file. Empty means elongate.toml beside the executable.
	Path string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	Overrides Overrides
}

// Source describes which config file was considered.
type Source struct {
	Path   string
	Exists bool
}

// Load merges defaults, environment, the optional TOML file and overrides,
// in increasing order of precedence.
func Load(opts LoadOptions) (Config, Source, error) {
	cfg := Default()

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, Source{}, err
	}

	src, err := resolveConfigPath(opts.Path)
	if err != nil {
		return Config{}, Source{}, err
	}
	if src.Exists {
		if err := decodeFile(src.Path, &cfg); err != nil {
			return Config{}, src, err
		}
	}

	cfg.apply(opts.Overrides)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, src, err
	}

	return cfg, src, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"INPUT_FILE", &c.InputFile},
		{"OUTPUT_FILE", &c.OutputFile},
		{"TRANSCODER", &c.Transcoder},
		{"STRETCHER", &c.Stretcher},
		{"INTERMEDIATE", &c.Intermediate},
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FORMAT", &c.Log.Format},
	}
	for _, s := range strs {
		if value, ok := lookup(envPrefix + s.key); ok {
			*s.dst = value
		}
	}

	if value, ok := lookup(envPrefix + "TEMPO"); ok {
		tempo, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%sTEMPO: invalid integer %q", envPrefix, value)
		}
		c.Tempo = tempo
	}

	if value, ok := lookup(envPrefix + "KEEP_INTERMEDIATE"); ok {
		keep, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%sKEEP_INTERMEDIATE: invalid boolean %q", envPrefix, value)
		}
		c.KeepIntermediate = keep
	}

	return nil
}

func (c *Config) apply(o Overrides) {
	if o.Tempo != nil {
		c.Tempo = *o.Tempo
	}
	if o.InputFile != nil {
		c.InputFile = *o.InputFile
	}
	if o.OutputFile != nil {
		c.OutputFile = *o.OutputFile
	}
	if o.Transcoder != nil {
		c.Transcoder = *o.Transcoder
	}
	if o.Stretcher != nil {
		c.Stretcher = *o.Stretcher
	}
	if o.Intermediate != nil {
		c.Intermediate = *o.Intermediate
	}
	if o.KeepIntermediate != nil {
		c.KeepIntermediate = *o.KeepIntermediate
	}
	if o.LogLevel != nil {
		c.Log.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		c.Log.Format = *o.LogFormat
	}
}

func (c *Config) normalize() {
	c.InputFile = strings.TrimSpace(c.InputFile)
	c.OutputFile = strings.TrimSpace(c.OutputFile)
	c.Transcoder = strings.TrimSpace(c.Transcoder)
	c.Stretcher = strings.TrimSpace(c.Stretcher)
	c.Intermediate = strings.TrimSpace(c.Intermediate)
	if c.Transcoder == "" {
		c.Transcoder = Default().Transcoder
	}
	if c.Stretcher == "" {
		c.Stretcher = Default().Stretcher
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	if c.InputFile == "" {
		return errors.New("input_file must not be empty")
	}
	if c.OutputFile == "" {
		return errors.New("output_file must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json; got %q", c.Log.Format)
	}
	return nil
}

// DefaultPath returns elongate.toml in the directory of the running executable.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	return PathBeside(exe), nil
}

// PathBeside returns the config file location for the given executable.
func PathBeside(executable string) string {
	return filepath.Join(filepath.Dir(executable), FileName)
}

func resolveConfigPath(path string) (Source, error) {
	if strings.TrimSpace(path) == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return Source{}, err
		}
		path = defaultPath
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Source{Path: path}, nil
		}
		return Source{}, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("config path %s is a directory", path)
	}
	return Source{Path: path, Exists: true}, nil
}

// CreateSample writes a sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
