// Package config loads bulkops settings from YAML with environment overrides
// and converts them into engine, store and scheduler options.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/engine"
	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/scheduler"
	"github.com/rshade/bulkops/internal/store"
)

// Environment overrides.
const (
	EnvLogLevel     = "BULKOPS_LOG_LEVEL"
	EnvChunkSize    = "BULKOPS_CHUNK_SIZE"
	EnvStateDir     = "BULKOPS_STATE_DIR"
	EnvStateBackend = "BULKOPS_STATE_BACKEND"
	EnvBucketURL    = "BULKOPS_BUCKET_URL"
	EnvDatabase     = "BULKOPS_DATABASE"
	EnvStateTTL     = "BULKOPS_STATE_TTL"
)

// Defaults for the scheduler section.
const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = time.Second
)

// Validation errors.
var (
	ErrNegativeChunkSize  = errors.New("chunk sizes cannot be negative")
	ErrChunkSizeAboveMax  = errors.New("chunk_size exceeds max_chunk_size")
	ErrIncludeAndExclude  = errors.New("actions.include and actions.exclude are mutually exclusive")
	ErrNegativeMaxRetries = errors.New("max_retries cannot be negative")
	ErrBlobNeedsBucket    = errors.New("the blob backend requires state.bucket_url")
	ErrUnknownLogFormat   = errors.New("logging.format must be 'console' or 'json'")
)

// Config is the complete bulkops configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Batch   BatchConfig   `yaml:"batch"   json:"batch"`
	State   StateConfig   `yaml:"state"   json:"state"`
	Content ContentConfig `yaml:"content" json:"content"`
	Actions ActionsConfig `yaml:"actions" json:"actions"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `yaml:"level"          json:"level"`
	Format string `yaml:"format"         json:"format"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// BatchConfig controls chunking and retries.
type BatchConfig struct {
	ChunkSize    int  `yaml:"chunk_size"     json:"chunk_size"`
	MaxChunkSize int  `yaml:"max_chunk_size" json:"max_chunk_size"`
	CaptureList  bool `yaml:"capture_list"   json:"capture_list"`
	// MaxRetries is how often `bulkops run` retries a failed step.
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// StateConfig selects where persisted runs live.
type StateConfig struct {
	Backend    string `yaml:"backend"              json:"backend"`
	Dir        string `yaml:"dir,omitempty"        json:"dir,omitempty"`
	BucketURL  string `yaml:"bucket_url,omitempty" json:"bucket_url,omitempty"`
	Prefix     string `yaml:"prefix,omitempty"     json:"prefix,omitempty"`
	Compress   bool   `yaml:"compress"             json:"compress"`
	TTLSeconds int    `yaml:"ttl_seconds"          json:"ttl_seconds"`
}

// ContentConfig points at the content database.
type ContentConfig struct {
	Database string `yaml:"database" json:"database"`
}

// ActionsConfig narrows and tunes the available actions.
type ActionsConfig struct {
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	// Preconfiguration fills configuration keys the operator leaves out.
	Preconfiguration map[string]map[string]any `yaml:"preconfiguration,omitempty" json:"preconfiguration,omitempty"`
	ChunkSize        map[string]int            `yaml:"chunk_size,omitempty"       json:"chunk_size,omitempty"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
			File:   inConfigDir(logFileName),
		},
		Batch: BatchConfig{
			ChunkSize:    batch.DefaultChunkSize,
			MaxChunkSize: batch.MaxChunkSize,
			CaptureList:  true,
			MaxRetries:   DefaultMaxRetries,
			RetryDelay:   DefaultRetryDelay,
		},
		State: StateConfig{
			Backend:    store.BackendFile,
			Dir:        inConfigDir(stateDirName),
			TTLSeconds: store.DefaultTTLSeconds,
		},
		Content: ContentConfig{
			Database: inConfigDir(databaseName),
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := New()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if mergeErr := ShallowMergeYAML(cfg, path); mergeErr != nil {
				return nil, mergeErr
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies the BULKOPS_* overrides found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvChunkSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvChunkSize, err)
		}
		c.Batch.ChunkSize = n
	}
	if v, ok := lookup(EnvStateDir); ok && v != "" {
		c.State.Dir = v
	}
	if v, ok := lookup(EnvStateBackend); ok && v != "" {
		c.State.Backend = strings.ToLower(v)
	}
	if v, ok := lookup(EnvBucketURL); ok && v != "" {
		c.State.BucketURL = v
	}
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Content.Database = v
	}
	if v, ok := lookup(EnvStateTTL); ok && v != "" {
		ttl, err := store.ParseTTL(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvStateTTL, err)
		}
		c.State.TTLSeconds = ttl
	}
	return nil
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Batch.ChunkSize < 0 || c.Batch.MaxChunkSize < 0 {
		errs = append(errs, ErrNegativeChunkSize)
	}
	if c.Batch.MaxChunkSize > 0 && c.Batch.ChunkSize > c.Batch.MaxChunkSize {
		errs = append(errs, fmt.Errorf("%w: %d > %d", ErrChunkSizeAboveMax, c.Batch.ChunkSize, c.Batch.MaxChunkSize))
	}
	for id, size := range c.Actions.ChunkSize {
		if err := batch.ValidateChunkSize(size, c.Batch.MaxChunkSize); err != nil {
			errs = append(errs, fmt.Errorf("actions.chunk_size[%s]: %w", id, err))
		}
	}
	if c.Batch.MaxRetries < 0 {
		errs = append(errs, ErrNegativeMaxRetries)
	}
	switch c.State.Backend {
	case store.BackendFile:
	case store.BackendBlob:
		if c.State.BucketURL == "" {
			errs = append(errs, ErrBlobNeedsBucket)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", store.ErrUnknownBackend, c.State.Backend))
	}
	if err := store.ValidateTTL(c.State.TTLSeconds); err != nil {
		errs = append(errs, fmt.Errorf("state.ttl_seconds: %w", err))
	}
	if len(c.Actions.Include) > 0 && len(c.Actions.Exclude) > 0 {
		errs = append(errs, ErrIncludeAndExclude)
	}
	if f := strings.ToLower(c.Logging.Format); f != "" && f != logging.FormatConsole && f != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrUnknownLogFormat, c.Logging.Format))
	}
	return errors.Join(errs...)
}

// LoggingOptions converts the logging section.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format, File: c.Logging.File}
}

// EngineOptions converts the batch and actions sections.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.Options{
		DefaultChunkSize: c.Batch.ChunkSize,
		MaxChunkSize:     c.Batch.MaxChunkSize,
		CaptureList:      c.Batch.CaptureList,
		ActionChunkSize:  c.Actions.ChunkSize,
		Offered:          c.ActionFilter(),
	}
	if len(c.Actions.Preconfiguration) > 0 {
		opts.Preconfiguration = make(map[string]action.Configuration, len(c.Actions.Preconfiguration))
		for id, cfg := range c.Actions.Preconfiguration {
			opts.Preconfiguration[id] = action.Configuration(cfg)
		}
	}
	return opts
}

// StoreOptions converts the state section.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:   c.State.Backend,
		Dir:       c.State.Dir,
		BucketURL: c.State.BucketURL,
		Prefix:    c.State.Prefix,
		Compress:  c.State.Compress,
	}
}

// SchedulerOptions converts the retry and TTL settings.
func (c *Config) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		TTLSeconds: c.State.TTLSeconds,
		MaxRetries: c.Batch.MaxRetries,
		RetryDelay: c.Batch.RetryDelay,
	}
}

// ActionFilter converts the include and exclude lists.
func (c *Config) ActionFilter() action.Filter {
	return action.Filter{Include: c.Actions.Include, Exclude: c.Actions.Exclude}
}

// UnknownActions returns the configured action ids absent from known.
func (c *Config) UnknownActions(known []string) []string {
	ids := mapset.NewThreadUnsafeSet[string]()
	ids.Append(c.Actions.Include...)
	ids.Append(c.Actions.Exclude...)
	for id := range c.Actions.Preconfiguration {
		ids.Add(id)
	}
	for id := range c.Actions.ChunkSize {
		ids.Add(id)
	}
	unknown := ids.Difference(mapset.NewThreadUnsafeSet(known...)).ToSlice()
	slices.Sort(unknown)
	return unknown
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
