package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/baderkha/sql2mongo/pkg/conditional"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/targetcfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/table/colmap"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile          = "job.json"
	DefaultStatePath     = "sql2mongo_state.sqlite"
	DefaultReportDir     = "./reports"
	DefaultProgressEvery = 1000
	DefaultS3MaxRetry    = 3
	DefaultSourceConns   = 2
)

// Job : the only instantiation the cli runs
type Job = Config[sourcecfg.SQL, targetcfg.Mongo]

// Config : configuration for the job
type Config[S any, T any] struct {
	MaxSourceConns  int               `json:"max_source_conns" yaml:"max_source_conns"`
	SourceConfig    S                 `json:"source" yaml:"source"`
	Target          T                 `json:"target" yaml:"target"`
	OrderBy         string            `json:"order_by" yaml:"order_by"`
	StrictTypes     bool              `json:"strict_types" yaml:"strict_types"`
	TypeOverrides   map[string]string `json:"type_overrides" yaml:"type_overrides"`
	ProgressEvery   int               `json:"progress_every" yaml:"progress_every"`
	FailOnRowErrors bool              `json:"fail_on_row_errors" yaml:"fail_on_row_errors"`
	DryRun          bool              `json:"dry_run" yaml:"dry_run"`
	State           State             `json:"state" yaml:"state"`
	Report          Report            `json:"report" yaml:"report"`
}

type State struct {
	Path string `json:"path" yaml:"path"`
}

type S3Options struct {
	Bucket   string `json:"bucket" yaml:"bucket"`
	Prefix   string `json:"prefix" yaml:"prefix"`
	Region   string `json:"region" yaml:"region"`
	MaxRetry int    `json:"max_retry" yaml:"max_retry"`
}

type Report struct {
	Dir string    `json:"dir" yaml:"dir"`
	S3  S3Options `json:"s3" yaml:"s3"`
}

// Order values accepted by order_by
const (
	OrderByFields = "fields"
	OrderByName   = "name"
	OrderBySize   = "size"
)

// section : implemented by the source and target blocks
type section interface {
	SetDefaults()
	Validate() error
	ApplyEnv(lookup func(string) (string, bool))
}

// Load : reads the job file from fs , json or yaml picked by extension
func Load[S any, T any](fs afero.Fs, path string) (*Config[S, T], error) {
	var cfg Config[S, T]
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("config: could not read %s : %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: could not decode %s : %w", path, err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config[S, T]) sections() []section {
	var res []section
	if s, ok := any(&c.SourceConfig).(section); ok {
		res = append(res, s)
	}
	if s, ok := any(&c.Target).(section); ok {
		res = append(res, s)
	}
	return res
}

func (c *Config[S, T]) ApplyEnv(lookup func(string) (string, bool)) {
	for _, s := range c.sections() {
		s.ApplyEnv(lookup)
	}
	c.Report.Dir = conditional.EnvOr(lookup, "SQL2MONGO_REPORT_DIR", c.Report.Dir)
	c.Report.S3.Prefix = conditional.EnvOr(lookup, "SQL2MONGO_S3_PREFIX", c.Report.S3.Prefix)
}

func (c *Config[S, T]) SetDefaults() {
	for _, s := range c.sections() {
		s.SetDefaults()
	}
	if c.MaxSourceConns <= 0 {
		c.MaxSourceConns = DefaultSourceConns
	}
	c.OrderBy = conditional.Ternary(c.OrderBy == "", OrderByFields, strings.ToLower(c.OrderBy))
	if c.ProgressEvery == 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	c.State.Path = conditional.Ternary(c.State.Path == "", DefaultStatePath, c.State.Path)
	c.Report.Dir = conditional.Ternary(c.Report.Dir == "", DefaultReportDir, c.Report.Dir)
	if c.Report.S3.MaxRetry <= 0 {
		c.Report.S3.MaxRetry = DefaultS3MaxRetry
	}
}

// Validate : collects every problem instead of stopping at the first
func (c *Config[S, T]) Validate() error {
	var finalErr error
	for _, s := range c.sections() {
		if err := s.Validate(); err != nil {
			finalErr = multierror.Append(finalErr, err)
		}
	}
	switch c.OrderBy {
	case OrderByFields, OrderByName, OrderBySize:
	default:
		finalErr = multierror.Append(finalErr, fmt.Errorf("order_by: unsupported value %q (must be fields, name or size)", c.OrderBy))
	}
	for srcType, kind := range c.TypeOverrides {
		if _, err := colmap.ParseKind(kind); err != nil {
			finalErr = multierror.Append(finalErr, fmt.Errorf("type_overrides: %s : %w", srcType, err))
		}
	}
	return finalErr
}

// Overrides : type_overrides with kinds parsed , only call after Validate
func (c *Config[S, T]) Overrides() map[string]colmap.Kind {
	res := make(map[string]colmap.Kind, len(c.TypeOverrides))
	for srcType, kind := range c.TypeOverrides {
		k, _ := colmap.ParseKind(kind)
		res[colmap.Normalize(srcType)] = k
	}
	return res
}
