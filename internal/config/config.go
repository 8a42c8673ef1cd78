package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/experiment"
	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/integrators"
	"github.com/san-kum/popsim/internal/region"
)

const (
	DefaultRegions = 5
	DefaultSeed    = 42
	DefaultWorkers = 1
)

type Config struct {
	Regions   int           `yaml:"regions"`
	Capacity  float64       `yaml:"capacity"`
	Horizon   float64       `yaml:"horizon"`
	Points    int           `yaml:"points"`
	Seed      int64         `yaml:"seed"`
	Method    string        `yaml:"method"`
	Tolerance float64       `yaml:"tolerance"`
	Workers   int           `yaml:"workers"`
	Bounds    region.Bounds `yaml:"bounds"`

	MaxRejections int     `yaml:"max_rejections"`
	MinDt         float64 `yaml:"min_dt"`
	StepDoubling  bool    `yaml:"step_doubling"`
}

func DefaultConfig() *Config {
	solver := dynamo.DefaultConfig()
	return &Config{
		Regions:   DefaultRegions,
		Capacity:  growth.DefaultCapacity,
		Horizon:   growth.DefaultHorizon,
		Points:    growth.DefaultPoints,
		Seed:      DefaultSeed,
		Method:    integrators.MethodRK45,
		Tolerance: integrators.DefaultTolerance,
		Workers:   DefaultWorkers,
		Bounds:    region.DefaultBounds(),

		MaxRejections: solver.MaxRejections,
		MinDt:         solver.MinDt,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over base, which is not modified.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Clone() *Config {
	out := *c
	return &out
}

func (c *Config) Validate() error {
	if c.Regions <= 0 {
		return fmt.Errorf("%w: regions must be positive, got %d", dynamo.ErrInvalidArgument, c.Regions)
	}
	if !(c.Capacity > 0) || math.IsInf(c.Capacity, 0) {
		return fmt.Errorf("%w: capacity must be positive and finite, got %g", dynamo.ErrInvalidArgument, c.Capacity)
	}
	if !(c.Horizon > 0) || math.IsInf(c.Horizon, 0) {
		return fmt.Errorf("%w: horizon must be positive and finite, got %g", dynamo.ErrInvalidArgument, c.Horizon)
	}
	if c.Points < 2 {
		return fmt.Errorf("%w: points must be at least 2, got %d", dynamo.ErrInvalidArgument, c.Points)
	}
	if _, err := integrators.New(c.Method); err != nil {
		return err
	}
	if !(c.Tolerance > 0) {
		return fmt.Errorf("%w: tolerance must be positive, got %g", dynamo.ErrInvalidArgument, c.Tolerance)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", dynamo.ErrInvalidArgument, c.Workers)
	}
	if c.MaxRejections <= 0 {
		return fmt.Errorf("%w: max_rejections must be positive, got %d", dynamo.ErrInvalidArgument, c.MaxRejections)
	}
	if !(c.MinDt > 0) || math.IsInf(c.MinDt, 0) {
		return fmt.Errorf("%w: min_dt must be positive and finite, got %g", dynamo.ErrInvalidArgument, c.MinDt)
	}
	return c.Bounds.Validate()
}

// Grid is Points evenly spaced times over [0, Horizon].
func (c *Config) Grid() ([]float64, error) {
	return growth.Linspace(0, c.Horizon, c.Points)
}

func (c *Config) ExperimentConfig() (experiment.Config, error) {
	if err := c.Validate(); err != nil {
		return experiment.Config{}, err
	}
	grid, err := c.Grid()
	if err != nil {
		return experiment.Config{}, err
	}
	return experiment.Config{
		Regions:   c.Regions,
		Capacity:  c.Capacity,
		Grid:      grid,
		Seed:      c.Seed,
		Method:    c.Method,
		Tolerance: c.Tolerance,
		Workers:   c.Workers,
		Bounds:    c.Bounds,

		MaxRejections: c.MaxRejections,
		MinDt:         c.MinDt,
		StepDoubling:  c.StepDoubling,
	}, nil
}
