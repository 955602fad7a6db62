// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package config loads the store configuration from YAML.
//
//	region:
//	  offset: 0x1f0000
//	  size: 0x10000
//	  page_size: 256
//	  sector_size: 4096
//	  entry_pages: 1
//	types: [conf, cal1]
//	max_attempts: 25
//	log_level: info
package config

import (
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dacapoday/slotlog"
	"github.com/dacapoday/slotlog/metrics"
	"github.com/dacapoday/slotlog/store"
)

// LogLevelEnv overrides the configured log level.
const LogLevelEnv = "LOG_LEVEL"

var validate = validator.New()

type Region struct {
	Offset     uint32 `yaml:"offset"`
	Size       uint32 `yaml:"size" validate:"required"`
	PageSize   uint32 `yaml:"page_size" validate:"required"`
	SectorSize uint32 `yaml:"sector_size" validate:"required"`
	EntryPages uint32 `yaml:"entry_pages" validate:"required,max=4096"`
}

type Config struct {
	Region      Region   `yaml:"region"`
	FlashSize   uint32   `yaml:"flash_size"` // whole device, defaults to the region end
	SingleType  bool     `yaml:"single_type"`
	Types       []string `yaml:"types" validate:"dive,len=4"`
	Attempts    int      `yaml:"max_attempts" validate:"gte=0,lte=100000"`
	LogLevel    string   `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`

	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

var (
	_ store.Option      = (*Config)(nil)
	_ store.MaxAttempts = (*Config)(nil)
	_ store.Logger      = (*Config)(nil)
	_ store.Metrics     = (*Config)(nil)
)

// Default returns the configuration used for absent keys.
func Default() *Config {
	return &Config{
		Region: Region{
			PageSize:   256,
			SectorSize: 4096,
			EntryPages: 1,
		},
		LogLevel: "info",
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if level := os.Getenv(LogLevelEnv); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints, the region invariants and the tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if err := c.Geometry().Validate(!c.SingleType); err != nil {
		return err
	}
	if end := uint64(c.Region.Offset) + uint64(c.Region.Size); c.FlashSize != 0 && uint64(c.FlashSize) < end {
		return slotlog.Errorf(slotlog.ErrInvalidGeometry, "flash size %#x ends before region end %#x", c.FlashSize, end)
	}
	if c.SingleType {
		if len(c.Types) != 0 {
			return errors.New("invalid config: single_type store takes no types")
		}
		return nil
	}
	if len(c.Types) == 0 {
		return slotlog.Errorf(slotlog.ErrUnregistered, "no types configured")
	}
	_, err := c.Tags()
	return err
}

func (c *Config) Geometry() slotlog.Geometry {
	return slotlog.Geometry{
		Offset:     c.Region.Offset,
		Size:       c.Region.Size,
		PageSize:   c.Region.PageSize,
		SectorSize: c.Region.SectorSize,
		EntryPages: c.Region.EntryPages,
	}
}

// DeviceSize returns the size of the whole flash device.
func (c *Config) DeviceSize() int64 {
	if c.FlashSize != 0 {
		return int64(c.FlashSize)
	}
	return int64(c.Region.Offset) + int64(c.Region.Size)
}

func (c *Config) MaxAttempts() int {
	return c.Attempts
}

// Tags converts the configured types into tags, in index order.
func (c *Config) Tags() ([]slotlog.Tag, error) {
	tags := make([]slotlog.Tag, len(c.Types))
	seen := make(map[slotlog.Tag]int, len(c.Types))
	for i, s := range c.Types {
		tag, err := slotlog.MakeTag(s)
		if err != nil {
			return nil, err
		}
		if j, ok := seen[tag]; ok {
			return nil, slotlog.Errorf(slotlog.ErrDuplicateTag, "%s at index %d and %d", tag, j, i)
		}
		seen[tag] = i
		tags[i] = tag
	}
	return tags, nil
}

// Index returns the type index of a tag name.
func (c *Config) Index(name string) (int, error) {
	for i, s := range c.Types {
		if s == name {
			return i, nil
		}
	}
	return -1, slotlog.Errorf(slotlog.ErrUnknownType, "%q", name)
}

// SetLogger sets the logger handed to the store.
func (c *Config) SetLogger(log logrus.FieldLogger) {
	c.log = log
}

func (c *Config) Logger() logrus.FieldLogger {
	return c.log
}

// SetMetrics sets the collectors handed to the store.
func (c *Config) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

func (c *Config) Metrics() *metrics.Metrics {
	return c.metrics
}

// NewLogger returns a logger writing to out at the configured level.
func (c *Config) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if c.LogLevel != "" {
		var err error
		if level, err = logrus.ParseLevel(c.LogLevel); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}
