// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	DatabaseURL string `yaml:"database_url"`

	// MapConfig and Annotations are document locations understood by
	// source.Open: a path, an http(s) URL or "pg:<name>".
	MapConfig   string `yaml:"map_config"`
	Annotations string `yaml:"annotations"`
	AssetPrefix string `yaml:"asset_prefix"`
	AssetToken  string `yaml:"asset_token"`

	MinZoom  float64         `yaml:"min_zoom"`
	MaxZoom  float64         `yaml:"max_zoom"`
	Viewport Viewport        `yaml:"viewport"`
	Settings map[string]bool `yaml:"settings"`
}

func Default() Config {
	return Config{
		HTTPAddr:    ":8081",
		LogLevel:    "info",
		MapConfig:   "html/js/metadata.json",
		Annotations: "html/js/pois.json",
		AssetPrefix: "/maps",
		MinZoom:     -10,
		MaxZoom:     2,
		Viewport:    Viewport{Width: 1280, Height: 800},
	}
}

// Load reads path (when non-empty) over the defaults and then applies the
// environment through getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if getenv == nil {
		getenv = os.Getenv
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("MAP_CONFIG", &cfg.MapConfig)
	str("ANNOTATIONS", &cfg.Annotations)
	str("ASSET_PREFIX", &cfg.AssetPrefix)
	str("ASSET_TOKEN", &cfg.AssetToken)

	var errs []error
	num := func(key string, dst *float64) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
	num("MIN_ZOOM", &cfg.MinZoom)
	num("MAX_ZOOM", &cfg.MaxZoom)
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.MinZoom > c.MaxZoom {
		return fmt.Errorf("min_zoom %v exceeds max_zoom %v", c.MinZoom, c.MaxZoom)
	}
	if c.Viewport.Width < 0 || c.Viewport.Height < 0 {
		return errors.New("viewport size must not be negative")
	}
	return nil
}
