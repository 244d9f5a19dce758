package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for photogroup.
//
// YAML example:
//
//	credentialsPath: "./service-account.json"
//	threshold: 0.9
//	concurrency: 4
//	address: "127.0.0.1:8888"
//	bucket: "item-photos"
//	photoRoot: "./photos"
//	corsOrigins: ["http://localhost:5173"]
//
// Environment overrides (a .env file is loaded first when present):
//
//	PHOTOGROUP_CREDENTIALS overrides CredentialsPath; GOOGLE_APPLICATION_CREDENTIALS
//	is used when neither is set.
//	PHOTOGROUP_THRESHOLD, PHOTOGROUP_CONCURRENCY, PHOTOGROUP_ADDR, PHOTOGROUP_BUCKET,
//	PHOTOGROUP_PHOTO_ROOT.
//	PHOTOGROUP_CORS_ORIGINS is a comma separated origin list; empty disables CORS.
//	PHOTOGROUP_CONFIG path to the YAML file; if empty, ./photogroup.yaml is tried.
type Config struct {
	CredentialsPath string  `yaml:"credentialsPath"`
	Threshold       float64 `yaml:"threshold"`
	Concurrency     int     `yaml:"concurrency"`
	Address         string  `yaml:"address"`
	Bucket          string  `yaml:"bucket,omitempty"`
	// PhotoRoot is the only directory the HTTP API reads photos from.
	PhotoRoot   string   `yaml:"photoRoot"`
	CORSOrigins []string `yaml:"corsOrigins,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CredentialsPath: "service-account.json",
		Threshold:       0.9,
		Concurrency:     runtime.NumCPU(),
		Address:         "127.0.0.1:8888",
		PhotoRoot:       "photos",
	}
}

// Load reads the YAML file at path (or the default locations when path is
// empty), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("PHOTOGROUP_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = "photogroup.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("PHOTOGROUP_CREDENTIALS")); v != "" {
		c.CredentialsPath = v
	} else if v := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); v != "" {
		c.CredentialsPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOGROUP_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid PHOTOGROUP_THRESHOLD %q: %w", v, err)
		}
		c.Threshold = f
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOGROUP_CONCURRENCY")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PHOTOGROUP_CONCURRENCY %q: %w", v, err)
		}
		c.Concurrency = n
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOGROUP_ADDR")); v != "" {
		c.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOGROUP_BUCKET")); v != "" {
		c.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOGROUP_PHOTO_ROOT")); v != "" {
		c.PhotoRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOGROUP_CORS_ORIGINS")); v != "" {
		c.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.CORSOrigins = append(c.CORSOrigins, origin)
			}
		}
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", c.Threshold)
	}
	if strings.TrimSpace(c.PhotoRoot) == "" {
		return errors.New("photoRoot must not be empty")
	}
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return errors.New("corsOrigins must list explicit origins, not *")
		}
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	return nil
}
