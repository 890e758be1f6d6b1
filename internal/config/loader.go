package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables recognised by the loader.
const (
	EnvPrefix  = "CONTESTLENS_"
	EnvConfig  = EnvPrefix + "CONFIG"
	EnvEnvFile = EnvPrefix + "ENV_FILE"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) at path, or CONTESTLENS_CONFIG when path is empty
//  3. dotenv file (CONTESTLENS_ENV_FILE, default ./.env when it exists)
//  4. env (prefix CONTESTLENS_)
func Load(_ context.Context, path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envFile, explicit := os.LookupEnv(EnvEnvFile)
	if !explicit {
		envFile = DefaultEnvFile
	}
	if envFile != "" && (explicit || fileExists(envFile)) {
		if err := k.Load(dotenvProvider{path: envFile}, nil); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, envFile, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// envKey maps CONTESTLENS_UPSTREAM_URL -> upstream_url (flat keys).
func envKey(s string) string {
	return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
}

// dotenvProvider reads prefixed keys from a dotenv file without touching the
// process environment.
type dotenvProvider struct {
	path string
}

func (p dotenvProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("dotenv provider does not support ReadBytes")
}

func (p dotenvProvider) Read() (map[string]interface{}, error) {
	vars, err := godotenv.Read(p.path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(vars))
	for name, val := range vars {
		if !strings.HasPrefix(name, EnvPrefix) || name == EnvConfig || name == EnvEnvFile {
			continue
		}
		out[envKey(name)] = val
	}
	return out, nil
}
