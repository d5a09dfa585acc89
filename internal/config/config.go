// Package config reads the server's config file and overlays environment
// variables, optionally loaded from a .env file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"guildchat-backend/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddress    = "0.0.0.0"
	DefaultPort       = "3000"
	DefaultLogLevel   = "info"
	DefaultSqlitePath = "./database.db"
)

// Load reads path as JSON or YAML depending on its extension. A missing
// envFile is not an error.
func Load(path string, envFile string) (*models.ConfigFile, error) {
	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if cfg.JwtSecret == "" {
		return nil, errors.New("JwtSecret is not set")
	}

	return cfg, nil
}

func Parse(data []byte, ext string) (*models.ConfigFile, error) {
	var cfg models.ConfigFile

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, err
		}
	case ".json", "":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	return &cfg, nil
}

func applyDefaults(cfg *models.ConfigFile) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.SelfContained && cfg.SqlitePath == "" {
		cfg.SqlitePath = DefaultSqlitePath
	}
}

func applyEnv(cfg *models.ConfigFile, lookup func(string) (string, bool)) error {
	overrides := map[string]*string{
		"CHAT_ADDRESS":        &cfg.Address,
		"CHAT_PORT":           &cfg.Port,
		"CHAT_LOG_LEVEL":      &cfg.LogLevel,
		"CHAT_JWT_SECRET":     &cfg.JwtSecret,
		"CHAT_SQLITE_PATH":    &cfg.SqlitePath,
		"CHAT_DB_USER":        &cfg.DbUser,
		"CHAT_DB_PASSWORD":    &cfg.DbPassword,
		"CHAT_DB_ADDRESS":     &cfg.DbAddress,
		"CHAT_DB_PORT":        &cfg.DbPort,
		"CHAT_DB_DATABASE":    &cfg.DbDatabase,
		"CHAT_REDIS_ADDRESS":  &cfg.RedisAddress,
		"CHAT_REDIS_PASSWORD": &cfg.RedisPassword,
	}
	for key, field := range overrides {
		if value, ok := lookup(key); ok {
			*field = value
		}
	}

	if value, ok := lookup("CHAT_SELF_CONTAINED"); ok {
		selfContained, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("CHAT_SELF_CONTAINED: %w", err)
		}
		cfg.SelfContained = selfContained
	}

	if value, ok := lookup("CHAT_SNOWFLAKE_WORKER_ID"); ok {
		workerID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("CHAT_SNOWFLAKE_WORKER_ID: %w", err)
		}
		cfg.SnowflakeWorkerID = workerID
	}

	return nil
}
