// Package config resolves where the data lives and how the core behaves.
//
// Precedence is flags, then the process environment, then a .env file, then
// defaults. A PostgreSQL connection string is taken from the --config flag or
// JAAPTRACKER_DB (password-free), then JAAPTRACKER_DB_CONNECTION, then the OS
// keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/GitSaviour/jaaptracker/internal/constants"
	"github.com/GitSaviour/jaaptracker/internal/keyring"
	"github.com/GitSaviour/jaaptracker/internal/storage"
	"github.com/GitSaviour/jaaptracker/internal/storage/postgres"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Source records where the store location came from.
type Source string

const (
	SourceFlag     Source = "flag"
	SourceEnv      Source = "env"
	SourceEnvConn  Source = "env-connection"
	SourceKeyring  Source = "keyring"
	SourceDefaults Source = "default"
)

type Config struct {
	Backend Backend
	// Location is the SQLite file path or the PostgreSQL connection string.
	Location string
	Source   Source

	Integrity  storage.IntegrityMode
	Debug      bool
	DataDir    string
	BackupDir  string
	MaxBackups int

	// raw values kept for Validate
	integrityRaw  string
	maxBackupsRaw string
}

// Overrides carries values set on the command line. Empty means unset.
type Overrides struct {
	Location  string
	Integrity string
	Debug     bool
	EnvFile   string
}

var lookupKeyring = keyring.Connection.Get

// Load builds a Config. It never fails on bad values; call Validate.
func Load(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = constants.EnvFileName
	}
	// godotenv never overrides variables already set in the environment
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	cfg := &Config{
		integrityRaw:  firstNonEmpty(o.Integrity, os.Getenv(constants.EnvIntegrity)),
		maxBackupsRaw: os.Getenv(constants.EnvMaxBackups),
		Debug:         o.Debug || getEnvBool(constants.EnvDebug),
		MaxBackups:    constants.MaxBackups,
	}
	cfg.Integrity, _ = storage.ParseIntegrityMode(cfg.integrityRaw)
	if n, err := strconv.Atoi(cfg.maxBackupsRaw); err == nil {
		cfg.MaxBackups = n
	}

	if err := cfg.resolveLocation(o.Location); err != nil {
		return nil, err
	}

	cfg.BackupDir = os.Getenv(constants.EnvBackupDir)
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(cfg.DataDir, constants.BackupDirName)
	} else {
		cfg.BackupDir = expandHome(cfg.BackupDir)
	}
	return cfg, nil
}

func (c *Config) resolveLocation(flag string) error {
	switch {
	case flag != "":
		c.Location, c.Source = flag, SourceFlag
	case os.Getenv(constants.EnvDB) != "":
		c.Location, c.Source = os.Getenv(constants.EnvDB), SourceEnv
	case os.Getenv(constants.EnvDBConnection) != "":
		c.Location, c.Source = os.Getenv(constants.EnvDBConnection), SourceEnvConn
	default:
		conn, err := lookupKeyring()
		switch {
		case err == nil:
			c.Location, c.Source = conn, SourceKeyring
		case errors.Is(err, keyring.ErrNotFound), errors.Is(err, keyring.ErrUnavailable):
			c.Location, c.Source = constants.DefaultConfigPath, SourceDefaults
		default:
			return err
		}
	}

	defaultDir := filepath.Dir(expandHome(constants.DefaultConfigPath))
	if IsPostgres(c.Location) {
		c.Backend = BackendPostgres
		c.DataDir = defaultDir
		return nil
	}
	c.Backend = BackendSQLite
	c.Location = expandHome(c.Location)
	c.DataDir = filepath.Dir(c.Location)
	return nil
}

// IsPostgres reports whether location looks like a PostgreSQL URI or DSN.
func IsPostgres(location string) bool {
	return strings.HasPrefix(location, "postgres://") ||
		strings.HasPrefix(location, "postgresql://") ||
		strings.Contains(location, "host=") ||
		strings.Contains(location, "dbname=")
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var problems []error

	if _, err := storage.ParseIntegrityMode(c.integrityRaw); err != nil {
		problems = append(problems, err)
	}

	if c.maxBackupsRaw != "" {
		if n, err := strconv.Atoi(c.maxBackupsRaw); err != nil {
			problems = append(problems, fmt.Errorf("invalid %s '%s': must be a number", constants.EnvMaxBackups, c.maxBackupsRaw))
		} else if n < 1 {
			problems = append(problems, fmt.Errorf("invalid %s %d: must be at least 1", constants.EnvMaxBackups, n))
		}
	}

	switch c.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Location) == "" {
			problems = append(problems, errors.New("SQLite database path cannot be empty"))
		} else if fi, err := os.Stat(c.Location); err == nil && fi.IsDir() {
			problems = append(problems, fmt.Errorf("SQLite database path '%s' is a directory", c.Location))
		}
	case BackendPostgres:
		err := postgres.ValidateConnString(c.Location)
		// only the env-connection and keyring sources may carry a password
		if errors.Is(err, postgres.ErrEmbeddedCredentials) && (c.Source == SourceEnvConn || c.Source == SourceKeyring) {
			err = nil
		}
		if err != nil {
			problems = append(problems, err)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(problems...))
	}
	return nil
}

// Describe returns the store location safe for display.
func (c *Config) Describe() string {
	if c.Backend == BackendPostgres {
		return postgres.Redact(c.Location)
	}
	return c.Location
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnvBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}
