package constants

import "time"

const (
	AppName            = "jaaptracker"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/jaaptracker/jaaptracker.db"
	Version            = "v0.3.0"

	// DateFormat is the ISO-8601 calendar date layout used for storage and backups (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "jaaptracker-"
	BackupFileSuffix = ".json"

	// Lock constants
	LockfileName      = "jaaptracker.lock"
	LockRetryDelay    = 100 * time.Millisecond
	LockMaxRetries    = 3
	ExecutablePrefix  = "jaaptracker"
	LogDirName        = "logs"
	LogFileName       = "jaaptracker.log"
	EnvFileName       = ".env"
	PostgresSchema    = AppName
	SQLiteBusyTimeout = 5000 // milliseconds
)
