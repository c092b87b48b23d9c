package constants

// Environment variables recognised by the config loader.
const (
	EnvDB           = "JAAPTRACKER_DB"
	EnvDBConnection = "JAAPTRACKER_DB_CONNECTION"
	EnvIntegrity    = "JAAPTRACKER_INTEGRITY"
	EnvDebug        = "JAAPTRACKER_DEBUG"
	EnvBackupDir    = "JAAPTRACKER_BACKUP_DIR"
	EnvMaxBackups   = "JAAPTRACKER_MAX_BACKUPS"
)
