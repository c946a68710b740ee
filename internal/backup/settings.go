package backup

import (
	"fmt"

	"pms-backup/internal/uploads"
)

// Defaults of the PMS installation the command was written for.
const (
	DefaultBackupDirectory  = "/home/volmarg/Partycje/Dane/pms_db_backup"
	DefaultDatabaseFileName = "pmsSqlBackup"
	DefaultFilesArchiveName = "files"
	DefaultPublicRoot       = "./public"
)

// Settings is the fixed configuration of an orchestrator
type Settings struct {
	BackupDirectory  string
	DatabaseFileName string
	FilesArchiveName string
	PublicRoot       string
	Recursive        bool
	UploadDirs       uploads.EnvConfig
	FailOnWarning    bool
}

// DefaultSettings returns the settings of a stock installation
func DefaultSettings(uploadDirs uploads.EnvConfig) Settings {
	return Settings{
		BackupDirectory:  DefaultBackupDirectory,
		DatabaseFileName: DefaultDatabaseFileName,
		FilesArchiveName: DefaultFilesArchiveName,
		PublicRoot:       DefaultPublicRoot,
		Recursive:        true,
		UploadDirs:       uploadDirs,
	}
}

// Validate checks that every field needed by a run is set
func (s Settings) Validate() error {
	switch {
	case s.BackupDirectory == "":
		return fmt.Errorf("backup directory is required")
	case s.DatabaseFileName == "":
		return fmt.Errorf("database file name is required")
	case s.FilesArchiveName == "":
		return fmt.Errorf("files archive name is required")
	case s.PublicRoot == "":
		return fmt.Errorf("public root is required")
	case s.UploadDirs == nil:
		return fmt.Errorf("upload directories are required")
	}
	return nil
}
