// Package config loads the pms-backup configuration from file, environment
// and command line flags.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"pms-backup/internal/backup"
	"pms-backup/internal/compression"
	"pms-backup/internal/database"
	"pms-backup/internal/display"
	"pms-backup/internal/storage"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by viper
const EnvPrefix = "PMS_BACKUP"

// Config is the complete application configuration
type Config struct {
	Backup   BackupConfig            `mapstructure:"backup" yaml:"backup"`
	Uploads  UploadsConfig           `mapstructure:"uploads" yaml:"uploads"`
	Database database.DatabaseConfig `mapstructure:"database" yaml:"database"`
	Dump     DumpConfig              `mapstructure:"dump" yaml:"dump"`
	Archive  ArchiveConfig           `mapstructure:"archive" yaml:"archive"`
	Storage  storage.Config          `mapstructure:"storage" yaml:"storage"`
	Logging  LoggingConfig           `mapstructure:"logging" yaml:"logging"`
	Display  display.DisplayConfig   `mapstructure:"display" yaml:"display"`
}

// BackupConfig holds where artifacts go and how they are named
type BackupConfig struct {
	Directory        string `mapstructure:"directory" yaml:"directory"`
	DatabaseFileName string `mapstructure:"database_file_name" yaml:"database_file_name"`
	FilesArchiveName string `mapstructure:"files_archive_name" yaml:"files_archive_name"`
	PublicRoot       string `mapstructure:"public_root" yaml:"public_root"`
	Recursive        bool   `mapstructure:"recursive" yaml:"recursive"`
	FailOnWarning    bool   `mapstructure:"fail_on_warning" yaml:"fail_on_warning"`
}

// UploadsConfig holds the upload subdirectories below the public root
type UploadsConfig struct {
	ImagesDir string `mapstructure:"images_dir" yaml:"images_dir"`
	FilesDir  string `mapstructure:"files_dir" yaml:"files_dir"`
}

// ImagesUploadDir returns the upload directory of the images module
func (u UploadsConfig) ImagesUploadDir() string { return u.ImagesDir }

// FilesUploadDir returns the upload directory of the files module
func (u UploadsConfig) FilesUploadDir() string { return u.FilesDir }

// Validate checks that both upload directories are configured
func (u UploadsConfig) Validate() error {
	if u.ImagesDir == "" || u.FilesDir == "" {
		return fmt.Errorf("uploads.images_dir and uploads.files_dir are required")
	}
	return nil
}

// DumpConfig tunes the SQL dump
type DumpConfig struct {
	Compression      string `mapstructure:"compression" yaml:"compression"`
	CompressionLevel int    `mapstructure:"compression_level" yaml:"compression_level"`
	InsertBatchSize  int    `mapstructure:"insert_batch_size" yaml:"insert_batch_size"`
}

// ArchiveConfig tunes the files archive
type ArchiveConfig struct {
	Level int `mapstructure:"level" yaml:"level"`
}

// LoggingConfig controls the structured log
type LoggingConfig struct {
	Format  string `mapstructure:"format" yaml:"format"`
	File    string `mapstructure:"file" yaml:"file"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
	Quiet   bool   `mapstructure:"quiet" yaml:"quiet"`
	Debug   bool   `mapstructure:"debug" yaml:"debug"`
}

// Default returns the configuration of a stock installation
func Default() *Config {
	return &Config{
		Backup: BackupConfig{
			Directory:        backup.DefaultBackupDirectory,
			DatabaseFileName: backup.DefaultDatabaseFileName,
			FilesArchiveName: backup.DefaultFilesArchiveName,
			PublicRoot:       backup.DefaultPublicRoot,
			Recursive:        true,
		},
		Uploads: UploadsConfig{
			ImagesDir: "upload/images",
			FilesDir:  "upload/files",
		},
		Database: database.DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			Database: "pms",
			Timeout:  30 * time.Second,
		},
		Dump: DumpConfig{
			Compression:     string(compression.TypeNone),
			InsertBatchSize: 100,
		},
		Storage: storage.Config{
			Provider: storage.ProviderNone,
		},
		Logging: LoggingConfig{
			Format: "text",
		},
		Display: display.DisplayConfig{
			ColorEnabled: true,
			Theme:        string(display.ThemeDark),
			MaxWidth:     120,
		},
	}
}

// RegisterDefaults makes every key known to v so environment variables
// override keys that no config file sets.
func RegisterDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("backup.directory", d.Backup.Directory)
	v.SetDefault("backup.database_file_name", d.Backup.DatabaseFileName)
	v.SetDefault("backup.files_archive_name", d.Backup.FilesArchiveName)
	v.SetDefault("backup.public_root", d.Backup.PublicRoot)
	v.SetDefault("backup.recursive", d.Backup.Recursive)
	v.SetDefault("backup.fail_on_warning", d.Backup.FailOnWarning)

	v.SetDefault("uploads.images_dir", d.Uploads.ImagesDir)
	v.SetDefault("uploads.files_dir", d.Uploads.FilesDir)

	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.socket", "")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", d.Database.Database)
	v.SetDefault("database.timeout", d.Database.Timeout)

	v.SetDefault("dump.compression", d.Dump.Compression)
	v.SetDefault("dump.compression_level", d.Dump.CompressionLevel)
	v.SetDefault("dump.insert_batch_size", d.Dump.InsertBatchSize)

	v.SetDefault("archive.level", d.Archive.Level)

	v.SetDefault("storage.provider", string(d.Storage.Provider))
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.local.base_path", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.force_path_style", false)
	v.SetDefault("storage.azure.account_name", "")
	v.SetDefault("storage.azure.account_key", "")
	v.SetDefault("storage.azure.container_name", "")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.credentials_path", "")

	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", "")

	v.SetDefault("display.color_enabled", d.Display.ColorEnabled)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.max_width", d.Display.MaxWidth)
}

// ConfigureEnv maps PMS_BACKUP_SECTION_KEY variables onto section.key
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load unmarshals v into a Config and fills in defaults. It does not
// validate; commands validate the sections they need.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.SetDefaults()
	return cfg, nil
}

// SetDefaults fills unset values of nested sections
func (c *Config) SetDefaults() {
	c.Database.SetDefaults()
	c.Storage.SetDefaults()
	c.Display.SetDefaults()

	if c.Dump.Compression == "" {
		c.Dump.Compression = string(compression.TypeNone)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate validates everything a backup run needs
func (c *Config) Validate() error {
	var errs []string

	if err := c.Settings().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Uploads.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	algorithm, err := compression.ParseType(c.Dump.Compression)
	if err != nil {
		errs = append(errs, err.Error())
	} else if err := compression.NewManager().ValidateLevel(algorithm, c.Dump.CompressionLevel); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Archive.Level < -2 || c.Archive.Level > 9 {
		errs = append(errs, fmt.Sprintf("archive level must be between -2 and 9, got %d", c.Archive.Level))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s', must be one of: text, json", c.Logging.Format))
	}
	if c.Logging.Verbose && c.Logging.Quiet {
		errs = append(errs, "verbose and quiet modes are mutually exclusive")
	}
	if err := c.Display.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Settings returns the orchestrator settings
func (c *Config) Settings() backup.Settings {
	return backup.Settings{
		BackupDirectory:  c.Backup.Directory,
		DatabaseFileName: c.Backup.DatabaseFileName,
		FilesArchiveName: c.Backup.FilesArchiveName,
		PublicRoot:       c.Backup.PublicRoot,
		Recursive:        c.Backup.Recursive,
		UploadDirs:       c.Uploads,
		FailOnWarning:    c.Backup.FailOnWarning,
	}
}

// ExporterOptions returns the dump options. The compression name must have
// passed Validate.
func (c *Config) ExporterOptions() database.ExporterOptions {
	algorithm, _ := compression.ParseType(c.Dump.Compression)
	return database.ExporterOptions{
		Compression:      algorithm,
		CompressionLevel: c.Dump.CompressionLevel,
		InsertBatchSize:  c.Dump.InsertBatchSize,
	}
}

// DisplayConfig returns the console configuration writing to out
func (c *Config) DisplayConfig(out io.Writer) *display.DisplayConfig {
	dc := c.Display
	dc.Writer = out
	dc.QuietMode = dc.QuietMode || c.Logging.Quiet
	return &dc
}

// SampleYAML renders the default configuration as YAML
func SampleYAML() ([]byte, error) {
	cfg := Default()
	cfg.Database.Username = "pms"
	cfg.Storage.Local.Permissions = 0

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render sample configuration: %w", err)
	}
	return data, nil
}
