package cmd

import (
	"fmt"
	"strings"

	"pms-backup/internal/archive"
	"pms-backup/internal/backup"
	"pms-backup/internal/database"
	"pms-backup/internal/display"
	apperrors "pms-backup/internal/errors"
	"pms-backup/internal/storage"
	"pms-backup/internal/uploads"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagSkipFiles        = "skip-files"
	flagSkipUploadModule = "skip-upload-module"
	flagFailOnWarning    = "fail-on-warning"
)

var (
	skipFiles         bool
	skipUploadModules []string
	failOnWarning     bool
)

// makeBackupCmd runs one scheduled backup
var makeBackupCmd = &cobra.Command{
	Use:   "cron:make-backup",
	Short: "This command allows to make backup of: files, sql",
	Long: `Archive the upload directories into a zip file and dump the database
into the backup directory.

The archive and the dump are independent: when one of them fails a warning is
printed and the other one still runs. Use --fail-on-warning to exit with a
non-zero status in that case.`,
	Example: `  pms-backup cron:make-backup
  pms-backup cron:make-backup --skip-files
  pms-backup cron:make-backup --skip-upload-module=My\ Images,My\ Files
  pms-backup cron:make-backup --skip-upload-module='["My Images"]'
  pms-backup cron:make-backup --skip-upload-module="My Images" --skip-upload-module="My Files"`,
	Args: cobra.NoArgs,
	RunE: runMakeBackup,
}

func init() {
	makeBackupCmd.Flags().BoolVar(&skipFiles, flagSkipFiles, false, "If set - will skip backing up the upload directory.")
	makeBackupCmd.Flags().StringArrayVar(&skipUploadModules, flagSkipUploadModule, nil, skipUploadModuleUsage())
	makeBackupCmd.Flags().BoolVar(&failOnWarning, flagFailOnWarning, false, "exit with an error when a backup step fails")

	viper.BindPFlag("backup.fail_on_warning", makeBackupCmd.Flags().Lookup(flagFailOnWarning))

	rootCmd.AddCommand(makeBackupCmd)
}

func skipUploadModuleUsage() string {
	return fmt.Sprintf("Will skip backup of files for given upload based module. Possible values: [%s]\n"+
		"Use example: --%s=My\\ Images,My\\ Files (escaped spacebars), a JSON list, or the flag repeated.",
		uploads.NamesList(), flagSkipUploadModule)
}

func runMakeBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return apperrors.NewConfigurationError("invalid configuration", err).
			WithUserMessage(err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()
	console := display.NewConsole(cfg.DisplayConfig(cmd.OutOrStdout()))

	exporter := database.NewExporter(database.NewService(logger), cfg.Database, cfg.ExporterOptions(), logger)
	archiver := archive.NewArchiver(cfg.Archive.Level, logger)

	var opts []backup.Option
	if cfg.Storage.Enabled() {
		shipper := storage.NewShipper(storage.ConfigOpener(cfg.Storage), cfg.Storage.Prefix, logger)
		defer shipper.Close()
		opts = append(opts, backup.WithShipper(shipper))
	}

	logger.WithFields(map[string]interface{}{
		"backup_directory": cfg.Backup.Directory,
		"skip_modules":     strings.Join(skipUploadModules, "|"),
		"storage":          string(cfg.Storage.Provider),
	}).Debug("Configured backup run")

	orchestrator := backup.NewOrchestrator(cfg.Settings(), exporter, archiver, console, logger, opts...)
	return orchestrator.Run(ctx, skipFiles, skipUploadModules)
}
