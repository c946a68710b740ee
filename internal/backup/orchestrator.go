package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pms-backup/internal/archive"
	"pms-backup/internal/database"
	apperrors "pms-backup/internal/errors"
	"pms-backup/internal/logging"
	"pms-backup/internal/uploads"

	"github.com/google/uuid"
)

// Operator facing messages
const (
	MessageStarted      = "Started backup process"
	MessageFilesSkipped = "Files backup will be skipped"
	MessageParseFailure = "Could not parse data for skipped modules. Did You provided valid values like in example?"
	MessageCompleted    = "Backup process has been completed"
)

// Step names used in logs and step failure errors
const (
	StepFilesArchive   = "files_archive"
	StepDatabaseExport = "database_export"
	StepUpload         = "upload"
)

// Orchestrator runs one backup: archive uploads, dump the database, ship
type Orchestrator struct {
	settings Settings
	exporter Exporter
	archiver Archiver
	shipper  Shipper
	reporter Reporter
	logger   *logging.Logger
	newRunID func() string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithShipper ships every successful artifact through shipper
func WithShipper(shipper Shipper) Option {
	return func(o *Orchestrator) {
		o.shipper = shipper
	}
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(settings Settings, exporter Exporter, archiver Archiver, reporter Reporter, logger *logging.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	o := &Orchestrator{
		settings: settings,
		exporter: exporter,
		archiver: archiver,
		reporter: reporter,
		logger:   logger,
		newRunID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run performs one backup. skipValues are the raw --skip-upload-module
// values and are only parsed when files are backed up.
//
// A malformed skip list aborts the run before any step and returns a parse
// error. Failed steps are reported as warnings; they only turn into a
// returned error when FailOnWarning is set.
func (o *Orchestrator) Run(ctx context.Context, skipFiles bool, skipValues []string) error {
	ctx = logging.ContextWithRunID(ctx, o.newRunID())
	log := o.logger.WithContext(ctx)
	started := time.Now()

	log.WithField("skip_files", skipFiles).Info("Backup run started")
	o.reporter.Note(MessageStarted)

	var failed []string

	if skipFiles {
		o.reporter.Note(MessageFilesSkipped)
	} else {
		skipped, err := uploads.ParseSkipModules(skipValues)
		if err != nil {
			log.WithError(err).Error("Invalid skipped upload modules")
			o.reporter.Error(MessageParseFailure)
			return err
		}

		if unknown := skipped.Unknown(); len(unknown) > 0 {
			log.WithField("modules", strings.Join(unknown, ",")).Debug("Ignoring unknown upload modules")
		}

		directories := uploads.BuildDirectoryMap(o.settings.PublicRoot, o.settings.UploadDirs).Without(skipped)
		path, ok := o.backupFiles(ctx, directories)
		switch {
		case !ok:
			failed = append(failed, StepFilesArchive)
		case !o.ship(ctx, path):
			failed = append(failed, StepUpload)
		}
	}

	path, ok := o.backupDatabase(ctx)
	switch {
	case !ok:
		failed = append(failed, StepDatabaseExport)
	case !o.ship(ctx, path):
		failed = append(failed, StepUpload)
	}

	o.reporter.Note(MessageCompleted)
	log.WithFields(map[string]interface{}{
		"duration":     time.Since(started).String(),
		"failed_steps": strings.Join(failed, ","),
	}).Info("Backup run completed")

	if o.settings.FailOnWarning && len(failed) > 0 {
		return apperrors.NewStepFailureError(strings.Join(failed, ","),
			fmt.Sprintf("%d backup step(s) failed: %s", len(failed), strings.Join(failed, ", ")))
	}
	return nil
}

func (o *Orchestrator) backupFiles(ctx context.Context, directories uploads.DirectoryMap) (string, bool) {
	start := time.Now()
	result := o.archiver.Zip(ctx, archive.Request{
		BackupDirectory: o.settings.BackupDirectory,
		Recursive:       o.settings.Recursive,
		ArchiveName:     o.settings.FilesArchiveName,
		Directories:     directories,
	})
	o.logger.LogBackupStep(ctx, StepFilesArchive, result.Succeeded, result.Message, time.Since(start))

	if !result.Succeeded {
		o.reporter.Warning(result.Message)
		return "", false
	}
	o.reporter.Success(result.Message)
	return result.Path, true
}

func (o *Orchestrator) backupDatabase(ctx context.Context) (string, bool) {
	start := time.Now()
	result := o.exporter.Export(ctx, database.ExportRequest{
		BackupDirectory: o.settings.BackupDirectory,
		FileName:        o.settings.DatabaseFileName,
	})
	o.logger.LogBackupStep(ctx, StepDatabaseExport, result.Succeeded, result.Message, time.Since(start))

	if !result.Succeeded {
		o.reporter.Warning(result.Message)
		return "", false
	}
	o.reporter.Success(result.Message)
	return result.Path, true
}

// ship copies a successful artifact offsite. It reports false only when an
// upload was attempted and failed.
func (o *Orchestrator) ship(ctx context.Context, path string) bool {
	if o.shipper == nil || path == "" {
		return true
	}

	start := time.Now()
	location, err := o.shipper.Ship(ctx, path)
	if err != nil {
		message := fmt.Sprintf("Upload of %s has failed: %s", path, apperrors.FormatUserError(err))
		o.logger.LogBackupStep(ctx, StepUpload, false, message, time.Since(start))
		o.reporter.Warning(message)
		return false
	}

	message := fmt.Sprintf("%s has been uploaded to %s", path, location)
	o.logger.LogBackupStep(ctx, StepUpload, true, message, time.Since(start))
	o.reporter.Success(message)
	return true
}
