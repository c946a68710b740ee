package backup

import (
	"context"
	"errors"
	"testing"

	"pms-backup/internal/archive"
	"pms-backup/internal/database"
	apperrors "pms-backup/internal/errors"
	"pms-backup/internal/logging"
	"pms-backup/internal/uploads"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticUploadDirs struct{}

func (staticUploadDirs) ImagesUploadDir() string { return "img" }
func (staticUploadDirs) FilesUploadDir() string  { return "files" }

type fakeExporter struct {
	calls  []database.ExportRequest
	result database.ExportResult
}

func (f *fakeExporter) Export(ctx context.Context, req database.ExportRequest) database.ExportResult {
	f.calls = append(f.calls, req)
	return f.result
}

type fakeArchiver struct {
	calls  []archive.Request
	result archive.Result
}

func (f *fakeArchiver) Zip(ctx context.Context, req archive.Request) archive.Result {
	f.calls = append(f.calls, req)
	return f.result
}

type fakeShipper struct {
	shipped []string
	err     error
}

func (f *fakeShipper) Ship(ctx context.Context, localPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.shipped = append(f.shipped, localPath)
	return "s3://backups" + localPath, nil
}

type event struct {
	kind    string
	message string
}

type recordingReporter struct {
	events []event
}

func (r *recordingReporter) Note(message string)    { r.events = append(r.events, event{"note", message}) }
func (r *recordingReporter) Success(message string) { r.events = append(r.events, event{"success", message}) }
func (r *recordingReporter) Warning(message string) { r.events = append(r.events, event{"warning", message}) }
func (r *recordingReporter) Error(message string)   { r.events = append(r.events, event{"error", message}) }

type harness struct {
	exporter *fakeExporter
	archiver *fakeArchiver
	reporter *recordingReporter
	settings Settings
}

func newHarness() *harness {
	settings := DefaultSettings(staticUploadDirs{})
	settings.PublicRoot = "/pub"

	return &harness{
		exporter: &fakeExporter{result: database.ExportResult{Succeeded: true, Message: "exported", Path: "/backup/db.sql"}},
		archiver: &fakeArchiver{result: archive.Result{Succeeded: true, Message: "zipped", Path: "/backup/files.zip"}},
		reporter: &recordingReporter{},
		settings: settings,
	}
}

func (h *harness) orchestrator(opts ...Option) *Orchestrator {
	o := NewOrchestrator(h.settings, h.exporter, h.archiver, h.reporter, logging.NewNopLogger(), opts...)
	o.newRunID = func() string { return "test-run" }
	return o
}

func modulesPassed(t *testing.T, a *fakeArchiver) []uploads.DirectoryEntry {
	t.Helper()
	require.Len(t, a.calls, 1)
	return a.calls[0].Directories.Entries()
}

func TestRun_FullBackupReportsEachStep(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.orchestrator().Run(context.Background(), false, nil))

	assert.Equal(t, []event{
		{"note", MessageStarted},
		{"success", "zipped"},
		{"success", "exported"},
		{"note", MessageCompleted},
	}, h.reporter.events)
	assert.Len(t, modulesPassed(t, h.archiver), 2)
}

func TestRun_SkipModuleExcludesOnlyNamedModule(t *testing.T) {
	h := newHarness()

	err := h.orchestrator().Run(context.Background(), false, []string{"My Images"})
	require.NoError(t, err)

	assert.Equal(t, []uploads.DirectoryEntry{{Module: uploads.ModuleMyFiles, Path: "/pub/files"}}, modulesPassed(t, h.archiver))
	assert.Len(t, h.exporter.calls, 1)
}

func TestRun_ArchiverRequest(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.orchestrator().Run(context.Background(), false, nil))

	require.Len(t, h.archiver.calls, 1)
	req := h.archiver.calls[0]
	assert.Equal(t, DefaultBackupDirectory, req.BackupDirectory)
	assert.Equal(t, "files", req.ArchiveName)
	assert.True(t, req.Recursive)
	assert.Equal(t, []string{uploads.ModuleMyImages, uploads.ModuleMyFiles}, req.Directories.Modules())
}

func TestRun_SkipFilesNeverArchives(t *testing.T) {
	h := newHarness()

	err := h.orchestrator().Run(context.Background(), true, nil)
	require.NoError(t, err)

	assert.Empty(t, h.archiver.calls)
	require.Len(t, h.exporter.calls, 1)
	assert.Equal(t, database.ExportRequest{
		BackupDirectory: "/home/volmarg/Partycje/Dane/pms_db_backup",
		FileName:        "pmsSqlBackup",
	}, h.exporter.calls[0])

	assert.Equal(t, []event{
		{"note", MessageStarted},
		{"note", MessageFilesSkipped},
		{"success", "exported"},
		{"note", MessageCompleted},
	}, h.reporter.events)
}

func TestRun_SkipFilesIgnoresMalformedSkipList(t *testing.T) {
	h := newHarness()

	err := h.orchestrator().Run(context.Background(), true, []string{"[broken"})
	require.NoError(t, err)
	assert.Len(t, h.exporter.calls, 1)
}

func TestRun_UnknownSkipNamesLeaveMapUnchanged(t *testing.T) {
	h := newHarness()

	err := h.orchestrator().Run(context.Background(), false, []string{"Notes,Contacts"})
	require.NoError(t, err)

	assert.Equal(t, []uploads.DirectoryEntry{
		{Module: uploads.ModuleMyImages, Path: "/pub/img"},
		{Module: uploads.ModuleMyFiles, Path: "/pub/files"},
	}, modulesPassed(t, h.archiver))
}

func TestRun_MalformedSkipListAborts(t *testing.T) {
	tests := []struct {
		name   string
		values []string
	}{
		{"broken json", []string{`["My Images"`}},
		{"control character", []string{"My\x00Images"}},
		{"dangling escape", []string{`My\`}},
		{"invalid utf8", []string{"My \xff"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()

			err := h.orchestrator().Run(context.Background(), false, tt.values)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeParse))

			assert.Empty(t, h.archiver.calls)
			assert.Empty(t, h.exporter.calls)
			assert.Equal(t, []event{
				{"note", MessageStarted},
				{"error", MessageParseFailure},
			}, h.reporter.events)
		})
	}
}

func TestRun_FailedArchiveDoesNotStopExport(t *testing.T) {
	h := newHarness()
	h.archiver.result = archive.Result{Message: "Files archive has failed: disk full"}

	err := h.orchestrator().Run(context.Background(), false, nil)
	require.NoError(t, err)

	assert.Len(t, h.exporter.calls, 1)
	assert.Equal(t, []event{
		{"note", MessageStarted},
		{"warning", "Files archive has failed: disk full"},
		{"success", "exported"},
		{"note", MessageCompleted},
	}, h.reporter.events)
}

func TestRun_FailedExportStillCompletes(t *testing.T) {
	h := newHarness()
	h.exporter.result = database.ExportResult{Message: "Database export has failed"}

	err := h.orchestrator().Run(context.Background(), false, nil)
	require.NoError(t, err)

	assert.Equal(t, event{"warning", "Database export has failed"}, h.reporter.events[2])
	assert.Equal(t, event{"note", MessageCompleted}, h.reporter.events[len(h.reporter.events)-1])
}

func TestRun_FailOnWarning(t *testing.T) {
	h := newHarness()
	h.settings.FailOnWarning = true
	h.archiver.result = archive.Result{Message: "Nothing to archive"}
	h.exporter.result = database.ExportResult{Message: "Database export has failed"}

	err := h.orchestrator().Run(context.Background(), false, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStepFailure))
	assert.Contains(t, err.Error(), StepFilesArchive)
	assert.Contains(t, err.Error(), StepDatabaseExport)

	assert.Equal(t, event{"note", MessageCompleted}, h.reporter.events[len(h.reporter.events)-1])
}

func TestRun_FailOnWarningWithoutFailures(t *testing.T) {
	h := newHarness()
	h.settings.FailOnWarning = true

	assert.NoError(t, h.orchestrator().Run(context.Background(), false, nil))
}

func TestRun_ShipsSuccessfulArtifacts(t *testing.T) {
	h := newHarness()
	shipper := &fakeShipper{}

	err := h.orchestrator(WithShipper(shipper)).Run(context.Background(), false, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"/backup/files.zip", "/backup/db.sql"}, shipper.shipped)
	assert.Equal(t, []event{
		{"note", MessageStarted},
		{"success", "zipped"},
		{"success", "/backup/files.zip has been uploaded to s3://backups/backup/files.zip"},
		{"success", "exported"},
		{"success", "/backup/db.sql has been uploaded to s3://backups/backup/db.sql"},
		{"note", MessageCompleted},
	}, h.reporter.events)
}

func TestRun_ShipFailureIsAWarning(t *testing.T) {
	h := newHarness()
	h.settings.FailOnWarning = true
	shipper := &fakeShipper{err: errors.New("bucket not found")}

	err := h.orchestrator(WithShipper(shipper)).Run(context.Background(), true, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), StepUpload)

	assert.Equal(t, "warning", h.reporter.events[3].kind)
	assert.Contains(t, h.reporter.events[3].message, "bucket not found")
	assert.Equal(t, event{"note", MessageCompleted}, h.reporter.events[4])
}

func TestSettings_Validate(t *testing.T) {
	assert.NoError(t, DefaultSettings(staticUploadDirs{}).Validate())

	settings := DefaultSettings(nil)
	assert.Error(t, settings.Validate())

	settings = DefaultSettings(staticUploadDirs{})
	settings.DatabaseFileName = ""
	assert.Error(t, settings.Validate())
}
