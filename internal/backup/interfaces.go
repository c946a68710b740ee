package backup

import (
	"context"

	"pms-backup/internal/archive"
	"pms-backup/internal/database"
)

// Exporter dumps the database into a backup directory
type Exporter interface {
	Export(ctx context.Context, req database.ExportRequest) database.ExportResult
}

// Archiver packs module directories into one archive
type Archiver interface {
	Zip(ctx context.Context, req archive.Request) archive.Result
}

// Shipper copies a finished artifact offsite and returns its location
type Shipper interface {
	Ship(ctx context.Context, localPath string) (string, error)
}

// Reporter shows run progress to the operator
type Reporter interface {
	Note(message string)
	Success(message string)
	Warning(message string)
	Error(message string)
}
