// Package backup runs the scheduled PMS backup.
//
// One run archives the upload directories of the upload based modules into a
// zip file, then dumps the MySQL database, and optionally ships every
// produced artifact to offsite storage. The two backup steps are independent:
// a failed archive is reported as a warning and the database dump still runs.
//
// Core Components:
//
// - Orchestrator: parses the skip options, resolves the directories to archive
// and drives the steps in order
// - Exporter, Archiver, Shipper: the collaborators doing the actual work
// - Reporter: renders per step status for the operator
//
// Example usage:
//
//	orchestrator := backup.NewOrchestrator(settings, exporter, archiver, console, logger,
//		backup.WithShipper(shipper))
//
//	// --skip-upload-module=My\ Images
//	err := orchestrator.Run(ctx, false, []string{`My\ Images`})
package backup
