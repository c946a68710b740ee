package database

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pms-backup/internal/compression"
	"pms-backup/internal/errors"
	"pms-backup/internal/logging"
)

const (
	timestampLayout    = "2006-01-02_15-04-05"
	defaultInsertBatch = 100
)

// ExportRequest names where the dump goes
type ExportRequest struct {
	BackupDirectory string
	FileName        string
}

// ExportResult is the outcome of one export run
type ExportResult struct {
	Succeeded bool
	Message   string
	Path      string
	Tables    int
	Views     int
	Bytes     int64
}

// ExporterOptions tunes the dump output
type ExporterOptions struct {
	Compression      compression.Type
	CompressionLevel int
	InsertBatchSize  int
}

// Exporter writes a plain SQL dump of one MySQL schema to disk
type Exporter struct {
	connector   Connector
	config      DatabaseConfig
	options     ExporterOptions
	compression *compression.Manager
	logger      *logging.Logger
	now         func() time.Time
}

// NewExporter creates an exporter for the configured database
func NewExporter(connector Connector, config DatabaseConfig, options ExporterOptions, logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if options.InsertBatchSize <= 0 {
		options.InsertBatchSize = defaultInsertBatch
	}
	return &Exporter{
		connector:   connector,
		config:      config,
		options:     options,
		compression: compression.NewManager(),
		logger:      logger,
		now:         time.Now,
	}
}

// Export dumps the database into req.BackupDirectory. Failures are reported
// in the result; a partially written file is removed.
func (e *Exporter) Export(ctx context.Context, req ExportRequest) ExportResult {
	done := e.logger.LogOperationStart(ctx, "database_export", map[string]interface{}{
		"database":  e.config.Database,
		"directory": req.BackupDirectory,
	})

	result, err := e.export(ctx, req)
	done(err)

	if err != nil {
		return ExportResult{
			Message: fmt.Sprintf("Database export has failed: %s", errors.FormatUserError(err)),
		}
	}
	return result
}

func (e *Exporter) export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	if req.BackupDirectory == "" || req.FileName == "" {
		return ExportResult{}, errors.NewConfigurationError("backup directory and file name are required", nil)
	}

	if err := os.MkdirAll(req.BackupDirectory, 0o755); err != nil {
		return ExportResult{}, errors.WrapError(err, "failed to create backup directory")
	}

	db, err := e.connector.Connect(ctx, e.config)
	if err != nil {
		return ExportResult{}, err
	}
	defer e.connector.Close(db)

	fileName := fmt.Sprintf("%s_%s.sql%s", req.FileName, e.now().Format(timestampLayout), e.compression.Extension(e.options.Compression))
	path := filepath.Join(req.BackupDirectory, fileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return ExportResult{}, errors.WrapError(err, "failed to create dump file")
	}

	counter := &countingWriter{w: file}
	buffered := bufio.NewWriterSize(counter, 64*1024)

	out, err := e.compression.NewWriter(buffered, e.options.Compression, e.options.CompressionLevel)
	if err != nil {
		file.Close()
		os.Remove(path)
		return ExportResult{}, errors.NewConfigurationError("invalid dump compression", err)
	}

	stats, dumpErr := e.dump(ctx, db, out)
	if closeErr := out.Close(); dumpErr == nil {
		dumpErr = closeErr
	}
	if flushErr := buffered.Flush(); dumpErr == nil {
		dumpErr = flushErr
	}
	if closeErr := file.Close(); dumpErr == nil {
		dumpErr = closeErr
	}

	if dumpErr != nil {
		os.Remove(path)
		return ExportResult{}, dumpErr
	}

	return ExportResult{
		Succeeded: true,
		Message:   fmt.Sprintf("Database has been exported to %s (%d tables, %d views)", path, stats.tables, stats.views),
		Path:      path,
		Tables:    stats.tables,
		Views:     stats.views,
		Bytes:     counter.n,
	}, nil
}

type dumpStats struct {
	tables int
	views  int
}

func (e *Exporter) dump(ctx context.Context, db *sql.DB, w io.Writer) (dumpStats, error) {
	var stats dumpStats

	tables, views, err := e.listTables(ctx, db)
	if err != nil {
		return stats, err
	}

	header := fmt.Sprintf("-- pms-backup SQL dump\n-- Database: %s\n-- Created: %s\n\n"+
		"/*!40101 SET NAMES utf8mb4 */;\nSET FOREIGN_KEY_CHECKS=0;\n\n",
		e.config.Database, e.now().Format(time.RFC3339))
	if _, err := io.WriteString(w, header); err != nil {
		return stats, errors.WrapError(err, "failed to write dump header")
	}

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return stats, errors.WrapError(err, "database export interrupted")
		}
		if err := e.dumpTable(ctx, db, w, table); err != nil {
			return stats, err
		}
		stats.tables++
	}

	// Placeholders let a view reference a view that is created after it.
	for _, view := range views {
		if err := e.dumpViewPlaceholder(ctx, db, w, view); err != nil {
			return stats, err
		}
	}
	for _, view := range views {
		if err := e.dumpView(ctx, db, w, view); err != nil {
			return stats, err
		}
		stats.views++
	}

	footer := fmt.Sprintf("SET FOREIGN_KEY_CHECKS=1;\n\n-- Dump completed %s\n", e.now().Format(time.RFC3339))
	if _, err := io.WriteString(w, footer); err != nil {
		return stats, errors.WrapError(err, "failed to write dump footer")
	}

	return stats, nil
}

func (e *Exporter) listTables(ctx context.Context, db *sql.DB) (tables []string, views []string, err error) {
	query := `SELECT TABLE_NAME, TABLE_TYPE FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`

	rows, err := db.QueryContext(ctx, query, e.config.Database)
	if err != nil {
		return nil, nil, errors.WrapError(err, "failed to list tables")
	}
	defer rows.Close()

	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return nil, nil, errors.WrapError(err, "failed to scan table list")
		}
		if tableType == "VIEW" {
			views = append(views, name)
		} else {
			tables = append(tables, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.WrapError(err, "failed to list tables")
	}

	e.logger.WithContext(ctx).WithField("tables", len(tables)).WithField("views", len(views)).Debug("Resolved objects to dump")
	return tables, views, nil
}

func (e *Exporter) dumpTable(ctx context.Context, db *sql.DB, w io.Writer, table string) error {
	var name, ddl string
	if err := db.QueryRowContext(ctx, "SHOW CREATE TABLE "+quoteIdentifier(table)).Scan(&name, &ddl); err != nil {
		return errors.WrapError(err, fmt.Sprintf("failed to read definition of table %s", table))
	}

	if _, err := fmt.Fprintf(w, "--\n-- Table structure for %s\n--\n\nDROP TABLE IF EXISTS %s;\n%s;\n\n",
		table, quoteIdentifier(table), ddl); err != nil {
		return errors.WrapError(err, "failed to write table definition")
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdentifier(table))
	if err != nil {
		return errors.WrapError(err, fmt.Sprintf("failed to read rows of table %s", table))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return errors.WrapError(err, "failed to read column names")
	}

	quotedColumns := make([]string, len(columns))
	for i, column := range columns {
		quotedColumns[i] = quoteIdentifier(column)
	}
	binary := make([]bool, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, columnType := range types {
			binary[i] = isBinaryType(columnType.DatabaseTypeName())
		}
	}

	insertPrefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES\n", quoteIdentifier(table), strings.Join(quotedColumns, ","))

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	batch := make([]string, 0, e.options.InsertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := io.WriteString(w, insertPrefix+strings.Join(batch, ",\n")+";\n")
		batch = batch[:0]
		return err
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return errors.WrapError(err, fmt.Sprintf("failed to scan row of table %s", table))
		}

		literals := make([]string, len(values))
		for i, value := range values {
			if binary[i] {
				literals[i] = binaryLiteral(value)
			} else {
				literals[i] = sqlLiteral(value)
			}
		}
		batch = append(batch, "("+strings.Join(literals, ",")+")")

		if len(batch) >= e.options.InsertBatchSize {
			if err := flush(); err != nil {
				return errors.WrapError(err, "failed to write rows")
			}
		}
	}
	if err := rows.Err(); err != nil {
		return errors.WrapError(err, fmt.Sprintf("failed to read rows of table %s", table))
	}
	if err := flush(); err != nil {
		return errors.WrapError(err, "failed to write rows")
	}

	_, err = io.WriteString(w, "\n")
	return err
}

func (e *Exporter) dumpViewPlaceholder(ctx context.Context, db *sql.DB, w io.Writer, view string) error {
	query := `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`

	rows, err := db.QueryContext(ctx, query, e.config.Database, view)
	if err != nil {
		return errors.WrapError(err, fmt.Sprintf("failed to read columns of view %s", view))
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return errors.WrapError(err, fmt.Sprintf("failed to read columns of view %s", view))
		}
		columns = append(columns, "1 AS "+quoteIdentifier(column))
	}
	if err := rows.Err(); err != nil {
		return errors.WrapError(err, fmt.Sprintf("failed to read columns of view %s", view))
	}
	if len(columns) == 0 {
		columns = []string{"1"}
	}

	if _, err := fmt.Fprintf(w, "--\n-- Temporary view structure for %s\n--\n\nDROP TABLE IF EXISTS %s;\nDROP VIEW IF EXISTS %s;\nCREATE VIEW %s AS SELECT %s;\n\n",
		view, quoteIdentifier(view), quoteIdentifier(view), quoteIdentifier(view), strings.Join(columns, ",")); err != nil {
		return errors.WrapError(err, "failed to write view placeholder")
	}
	return nil
}

func (e *Exporter) dumpView(ctx context.Context, db *sql.DB, w io.Writer, view string) error {
	var name, ddl, charset, collation string
	if err := db.QueryRowContext(ctx, "SHOW CREATE VIEW "+quoteIdentifier(view)).Scan(&name, &ddl, &charset, &collation); err != nil {
		return errors.WrapError(err, fmt.Sprintf("failed to read definition of view %s", view))
	}

	if _, err := fmt.Fprintf(w, "--\n-- View structure for %s\n--\n\nDROP VIEW IF EXISTS %s;\n%s;\n\n",
		view, quoteIdentifier(view), ddl); err != nil {
		return errors.WrapError(err, "failed to write view definition")
	}
	return nil
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func isBinaryType(databaseType string) bool {
	switch strings.ToUpper(databaseType) {
	case "BINARY", "VARBINARY", "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB", "BIT", "GEOMETRY":
		return true
	}
	return false
}

// binaryLiteral renders a binary column value as a hex literal
func binaryLiteral(value interface{}) string {
	v, ok := value.([]byte)
	if !ok {
		return sqlLiteral(value)
	}
	if len(v) == 0 {
		return "''"
	}
	return "0x" + hex.EncodeToString(v)
}

// sqlLiteral renders a scanned column value as a MySQL literal
func sqlLiteral(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "'" + escapeString(string(v)) + "'"
	case string:
		return "'" + escapeString(v) + "'"
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05.999999") + "'"
	default:
		return "'" + escapeString(fmt.Sprint(v)) + "'"
	}
}

func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
