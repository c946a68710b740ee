package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   LogLevel
	}{
		{
			name:   "default config",
			config: Config{Level: LogLevelNormal, Format: "text"},
			want:   LogLevelNormal,
		},
		{
			name:   "verbose config",
			config: Config{Level: LogLevelVerbose, Format: "json"},
			want:   LogLevelVerbose,
		},
		{
			name:   "quiet config",
			config: Config{Level: LogLevelQuiet, Format: "text"},
			want:   LogLevelQuiet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf

			logger, err := NewLogger(tt.config)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}

			if logger.GetLevel() != tt.want {
				t.Errorf("NewLogger() level = %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestLoggerWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	ctx := ContextWithRunID(context.Background(), "run-123")
	logger.WithContext(ctx).Info("backup started")

	output := buf.String()
	if !strings.Contains(output, "run_id=run-123") {
		t.Errorf("Expected run_id in output, got: %s", output)
	}
	if GetRunIDFromContext(ctx) != "run-123" {
		t.Errorf("GetRunIDFromContext() = %q", GetRunIDFromContext(ctx))
	}
	if GetRunIDFromContext(context.Background()) != "" {
		t.Error("Expected empty run id for bare context")
	}
}

func TestLogBackupStep(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.LogBackupStep(context.Background(), "archive", false, "Nothing to archive", time.Second)

	output := buf.String()
	for _, want := range []string{"level=warning", "step=archive", "success=false", "Nothing to archive"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}
}

func TestLogLevels(t *testing.T) {
	var quietBuf bytes.Buffer
	quietLogger, err := NewLogger(Config{Level: LogLevelQuiet, Output: &quietBuf})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	quietLogger.WithField("step", "archive").Info("hidden")
	if quietBuf.Len() != 0 {
		t.Errorf("Expected no output at quiet level, got: %s", quietBuf.String())
	}

	var debugBuf bytes.Buffer
	debugLogger, err := NewLogger(Config{Level: LogLevelDebug, Output: &debugBuf})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	debugLogger.WithField("step", "archive").Debug("visible")
	if !strings.Contains(debugBuf.String(), "visible") {
		t.Errorf("Expected debug output, got: %s", debugBuf.String())
	}
}

func TestLogOperationStart(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	done := logger.LogOperationStart(context.Background(), "export", map[string]interface{}{"database": "pms"})
	done(errors.New("dump failed"))

	output := buf.String()
	if !strings.Contains(output, "Operation failed") || !strings.Contains(output, "database=pms") {
		t.Errorf("Unexpected output: %s", output)
	}
}

func TestLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "backup.log")

	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, LogFile: logPath})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.WithField("run_id", "r1").Info("written twice")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "written twice") {
		t.Errorf("Expected message in log file, got: %s", data)
	}
	if !strings.Contains(buf.String(), "written twice") {
		t.Errorf("Expected message in output, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel(false, false, false) != LogLevelNormal {
		t.Error("Expected normal")
	}
	if ParseLevel(true, false, false) != LogLevelVerbose {
		t.Error("Expected verbose")
	}
	if ParseLevel(false, true, false) != LogLevelQuiet {
		t.Error("Expected quiet")
	}
	if ParseLevel(true, false, true) != LogLevelDebug {
		t.Error("Expected debug")
	}
}
