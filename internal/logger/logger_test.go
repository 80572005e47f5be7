package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestDefaultLoggerIsSafe(t *testing.T) {
	// Logging before Init must not panic.
	Info("before init", zap.String("mount", "stage"))
	Named("viewer").Warn("still fine")
	Sync()
}

func TestFileOutputLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{"error", []string{"ERROR"}, []string{"WARN", "INFO", "DEBUG"}},
		{"warning", []string{"ERROR", "WARN"}, []string{"INFO", "DEBUG"}},
		{"info", []string{"ERROR", "WARN", "INFO"}, []string{"DEBUG"}},
		{"DEBUG", []string{"ERROR", "WARN", "INFO", "DEBUG"}, nil},
		{"bogus", []string{"INFO"}, []string{"DEBUG"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "viewer.log")
			opts := Options{Level: tt.level, File: FileConfig{Path: path, MaxSizeMB: 1}}
			if err := InitWithOptions(opts); err != nil {
				t.Fatalf("InitWithOptions: %v", err)
			}

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")
			Sync()

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read log: %v", err)
			}
			out := string(data)
			for _, want := range tt.expected {
				if !strings.Contains(out, want) {
					t.Errorf("level %s: missing %s in\n%s", tt.level, want, out)
				}
			}
			for _, no := range tt.excluded {
				if strings.Contains(out, no) {
					t.Errorf("level %s: unexpected %s in\n%s", tt.level, no, out)
				}
			}
		})
	}
}

func TestNamedLoggerWritesComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.log")
	if err := InitWithOptions(Options{Level: "info", File: DefaultFileConfig(path)}); err != nil {
		t.Fatalf("InitWithOptions: %v", err)
	}
	Named("statusfeed").Info("listening", zap.String("addr", ":8089"))
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "statusfeed") || !strings.Contains(string(data), ":8089") {
		t.Errorf("log missing component or field:\n%s", data)
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/x.log")
	if cfg.Path != "/tmp/x.log" || cfg.MaxSizeMB <= 0 || cfg.MaxBackups <= 0 || !cfg.Compress {
		t.Errorf("DefaultFileConfig = %+v", cfg)
	}
}
