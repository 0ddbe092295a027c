package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, level string, fn func()) string {
	t.Helper()
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	// Reinitialize logger with test output
	logger = nil
	InitLogger(level)

	fn()
	return buf.String()
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func()
		contains []string
		excludes []string
	}{
		{
			name:  "info log",
			level: "info",
			logFn: func() {
				Info("test info message")
			},
			contains: []string{"test info message"},
		},
		{
			name:  "info log with fields",
			level: "info",
			logFn: func() {
				Info("test info message", Fields{"item": "item-1"})
			},
			contains: []string{"test info message", "item=item-1"},
		},
		{
			name:  "debug log with debug level",
			level: "debug",
			logFn: func() {
				Debug("test debug message")
			},
			contains: []string{"test debug message"},
		},
		{
			name:  "debug log suppressed at info level",
			level: "info",
			logFn: func() {
				Debug("test debug message")
			},
			excludes: []string{"test debug message"},
		},
		{
			name:  "warn log",
			level: "info",
			logFn: func() {
				Warnf("retried %d times", 3)
			},
			contains: []string{"retried 3 times", "WARN"},
		},
		{
			name:  "error log",
			level: "error",
			logFn: func() {
				Errorf("failed: %s", "boom")
			},
			contains: []string{"failed: boom", "ERROR"},
		},
		{
			name:  "success log",
			level: "info",
			logFn: func() {
				Success("done", Fields{"items": 5})
			},
			contains: []string{"done", "status=success"},
		},
		{
			name:  "unknown level falls back to info",
			level: "chatty",
			logFn: func() {
				Info("still visible")
				Debug("still hidden")
			},
			contains: []string{"still visible"},
			excludes: []string{"still hidden"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureOutput(t, tt.level, tt.logFn)
			for _, want := range tt.contains {
				assert.Contains(t, output, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, output, unwanted)
			}
		})
	}
}
