package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env     string
		level   string
		enabled zapcore.Level
		wantErr bool
	}{
		{"production", "", zapcore.InfoLevel, false},
		{"production", "warn", zapcore.WarnLevel, false},
		{"development", "debug", zapcore.DebugLevel, false},
		{"production", "loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		logger, err := New(tt.env, tt.level)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%s, %s): expected error", tt.env, tt.level)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%s, %s) failed: %v", tt.env, tt.level, err)
		}
		if !logger.Core().Enabled(tt.enabled) {
			t.Errorf("New(%s, %s): expected %s enabled", tt.env, tt.level, tt.enabled)
		}
		if tt.enabled > zapcore.DebugLevel && logger.Core().Enabled(tt.enabled-1) {
			t.Errorf("New(%s, %s): expected %s disabled", tt.env, tt.level, tt.enabled-1)
		}
	}
}
