package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseZapLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
		ok   bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"WARNING", zapcore.WarnLevel, true},
		{" error ", zapcore.ErrorLevel, true},
		{"", zapcore.InfoLevel, false},
		{"verbose", zapcore.InfoLevel, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseZapLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSetLevel(t *testing.T) {
	assert.NoError(t, SetLevel("error"))
	assert.Equal(t, "error", Level())
	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, "error", Level())
	assert.NoError(t, SetLevel("info"))
}
