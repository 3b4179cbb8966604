package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerReplacesGlobal(t *testing.T) {
	before := GetGlobalLogger()
	SetupLogger(true, "json")
	after := GetGlobalLogger()

	require.NotNil(t, after)
	assert.NotSame(t, before, after)
}

func TestMockLoggerRecordsMessages(t *testing.T) {
	m := NewMockLogger()

	m.Debug("debug msg", "k", "v")
	m.Info("info msg")
	m.Warn("warn msg")
	m.Error("error msg")

	assert.True(t, m.HasMessage("DEBUG", "debug msg"))
	assert.True(t, m.HasMessage("INFO", "info msg"))
	assert.True(t, m.HasMessage("WARN", "warn msg"))
	assert.True(t, m.HasMessage("ERROR", "error msg"))
	assert.False(t, m.HasMessage("INFO", "never logged"))
	assert.Len(t, *m.Messages, 4)
}

func TestMockLoggerWithCarriesAttrs(t *testing.T) {
	m := NewMockLogger()
	child := m.With("report", "aws_123_s3.csv")

	child.Info("extending")

	require.Len(t, *m.Messages, 1)
	msg := (*m.Messages)[0]
	assert.Equal(t, "extending", msg.Msg)
	assert.Equal(t, []any{"report", "aws_123_s3.csv"}, msg.Args)
}
