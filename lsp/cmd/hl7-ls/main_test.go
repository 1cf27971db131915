package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionFlagExitsCleanly(t *testing.T) {
	assert.Equal(t, exitOK, run([]string{"-V"}))
	assert.Equal(t, exitOK, run([]string{"--version"}))
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, run([]string{"--no-such-flag"}))
}

func TestUnknownSubcommandIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, run([]string{"log-to-syslog"}))
}

func TestLogToFileRequiresPath(t *testing.T) {
	assert.Equal(t, exitUsage, run([]string{"log-to-file"}))
}

func TestInvalidColourModeIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, run([]string{"--colour", "sometimes"}))
}

func TestSubcommandInheritsVersionFlag(t *testing.T) {
	assert.Equal(t, exitOK, run([]string{"log-to-stderr", "-V"}))
}
