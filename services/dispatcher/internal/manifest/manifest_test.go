package manifest

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job_manifest.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestLoad_ParsesValidRows(t *testing.T) {
	path := writeManifest(t, "job_id,next_processing_time\n"+
		"101,2025-06-01T09:00:00Z\n"+
		"102,2025-06-01T10:30:00+02:00\n"+
		"103,2025-06-02T08:00:00\n")

	entries, err := Load(path, discardLogger())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(101), entries[0].JobID)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), entries[0].NextProcessingTime)
	// Zoned timestamps are normalized to UTC.
	assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), entries[1].NextProcessingTime)
	// Zone-less timestamps are read as UTC.
	assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), entries[2].NextProcessingTime)
}

func TestLoad_SkipsInvalidRows(t *testing.T) {
	path := writeManifest(t, "job_id,next_processing_time\n"+
		"not-a-number,2025-06-01T09:00:00Z\n"+
		"201,\n"+
		"202,yesterday\n"+
		"203,2025-06-01T09:00:00Z\n")

	entries, err := Load(path, discardLogger())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(203), entries[0].JobID)
}

func TestLoad_StripsBOMAndExtraColumns(t *testing.T) {
	path := writeManifest(t, "﻿job_id,campaign,next_processing_time\n"+
		"301,spring-blast,2025-06-01T09:00:00Z\n")

	entries, err := Load(path, discardLogger())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(301), entries[0].JobID)
}

func TestLoad_MissingColumnIsError(t *testing.T) {
	path := writeManifest(t, "job_id,scheduled_for\n1,2025-06-01T09:00:00Z\n")

	_, err := Load(path, discardLogger())
	assert.Error(t, err)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), discardLogger())
	assert.Error(t, err)
}
