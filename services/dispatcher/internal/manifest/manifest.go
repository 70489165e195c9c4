package manifest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is one schedulable row of the job manifest.
type Entry struct {
	JobID              int64
	NextProcessingTime time.Time
}

// Timestamps in exported manifests come in two shapes: RFC 3339 with a
// zone, or a bare local-less timestamp that the exporter means as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Load reads a job manifest CSV with a job_id and next_processing_time
// column. Rows with missing or unparseable fields are logged and skipped;
// only an unreadable file or a broken header is an error.
func Load(path string, log *logrus.Logger) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	// Hand-edited manifests often have ragged rows; length is checked per
	// row below instead.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}
	if len(header) > 0 {
		// Spreadsheet exports often carry a UTF-8 BOM.
		header[0] = strings.TrimPrefix(header[0], "﻿")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	jobCol, ok := columns["job_id"]
	if !ok {
		return nil, fmt.Errorf("manifest has no job_id column")
	}
	timeCol, ok := columns["next_processing_time"]
	if !ok {
		return nil, fmt.Errorf("manifest has no next_processing_time column")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest rows: %w", err)
	}

	var entries []Entry
	for _, record := range records {
		if jobCol >= len(record) || timeCol >= len(record) {
			log.WithField("row", record).Error("Skipping short row in manifest")
			continue
		}

		jobID, err := strconv.ParseInt(strings.TrimSpace(record[jobCol]), 10, 64)
		if err != nil {
			log.WithField("row", record).Error("Skipping row with invalid job_id")
			continue
		}

		raw := strings.TrimSpace(record[timeCol])
		if raw == "" {
			log.WithField("job_id", jobID).Warn("Skipping job due to missing next_processing_time")
			continue
		}
		at, err := parseTime(raw)
		if err != nil {
			log.WithFields(logrus.Fields{
				"job_id": jobID,
				"value":  raw,
			}).Error("Skipping row with invalid next_processing_time")
			continue
		}

		entries = append(entries, Entry{JobID: jobID, NextProcessingTime: at})
	}
	return entries, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
