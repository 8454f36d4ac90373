package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/logger"

	"prizedraw/internal/models"
)

// csvHeader is the optional first row of a pool CSV.
var csvHeader = []string{"participant_id", "display_name", "contact_handle", "content", "timestamp"}

// ReadCSV parses a pool from r. Each row is
//
//	participant_id,display_name,contact_handle,content[,timestamp]
//
// Rows with the wrong column count or an unparsable timestamp are skipped and
// logged. A row with a blank participant_id is kept; the selector ignores it.
func ReadCSV(r io.Reader) ([]models.Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []models.Entry
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		if line == 1 && isHeader(record) {
			continue
		}
		if len(record) != 4 && len(record) != 5 {
			logger.Infof("Skipping malformed pool CSV record on line %d: %d columns", line, len(record))
			continue
		}

		entry := models.Entry{
			ParticipantID:  strings.TrimSpace(record[0]),
			DisplayName:    record[1],
			ContactHandle:  strings.TrimSpace(record[2]),
			ContentSnippet: record[3],
		}
		if len(record) == 5 && strings.TrimSpace(record[4]) != "" {
			ts, err := parseTimestamp(record[4])
			if err != nil {
				logger.Infof("Skipping pool CSV record with invalid timestamp on line %d: %v", line, err)
				continue
			}
			entry.Timestamp = &ts
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(record[0]), csvHeader[0])
}
