package metadata

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"satpipe/internal/filestate"
)

const recordColumns = "id, product_type_id, area_id, date_time, status, filepath, multihash, last_processed, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*FileRecord, error) {
	var (
		id               int64
		productTypeID    int64
		areaID           int64
		dateTimeRaw      string
		statusStr        string
		filepath         sql.NullString
		multihash        sql.NullString
		lastProcessedRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&productTypeID,
		&areaID,
		&dateTimeRaw,
		&statusStr,
		&filepath,
		&multihash,
		&lastProcessedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &FileRecord{
		ID:            id,
		ProductTypeID: productTypeID,
		AreaID:        areaFromColumn(areaID),
		Status:        filestate.Status(statusStr),
		Filepath:      filepath.String,
		Multihash:     multihash.String,
	}
	if dt, err := time.Parse(DateTimeLayout, dateTimeRaw); err == nil {
		record.DateTime = dt.UTC()
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if lastProcessedRaw.Valid {
		if processed, err := parseTimeString(lastProcessedRaw.String); err == nil {
			record.LastProcessed = &processed
		}
	}
	return record, nil
}

func scanRecords(rows *sql.Rows) ([]*FileRecord, error) {
	defer rows.Close()
	var records []*FileRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func int64Args(values []int64) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
