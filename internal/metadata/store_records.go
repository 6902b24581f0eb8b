package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"satpipe/internal/filestate"
)

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id int64) (*FileRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := s.queryRow(ctx, "SELECT "+recordColumns+" FROM file WHERE id = ?", id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return record, nil
}

// Find returns every record matching selector ordered by id. A limit of
// zero returns all matches.
func (s *Store) Find(ctx context.Context, selector string, limit int) ([]*FileRecord, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where, args := sel.where()
	query := "SELECT " + recordColumns + " FROM file WHERE " + where + " ORDER BY id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	return scanRecords(rows)
}

// List returns records matching filter ordered by id.
func (s *Store) List(ctx context.Context, filter Filter) ([]*FileRecord, error) {
	return s.listOrdered(ctx, filter, "id")
}

// Candidates returns records matching filter in dispatch order: records that
// were never processed first, then by last_processed ascending, then by id.
func (s *Store) Candidates(ctx context.Context, filter Filter) ([]*FileRecord, error) {
	return s.listOrdered(ctx, filter, "(last_processed IS NOT NULL), last_processed, id")
}

func (s *Store) listOrdered(ctx context.Context, filter Filter, orderBy string) ([]*FileRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if len(filter.ProductTypeIDs) > 0 {
		clauses = append(clauses, "product_type_id IN ("+makePlaceholders(len(filter.ProductTypeIDs))+")")
		args = append(args, int64Args(filter.ProductTypeIDs)...)
	}
	if len(filter.AreaIDs) > 0 {
		clauses = append(clauses, "area_id IN ("+makePlaceholders(len(filter.AreaIDs))+")")
		args = append(args, int64Args(filter.AreaIDs)...)
	}

	query := "SELECT " + recordColumns + " FROM file"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY " + orderBy
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return scanRecords(rows)
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[filestate.Status]int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.query(ctx, "SELECT status, COUNT(1) FROM file GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[filestate.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[filestate.Status(status)] = count
	}
	return stats, rows.Err()
}

// Stuck returns records that have been processing for longer than
// olderThan. Nothing repairs them automatically.
func (s *Store) Stuck(ctx context.Context, olderThan time.Duration) ([]*FileRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cutoff := formatTimestamp(s.now().Add(-olderThan))
	rows, err := s.query(ctx,
		"SELECT "+recordColumns+" FROM file WHERE status = ? AND last_processed IS NOT NULL AND last_processed < ? ORDER BY last_processed, id",
		string(filestate.StatusProcessing),
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("stuck records: %w", err)
	}
	return scanRecords(rows)
}
