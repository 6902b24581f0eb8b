package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"satpipe/internal/artifact"
	"satpipe/internal/filestate"
)

// Extract resolves selector to exactly one record and materializes its
// artifact at localPath. An empty localPath only resolves the record.
func (s *Store) Extract(ctx context.Context, selector, localPath string) (*FileRecord, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", selector, err)
	}

	record, err := s.resolveOne(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", selector, err)
	}
	if localPath == "" {
		return record, nil
	}
	if record.Filepath == "" {
		return nil, fmt.Errorf("extract %q: record %d has no artifact: %w", selector, record.ID, artifact.ErrMissing)
	}
	if err := s.artifacts.Fetch(ensureContext(ctx), record.Filepath, localPath); err != nil {
		return nil, fmt.Errorf("extract %q: %w", selector, err)
	}
	if s.verify {
		if err := artifact.Verify(localPath, record.Multihash); err != nil {
			return nil, fmt.Errorf("extract %q: %w", selector, err)
		}
	}
	return record, nil
}

func (s *Store) resolveOne(ctx context.Context, sel Selector) (*FileRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	where, args := sel.where()
	rows, err := s.query(ctx, "SELECT "+recordColumns+" FROM file WHERE "+where+" ORDER BY id LIMIT 2", args...)
	if err != nil {
		return nil, err
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return records[0], nil
	default:
		return nil, ErrAmbiguous
	}
}

// Load archives the file at localPath and registers it with md. It returns
// the record id. Loading an instance that already exists fails with
// ErrConflict and never overwrites the stored record or its bytes: archive
// keys carry a content digest, and bytes archived by a load that loses the
// insert race are discarded.
func (s *Store) Load(ctx context.Context, md Metadata, localPath string) (int64, error) {
	ctx = ensureContext(ctx)
	resolved, err := s.resolveMetadata(ctx, md)
	if err != nil {
		return 0, err
	}

	if md.ID == 0 {
		exists, err := s.instanceExists(ctx, resolved)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, s.conflict(resolved)
		}
	}

	location := ""
	multihash := md.Multihash
	if localPath != "" {
		info, err := os.Stat(localPath)
		if err != nil {
			return 0, fmt.Errorf("%w: output %s: %v", ErrValidation, localPath, err)
		}
		if !info.Mode().IsRegular() {
			return 0, fmt.Errorf("%w: output %s is not a regular file", ErrValidation, localPath)
		}
		sum, err := artifact.Sum(localPath)
		if err != nil {
			return 0, err
		}
		if multihash != "" && multihash != sum {
			return 0, fmt.Errorf("load %s: %w: declared %s, computed %s", localPath, artifact.ErrHashMismatch, multihash, sum)
		}
		multihash = sum
		key := artifact.ArchiveKey(resolved.productName, md.DateTime, resolved.areaName, sum, artifact.Ext(localPath))
		location, err = s.artifacts.Put(ctx, localPath, key)
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", localPath, err)
		}
	}

	var id int64
	if md.ID != 0 {
		id, err = md.ID, s.updateRecord(ctx, md.ID, resolved, location, multihash)
	} else {
		id, err = s.insertRecord(ctx, resolved, location, multihash)
	}
	if err != nil && location != "" {
		if cleanupErr := s.discardArtifact(ctx, location); cleanupErr != nil {
			err = errors.Join(err, cleanupErr)
		}
		return 0, err
	}
	return id, err
}

// discardArtifact removes bytes archived for a load whose record was never
// written. Bytes another record already points at are kept, which covers a
// racing load of identical content that landed on the same key.
func (s *Store) discardArtifact(ctx context.Context, location string) error {
	ctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	var refs int
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM file WHERE filepath = ?", location).Scan(&refs); err != nil {
		return fmt.Errorf("check artifact references %s: %w", location, err)
	}
	if refs > 0 {
		return nil
	}
	if err := s.artifacts.Delete(ctx, location); err != nil {
		return fmt.Errorf("discard orphaned artifact: %w", err)
	}
	return nil
}

type resolvedMetadata struct {
	productTypeID int64
	productName   string
	areaID        int64
	areaName      string
	dateTime      string
	status        filestate.Status
}

func (s *Store) resolveMetadata(ctx context.Context, md Metadata) (resolvedMetadata, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var r resolvedMetadata
	switch {
	case md.ProductType != "":
		id, err := s.catalogID(ctx, "product", md.ProductType)
		if err != nil {
			return r, err
		}
		if md.ProductTypeID != 0 && md.ProductTypeID != id {
			return r, fmt.Errorf("%w: product_type %q is id %d, not %d", ErrValidation, md.ProductType, id, md.ProductTypeID)
		}
		r.productTypeID, r.productName = id, md.ProductType
	case md.ProductTypeID > 0:
		name, err := s.catalogName(ctx, "product", md.ProductTypeID)
		if err != nil {
			return r, err
		}
		r.productTypeID, r.productName = md.ProductTypeID, name
		if name == "" {
			r.productName = "p" + strconv.FormatInt(md.ProductTypeID, 10)
		}
	default:
		return r, fmt.Errorf("%w: product_type or product_type_id is required", ErrValidation)
	}

	switch {
	case md.Area != "":
		id, err := s.catalogID(ctx, "area", md.Area)
		if err != nil {
			return r, err
		}
		r.areaID, r.areaName = id, md.Area
	case md.AreaID != nil && *md.AreaID != noArea:
		name, err := s.catalogName(ctx, "area", *md.AreaID)
		if err != nil {
			return r, err
		}
		r.areaID, r.areaName = *md.AreaID, name
		if name == "" {
			r.areaName = "a" + strconv.FormatInt(*md.AreaID, 10)
		}
	}

	if md.DateTime.IsZero() {
		return r, fmt.Errorf("%w: date_time is required", ErrValidation)
	}
	r.dateTime = md.DateTime.UTC().Format(DateTimeLayout)

	r.status = md.Status
	if r.status == "" {
		r.status = filestate.StatusStandard
	}
	if !r.status.Valid() {
		return r, fmt.Errorf("%w: unknown status %q", ErrValidation, r.status)
	}
	return r, nil
}

func (s *Store) instanceExists(ctx context.Context, r resolvedMetadata) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var id int64
	err := s.queryRow(ctx,
		"SELECT id FROM file WHERE product_type_id = ? AND date_time = ? AND area_id = ?",
		r.productTypeID, r.dateTime, r.areaID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check existing record: %w", err)
	}
	return true, nil
}

func (s *Store) insertRecord(ctx context.Context, r resolvedMetadata, location, multihash string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	now := formatTimestamp(s.now())
	query := `INSERT INTO file (product_type_id, area_id, date_time, status, filepath, multihash, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{r.productTypeID, r.areaID, r.dateTime, string(r.status), nullableString(location), nullableString(multihash), now, now}

	if s.dialect.returningID {
		var id int64
		err := s.retryOnBusy(ctx, func() error {
			return s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
		})
		if err != nil {
			return 0, s.insertError(r, err)
		}
		return id, nil
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, s.insertError(r, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

func (s *Store) updateRecord(ctx context.Context, id int64, r resolvedMetadata, location, multihash string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	query := `UPDATE file SET product_type_id = ?, area_id = ?, date_time = ?, status = ?, updated_at = ?`
	args := []any{r.productTypeID, r.areaID, r.dateTime, string(r.status), formatTimestamp(s.now())}
	if location != "" {
		query += ", filepath = ?, multihash = ?"
		args = append(args, location, nullableString(multihash))
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return s.insertError(r, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update record %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) insertError(r resolvedMetadata, err error) error {
	if s.dialect.uniqueErr(err) {
		return s.conflict(r)
	}
	return fmt.Errorf("store record: %w", err)
}

func (s *Store) conflict(r resolvedMetadata) error {
	return fmt.Errorf("product %d at %s area %d: %w", r.productTypeID, r.dateTime, r.areaID, ErrConflict)
}
