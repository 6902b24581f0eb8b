package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// RegisterProduct adds a product type to the catalog.
func (s *Store) RegisterProduct(ctx context.Context, product Product) error {
	return s.registerCatalog(ctx, "product", product.ID, product.ShortName)
}

// RegisterArea adds an area to the catalog.
func (s *Store) RegisterArea(ctx context.Context, area Area) error {
	return s.registerCatalog(ctx, "area", area.ID, area.ShortName)
}

func (s *Store) registerCatalog(ctx context.Context, table string, id int64, name string) error {
	name = strings.TrimSpace(name)
	if id <= 0 {
		return fmt.Errorf("%w: %s id must be positive", ErrValidation, table)
	}
	if name == "" {
		return fmt.Errorf("%w: %s short name must be set", ErrValidation, table)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.execWithoutResultRetry(ctx, "INSERT INTO "+table+" (id, short_name) VALUES (?, ?)", id, name); err != nil {
		if s.dialect.uniqueErr(err) {
			return fmt.Errorf("%s %d (%s): %w", table, id, name, ErrConflict)
		}
		return fmt.Errorf("register %s %s: %w", table, name, err)
	}
	return nil
}

// Products lists the product catalog ordered by id.
func (s *Store) Products(ctx context.Context) ([]Product, error) {
	entries, err := s.listCatalog(ctx, "product")
	if err != nil {
		return nil, err
	}
	out := make([]Product, len(entries))
	for i, e := range entries {
		out[i] = Product(e)
	}
	return out, nil
}

// Areas lists the area catalog ordered by id.
func (s *Store) Areas(ctx context.Context) ([]Area, error) {
	entries, err := s.listCatalog(ctx, "area")
	if err != nil {
		return nil, err
	}
	out := make([]Area, len(entries))
	for i, e := range entries {
		out[i] = Area(e)
	}
	return out, nil
}

type catalogEntry struct {
	ID        int64
	ShortName string
}

func (s *Store) listCatalog(ctx context.Context, table string) ([]catalogEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.query(ctx, "SELECT id, short_name FROM "+table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list %s catalog: %w", table, err)
	}
	defer rows.Close()
	var entries []catalogEntry
	for rows.Next() {
		var e catalogEntry
		if err := rows.Scan(&e.ID, &e.ShortName); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) catalogID(ctx context.Context, table, name string) (int64, error) {
	var id int64
	err := s.queryRow(ctx, "SELECT id FROM "+table+" WHERE short_name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: unknown %s %q", ErrValidation, table, name)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve %s %q: %w", table, name, err)
	}
	return id, nil
}

// catalogName returns the short name for id, or "" when the catalog has no
// entry.
func (s *Store) catalogName(ctx context.Context, table string, id int64) (string, error) {
	var name string
	err := s.queryRow(ctx, "SELECT short_name FROM "+table+" WHERE id = ?", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s %d: %w", table, id, err)
	}
	return name, nil
}
