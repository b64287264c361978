package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/laiwatch/internal/taxonomy"
)

// SaveTaxonomy replaces the stored taxonomy with t and records the import.
func (s *Store) SaveTaxonomy(t taxonomy.Taxonomy, source string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning taxonomy transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM keywords`); err != nil {
		return fmt.Errorf("clearing keywords: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM categories`); err != nil {
		return fmt.Errorf("clearing categories: %w", err)
	}

	for pos, e := range t {
		res, err := tx.Exec(`INSERT INTO categories (position, name) VALUES (?, ?)`, pos, e.Category)
		if err != nil {
			return fmt.Errorf("inserting category %q: %w", e.Category, err)
		}
		catID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading category id: %w", err)
		}
		for kpos, kw := range e.Keywords {
			if _, err := tx.Exec(`INSERT INTO keywords (category_id, position, keyword) VALUES (?, ?, ?)`, catID, kpos, kw); err != nil {
				return fmt.Errorf("inserting keyword %q: %w", kw, err)
			}
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO taxonomy_imports (source, categories, keywords, imported_at)
		VALUES (?, ?, ?, ?)`,
		source, len(t), t.KeywordCount(), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording taxonomy import: %w", err)
	}

	return tx.Commit()
}

// LoadTaxonomy returns the stored taxonomy in its saved order. It returns
// ErrNotFound if no taxonomy was ever saved; a saved empty taxonomy is
// returned as an empty slice.
func (s *Store) LoadTaxonomy() (taxonomy.Taxonomy, error) {
	if _, err := s.LastImport(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT c.name, k.keyword
		FROM categories c
		JOIN keywords k ON k.category_id = c.id
		ORDER BY c.position ASC, k.position ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying taxonomy: %w", err)
	}
	defer rows.Close()

	tax := taxonomy.Taxonomy{}
	for rows.Next() {
		var name, kw string
		if err := rows.Scan(&name, &kw); err != nil {
			return nil, err
		}
		if n := len(tax); n == 0 || tax[n-1].Category != name {
			tax = append(tax, taxonomy.Entry{Category: name})
		}
		last := &tax[len(tax)-1]
		last.Keywords = append(last.Keywords, kw)
	}
	return tax, rows.Err()
}

// LastImport returns the most recent taxonomy import.
func (s *Store) LastImport() (Import, error) {
	var imp Import
	var importedAt string
	err := s.db.QueryRow(`
		SELECT id, source, categories, keywords, imported_at
		FROM taxonomy_imports ORDER BY id DESC LIMIT 1`,
	).Scan(&imp.ID, &imp.Source, &imp.Categories, &imp.Keywords, &importedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, ErrNotFound
	}
	if err != nil {
		return Import{}, err
	}
	t, err := time.Parse(time.RFC3339, importedAt)
	if err != nil {
		return Import{}, fmt.Errorf("parsing imported_at: %w", err)
	}
	imp.ImportedAt = t
	return imp, nil
}

// SeedTaxonomy saves def if nothing has been imported yet. It reports
// whether the seed was written.
func (s *Store) SeedTaxonomy(def taxonomy.Taxonomy) (bool, error) {
	_, err := s.LastImport()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := s.SaveTaxonomy(def, "builtin"); err != nil {
		return false, err
	}
	return true, nil
}

// Taxonomy satisfies the crawl controller's taxonomy source.
func (s *Store) Taxonomy() (taxonomy.Taxonomy, error) {
	return s.LoadTaxonomy()
}
