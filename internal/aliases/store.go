// Package aliases persists merchant alias mappings in SQLite. An alias maps
// a messy processor string ("AMZN Mktp US*2G4") to a canonical primary name
// ("Amazon") so the matcher can treat them as the same merchant.
package aliases

import (
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"doublepost/pkg/errors"
	"doublepost/pkg/logger"

	"github.com/agnivade/levenshtein"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS aliases (
	alias        TEXT PRIMARY KEY,
	primary_name TEXT NOT NULL,
	usage_count  INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL
);
`

// Alias is one stored mapping. The Alias field holds the normalized key
// (trimmed, lowercased); PrimaryName keeps the casing the user supplied.
type Alias struct {
	Alias       string    `json:"alias"`
	PrimaryName string    `json:"primary_name"`
	UsageCount  int       `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// SimilarAlias is a fuzzy lookup hit.
type SimilarAlias struct {
	Alias      Alias   `json:"alias"`
	Similarity float64 `json:"similarity"`
}

// Store is a SQLite-backed alias store. All operations are serialized by an
// internal mutex because resolution is a read-modify-write (the usage
// counter increments on every hit) and concurrent matching runs share one
// store.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger logger.Logger
}

// Open opens (and if necessary initializes) the alias database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.AliasError(errors.CodeAliasStorage, path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.AliasError(errors.CodeAliasStorage, path, err)
	}

	return &Store{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("aliases"),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// normalizeKey reduces an alias to its storage key.
func normalizeKey(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}

// Add stores a mapping from alias to primaryName. Re-adding an existing
// alias updates the primary name but preserves the usage count and creation
// time; renaming a merchant must not erase its history.
func (s *Store) Add(alias, primaryName string) error {
	key := normalizeKey(alias)
	primaryName = strings.TrimSpace(primaryName)

	if key == "" {
		return errors.ValidationError(errors.CodeMissingField, "alias", alias, nil)
	}
	if primaryName == "" {
		return errors.ValidationError(errors.CodeMissingField, "primary_name", primaryName, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE aliases SET primary_name = ? WHERE alias = ?`,
		primaryName, key,
	)
	if err != nil {
		return errors.AliasError(errors.CodeAliasStorage, alias, err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return errors.AliasError(errors.CodeAliasStorage, alias, err)
	}
	if updated > 0 {
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO aliases (alias, primary_name, usage_count, created_at) VALUES (?, ?, 0, ?)`,
		key, primaryName, time.Now().UTC(),
	)
	if err != nil {
		return errors.AliasError(errors.CodeAliasStorage, alias, err)
	}

	return nil
}

// GetPrimaryName resolves an alias to its primary name. Every hit bumps the
// alias's usage counter, so frequently-resolved aliases float to the top of
// List.
func (s *Store) GetPrimaryName(alias string) (string, bool) {
	key := normalizeKey(alias)
	if key == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var primary string
	err := s.db.QueryRow(`SELECT primary_name FROM aliases WHERE alias = ?`, key).Scan(&primary)
	if err != nil {
		// A storage failure degrades to a miss so matching keeps going.
		if err != sql.ErrNoRows {
			s.logger.WithError(err).WithField("alias", key).Warn("alias lookup failed")
		}
		return "", false
	}

	// Best effort; a failed counter bump must not fail the lookup.
	s.db.Exec(`UPDATE aliases SET usage_count = usage_count + 1 WHERE alias = ?`, key)

	return primary, true
}

// ResolvePrimary implements the matcher's AliasResolver interface.
func (s *Store) ResolvePrimary(alias string) (string, bool) {
	return s.GetPrimaryName(alias)
}

// List returns all stored aliases ordered by usage count descending, then
// alphabetically for stable output.
func (s *Store) List() ([]Alias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT alias, primary_name, usage_count, created_at FROM aliases ORDER BY usage_count DESC, alias ASC`,
	)
	if err != nil {
		return nil, errors.AliasError(errors.CodeAliasStorage, "list", err)
	}
	defer rows.Close()

	var result []Alias
	for rows.Next() {
		var a Alias
		if err := rows.Scan(&a.Alias, &a.PrimaryName, &a.UsageCount, &a.CreatedAt); err != nil {
			return nil, errors.AliasError(errors.CodeAliasStorage, "list", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.AliasError(errors.CodeAliasStorage, "list", err)
	}

	return result, nil
}

// Delete removes an alias. It reports whether a mapping existed.
func (s *Store) Delete(alias string) (bool, error) {
	key := normalizeKey(alias)
	if key == "" {
		return false, errors.ValidationError(errors.CodeMissingField, "alias", alias, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM aliases WHERE alias = ?`, key)
	if err != nil {
		return false, errors.AliasError(errors.CodeAliasStorage, alias, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return false, errors.AliasError(errors.CodeAliasStorage, alias, err)
	}

	return deleted > 0, nil
}

// FindSimilar returns stored aliases whose key is similar to description,
// scored by normalized Levenshtein similarity in [0, 1]. Only hits at or
// above threshold are returned, ordered by similarity descending with
// alphabetical tiebreak. Usage counts are not touched; this is a discovery
// aid, not a resolution.
func (s *Store) FindSimilar(description string, threshold float64) ([]SimilarAlias, error) {
	needle := normalizeKey(description)
	if needle == "" {
		return nil, nil
	}

	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var hits []SimilarAlias
	for _, a := range all {
		similarity := similarityRatio(needle, a.Alias)
		if similarity >= threshold {
			hits = append(hits, SimilarAlias{Alias: a, Similarity: similarity})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Alias.Alias < hits[j].Alias.Alias
	})

	return hits, nil
}

// similarityRatio is 1 - editDistance/maxLen over runes.
func similarityRatio(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}
