// Package library keeps a local collection of papers imported from source
// plugins, deduplicated by their external identifiers.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/database"
	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
)

// Entry is a stored paper.
type Entry struct {
	ID      int64         `json:"id" yaml:"id"`
	Paper   *domain.Paper `json:"paper" yaml:"paper"`
	AddedAt time.Time     `json:"addedAt" yaml:"addedAt"`
}

// ListOptions pages through the library, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store persists library entries.
type Store interface {
	// Add inserts paper. It returns a *domain.AlreadyExistsError when any of
	// the paper's identifiers is already stored.
	Add(ctx context.Context, paper *domain.Paper) (*Entry, error)

	// FindByIdentifier returns the entry holding id of the given type.
	// Returns domain.ErrNotFound if no entry matches.
	FindByIdentifier(ctx context.Context, typ identifier.Type, id string) (*Entry, error)

	// FindAny returns the first entry sharing any identifier in ids.
	// Returns domain.ErrNotFound if none does.
	FindAny(ctx context.Context, ids domain.Identifiers) (*Entry, error)

	// List returns entries and the total count.
	List(ctx context.Context, opts ListOptions) ([]*Entry, int, error)

	Close() error
}

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// identifier column per type. DOIs are stored lowercased.
var identifierColumns = map[identifier.Type]string{
	identifier.TypeDOI:     "doi",
	identifier.TypeArxiv:   "arxiv_id",
	identifier.TypeBibcode: "bibcode",
	identifier.TypeInspire: "inspire_id",
}

// NewSQLiteStore opens or creates the library database at path and applies
// pending schema migrations.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, domain.NewValidationError("library.path", "must not be empty")
	}

	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening library database: %w", err)
	}
	if err := database.Migrate(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating library schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectColumns = `id, title, authors, year, journal, volume, pages, abstract, keywords,
	citation_count, doi, arxiv_id, bibcode, inspire_id, source, source_id, url, added_at`

// Add inserts paper.
func (s *SQLiteStore) Add(ctx context.Context, paper *domain.Paper) (*Entry, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "must not be nil")
	}
	authors, err := json.Marshal(nonNil(paper.Authors))
	if err != nil {
		return nil, fmt.Errorf("encoding authors: %w", err)
	}
	keywords, err := json.Marshal(nonNil(paper.Keywords))
	if err != nil {
		return nil, fmt.Errorf("encoding keywords: %w", err)
	}

	var citations sql.NullInt64
	if paper.CitationCount != nil {
		citations = sql.NullInt64{Int64: int64(*paper.CitationCount), Valid: true}
	}

	ids := canonical(paper.Identifiers)
	addedAt := time.Now().UTC().Truncate(time.Second)

	res, err := s.db.ExecContext(ctx, `INSERT INTO papers (
			title, authors, year, journal, volume, pages, abstract, keywords,
			citation_count, doi, arxiv_id, bibcode, inspire_id, source, source_id, url, added_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		paper.Title, string(authors), paper.Year, paper.Journal, paper.Volume, paper.Pages,
		paper.Abstract, string(keywords), citations,
		ids.DOI, ids.ArxivID, ids.Bibcode, ids.InspireID,
		paper.Source, paper.SourceID, paper.URL, addedAt.Format(time.RFC3339),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, domain.NewAlreadyExistsError("paper", paper.Identifiers.CanonicalID())
		}
		return nil, fmt.Errorf("inserting paper: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading paper id: %w", err)
	}

	stored := *paper
	return &Entry{ID: id, Paper: &stored, AddedAt: addedAt}, nil
}

// FindByIdentifier returns the entry holding id.
func (s *SQLiteStore) FindByIdentifier(ctx context.Context, typ identifier.Type, id string) (*Entry, error) {
	column, ok := identifierColumns[typ]
	if !ok {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unsupported identifier type %q", typ))
	}
	id = canonicalValue(typ, id)
	if id == "" {
		return nil, domain.NewValidationError("identifier", "must not be empty")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM papers WHERE `+column+` = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return entry, err
}

// FindAny checks identifiers in DOI, arXiv, bibcode, INSPIRE order.
func (s *SQLiteStore) FindAny(ctx context.Context, ids domain.Identifiers) (*Entry, error) {
	candidates := []struct {
		typ identifier.Type
		id  string
	}{
		{identifier.TypeDOI, ids.DOI},
		{identifier.TypeArxiv, ids.ArxivID},
		{identifier.TypeBibcode, ids.Bibcode},
		{identifier.TypeInspire, ids.InspireID},
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.id) == "" {
			continue
		}
		entry, err := s.FindByIdentifier(ctx, c.typ, c.id)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, domain.NewNotFoundError("paper", ids.CanonicalID())
}

// List returns entries newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*Entry, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting papers: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM papers ORDER BY id DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating papers: %w", err)
	}
	return entries, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry     Entry
		paper     domain.Paper
		authors   string
		keywords  string
		citations sql.NullInt64
		addedAt   string
	)
	err := row.Scan(&entry.ID, &paper.Title, &authors, &paper.Year, &paper.Journal,
		&paper.Volume, &paper.Pages, &paper.Abstract, &keywords, &citations,
		&paper.Identifiers.DOI, &paper.Identifiers.ArxivID, &paper.Identifiers.Bibcode,
		&paper.Identifiers.InspireID, &paper.Source, &paper.SourceID, &paper.URL, &addedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning paper: %w", err)
	}

	if err := json.Unmarshal([]byte(authors), &paper.Authors); err != nil {
		return nil, fmt.Errorf("decoding authors: %w", err)
	}
	if err := json.Unmarshal([]byte(keywords), &paper.Keywords); err != nil {
		return nil, fmt.Errorf("decoding keywords: %w", err)
	}
	if len(paper.Keywords) == 0 {
		paper.Keywords = nil
	}
	if citations.Valid {
		paper.CitationCount = domain.IntPtr(int(citations.Int64))
	}
	entry.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
	entry.Paper = &paper
	return &entry, nil
}

// canonical trims identifiers and lowercases the DOI.
func canonical(ids domain.Identifiers) domain.Identifiers {
	return domain.Identifiers{
		DOI:       canonicalValue(identifier.TypeDOI, ids.DOI),
		ArxivID:   canonicalValue(identifier.TypeArxiv, ids.ArxivID),
		Bibcode:   canonicalValue(identifier.TypeBibcode, ids.Bibcode),
		InspireID: canonicalValue(identifier.TypeInspire, ids.InspireID),
	}
}

func canonicalValue(typ identifier.Type, v string) string {
	v = strings.TrimSpace(v)
	if typ == identifier.TypeDOI {
		return strings.ToLower(v)
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
