package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
	"github.com/helixir/paperhub/internal/observability"
	"github.com/helixir/paperhub/internal/plugins"
	"github.com/helixir/paperhub/internal/validation"
)

// Import outcomes, also used as metric labels.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeNotFound  = "not_found"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Resolver looks a raw identifier up across source plugins.
// *plugins.Manager satisfies it.
type Resolver interface {
	Lookup(ctx context.Context, raw string) *plugins.LookupResult
}

// ImportResult describes one import.
type ImportResult struct {
	Entry   *Entry `json:"entry,omitempty"`
	Outcome string `json:"outcome"`
	// Lookup is set when the paper had to be fetched from a plugin.
	Lookup *plugins.LookupResult `json:"lookup,omitempty"`
}

// Importer adds papers to a Store without duplicating them.
type Importer struct {
	store    Store
	resolver Resolver
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewImporter creates an importer. metrics may be nil.
func NewImporter(store Store, resolver Resolver, logger zerolog.Logger, metrics *observability.Metrics) *Importer {
	return &Importer{
		store:    store,
		resolver: resolver,
		logger:   logger.With().Str("component", "library").Logger(),
		metrics:  metrics,
	}
}

// ImportIdentifier imports the paper named by raw. A paper already in the
// store is returned as a duplicate without contacting any plugin.
func (i *Importer) ImportIdentifier(ctx context.Context, raw string) (*ImportResult, error) {
	typ, id := identifier.Detect(raw)
	if typ == identifier.TypeUnknown {
		i.metrics.RecordLibraryImport(OutcomeInvalid)
		return nil, domain.NewValidationError("identifier", fmt.Sprintf("unrecognized identifier %q", raw))
	}

	existing, err := i.store.FindByIdentifier(ctx, typ, id)
	switch {
	case err == nil:
		i.metrics.RecordLibraryImport(OutcomeDuplicate)
		return &ImportResult{Entry: existing, Outcome: OutcomeDuplicate}, nil
	case !errors.Is(err, domain.ErrNotFound):
		i.metrics.RecordLibraryImport(OutcomeError)
		return nil, fmt.Errorf("checking library: %w", err)
	}

	lookup := i.resolver.Lookup(ctx, raw)
	if lookup.Paper == nil {
		i.metrics.RecordLibraryImport(OutcomeNotFound)
		i.logger.Info().
			Str("identifier", id).
			Str("type", typ.String()).
			Int("attempts", len(lookup.Attempts)).
			Msg("identifier not found in any plugin")
		return &ImportResult{Outcome: OutcomeNotFound, Lookup: lookup}, domain.NewNotFoundError("paper", id)
	}

	result, err := i.ImportPaper(ctx, lookup.Paper)
	if result != nil {
		result.Lookup = lookup
	}
	return result, err
}

// ImportPaper validates paper and stores it unless a paper sharing any of
// its identifiers is already present.
func (i *Importer) ImportPaper(ctx context.Context, paper *domain.Paper) (*ImportResult, error) {
	if paper == nil {
		i.metrics.RecordLibraryImport(OutcomeInvalid)
		return nil, domain.NewValidationError("paper", "must not be nil")
	}
	if err := validation.Struct(paper); err != nil {
		i.metrics.RecordLibraryImport(OutcomeInvalid)
		return nil, err
	}

	if !paper.Identifiers.IsEmpty() {
		existing, err := i.store.FindAny(ctx, paper.Identifiers)
		switch {
		case err == nil:
			i.metrics.RecordLibraryImport(OutcomeDuplicate)
			return &ImportResult{Entry: existing, Outcome: OutcomeDuplicate}, nil
		case !errors.Is(err, domain.ErrNotFound):
			i.metrics.RecordLibraryImport(OutcomeError)
			return nil, fmt.Errorf("checking library: %w", err)
		}
	}

	entry, err := i.store.Add(ctx, paper)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost a race with a concurrent import of the same paper.
		existing, findErr := i.store.FindAny(ctx, paper.Identifiers)
		if findErr == nil {
			i.metrics.RecordLibraryImport(OutcomeDuplicate)
			return &ImportResult{Entry: existing, Outcome: OutcomeDuplicate}, nil
		}
	}
	if err != nil {
		i.metrics.RecordLibraryImport(OutcomeError)
		return nil, fmt.Errorf("storing paper: %w", err)
	}

	i.metrics.RecordLibraryImport(OutcomeCreated)
	i.logger.Info().
		Int64("entry_id", entry.ID).
		Str("source", paper.Source).
		Str("canonical_id", paper.Identifiers.CanonicalID()).
		Msg("paper imported")
	return &ImportResult{Entry: entry, Outcome: OutcomeCreated}, nil
}

// List returns stored entries.
func (i *Importer) List(ctx context.Context, opts ListOptions) ([]*Entry, int, error) {
	return i.store.List(ctx, opts)
}
