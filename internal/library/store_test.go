package library

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "library", "papers.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func samplePaper() *domain.Paper {
	return &domain.Paper{
		Title:         "Observation of Gravitational Waves from a Binary Black Hole Merger",
		Authors:       []string{"Abbott, B. P.", "Abbott, R."},
		Year:          2016,
		Journal:       "Physical Review Letters",
		Volume:        "116",
		Pages:         "061102",
		Keywords:      []string{"gravitational waves"},
		CitationCount: domain.IntPtr(9000),
		Identifiers: domain.Identifiers{
			DOI:     "10.1103/PhysRevLett.116.061102",
			ArxivID: "1602.03837",
			Bibcode: "2016PhRvL.116f1102A",
		},
		Source:   "ads",
		SourceID: "2016PhRvL.116f1102A",
		URL:      "https://ui.adsabs.harvard.edu/abs/2016PhRvL.116f1102A",
	}
}

func TestNewSQLiteStore(t *testing.T) {
	t.Run("empty path rejected", func(t *testing.T) {
		_, err := NewSQLiteStore("", zerolog.Nop())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "papers.db")
		store, err := NewSQLiteStore(path, zerolog.Nop())
		require.NoError(t, err)
		_, err = store.Add(context.Background(), samplePaper())
		require.NoError(t, err)
		require.NoError(t, store.Close())

		reopened, err := NewSQLiteStore(path, zerolog.Nop())
		require.NoError(t, err)
		defer reopened.Close()

		_, total, err := reopened.List(context.Background(), ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})
}

func TestSQLiteStore_AddAndFind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	entry, err := store.Add(ctx, samplePaper())
	require.NoError(t, err)
	assert.Positive(t, entry.ID)
	assert.False(t, entry.AddedAt.IsZero())

	t.Run("by every identifier", func(t *testing.T) {
		cases := map[identifier.Type]string{
			identifier.TypeDOI:     "10.1103/PHYSREVLETT.116.061102",
			identifier.TypeArxiv:   "1602.03837",
			identifier.TypeBibcode: "2016PhRvL.116f1102A",
		}
		for typ, id := range cases {
			found, err := store.FindByIdentifier(ctx, typ, id)
			require.NoError(t, err, typ)
			assert.Equal(t, entry.ID, found.ID)
		}
	})

	t.Run("round trips fields", func(t *testing.T) {
		found, err := store.FindByIdentifier(ctx, identifier.TypeArxiv, "1602.03837")
		require.NoError(t, err)
		p := found.Paper
		assert.Equal(t, samplePaper().Title, p.Title)
		assert.Equal(t, []string{"Abbott, B. P.", "Abbott, R."}, p.Authors)
		assert.Equal(t, []string{"gravitational waves"}, p.Keywords)
		require.NotNil(t, p.CitationCount)
		assert.Equal(t, 9000, *p.CitationCount)
		assert.Equal(t, "ads", p.Source)
		assert.Equal(t, entry.AddedAt.Unix(), found.AddedAt.Unix())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.FindByIdentifier(ctx, identifier.TypeInspire, "1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := store.FindByIdentifier(ctx, identifier.TypeUnknown, "x")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("duplicate identifier rejected", func(t *testing.T) {
		dup := &domain.Paper{
			Title:       "Other",
			Identifiers: domain.Identifiers{DOI: "10.1103/physrevlett.116.061102"},
			Source:      "inspire",
			SourceID:    "1",
		}
		_, err := store.Add(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("papers without identifiers coexist", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := store.Add(ctx, &domain.Paper{Title: "Note", Source: "arxiv", SourceID: "x"})
			require.NoError(t, err)
		}
	})
}

func TestSQLiteStore_FindAny(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	entry, err := store.Add(ctx, samplePaper())
	require.NoError(t, err)

	found, err := store.FindAny(ctx, domain.Identifiers{DOI: "10.1/none", Bibcode: "2016PhRvL.116f1102A"})
	require.NoError(t, err)
	assert.Equal(t, entry.ID, found.ID)

	_, err = store.FindAny(ctx, domain.Identifiers{InspireID: "42"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_List(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, id := range []string{"1", "2", "3"} {
		_, err := store.Add(ctx, &domain.Paper{
			Title:       "Paper " + id,
			Identifiers: domain.Identifiers{InspireID: id},
			Source:      "inspire",
			SourceID:    id,
		})
		require.NoError(t, err)
	}

	entries, total, err := store.List(ctx, ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "Paper 3", entries[0].Paper.Title)
	assert.Nil(t, entries[0].Paper.CitationCount)

	entries, _, err = store.List(ctx, ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Paper 1", entries[0].Paper.Title)
}
