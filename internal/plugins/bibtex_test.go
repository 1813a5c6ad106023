package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paperhub/internal/domain"
)

const combinedBibtex = `% exported by ADS
@ARTICLE{2016PhRvL.116f1102A,
       author = {{Abbott}, B.~P. and others},
        title = "{Observation of Gravitational Waves from a Binary Black Hole Merger}",
         year = 2016,
}

@misc{Smith:2020abc,
  title = {Contact me at smith@example.org},
}
`

func TestSplitBibtex(t *testing.T) {
	entries := SplitBibtex(combinedBibtex)

	require.Len(t, entries, 2)
	assert.Contains(t, entries, "2016PhRvL.116f1102A")
	assert.Contains(t, entries, "Smith:2020abc")

	first := entries["2016PhRvL.116f1102A"]
	assert.True(t, len(first) > 0 && first[0] == '@')
	assert.Contains(t, first, "Binary Black Hole")
	assert.NotContains(t, first, "Smith:2020abc")

	// An @ inside a field does not start a new entry.
	assert.Contains(t, entries["Smith:2020abc"], "smith@example.org")
}

func TestSplitBibtex_Empty(t *testing.T) {
	assert.Empty(t, SplitBibtex(""))
	assert.Empty(t, SplitBibtex("no entries here"))
}

func TestMergePdfSources(t *testing.T) {
	t.Run("synthesizes arxiv entry when missing", func(t *testing.T) {
		found := []domain.PdfSource{
			{Type: domain.PdfADS, URL: "https://articles.adsabs.harvard.edu/pdf/x", Priority: domain.PriorityADS},
			{Type: domain.PdfPublisher, URL: "https://journals.aps.org/x.pdf", Priority: domain.PriorityPublisher},
		}

		merged := MergePdfSources(found, "1602.03837")

		require.Len(t, merged, 3)
		assert.Equal(t, domain.PdfPublisher, merged[0].Type)
		assert.Equal(t, domain.PdfArxiv, merged[1].Type)
		assert.Equal(t, "https://arxiv.org/pdf/1602.03837", merged[1].URL)
		assert.Equal(t, domain.PdfADS, merged[2].Type)

		arxivCount := 0
		for _, s := range merged {
			if s.Type == domain.PdfArxiv {
				arxivCount++
			}
		}
		assert.Equal(t, 1, arxivCount)
	})

	t.Run("explicit arxiv entry wins over synthesis", func(t *testing.T) {
		found := []domain.PdfSource{{Type: domain.PdfArxiv, URL: "https://arxiv.org/pdf/1602.03837v2", Priority: 2}}
		merged := MergePdfSources(found, "1602.03837")
		require.Len(t, merged, 1)
		assert.Equal(t, "https://arxiv.org/pdf/1602.03837v2", merged[0].URL)
	})

	t.Run("dedups by type keeping lowest priority", func(t *testing.T) {
		found := []domain.PdfSource{
			{Type: domain.PdfADS, URL: "https://a/scan", Priority: 4},
			{Type: domain.PdfADS, URL: "https://a/pdf", Priority: 3},
			{Type: domain.PdfAuthor, URL: "", Priority: 1},
		}
		merged := MergePdfSources(found, "")
		require.Len(t, merged, 1)
		assert.Equal(t, "https://a/pdf", merged[0].URL)
	})

	t.Run("no sources and no arxiv id", func(t *testing.T) {
		assert.Empty(t, MergePdfSources(nil, ""))
	})
}
