package plugins

import (
	"sort"
	"strings"

	"github.com/helixir/paperhub/internal/domain"
)

// MergePdfSources normalizes a plugin's PDF candidates: entries without a URL
// are dropped, duplicates by type keep the lowest priority, an arXiv entry is
// synthesized from arxivID when none was found, and the result is sorted by
// ascending priority.
func MergePdfSources(found []domain.PdfSource, arxivID string) []domain.PdfSource {
	byType := make(map[domain.PdfSourceType]int)
	out := make([]domain.PdfSource, 0, len(found)+1)

	for _, src := range found {
		if strings.TrimSpace(src.URL) == "" {
			continue
		}
		if i, ok := byType[src.Type]; ok {
			if src.Priority < out[i].Priority {
				out[i] = src
			}
			continue
		}
		byType[src.Type] = len(out)
		out = append(out, src)
	}

	if _, ok := byType[domain.PdfArxiv]; !ok && strings.TrimSpace(arxivID) != "" {
		out = append(out, ArxivPdfSource(strings.TrimSpace(arxivID)))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// ArxivPdfSource builds the arXiv entry for an arXiv ID.
func ArxivPdfSource(arxivID string) domain.PdfSource {
	return domain.PdfSource{
		Type:     domain.PdfArxiv,
		URL:      domain.ArxivPdfURL(arxivID),
		Label:    "arXiv",
		Priority: domain.PriorityArxiv,
	}
}
