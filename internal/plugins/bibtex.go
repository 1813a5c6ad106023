package plugins

import (
	"regexp"
	"strings"
)

// bibtexEntryStart matches the head of a BibTeX entry: "@article{Key2020,".
var bibtexEntryStart = regexp.MustCompile(`@([A-Za-z]+)\s*\{\s*([^,\s{}]+)\s*,`)

// SplitBibtex splits a combined BibTeX blob into entries keyed by citation
// key. Each entry runs from its "@type{key," head to the next entry head or
// the end of the text. Text before the first entry is discarded; a repeated
// key keeps its last entry.
func SplitBibtex(blob string) map[string]string {
	entries := make(map[string]string)
	locs := bibtexEntryStart.FindAllStringSubmatchIndex(blob, -1)
	for i, loc := range locs {
		end := len(blob)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		key := blob[loc[4]:loc[5]]
		entries[key] = strings.TrimSpace(blob[loc[0]:end])
	}
	return entries
}
