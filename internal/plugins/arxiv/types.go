package arxiv

import "encoding/xml"

// Feed is the Atom document returned by /api/query. Elements from the
// opensearch and arxiv namespaces are matched by local name.
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	StartIndex   int      `xml:"startIndex"`
	Entries      []Entry  `xml:"entry"`
}

// Entry is one paper in the feed. API errors also arrive as entries, with an
// errors URL as ID.
type Entry struct {
	ID         string     `xml:"id"` // "http://arxiv.org/abs/2301.12345v1"
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Authors    []Author   `xml:"author"`
	Categories []Category `xml:"category"`
	DOI        string     `xml:"doi"`
	JournalRef string     `xml:"journal_ref"`
}

// Author is an entry author.
type Author struct {
	Name string `xml:"name"`
}

// Category is an arXiv subject class such as "astro-ph.CO".
type Category struct {
	Term string `xml:"term,attr"`
}
