package inspire

// searchResponse is the body of GET /literature.
type searchResponse struct {
	Hits struct {
		Total int      `json:"total"`
		Hits  []record `json:"hits"`
	} `json:"hits"`
}

// record is a literature record as returned by both search and direct
// record endpoints.
type record struct {
	Metadata metadata `json:"metadata"`
}

type metadata struct {
	ControlNumber   int               `json:"control_number"`
	Titles          []valueTitle      `json:"titles"`
	Authors         []author          `json:"authors"`
	Abstracts       []value           `json:"abstracts"`
	DOIs            []value           `json:"dois"`
	ArxivEprints    []arxivEprint     `json:"arxiv_eprints"`
	CitationCount   *int              `json:"citation_count"`
	PublicationInfo []publicationInfo `json:"publication_info"`
	Keywords        []value           `json:"keywords"`
	EarliestDate    string            `json:"earliest_date"`
	Documents       []document        `json:"documents"`
	References      []reference       `json:"references"`
}

type value struct {
	Value string `json:"value"`
}

type valueTitle struct {
	Title string `json:"title"`
}

type author struct {
	FullName string `json:"full_name"`
}

type arxivEprint struct {
	Value      string   `json:"value"`
	Categories []string `json:"categories"`
}

type publicationInfo struct {
	JournalTitle  string `json:"journal_title"`
	JournalVolume string `json:"journal_volume"`
	PageStart     string `json:"page_start"`
	PageEnd       string `json:"page_end"`
	ArtID         string `json:"artid"`
	Year          int    `json:"year"`
}

// document is an attached file. Hidden documents are not downloadable.
type document struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
	Fulltext    bool   `json:"fulltext"`
	Hidden      bool   `json:"hidden"`
}

// reference is one entry of a record's bibliography. Record is set when
// INSPIRE matched the reference to one of its own records.
type reference struct {
	Record struct {
		Ref string `json:"$ref"`
	} `json:"record"`
	Reference struct {
		Title           valueTitle `json:"title"`
		Authors         []author   `json:"authors"`
		ArxivEprint     string     `json:"arxiv_eprint"`
		DOIs            []string   `json:"dois"`
		PublicationInfo struct {
			JournalTitle string `json:"journal_title"`
			Year         int    `json:"year"`
		} `json:"publication_info"`
	} `json:"reference"`
}
