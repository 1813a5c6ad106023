package ads

// searchResponse is the body of GET /search/query.
type searchResponse struct {
	Response struct {
		NumFound int   `json:"numFound"`
		Start    int   `json:"start"`
		Docs     []doc `json:"docs"`
	} `json:"response"`
}

// doc is one Solr document. Multi-valued fields arrive as arrays.
type doc struct {
	Bibcode       string   `json:"bibcode"`
	Title         []string `json:"title"`
	Author        []string `json:"author"`
	Year          string   `json:"year"`
	Pub           string   `json:"pub"`
	Volume        string   `json:"volume"`
	Page          []string `json:"page"`
	Abstract      string   `json:"abstract"`
	Keyword       []string `json:"keyword"`
	CitationCount *int     `json:"citation_count"`
	DOI           []string `json:"doi"`
	Identifier    []string `json:"identifier"`
}

// esourceResponse is the body of GET /resolver/{bibcode}/esource. ADS answers
// with a list of records when several links exist and a single redirect link
// otherwise.
type esourceResponse struct {
	Action   string `json:"action"`
	Link     string `json:"link"`
	LinkType string `json:"link_type"`
	Links    struct {
		Count   int          `json:"count"`
		Records []linkRecord `json:"records"`
	} `json:"links"`
}

type linkRecord struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	LinkType string `json:"link_type"`
}

// exportRequest is the body of POST /export/bibtex.
type exportRequest struct {
	Bibcode []string `json:"bibcode"`
}

type exportResponse struct {
	Msg    string `json:"msg"`
	Export string `json:"export"`
}
