// Package identifier classifies bibliographic identifiers (DOI, arXiv ID,
// ADS bibcode, INSPIRE record ID) by their syntax alone.
package identifier

import (
	"regexp"
	"strings"
)

// Type is the detected kind of an identifier string.
type Type string

// Identifier types in classification order.
const (
	TypeDOI     Type = "doi"
	TypeArxiv   Type = "arxiv"
	TypeBibcode Type = "bibcode"
	TypeInspire Type = "inspire"
	TypeUnknown Type = "unknown"
)

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

var (
	// doiPattern matches DOIs: "10.1103/PhysRevLett.116.061102".
	doiPattern = regexp.MustCompile(`^10\.\d{4,}/\S+$`)

	// arxivNewPattern matches post-2007 arXiv IDs: "2301.07041", "2301.07041v2".
	arxivNewPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)

	// arxivOldPattern matches archive-style IDs: "hep-th/9901001", "math.AG/0601001v1".
	arxivOldPattern = regexp.MustCompile(`^[a-z\-]+(\.[A-Z]{2})?/\d{7}(v\d+)?$`)

	// bibcodePattern matches 19-character ADS bibcodes: "2016PhRvL.116f1102A".
	bibcodePattern = regexp.MustCompile(`^\d{4}[A-Za-z0-9&.]{5}[A-Za-z0-9.]{9}[A-Z.]$`)

	// inspirePattern matches INSPIRE literature record IDs.
	inspirePattern = regexp.MustCompile(`^\d{1,9}$`)
)

// Classify returns the identifier type of s after trimming surrounding
// whitespace. The first matching rule wins: DOI, arXiv, bibcode, INSPIRE.
// Classify is total and never fails; unmatched input is TypeUnknown.
func Classify(s string) Type {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return TypeUnknown
	case doiPattern.MatchString(s):
		return TypeDOI
	case IsArxiv(s):
		return TypeArxiv
	case bibcodePattern.MatchString(s):
		return TypeBibcode
	case inspirePattern.MatchString(s):
		return TypeInspire
	default:
		return TypeUnknown
	}
}

// IsDOI reports whether s is a bare DOI.
func IsDOI(s string) bool {
	return doiPattern.MatchString(strings.TrimSpace(s))
}

// IsArxiv reports whether s is a new- or old-style arXiv ID.
func IsArxiv(s string) bool {
	s = strings.TrimSpace(s)
	return arxivNewPattern.MatchString(s) || arxivOldPattern.MatchString(s)
}

// IsBibcode reports whether s is an ADS bibcode.
func IsBibcode(s string) bool {
	return bibcodePattern.MatchString(strings.TrimSpace(s))
}

// IsInspire reports whether s is an INSPIRE record ID.
func IsInspire(s string) bool {
	return inspirePattern.MatchString(strings.TrimSpace(s))
}

// prefixes users commonly paste in front of an identifier. Matched case-insensitively.
var prefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
	"https://arxiv.org/abs/",
	"http://arxiv.org/abs/",
	"arxiv.org/abs/",
	"arxiv:",
	"https://ui.adsabs.harvard.edu/abs/",
	"https://inspirehep.net/literature/",
}

// Normalize trims whitespace and strips a single well-known URL or scheme
// prefix, so "arXiv:2301.07041" and "https://doi.org/10.1/x" classify as bare
// identifiers. A trailing "/abstract" left by ADS links is removed.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.TrimSuffix(s, "/abstract")
	return strings.TrimSpace(s)
}

// Detect normalizes s and classifies the result.
func Detect(s string) (Type, string) {
	n := Normalize(s)
	return Classify(n), n
}
