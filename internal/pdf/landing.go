package pdf

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxLandingBytes bounds the HTML parsed from a landing page.
const maxLandingBytes = 2 << 20

// ResolveLandingPage finds the PDF link on an HTML article page. It prefers
// the Highwire citation_pdf_url meta tag most publishers emit, then a PDF
// alternate link, then the first anchor ending in ".pdf". Relative links are
// resolved against pageURL. An empty string means no link was found.
func ResolveLandingPage(body []byte, pageURL string) (string, error) {
	if len(body) > maxLandingBytes {
		body = body[:maxLandingBytes]
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse landing page: %w", err)
	}

	attr := func(sel, name string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if v, ok := node.Attr(name); ok {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	link := firstNonEmpty(
		attr(`meta[name="citation_pdf_url"]`, "content"),
		attr(`link[rel="alternate"][type="application/pdf"]`, "href"),
		attr(`a[href$=".pdf"]`, "href"),
	)
	if link == "" {
		return "", nil
	}
	return resolveRef(pageURL, link)
}

func resolveRef(base, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse pdf link %q: %w", ref, err)
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse page url %q: %w", base, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
