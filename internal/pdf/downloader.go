// Package pdf downloads full-text PDFs from the candidate locations source
// plugins report, following publisher landing pages when needed.
package pdf

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sentinel errors for PDF download operations.
var (
	// ErrNotPDF is returned when the response is neither typed nor shaped as a PDF.
	ErrNotPDF = errors.New("pdf: response is not a PDF")
	// ErrTooLarge is returned when the file exceeds the maximum allowed size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
	// ErrDownloadFailed is returned for network errors and non-2xx responses.
	ErrDownloadFailed = errors.New("pdf: download failed")
	// ErrSSRF is returned when the URL resolves to a private network address.
	ErrSSRF = errors.New("pdf: request to private network denied")
)

// pdfMagic opens every PDF file.
var pdfMagic = []byte("%PDF-")

// Document is a downloaded PDF.
type Document struct {
	Content []byte
	// ContentHash is the SHA-256 hex digest of Content.
	ContentHash string
	SizeBytes   int64
	ContentType string
	// URL is the address the bytes were finally served from, after redirects.
	URL string
}

// Config holds downloader configuration.
type Config struct {
	// Timeout bounds one HTTP exchange. Default: 60 seconds.
	Timeout time.Duration
	// MaxSize is the maximum file size in bytes. Default: 100MB.
	MaxSize int64
	// UserAgent is the User-Agent header.
	UserAgent string
	// AllowPrivateNetworks disables the private-address checks. Tests only.
	AllowPrivateNetworks bool
}

// Downloader fetches PDFs over HTTP, refusing private network targets.
type Downloader struct {
	client               *resty.Client
	maxSize              int64
	userAgent            string
	allowPrivateNetworks bool
}

// NewDownloader creates a Downloader.
func NewDownloader(cfg Config) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100 * 1024 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "paperhub/1.0 (+https://github.com/helixir/paperhub)"
	}

	d := &Downloader{
		maxSize:              cfg.MaxSize,
		userAgent:            cfg.UserAgent,
		allowPrivateNetworks: cfg.AllowPrivateNetworks,
	}

	d.client = resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("%w: too many redirects", ErrDownloadFailed)
			}
			// Every hop is checked so an open redirect cannot reach an internal address.
			return d.checkTarget(req.URL)
		}))

	return d
}

// response is a bounded HTTP body.
type response struct {
	body        []byte
	contentType string
	finalURL    string
}

func (r *response) isPDF() bool {
	return strings.Contains(strings.ToLower(r.contentType), "application/pdf") ||
		bytes.HasPrefix(r.body, pdfMagic)
}

func (r *response) isHTML() bool {
	ct := strings.ToLower(r.contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// Download fetches rawURL and returns it when the body is a PDF.
// Returns ErrNotPDF, ErrTooLarge, ErrSSRF or ErrDownloadFailed.
func (d *Downloader) Download(ctx context.Context, rawURL string) (*Document, error) {
	resp, err := d.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !resp.isPDF() {
		return nil, fmt.Errorf("%w: Content-Type is %q", ErrNotPDF, resp.contentType)
	}
	return newDocument(resp), nil
}

func newDocument(resp *response) *Document {
	hash := sha256.Sum256(resp.body)
	return &Document{
		Content:     resp.body,
		ContentHash: hex.EncodeToString(hash[:]),
		SizeBytes:   int64(len(resp.body)),
		ContentType: resp.contentType,
		URL:         resp.finalURL,
	}
}

// get performs the request and reads at most maxSize bytes of the body.
func (d *Downloader) get(ctx context.Context, rawURL string) (*response, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrDownloadFailed, rawURL)
	}
	if err := checkScheme(parsed); err != nil {
		return nil, err
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrDownloadFailed, rawURL)
	}
	if err := d.checkTarget(parsed); err != nil {
		return nil, err
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/pdf, text/html;q=0.9, */*;q=0.8").
		SetDoNotParseResponse(true).
		Get(parsed.String())
	if err != nil {
		if errors.Is(err, ErrSSRF) || errors.Is(err, ErrDownloadFailed) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode())
	}

	// One extra byte detects oversize bodies.
	content, err := io.ReadAll(io.LimitReader(body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrDownloadFailed, err)
	}
	if int64(len(content)) > d.maxSize {
		return nil, fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, d.maxSize)
	}

	finalURL := parsed.String()
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	return &response{
		body:        content,
		contentType: resp.Header().Get("Content-Type"),
		finalURL:    finalURL,
	}, nil
}

// checkTarget rejects non-HTTP schemes and, unless private networks are
// allowed, hosts resolving to private or loopback addresses.
func (d *Downloader) checkTarget(u *url.URL) error {
	if err := checkScheme(u); err != nil {
		return err
	}
	if d.allowPrivateNetworks {
		return nil
	}

	host := u.Hostname()
	ips, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %w", ErrDownloadFailed, host, err)
	}
	for _, s := range ips {
		if ip := net.ParseIP(s); ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to private address %s", ErrSSRF, host, s)
		}
	}
	return nil
}

// checkScheme refuses anything but http and https, including host-less
// schemes such as file.
func checkScheme(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", ErrSSRF, u.Scheme)
	}
}

// isPrivateIP reports loopback, RFC 1918, unique-local, link-local and
// unspecified addresses.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
