// Package edgar resolves tickers to their latest SEC proxy filing and
// downloads filing documents.
// API Documentation: https://www.sec.gov/developer
package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/logging"
	"float_share/pkg/models"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// SEC EDGAR endpoints
	CompanyTickersURL  = "https://www.sec.gov/files/company_tickers.json"
	TickersExchangeURL = "https://www.sec.gov/files/company_tickers_exchange.json"
	SubmissionsURL     = "https://data.sec.gov/submissions/CIK%s.json"
	ArchivesBaseURL    = "https://www.sec.gov/Archives/edgar/data"

	FormDEF14A = "DEF 14A"

	DefaultUserAgent = "FloatShareAnalyzer/1.0 (contact@example.com)"
)

// =============================================================================
// SEC EDGAR DATA TYPES
// =============================================================================

// Submissions is the subset of the submissions response the client reads.
type Submissions struct {
	CIK     string          `json:"cik"`
	Name    string          `json:"name"`
	Tickers []string        `json:"tickers"`
	Filings SubmissionFiles `json:"filings"`
}

type SubmissionFiles struct {
	Recent RecentFilings `json:"recent"`
}

// RecentFilings holds arrays of filing attributes (parallel arrays).
type RecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"` // e.g., "0000320193-24-000010"
	FilingDate      []string `json:"filingDate"`      // e.g., "2024-01-11"
	Form            []string `json:"form"`            // "DEF 14A", "10-K", ...
	PrimaryDocument []string `json:"primaryDocument"` // filename
}

// Listing is one row of company_tickers_exchange.json.
type Listing struct {
	CIK      string
	Name     string
	Ticker   string
	Exchange string
}

type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// Options configures a Client. Zero values fall back to SEC defaults.
type Options struct {
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *slog.Logger

	// Endpoint overrides, used by tests.
	TickersURL     string
	ExchangeURL    string
	SubmissionsURL string // format string with one %s for the padded CIK
	ArchivesURL    string
}

// Client talks to SEC EDGAR. Every request waits on one shared limiter.
type Client struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
	logger    *slog.Logger
	now       func() time.Time

	tickersURL     string
	exchangeURL    string
	submissionsURL string
	archivesURL    string

	tickerMu    sync.Mutex
	tickerCache map[string]tickerEntry
}

func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	c := &Client{
		http:           httpClient,
		userAgent:      opts.UserAgent,
		limiter:        rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:         logging.OrDefault(opts.Logger),
		now:            time.Now,
		tickersURL:     opts.TickersURL,
		exchangeURL:    opts.ExchangeURL,
		submissionsURL: opts.SubmissionsURL,
		archivesURL:    opts.ArchivesURL,
	}
	if c.tickersURL == "" {
		c.tickersURL = CompanyTickersURL
	}
	if c.exchangeURL == "" {
		c.exchangeURL = TickersExchangeURL
	}
	if c.submissionsURL == "" {
		c.submissionsURL = SubmissionsURL
	}
	if c.archivesURL == "" {
		c.archivesURL = ArchivesBaseURL
	}
	return c
}

// PadCIK zero-pads a CIK to the 10 digits EDGAR uses in file names.
func PadCIK(cik string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return fmt.Sprintf("%010s", trimmed)
}

// NormalizeTicker maps index-style tickers ("BRK.B") to SEC style ("BRK-B").
func NormalizeTicker(ticker string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(ticker)), ".", "-")
}

// LookupCIK resolves a ticker symbol to a padded CIK using company_tickers.json.
func (c *Client) LookupCIK(ctx context.Context, ticker string) (string, string, error) {
	normalized := NormalizeTicker(ticker)

	c.tickerMu.Lock()
	defer c.tickerMu.Unlock()

	// Lazy load
	if len(c.tickerCache) == 0 {
		if err := c.loadTickerCache(ctx); err != nil {
			return "", "", err
		}
	}

	entry, ok := c.tickerCache[normalized]
	if !ok {
		return "", "", domain.WrapError(domain.ErrNotFound, "edgar.lookup_cik",
			fmt.Errorf("ticker %s not found in SEC database", ticker))
	}
	return PadCIK(fmt.Sprint(entry.CIK)), entry.Title, nil
}

func (c *Client) loadTickerCache(ctx context.Context) error {
	body, err := c.get(ctx, c.tickersURL, true)
	if err != nil {
		return fmt.Errorf("failed to load SEC ticker list: %w", err)
	}

	var raw map[string]tickerEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.WrapError(domain.ErrParse, "edgar.tickers", err)
	}

	c.tickerCache = make(map[string]tickerEntry, len(raw))
	for _, e := range raw {
		c.tickerCache[NormalizeTicker(e.Ticker)] = e
	}
	c.logger.Debug("sec_tickers_loaded", "count", len(c.tickerCache))
	return nil
}

// Listings returns every ticker SEC maps to a CIK, with its exchange.
func (c *Client) Listings(ctx context.Context) ([]Listing, error) {
	body, err := c.get(ctx, c.exchangeURL, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load SEC exchange listings: %w", err)
	}

	// {"fields": ["cik","name","ticker","exchange"], "data": [[320193,"Apple Inc.","AAPL","Nasdaq"], ...]}
	var raw struct {
		Fields []string `json:"fields"`
		Data   [][]any  `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.WrapError(domain.ErrParse, "edgar.listings", err)
	}

	col := make(map[string]int, len(raw.Fields))
	for i, f := range raw.Fields {
		col[f] = i
	}
	for _, f := range []string{"cik", "name", "ticker", "exchange"} {
		if _, ok := col[f]; !ok {
			return nil, domain.WrapError(domain.ErrParse, "edgar.listings", fmt.Errorf("missing field %q", f))
		}
	}

	out := make([]Listing, 0, len(raw.Data))
	for _, row := range raw.Data {
		if len(row) < len(raw.Fields) {
			continue
		}
		out = append(out, Listing{
			CIK:      PadCIK(cell(row[col["cik"]])),
			Name:     cell(row[col["name"]]),
			Ticker:   NormalizeTicker(cell(row[col["ticker"]])),
			Exchange: cell(row[col["exchange"]]),
		})
	}
	return out, nil
}

// cell renders a decoded JSON scalar. Numbers arrive as float64.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// FetchSubmissions retrieves the submissions document for a CIK.
func (c *Client) FetchSubmissions(ctx context.Context, cik string) (*Submissions, error) {
	url := fmt.Sprintf(c.submissionsURL, PadCIK(cik))
	body, err := c.get(ctx, url, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions for CIK %s: %w", cik, err)
	}

	var subs Submissions
	if err := json.Unmarshal(body, &subs); err != nil {
		return nil, domain.WrapError(domain.ErrParse, "edgar.submissions", err)
	}
	return &subs, nil
}

// LatestFiling returns the most recent filing of the given form by filing date.
func (c *Client) LatestFiling(subs *Submissions, cik, form string) (*models.Filing, error) {
	recent := subs.Filings.Recent
	var best *models.Filing

	for i := range recent.AccessionNumber {
		if i >= len(recent.Form) || i >= len(recent.FilingDate) || i >= len(recent.PrimaryDocument) {
			break
		}
		if recent.Form[i] != form {
			continue
		}
		date, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			continue
		}
		if best != nil && !date.After(best.FilingDate) {
			continue
		}
		best = &models.Filing{
			CIK:             PadCIK(cik),
			CompanyName:     subs.Name,
			Form:            form,
			AccessionNumber: recent.AccessionNumber[i],
			FilingDate:      date,
			PrimaryDocument: recent.PrimaryDocument[i],
		}
	}

	if best == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "edgar.latest_filing",
			fmt.Errorf("no %s filing for CIK %s", form, cik))
	}
	best.URL = c.DocumentURL(best.CIK, best.AccessionNumber, best.PrimaryDocument)
	return best, nil
}

// DocumentURL builds the archive URL for a filing's primary document.
func (c *Client) DocumentURL(cik, accession, document string) string {
	trimmed := strings.TrimLeft(cik, "0")
	return fmt.Sprintf("%s/%s/%s/%s", c.archivesURL, trimmed, strings.ReplaceAll(accession, "-", ""), document)
}

// ProxyFiling resolves a ticker to its latest DEF 14A filing.
func (c *Client) ProxyFiling(ctx context.Context, ticker string) (*models.Filing, error) {
	cik, title, err := c.LookupCIK(ctx, ticker)
	if err != nil {
		return nil, err
	}
	subs, err := c.FetchSubmissions(ctx, cik)
	if err != nil {
		return nil, err
	}
	filing, err := c.LatestFiling(subs, cik, FormDEF14A)
	if err != nil {
		return nil, err
	}
	filing.Ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if filing.CompanyName == "" {
		filing.CompanyName = title
	}
	return filing, nil
}

var unsafeFileChars = regexp.MustCompile(`[^\w\-.]`)

// ErrForbidden marks a 403 response. It is wrapped in an ErrRejected error.
var ErrForbidden = errors.New("forbidden")

// Download saves a filing's primary document to dir as
// proxy_{timestamp}_{name} and returns the path.
func (c *Client) Download(ctx context.Context, filing *models.Filing, dir string) (string, error) {
	name := filing.PrimaryDocument
	if name == "" {
		name = filepath.Base(filing.URL)
	}
	safe := unsafeFileChars.ReplaceAllString(name, "_")
	path := filepath.Join(dir, fmt.Sprintf("proxy_%s_%s", c.now().Format("20060102_150405"), safe))

	c.logger.Info("downloading_filing", "url", filing.URL)
	body, err := c.get(ctx, filing.URL, true)
	if errors.Is(err, ErrForbidden) {
		// SEC occasionally refuses the full header set; retry plain.
		c.logger.Warn("download_forbidden_retrying_plain", "url", filing.URL)
		body, err = c.get(ctx, filing.URL, false)
	}
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", filing.URL, err)
	}
	if len(body) == 0 {
		return "", domain.WrapError(domain.ErrNotFound, "edgar.download", fmt.Errorf("%s returned an empty document", filing.URL))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	c.logger.Info("filing_saved", "path", path, "bytes", len(body))
	return path, nil
}

// get performs a throttled GET. withHeaders adds the SEC compliance headers.
func (c *Client) get(ctx context.Context, url string, withHeaders bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if withHeaders {
		// SEC requires User-Agent header
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json,application/pdf,application/xhtml+xml,text/html;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrConnection, "edgar.get", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.WrapError(domain.ErrNotFound, "edgar.get", fmt.Errorf("%s returned 404", url))
	case resp.StatusCode == http.StatusForbidden:
		return nil, domain.WrapError(domain.ErrRejected, "edgar.get", fmt.Errorf("%s returned 403: %w", url, ErrForbidden))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, domain.WrapError(domain.ErrTransient, "edgar.get", fmt.Errorf("%s returned status %d", url, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.WrapError(domain.ErrRejected, "edgar.get", fmt.Errorf("%s returned status %d", url, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConnection, "edgar.get", fmt.Errorf("failed to read response: %w", err))
	}
	return body, nil
}
